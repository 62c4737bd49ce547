package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/auth"
	"github.com/margindesk/admin-api/internal/config"
	"github.com/margindesk/admin-api/internal/database"
	"github.com/margindesk/admin-api/internal/ledger"
	"github.com/margindesk/admin-api/internal/settlement"
	"github.com/margindesk/admin-api/internal/trade"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/margindesk/admin-api/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}
}

// main initializes and runs the admin API server with graceful shutdown
// support. It wires the database, the authorization gate, the decision API,
// and the background settlement scheduler.
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	clock := types.SystemClock()

	// Initialize services and handlers
	adminDB := admin.NewDatabase(db)
	resolver := admin.NewResolver(adminDB, clock, cfg.Assignment.CacheTTL())
	gate := admin.NewGate(adminDB, resolver)

	authService := auth.NewService(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, adminDB)
	authHandlers := auth.NewGinHandlers(authService)

	if err := auth.SeedSuperAdmin(adminDB, cfg.Auth.SeedUsername, cfg.Auth.SeedPassword); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed super admin")
	}

	delayMin, delayMax := cfg.Settlement.DelayWindow()
	tradeService := trade.NewService(db, gate, resolver, clock, delayMin, delayMax)
	tradeHandlers := trade.NewGinHandlers(tradeService)

	ledgerService := ledger.NewService(db)

	settlementDB := settlement.NewDatabase(db)
	settlementHandlers := settlement.NewGinHandlers(settlementDB)

	// Create and start the settlement scheduler
	scheduler := settlement.NewScheduler(tradeService, settlementDB, ledgerService,
		clock, cfg.Settlement.Interval())
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()

	go scheduler.Start(schedulerCtx)

	// Initialize router
	router := gin.Default()

	// The admin console is a browser client on another origin
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.Auth.JWTSecret, gate, authHandlers, tradeHandlers, settlementHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the scheduler before the HTTP surface so no new batch starts
	// during drain
	schedulerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public login endpoint
// - Trade routes: decision API and scoped reads, JWT protected
// - Internal routes: settlement observability, super admin only
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	gate *admin.Gate,
	authHandlers *auth.GinHandlers,
	tradeHandlers *trade.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Trade routes
		trades := v1.Group("/trades")
		trades.Use(middleware.JWTAuth(jwtSecret))
		{
			trades.GET("", tradeHandlers.ListPendingHandler())
			trades.GET("/:trade_id", tradeHandlers.GetTradeHandler())
			trades.POST("/:trade_id/decision", tradeHandlers.DecisionHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.JWTAuth(jwtSecret), middleware.RequireSuperAdmin(func(adminID string) (string, error) {
			adm, err := gate.Authenticate(adminID)
			if err != nil {
				return "", err
			}
			return adm.Role, nil
		}))
		{
			internal.GET("/settlements/discrepancies", settlementHandlers.ListDiscrepanciesHandler())
		}
	}
}
