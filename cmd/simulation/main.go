package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/auth"
	"github.com/margindesk/admin-api/internal/database"
	"github.com/margindesk/admin-api/internal/ledger"
	"github.com/margindesk/admin-api/internal/settlement"
	"github.com/margindesk/admin-api/internal/trade"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	minTrades     = 20
	maxTrades     = 120
	numWorkers    = 5
	numUsers      = 10
	serverAddress = "http://localhost:8080"
	simUsername   = "sim-admin"
	simPassword   = "sim-password"
)

var symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "DOGEUSDT"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
	mu         sync.Mutex
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes min, max, mean, median, and 95th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p95 = rs.durations[p95idx]

	return
}

// offsetClock reports the real time shifted forward, so the settlement
// sweep sees freshly-armed trades as already due.
type offsetClock struct {
	offset time.Duration
}

func (c offsetClock) Now() time.Time { return time.Now().Add(c.offset) }

// simulationClient handles HTTP communication with the admin API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":     {name: "Login"},
			"decision": {name: "Record Decision"},
			"list":     {name: "List Pending Trades"},
		},
	}
}

// authenticate logs in as the seeded simulation admin and stores the JWT
func (sc *simulationClient) authenticate() error {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(map[string]string{
		"username": simUsername,
		"password": simPassword,
	})
	if err != nil {
		return err
	}

	resp, err := sc.client.Post(sc.baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed: %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	sc.authToken = envelope.Data.Token
	return nil
}

// recordDecision posts a win/lose decision for a trade
func (sc *simulationClient) recordDecision(tradeID, decision string) error {
	start := time.Now()
	defer func() {
		sc.stats["decision"].addDuration(time.Since(start))
	}()

	body, _ := json.Marshal(map[string]string{"decision": decision})
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/v1/trades/%s/decision", sc.baseURL, tradeID),
		bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["decision"].addFailure()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		sc.stats["decision"].addFailure()
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("decision failed: %d: %s", resp.StatusCode, raw)
	}
	return nil
}

// listPending fetches the pending trades visible to the simulation admin
func (sc *simulationClient) listPending() ([]string, error) {
	start := time.Now()
	defer func() {
		sc.stats["list"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/api/v1/trades", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["list"].addFailure()
		return nil, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data []struct {
			TradeID string `json:"trade_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(envelope.Data))
	for _, t := range envelope.Data {
		ids = append(ids, t.TradeID)
	}
	return ids, nil
}

// seedData provisions the simulation admin, its invitation code, end users
// redeeming that code, and a batch of pending trades, directly in the
// server's database.
func seedData(dsn string) ([]string, error) {
	db, err := database.NewDatabase(dsn)
	if err != nil {
		return nil, err
	}

	adminDB := admin.NewDatabase(db)
	existing, err := adminDB.GetAdminByUsername(simUsername)
	if err != nil {
		return nil, err
	}

	var adminID string
	if existing != nil {
		adminID = existing.AdminID
	} else {
		hash, err := auth.HashPassword(simPassword)
		if err != nil {
			return nil, err
		}
		adminID = "ADM_" + uuid.New().String()
		if err := adminDB.CreateAdmin(&admin.Admin{
			AdminID:      adminID,
			Username:     simUsername,
			PasswordHash: hash,
			Role:         admin.RoleAdmin,
			IsActive:     true,
		}); err != nil {
			return nil, err
		}
	}

	code := "SIM-" + uuid.New().String()[:8]
	if err := adminDB.CreateInviteCode(&admin.InviteCode{
		Code:      code,
		CreatedBy: adminID,
		MaxUses:   numUsers,
	}); err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		userID := "USR_" + uuid.New().String()
		userIDs = append(userIDs, userID)
		if err := db.Create(&types.User{
			UserID:       userID,
			Email:        fmt.Sprintf("sim-%d@example.com", i),
			Balance:      decimal.NewFromInt(1000),
			InviteCodeID: code,
		}).Error; err != nil {
			return nil, err
		}
	}

	tradeDB := trade.NewDatabase(db)
	numTrades := rand.Intn(maxTrades-minTrades+1) + minTrades
	tradeIDs := make([]string, 0, numTrades)
	for i := 0; i < numTrades; i++ {
		t := &types.Trade{
			TradeID:     uuid.New().String(),
			UserID:      userIDs[rand.Intn(len(userIDs))],
			Symbol:      symbols[rand.Intn(len(symbols))],
			Direction:   []string{types.DirectionUp, types.DirectionDown}[rand.Intn(2)],
			StakeAmount: decimal.NewFromInt(int64(rand.Intn(490) + 10)),
			Leverage:    []int{1, 5, 10, 20}[rand.Intn(4)],
			EntryPrice:  decimal.NewFromFloat(rand.Float64()*50000 + 1000),
			ProfitRate:  decimal.NewFromInt(int64(rand.Intn(60) + 10)),
			Status:      types.TradeStatusPending,
		}
		// Every third trade arrives with its timer already armed, so the
		// sweep exercises the default-to-loss path on undecided trades.
		if i%3 == 0 {
			executeAt := time.Now().Add(time.Duration(rand.Intn(240)) * time.Second)
			t.ExecuteAt = &executeAt
		}
		if err := tradeDB.CreateTrade(t); err != nil {
			return nil, err
		}
		tradeIDs = append(tradeIDs, t.TradeID)
		if err := db.Create(&types.Position{
			TradeID:     t.TradeID,
			UserID:      t.UserID,
			Symbol:      t.Symbol,
			Direction:   t.Direction,
			StakeAmount: t.StakeAmount,
			EntryPrice:  t.EntryPrice,
		}).Error; err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("users", numUsers).
		Int("trades", numTrades).
		Str("invite_code", code).
		Msg("seeded simulation data")

	return tradeIDs, nil
}

// settleAll runs one settlement sweep with a clock shifted past the longest
// possible decision delay, so every armed trade resolves immediately.
func settleAll(dsn string) error {
	db, err := database.NewDatabase(dsn)
	if err != nil {
		return err
	}

	clock := offsetClock{offset: 6 * time.Minute}
	adminDB := admin.NewDatabase(db)
	resolver := admin.NewResolver(adminDB, clock, 30*time.Second)
	gate := admin.NewGate(adminDB, resolver)
	tradeService := trade.NewService(db, gate, resolver, clock, 3*time.Minute, 5*time.Minute)

	scheduler := settlement.NewScheduler(tradeService, settlement.NewDatabase(db),
		ledger.NewService(db), clock, time.Minute)

	summary, err := scheduler.ProcessDue()
	if err != nil {
		return err
	}

	wins, losses, failures := 0, 0, 0
	for _, r := range summary.Results {
		switch {
		case !r.Success:
			failures++
		case r.Result == types.TradeStatusWin:
			wins++
		case r.Result == types.TradeStatusLose:
			losses++
		}
	}
	log.Info().
		Int("processed", summary.Processed).
		Int("wins", wins).
		Int("losses", losses).
		Int("failures", failures).
		Msg("settlement sweep complete")
	return nil
}

func main() {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "admin.db"
	}

	tradeIDs, err := seedData(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed simulation data")
	}

	sc := newSimulationClient()
	if err := sc.authenticate(); err != nil {
		log.Fatal().Err(err).Msg("failed to authenticate")
	}

	visible, err := sc.listPending()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list pending trades")
	}
	log.Info().Int("visible", len(visible)).Int("seeded", len(tradeIDs)).
		Msg("assignment-scoped listing")

	// Decide roughly half the trades concurrently; the rest are left to the
	// default-to-loss timeout path.
	work := make(chan string, len(tradeIDs))
	for _, id := range tradeIDs {
		if rand.Intn(2) == 0 {
			work <- id
		}
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				decision := types.DecisionLose
				if rand.Intn(2) == 0 {
					decision = types.DecisionWin
				}
				if err := sc.recordDecision(id, decision); err != nil {
					log.Warn().Err(err).Str("trade_id", id).Msg("decision rejected")
				}
			}
		}()
	}
	wg.Wait()

	if err := settleAll(dsn); err != nil {
		log.Fatal().Err(err).Msg("settlement sweep failed")
	}

	printStats(sc)
}

func printStats(sc *simulationClient) {
	fmt.Println("\n=== Route Statistics ===")
	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95 := rs.calculate()
		fmt.Printf("%-22s calls=%-5d failures=%-4d min=%-12s max=%-12s mean=%-12s median=%-12s p95=%s\n",
			rs.name, rs.totalCalls, rs.failures, min, max, mean, median, p95)
	}
}
