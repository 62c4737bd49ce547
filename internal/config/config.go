package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the admin API.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Auth       Auth       `mapstructure:"auth"`
	Settlement Settlement `mapstructure:"settlement"`
	Assignment Assignment `mapstructure:"assignment"`
	Logger     Logger     `mapstructure:"logger"`
}

// Server holds the HTTP server configuration.
type Server struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Database holds the database configuration.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Auth holds JWT and bootstrap-admin configuration.
type Auth struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
	SeedUsername  string `mapstructure:"seed_username"`
	SeedPassword  string `mapstructure:"seed_password"`
}

// Settlement holds the scheduler cadence and the decision delay window.
type Settlement struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	DelayMinSeconds int `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds int `mapstructure:"delay_max_seconds"`
}

// Assignment holds the assignment-set cache configuration.
type Assignment struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// Logger holds the logging configuration.
type Logger struct {
	Level string `mapstructure:"level"`
}

// Interval returns the scheduler tick interval.
func (s Settlement) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// DelayWindow returns the bounds of the random execution delay applied when
// a decision is recorded.
func (s Settlement) DelayWindow() (time.Duration, time.Duration) {
	return time.Duration(s.DelayMinSeconds) * time.Second,
		time.Duration(s.DelayMaxSeconds) * time.Second
}

// CacheTTL returns the assignment cache lifetime.
func (a Assignment) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// Load reads configuration from config.yml in the given path, with
// environment variables overriding file values (SERVER_PORT, AUTH_JWT_SECRET
// and so on). Missing files are not an error; defaults apply.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("database.dsn", "admin.db")
	viper.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	viper.SetDefault("auth.token_ttl_hours", 24)
	viper.SetDefault("auth.seed_username", "root")
	viper.SetDefault("auth.seed_password", "")
	viper.SetDefault("settlement.interval_seconds", 60)
	// Decision-to-settlement delay window: 3 to 5 minutes.
	viper.SetDefault("settlement.delay_min_seconds", 180)
	viper.SetDefault("settlement.delay_max_seconds", 300)
	viper.SetDefault("assignment.cache_ttl_seconds", 30)
	viper.SetDefault("logger.level", "info")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	err := viper.Unmarshal(&cfg)
	return cfg, err
}
