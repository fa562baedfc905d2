package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/medcompli/cme-go-api/internal/engine"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	AuditSubject       string
	StatisticsCacheTTL time.Duration
	EndingSoonDays     int
	PaceFloor          float64
	StatisticsRateMax  int
	StatisticsRateWin  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Classification returns the compliance policy thresholds in the form the
// engine consumes.
func (c Config) Classification() engine.ClassificationConfig {
	return engine.ClassificationConfig{
		EndingSoonDays: c.EndingSoonDays,
		PaceFloor:      decimal.NewFromFloat(c.PaceFloor),
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CME")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CME Compliance API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("audit.subject", "cme.audit")
	v.SetDefault("statistics.cache_ttl", "5m")
	v.SetDefault("statistics.rate_max", 10)
	v.SetDefault("statistics.rate_window", "1m")
	v.SetDefault("cycle.ending_soon_days", 30)
	v.SetDefault("cycle.pace_floor", 0.5)

	ttl, err := time.ParseDuration(v.GetString("statistics.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid statistics cache ttl: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("statistics.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid statistics rate window: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		AuditSubject:       v.GetString("audit.subject"),
		StatisticsCacheTTL: ttl,
		EndingSoonDays:     v.GetInt("cycle.ending_soon_days"),
		PaceFloor:          v.GetFloat64("cycle.pace_floor"),
		StatisticsRateMax:  v.GetInt("statistics.rate_max"),
		StatisticsRateWin:  rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.EndingSoonDays <= 0 {
		cfg.EndingSoonDays = 30
	}

	if cfg.PaceFloor <= 0 || cfg.PaceFloor > 1 {
		cfg.PaceFloor = 0.5
	}

	return cfg, nil
}
