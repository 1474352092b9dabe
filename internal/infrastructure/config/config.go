package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

const (
	MarketDataProviderYFinance   = "yfinance"
	MarketDataProviderTwelveData = "twelvedata"
	MarketDataProviderAlpaca     = "alpaca"
	MarketDataProviderFinnhub    = "finnhub"

	DBDriverPostgres = "postgres"
	DBDriverOracle   = "oracle"
	DBDriverSQLite   = "sqlite"
	DBDriverMemory   = "memory" // in-process only, lost on exit

	// ScheduleOff disables a scheduled job.
	ScheduleOff = "off"
)

type Config struct {
	ServerPort string
	ServerHost string
	LogLevel   string

	DBDriver string
	DBDSN    string

	MarketDataProvider string
	YFinanceBaseURL    string
	TwelveDataAPIKey   string
	AlpacaAPIKey       string
	AlpacaAPISecret    string
	FinnhubAPIKey      string

	SimulationSchedule   string
	PriceRefreshSchedule string
	SimulationVolatility float64
	// SimulationSeed is nil when the random source should be seeded from entropy.
	SimulationSeed *uint64
}

func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:           getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:           getEnvOrDefault("SERVER_HOST", "localhost"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		DBDriver:             getEnvOrDefault("DB_DRIVER", DBDriverSQLite),
		DBDSN:                os.Getenv("DB_DSN"),
		MarketDataProvider:   getEnvOrDefault("MARKET_DATA_PROVIDER", MarketDataProviderYFinance),
		YFinanceBaseURL:      getEnvOrDefault("YFINANCE_BASE_URL", "http://localhost:8000"),
		TwelveDataAPIKey:     os.Getenv("TWELVE_DATA_API_KEY"),
		AlpacaAPIKey:         os.Getenv("APCA_API_KEY_ID"),
		AlpacaAPISecret:      os.Getenv("APCA_API_SECRET_KEY"),
		FinnhubAPIKey:        os.Getenv("FINNHUB_API_KEY"),
		SimulationSchedule:   getEnvOrDefault("SIMULATION_SCHEDULE", "@every 60s"),
		PriceRefreshSchedule: getEnvOrDefault("PRICE_REFRESH_SCHEDULE", "@every 1h"),
	}

	switch cfg.DBDriver {
	case DBDriverSQLite:
		if cfg.DBDSN == "" {
			cfg.DBDSN = "file:simulator.db"
		}
	case DBDriverMemory:
	case DBDriverPostgres, DBDriverOracle:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN environment variable is required for %s driver", cfg.DBDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	switch cfg.MarketDataProvider {
	case MarketDataProviderYFinance:
	case MarketDataProviderTwelveData:
		if cfg.TwelveDataAPIKey == "" {
			return nil, fmt.Errorf("TWELVE_DATA_API_KEY environment variable is required for twelvedata provider")
		}
	case MarketDataProviderAlpaca:
		if cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "" {
			return nil, fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY environment variables are required for alpaca provider")
		}
	case MarketDataProviderFinnhub:
		if cfg.FinnhubAPIKey == "" {
			return nil, fmt.Errorf("FINNHUB_API_KEY environment variable is required for finnhub provider")
		}
	default:
		return nil, fmt.Errorf("unsupported MARKET_DATA_PROVIDER: %s", cfg.MarketDataProvider)
	}

	for key, spec := range map[string]string{
		"SIMULATION_SCHEDULE":    cfg.SimulationSchedule,
		"PRICE_REFRESH_SCHEDULE": cfg.PriceRefreshSchedule,
	} {
		if spec == ScheduleOff {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	volatility, err := strconv.ParseFloat(getEnvOrDefault("SIMULATION_VOLATILITY", "0.30"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIMULATION_VOLATILITY: %w", err)
	}
	if volatility <= 0 || volatility >= 1 {
		return nil, fmt.Errorf("invalid SIMULATION_VOLATILITY: %v is outside (0, 1)", volatility)
	}
	cfg.SimulationVolatility = volatility

	if raw := os.Getenv("SIMULATION_SEED"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SIMULATION_SEED: %w", err)
		}
		cfg.SimulationSeed = &seed
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
