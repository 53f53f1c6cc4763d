package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	// Storage
	DBDriver string // "sqlite" or "postgres"
	DBPath   string // sqlite database file
	PGURL    string // postgres connection string, required when DBDriver == "postgres"

	// Ingestion
	HistoryYears  int           // default historical lookback when a ticker has no data yet
	MaxRetries    int           // download attempts per ticker
	RetryDelay    time.Duration // base backoff delay, doubles per attempt
	MinRows       int           // below this row count a batch gets a low-row-count warning
	ProviderURL   string        // override for the market data endpoint (tests)
	IngestTickers []string      // tickers the scheduled job ingests; empty disables the job
	ScheduleAt    string        // wall-clock time for the daily job, "HH:MM"

	// Server
	Port string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DBPath:       getEnv("DB_PATH", "data/stock_data.db"),
		PGURL:        os.Getenv("PG_URL"),
		HistoryYears: getEnvInt("HISTORY_YEARS", 5),
		MaxRetries:   getEnvInt("MAX_RETRIES", 3),
		RetryDelay:   time.Duration(getEnvInt("RETRY_DELAY_SECONDS", 2)) * time.Second,
		MinRows:      getEnvInt("MIN_ROWS", 10),
		ProviderURL:  os.Getenv("PROVIDER_URL"),
		ScheduleAt:   getEnv("SCHEDULE_AT", "17:30"),
		Port:         getEnv("PORT", "8080"),
	}

	if tickers := os.Getenv("INGEST_TICKERS"); tickers != "" {
		for _, t := range strings.Split(tickers, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.IngestTickers = append(cfg.IngestTickers, strings.ToUpper(t))
			}
		}
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres":
		if cfg.PGURL == "" {
			return nil, fmt.Errorf("PG_URL environment variable is required when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("ignoring non-numeric %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
