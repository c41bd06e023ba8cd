// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory       = "memory"
	StoreBolt         = "bolt"
	StorePostgres     = "postgres"
	StorePostgresSQLX = "postgres-sqlx"
)

type Config struct {
	ServiceName      string
	Env              string
	LogLevel         string
	LogFile          string
	HTTPAddr         string
	StoreDriver      string
	BoltPath         string
	DatabaseURL      string
	BorrowLimit      int
	LoanPeriod       time.Duration
	FeeLocation      *time.Location
	PaymentRate      float64
	SeedSampleData   bool
	MetricsNamespace string
	ShutdownTimeout  time.Duration
}

// Load reads every setting, falling back to defaults for unset variables. Malformed
// numbers and unknown store drivers are errors.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:      getenvDefault("SERVICE_NAME", "library-circulation"),
		Env:              getenvDefault("ENV", "dev"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("LOG_FILE"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		StoreDriver:      strings.ToLower(getenvDefault("STORE_DRIVER", StoreMemory)),
		BoltPath:         getenvDefault("BOLT_PATH", "library.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MetricsNamespace: os.Getenv("METRICS_NAMESPACE"),
	}

	var err error
	if cfg.BorrowLimit, err = intEnv("BORROW_LIMIT", 5, 0); err != nil {
		return Config{}, err
	}
	days, err := intEnv("LOAN_PERIOD_DAYS", 14, 1)
	if err != nil {
		return Config{}, err
	}
	cfg.LoanPeriod = time.Duration(days) * 24 * time.Hour
	if cfg.FeeLocation, err = locationEnv("FEE_TIMEZONE"); err != nil {
		return Config{}, err
	}

	if cfg.PaymentRate, err = floatEnv("PAYMENT_SUCCESS_RATE", 1.0); err != nil {
		return Config{}, err
	}
	if cfg.SeedSampleData, err = boolEnv("SEED_SAMPLE_DATA", true); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreBolt:
	case StorePostgres, StorePostgresSQLX:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("config: DATABASE_URL is required for store driver %q", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def, min int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n < min {
		return 0, fmt.Errorf("config: %s must be at least %d, got %d", key, min, n)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("config: %s must be within [0, 1], got %v", key, f)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// locationEnv defaults to the process zone.
func locationEnv(key string) (*time.Location, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return loc, nil
}
