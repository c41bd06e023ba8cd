package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	for _, key := range []string{
		"SERVICE_NAME", "ENV", "LOG_LEVEL", "LOG_FILE", "HTTP_ADDR", "STORE_DRIVER", "BOLT_PATH",
		"DATABASE_URL", "BORROW_LIMIT", "LOAN_PERIOD_DAYS", "PAYMENT_SUCCESS_RATE",
		"SEED_SAMPLE_DATA", "METRICS_NAMESPACE", "SHUTDOWN_TIMEOUT", "FEE_TIMEZONE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "library-circulation", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 5, cfg.BorrowLimit)
	assert.Equal(t, 14*24*time.Hour, cfg.LoanPeriod)
	assert.Equal(t, 1.0, cfg.PaymentRate)
	assert.True(t, cfg.SeedSampleData)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Local, cfg.FeeLocation)
}

func Test_Load_Overrides(t *testing.T) {
	// setup
	t.Setenv("STORE_DRIVER", "Postgres-SQLX")
	t.Setenv("DATABASE_URL", "postgres://localhost/library")
	t.Setenv("BORROW_LIMIT", "3")
	t.Setenv("LOAN_PERIOD_DAYS", "7")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.25")
	t.Setenv("SEED_SAMPLE_DATA", "false")
	t.Setenv("FEE_TIMEZONE", "UTC")

	// act
	cfg, err := Load()

	// assert
	require.NoError(t, err)
	assert.Equal(t, StorePostgresSQLX, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.BorrowLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.LoanPeriod)
	assert.Equal(t, 0.25, cfg.PaymentRate)
	assert.False(t, cfg.SeedSampleData)
	assert.Equal(t, time.UTC, cfg.FeeLocation)
}

func Test_Load_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "borrow limit not a number", key: "BORROW_LIMIT", value: "five"},
		{name: "unknown fee timezone", key: "FEE_TIMEZONE", value: "Nowhere/Invalid"},
		{name: "negative borrow limit", key: "BORROW_LIMIT", value: "-1"},
		{name: "zero loan period", key: "LOAN_PERIOD_DAYS", value: "0"},
		{name: "rate above one", key: "PAYMENT_SUCCESS_RATE", value: "1.5"},
		{name: "bad bool", key: "SEED_SAMPLE_DATA", value: "maybe"},
		{name: "bad duration", key: "SHUTDOWN_TIMEOUT", value: "soon"},
		{name: "unknown driver", key: "STORE_DRIVER", value: "mongo"},
		{name: "postgres without url", key: "STORE_DRIVER", value: "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tt.key, tt.value)

			_, err := Load()

			assert.Error(t, err)
		})
	}
}
