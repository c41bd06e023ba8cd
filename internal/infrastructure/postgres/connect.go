package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for sqlx
)

const (
	DriverPGX  = "postgres"
	DriverSQLX = "postgres-sqlx"
)

// Connect opens a pool for dsn using the pgx or the sqlx/lib/pq stack and pings it.
func Connect(ctx context.Context, driver, dsn string) (DBAdapter, error) {
	const defaultMaxConnections = 16
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	switch driver {
	case DriverPGX:
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse config: %w", err)
		}
		cfg.MaxConns = defaultMaxConnections
		cfg.MaxConnLifetime = defaultMaxConnLifetime
		cfg.MaxConnIdleTime = defaultMaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("postgres: open pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}
		return NewPGXAdapter(pool), nil

	case DriverSQLX:
		db, err := sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: open sqlx: %w", err)
		}
		db.SetMaxOpenConns(defaultMaxConnections)
		db.SetConnMaxLifetime(defaultMaxConnLifetime)
		db.SetConnMaxIdleTime(defaultMaxConnIdleTime)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", err)
		}
		return NewSQLXAdapter(db), nil

	default:
		return nil, fmt.Errorf("postgres: unknown driver %q", driver)
	}
}
