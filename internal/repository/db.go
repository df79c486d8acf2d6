package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations creates the subscription and audit tables.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			user_id                 TEXT PRIMARY KEY,
			plan_id                 TEXT NOT NULL,
			plan_name               TEXT NOT NULL,
			amount                  BIGINT NOT NULL,
			phone_number            TEXT NOT NULL,
			payment_provider        TEXT NOT NULL,
			payment_reference       TEXT NOT NULL,
			internal_reference      TEXT NOT NULL,
			customer_reference      TEXT NOT NULL,
			provider_transaction_id TEXT NOT NULL DEFAULT '',
			start_date              TIMESTAMPTZ NOT NULL,
			end_date                TIMESTAMPTZ NOT NULL,
			active                  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS wallet_transactions (
			key                     TEXT PRIMARY KEY,
			type                    TEXT NOT NULL,
			user_id                 TEXT NOT NULL,
			user_name               TEXT NOT NULL,
			amount                  BIGINT NOT NULL,
			plan_name               TEXT NOT NULL,
			payment_reference       TEXT NOT NULL,
			internal_reference      TEXT NOT NULL,
			provider_transaction_id TEXT NOT NULL DEFAULT '',
			timestamp               TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user_id ON wallet_transactions(user_id);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
