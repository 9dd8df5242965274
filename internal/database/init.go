package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/smart-charge/internal/config"
)

// schema is applied idempotently on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS recommendations (
		id           UUID PRIMARY KEY,
		timestamp    TIMESTAMPTZ NOT NULL,
		date         DATE NOT NULL,
		day_type     TEXT NOT NULL,
		price_source TEXT NOT NULL,
		window_start TIMESTAMPTZ NOT NULL,
		window_end   TIMESTAMPTZ NOT NULL,
		avg_price    DOUBLE PRECISION NOT NULL,
		avg_carbon   INTEGER NOT NULL,
		total_cost   DOUBLE PRECISION NOT NULL,
		total_carbon INTEGER NOT NULL,
		kwh          DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating       TEXT NOT NULL,
		reason       TEXT NOT NULL,
		savings      DOUBLE PRECISION NOT NULL,
		score        DOUBLE PRECISION NOT NULL,
		saved_at     TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE recommendations ADD COLUMN IF NOT EXISTS kwh DOUBLE PRECISION NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS recommendations_date_idx ON recommendations (date, saved_at DESC)`,
	`CREATE TABLE IF NOT EXISTS user_actions (
		id          UUID PRIMARY KEY,
		timestamp   TIMESTAMPTZ NOT NULL,
		date        DATE NOT NULL,
		action      TEXT NOT NULL,
		kwh_charged DOUBLE PRECISION,
		note        TEXT NOT NULL DEFAULT '',
		logged_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS user_actions_logged_at_idx ON user_actions (logged_at)`,
}

// Initialize connects using cfg.Database and ensures the schema exists.
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates missing tables and indexes in one transaction.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
