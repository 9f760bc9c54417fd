package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// migrations are applied in order; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		seq        BIGSERIAL,
		author     TEXT NOT NULL,
		text       TEXT NOT NULL,
		link       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages (created_at, seq)`,
}

// RunMigrations creates the PostgreSQL schema.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, stmt := range migrations {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
