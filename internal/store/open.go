package store

import (
	"context"
	"fmt"
)

// Backend kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindRedis    = "redis"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Kind        string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string
}

// Open connects to the backend named by opts.Kind. PostgreSQL migrations are
// run before the pool is opened.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	case KindPostgres:
		if err := RunMigrations(ctx, opts.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case KindSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Kind)
	}
}
