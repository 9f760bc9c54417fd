package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// notifyChannel is the LISTEN/NOTIFY channel raised on every write.
const notifyChannel = "messages_changed"

// relistenDelay is how long a subscriber waits before re-acquiring a
// listening connection after an error.
const relistenDelay = time.Second

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Name returns "postgres".
func (s *PostgresStore) Name() string { return "postgres" }

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Insert stores a message. created_at is set by the database on commit.
func (s *PostgresStore) Insert(ctx context.Context, author, text string) (*models.Message, error) {
	defer observe(s.Name(), "insert", time.Now())

	msg, err := newRemoteMessage(author, text)
	if err != nil {
		return nil, err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (id, author, text)
			VALUES ($1, $2, $3)
			RETURNING (EXTRACT(EPOCH FROM created_at) * 1000)::BIGINT
		`, msg.ID, msg.Author, msg.Text).Scan(&msg.Timestamp)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, msg.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// DeleteAll removes every message in one transaction.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	defer observe(s.Name(), "delete_all", time.Now())

	var deleted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM messages`)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, '*')`, notifyChannel)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Snapshot returns all messages ordered by timestamp.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]models.Message, error) {
	defer observe(s.Name(), "snapshot", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT id, author, text, COALESCE(link, ''), (EXTRACT(EPOCH FROM created_at) * 1000)::BIGINT
		FROM messages
		ORDER BY created_at, seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg := models.Message{Origin: models.OriginRemote}
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Text, &msg.Link, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Count returns the number of stored messages.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Subscribe holds one pooled connection in LISTEN mode and re-reads the
// table after every notification. A broken listening connection is reported
// through onError and replaced.
func (s *PostgresStore) Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithCancel(ctx)
	changes := make(chan struct{}, 1)
	failures := make(chan error)

	go func() {
		defer close(changes)
		for {
			_, err := conn.Conn().WaitForNotification(lctx)
			if err == nil {
				signal(changes)
				continue
			}

			// Listening connections are never returned to the pool.
			_ = conn.Conn().Close(context.Background())
			conn.Release()
			if lctx.Err() != nil {
				return
			}
			report(lctx, failures, err)

			for {
				select {
				case <-lctx.Done():
					return
				case <-time.After(relistenDelay):
				}
				if conn, err = s.listen(lctx); err == nil {
					break
				}
				report(lctx, failures, err)
			}

			// Anything may have changed while we were away.
			signal(changes)
		}
	}()

	return watch(lctx, changes, failures, s.Snapshot, onSnapshot, onError, cancel), nil
}

func (s *PostgresStore) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, err
	}
	return conn, nil
}
