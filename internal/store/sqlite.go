package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// SQLiteStore handles SQLite database operations. Change notifications are
// in-process only, so a SQLite database serves a single server instance.
type SQLiteStore struct {
	db   *sql.DB
	feed *fanout
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/echochamber.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/echochamber.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db, feed: newFanout()}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist. The ts default is the
// current Unix time in milliseconds, computed by SQLite.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id     TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		text   TEXT NOT NULL,
		link   TEXT NOT NULL DEFAULT '',
		ts     INTEGER NOT NULL DEFAULT (CAST(ROUND((julianday('now') - 2440587.5) * 86400000.0) AS INTEGER))
	);

	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Name returns "sqlite".
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores a message with a database-assigned timestamp.
func (s *SQLiteStore) Insert(ctx context.Context, author, text string) (*models.Message, error) {
	defer observe(s.Name(), "insert", time.Now())

	msg, err := newRemoteMessage(author, text)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, author, text)
		VALUES (?, ?, ?)
		RETURNING ts
	`, msg.ID, msg.Author, msg.Text).Scan(&msg.Timestamp)
	if err != nil {
		return nil, err
	}

	s.feed.notify()
	return &msg, nil
}

// DeleteAll removes every message.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	defer observe(s.Name(), "delete_all", time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.feed.notify()
	return n, nil
}

// Snapshot returns all messages ordered by timestamp.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]models.Message, error) {
	defer observe(s.Name(), "snapshot", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, text, link, ts
		FROM messages
		ORDER BY ts, rowid
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Subscribe watches writes made through this store.
func (s *SQLiteStore) Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error) {
	changes, stop := s.feed.listen()
	return watch(ctx, changes, nil, s.Snapshot, onSnapshot, onError, stop), nil
}
