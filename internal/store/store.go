package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Kenmaaa05/EchoChamber/internal/ids"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrInvalidMessage wraps validation failures on Insert.
	ErrInvalidMessage = errors.New("store: invalid message")
)

// SnapshotHandler receives the full, ordered set of stored messages.
type SnapshotHandler func(snapshot []models.Message)

// ErrorHandler receives errors raised while a subscription is running.
type ErrorHandler func(err error)

// Subscription is a live snapshot feed. Close stops delivery.
type Subscription interface {
	Close() error
}

// MessageSource is the hosted message store as seen by a chat client.
type MessageSource interface {
	// Subscribe delivers the current snapshot right away and a fresh full
	// snapshot after every change, serially from one goroutine.
	Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error)

	// Insert stores a message. The store assigns the ID and the timestamp.
	Insert(ctx context.Context, author, text string) (*models.Message, error)

	// DeleteAll removes every stored message and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
}

// Backend is a MessageSource the server can host.
// RedisStore, PostgresStore, SQLiteStore and MemoryStore implement it.
type Backend interface {
	MessageSource

	// Name identifies the backend in logs, metrics and health checks.
	Name() string
	Snapshot(ctx context.Context) ([]models.Message, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// newRemoteMessage builds and validates a message for insertion. The
// timestamp is left for the backend to assign.
func newRemoteMessage(author, text string) (models.Message, error) {
	msg := models.Message{
		ID:     ids.NewMessageID(),
		Author: SanitizeName(author),
		Text:   text,
		Origin: models.OriginRemote,
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return msg, nil
}

// SanitizeName trims a display name, drops control characters and limits it
// to MaxAuthorLength runes.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if runes := []rune(name); len(runes) > models.MaxAuthorLength {
		name = string(runes[:models.MaxAuthorLength])
	}

	return name
}
