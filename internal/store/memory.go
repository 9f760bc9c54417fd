package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

// MemoryStore keeps messages in process memory. Used for development and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	msgs   []models.Message
	clock  func() time.Time
	closed bool
	feed   *fanout
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clock: time.Now, feed: newFanout()}
}

// WithClock replaces the clock used to stamp inserted messages.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// Name returns "memory".
func (s *MemoryStore) Name() string { return "memory" }

// Insert stores a message stamped with the store's clock.
func (s *MemoryStore) Insert(ctx context.Context, author, text string) (*models.Message, error) {
	msg, err := newRemoteMessage(author, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	msg.Timestamp = s.clock().UnixMilli()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()

	s.feed.notify()
	return &msg, nil
}

// DeleteAll removes every message.
func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	n := int64(len(s.msgs))
	s.msgs = nil
	s.mu.Unlock()

	s.feed.notify()
	return n, nil
}

// Snapshot returns all messages ordered by timestamp.
func (s *MemoryStore) Snapshot(ctx context.Context) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Count returns the number of stored messages.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.msgs)), nil
}

// Subscribe watches the store for changes.
func (s *MemoryStore) Subscribe(ctx context.Context, onSnapshot SnapshotHandler, onError ErrorHandler) (Subscription, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	changes, stop := s.feed.listen()
	return watch(ctx, changes, nil, s.Snapshot, onSnapshot, onError, stop), nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
