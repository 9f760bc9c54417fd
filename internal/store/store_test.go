package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kenmaaa05/EchoChamber/internal/models"
)

const waitTimeout = 5 * time.Second

// recorder collects snapshots delivered by a subscription.
type recorder struct {
	snaps chan []models.Message
	errs  chan error
}

func newRecorder() *recorder {
	return &recorder{
		snaps: make(chan []models.Message, 64),
		errs:  make(chan error, 64),
	}
}

func (r *recorder) onSnapshot(msgs []models.Message) { r.snaps <- msgs }
func (r *recorder) onError(err error)                { r.errs <- err }

// waitFor returns the first snapshot matching pred.
func (r *recorder) waitFor(t *testing.T, pred func([]models.Message) bool) []models.Message {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap := <-r.snaps:
			if pred(snap) {
				return snap
			}
		case err := <-r.errs:
			t.Fatalf("subscription error: %v", err)
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func hasLen(n int) func([]models.Message) bool {
	return func(msgs []models.Message) bool { return len(msgs) == n }
}

// testBackend runs the MessageSource contract against b.
func testBackend(t *testing.T, b Backend) {
	ctx := context.Background()

	require.NoError(t, b.Ping(ctx))
	_, err := b.DeleteAll(ctx)
	require.NoError(t, err)

	rec := newRecorder()
	sub, err := b.Subscribe(ctx, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Close()

	rec.waitFor(t, hasLen(0))

	first, err := b.Insert(ctx, "Ann", "Hello there")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, models.IsEphemeralID(first.ID))
	assert.Equal(t, "Ann", first.Author)
	assert.Equal(t, "Hello there", first.Text)
	assert.Equal(t, models.OriginRemote, first.Origin)
	assert.InDelta(t, time.Now().UnixMilli(), first.Timestamp, float64(time.Minute.Milliseconds()))

	snap := rec.waitFor(t, hasLen(1))
	assert.Equal(t, first.ID, snap[0].ID)
	assert.Equal(t, first.Timestamp, snap[0].Timestamp)

	second, err := b.Insert(ctx, "  Bob\x07 ", "  spaced  ")
	require.NoError(t, err)
	assert.Equal(t, "Bob", second.Author)
	assert.Equal(t, "  spaced  ", second.Text)

	snap = rec.waitFor(t, hasLen(2))
	assert.Equal(t, []string{first.ID, second.ID}, []string{snap[0].ID, snap[1].ID})

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = b.Insert(ctx, "", "no author")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = b.Insert(ctx, "Ann", "")
	assert.ErrorIs(t, err, ErrInvalidMessage)

	deleted, err := b.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	rec.waitFor(t, hasLen(0))

	// A closed subscription delivers nothing more.
	require.NoError(t, sub.Close())
	time.Sleep(50 * time.Millisecond)
	for len(rec.snaps) > 0 {
		<-rec.snaps
	}
	_, err = b.Insert(ctx, "Ann", "after close")
	require.NoError(t, err)

	select {
	case snap := <-rec.snaps:
		t.Fatalf("unexpected snapshot after close: %v", snap)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatch_FailuresShareDeliveryGoroutine(t *testing.T) {
	ctx := context.Background()
	changes := make(chan struct{}, 1)
	failures := make(chan error)
	fetch := func(context.Context) ([]models.Message, error) { return nil, nil }

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	var inSnapshot atomic.Bool
	errs := make(chan error, 1)

	onSnapshot := func([]models.Message) {
		inSnapshot.Store(true)
		entered <- struct{}{}
		<-gate
		inSnapshot.Store(false)
	}
	onError := func(err error) {
		assert.False(t, inSnapshot.Load(), "onError ran during onSnapshot")
		errs <- err
	}

	sub := watch(ctx, changes, failures, fetch, onSnapshot, onError, nil)
	defer sub.Close()

	<-entered
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		report(ctx, failures, assert.AnError)
	}()

	select {
	case <-errs:
		t.Fatal("failure delivered while a snapshot was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(waitTimeout):
		t.Fatal("failure never delivered")
	}
	<-sent
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testBackend(t, s)
}

func TestMemoryStore_Clock(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_123)
	s := NewMemoryStore().WithClock(func() time.Time { return fixed })

	msg, err := s.Insert(context.Background(), "Ann", "hi there")
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), msg.Timestamp)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Insert(ctx, "Ann", "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.DeleteAll(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Subscribe(ctx, func([]models.Message) {}, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer s.Close()
	testBackend(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	defer s.Close()
	testBackend(t, s)
}

func TestRedisStore_RecoversFromDroppedConnection(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	defer s.Close()

	rec := newRecorder()
	sub, err := s.Subscribe(ctx, rec.onSnapshot, rec.onError)
	require.NoError(t, err)
	defer sub.Close()
	rec.waitFor(t, hasLen(0))

	mr.Close()
	select {
	case err := <-rec.errs:
		assert.Error(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("dropped connection was not reported")
	}

	require.NoError(t, mr.Restart())
	_, err = s.Insert(ctx, "Ann", "back again")
	require.NoError(t, err)

	deadline := time.After(waitTimeout)
	for {
		select {
		case snap := <-rec.snaps:
			if len(snap) == 1 {
				assert.Equal(t, "back again", snap[0].Text)
				return
			}
		case <-rec.errs:
		case <-deadline:
			t.Fatal("no snapshot after reconnect")
		}
	}
}

func TestRedisStore_SkipsCorruptMembers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	defer s.Close()

	_, err := mr.ZAdd(messagesKey, 1, "not json")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "Ann", "valid")
	require.NoError(t, err)

	msgs, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "valid", msgs[0].Text)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, url))
	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()
	testBackend(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{Kind: KindMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())

	b, err = Open(ctx, Options{Kind: KindSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", b.Name())
	b.Close()

	_, err = Open(ctx, Options{Kind: "mongo"})
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Ann", SanitizeName("  Ann\n"))
	assert.Equal(t, "AnnB", SanitizeName("Ann\x00B"))
	assert.Len(t, []rune(SanitizeName(strings.Repeat("é", 150))), models.MaxAuthorLength)
}
