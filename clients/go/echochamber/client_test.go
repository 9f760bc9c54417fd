package echochamber

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kenmaaa05/EchoChamber/internal/api"
	"github.com/Kenmaaa05/EchoChamber/internal/handlers"
	"github.com/Kenmaaa05/EchoChamber/internal/models"
	"github.com/Kenmaaa05/EchoChamber/internal/session"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

type testServer struct {
	*httptest.Server
	handler *handlers.Handler
	mem     *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemoryStore()
	h := handlers.NewHandler(mem, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(zerolog.Nop(), h, nil))
	t.Cleanup(func() {
		h.CloseStreams()
		srv.Close()
		mem.Close()
	})
	return &testServer{Server: srv, handler: h, mem: mem}
}

// collector records snapshots and errors from a subscription.
type collector struct {
	snapshots chan []models.Message
	mu        sync.Mutex
	errs      []error
}

func newCollector() *collector {
	return &collector{snapshots: make(chan []models.Message, 32)}
}

func (c *collector) onSnapshot(msgs []models.Message) { c.snapshots <- msgs }

func (c *collector) onError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *collector) next(t *testing.T) []models.Message {
	t.Helper()
	select {
	case msgs := <-c.snapshots:
		return msgs
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestClient_InsertListDelete(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	msg, err := c.Insert(ctx, "Ann", "Hello there")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Greater(t, msg.Timestamp, int64(0))
	assert.Equal(t, models.OriginRemote, msg.Origin)

	msgs, err := c.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, models.OriginRemote, msgs[0].Origin)

	deleted, err := c.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	msgs, err = c.Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClient_InsertRejected(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	_, err := c.Insert(context.Background(), "Ann", "")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestClient_Health(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "memory", resp.Backend)

	require.NoError(t, srv.mem.Close())
	_, err = c.Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestClient_Subscribe(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)
	col := newCollector()

	sub, err := c.Subscribe(context.Background(), col.onSnapshot, col.onError)
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, col.next(t))

	_, err = c.Insert(context.Background(), "Ann", "one")
	require.NoError(t, err)

	msgs := col.next(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, models.OriginRemote, msgs[0].Origin)

	require.NoError(t, sub.Close())
	_, err = c.Insert(context.Background(), "Ann", "two")
	require.NoError(t, err)

	select {
	case msgs := <-col.snapshots:
		t.Fatalf("snapshot after close: %v", msgs)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClient_SubscribeReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}

	// The first socket sends one snapshot and drops; later sockets stay open.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		text := "first"
		if n > 1 {
			text = "second"
		}
		_ = conn.WriteJSON(map[string]interface{}{
			"type":     "snapshot",
			"messages": []models.Message{{ID: "m1", Author: "Bob", Text: text, Timestamp: 1}},
		})
		if n == 1 {
			_ = conn.WriteJSON(map[string]string{"type": "error", "error": "backend hiccup"})
			return
		}
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond))
	col := newCollector()

	sub, err := c.Subscribe(context.Background(), col.onSnapshot, col.onError)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, "first", col.next(t)[0].Text)
	assert.Equal(t, "second", col.next(t)[0].Text)

	col.mu.Lock()
	defer col.mu.Unlock()
	require.GreaterOrEqual(t, len(col.errs), 2)
	assert.ErrorIs(t, col.errs[0], ErrServer)
}

// snapshotServer sends one snapshot per socket, then runs hold until the
// client goes away.
func snapshotServer(t *testing.T, conns *atomic.Int32, hold func(n int32, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := conns.Add(1)
		_ = conn.WriteJSON(map[string]interface{}{
			"type":     "snapshot",
			"messages": []models.Message{{ID: "m1", Author: "Bob", Text: fmt.Sprintf("conn-%d", n), Timestamp: 1}},
		})
		hold(n, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func TestClient_SubscribeRedialsSilentSocket(t *testing.T) {
	var conns atomic.Int32
	srv := snapshotServer(t, &conns, func(_ int32, conn *websocket.Conn) { drain(conn) })

	c := NewClient(srv.URL,
		WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond),
		WithReadTimeout(100*time.Millisecond),
	)
	col := newCollector()

	sub, err := c.Subscribe(context.Background(), col.onSnapshot, col.onError)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, "conn-1", col.next(t)[0].Text)
	assert.Equal(t, "conn-2", col.next(t)[0].Text)

	col.mu.Lock()
	defer col.mu.Unlock()
	require.NotEmpty(t, col.errs)
	var netErr net.Error
	require.ErrorAs(t, col.errs[0], &netErr)
	assert.True(t, netErr.Timeout())
}

func TestClient_SubscribePingsKeepSocketAlive(t *testing.T) {
	var conns atomic.Int32
	srv := snapshotServer(t, &conns, func(_ int32, conn *websocket.Conn) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			drain(conn)
		}()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	})

	c := NewClient(srv.URL,
		WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond),
		WithReadTimeout(100*time.Millisecond),
	)
	col := newCollector()

	sub, err := c.Subscribe(context.Background(), col.onSnapshot, col.onError)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, "conn-1", col.next(t)[0].Text)
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, int32(1), conns.Load())
	col.mu.Lock()
	defer col.mu.Unlock()
	assert.Empty(t, col.errs)
}

func TestClient_SubscribeDialFailure(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Subscribe(context.Background(), func([]models.Message) {}, nil)
	assert.Error(t, err)
}

func TestClient_DrivesSession(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL)

	views := make(chan []models.Message, 32)
	s := session.New("Ann", c, session.WithOnChange(func(view []models.Message, _ bool) {
		views <- view
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	_, err := s.Submit(context.Background(), "magic")
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), "Hello there")
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case view := <-views:
			if len(view) == 2 {
				assert.Equal(t, "The Marauders!", view[0].Author)
				assert.Equal(t, "Hello there", view[1].Text)
				return
			}
		case <-deadline:
			t.Fatal("persisted message never reached the view")
		}
	}
}
