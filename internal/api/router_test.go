package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kenmaaa05/EchoChamber/internal/handlers"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := store.NewMemoryStore()
	h := handlers.NewHandler(mem, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(zerolog.Nop(), h, nil))
	t.Cleanup(func() {
		h.CloseStreams()
		srv.Close()
		mem.Close()
	})
	return srv
}

func TestRouter_MessageLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(`{"author":"Ann","text":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, err = http.Get(srv.URL + "/messages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/messages", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_RejectsNonJSON(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/messages", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRouter_RejectsLargeBody(t *testing.T) {
	srv := newTestServer(t)

	body := `{"author":"Ann","text":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/", "/health", "/stats", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_WebSocketThroughMiddleware(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/messages/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame handlers.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, handlers.FrameSnapshot, frame.Type)
}
