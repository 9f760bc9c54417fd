package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRateLimiter(client, zerolog.Nop(), cfg)
	rl.limits = map[string]RateLimit{
		"DELETE /messages": {2, time.Minute},
	}
	rl.now = func() time.Time { return time.Unix(1_700_000_010, 0) }
	return rl, mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func deleteFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/messages", nil)
	req.RemoteAddr = ip + ":5555"
	return req
}

func TestRateLimiter_Limits(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{})
	h := rl.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, deleteFrom("10.1.1.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, deleteFrom("10.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients and unlimited endpoints are unaffected
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, deleteFrom("10.2.2.2"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_Whitelist(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{Whitelist: []string{"10.9.0.0/16", "bad/cidr"}})
	h := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, deleteFrom("10.9.3.4"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiter_AutoBlock(t *testing.T) {
	rl, mr := newTestLimiter(t, RateLimiterConfig{AutoBlockEnabled: true, BlockThreshold: 2})
	h := rl.Middleware(okHandler())

	for i := 0; i < 4; i++ {
		h.ServeHTTP(httptest.NewRecorder(), deleteFrom("10.3.3.3"))
	}
	assert.True(t, mr.Exists("echochamber:blocked:ip:10.3.3.3"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "other IPs are not blocked")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.3.3.3:1"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()
	rl := NewRateLimiter(client, zerolog.Nop(), RateLimiterConfig{})
	h := rl.Middleware(okHandler())

	for i := 0; i < DefaultLimits["DELETE /messages"].Requests+3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, deleteFrom("10.1.1.1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", RealIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", RealIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", RealIP(req))
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/messages", normalizePath("/messages/"))
	assert.Equal(t, "/messages/ws", normalizePath("/messages/ws"))
	assert.Equal(t, "other", normalizePath("/wp-admin/setup.php"))
}

func TestValidateRequest(t *testing.T) {
	h := ValidateRequest(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages?next=javascript:alert(1)", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
