package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 5, BurstSize: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("client-a"), "call %d", i)
	}
	assert.False(t, rl.Allow("client-a"))
}

func TestAllowIsPerKey(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})

	assert.True(t, rl.Allow("client-a"))
	assert.False(t, rl.Allow("client-a"))
	assert.True(t, rl.Allow("client-b"))
}

func TestMiddlewareReturns429WithEnvelope(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "rate limit exceeded")
}

func TestMiddlewarePrefersForwardedFor(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodGet, "/health", nil)
	reqA.RemoteAddr = "10.0.0.1:1234"
	reqA.Header.Set("X-Forwarded-For", "203.0.113.7")

	reqB := httptest.NewRequest(http.MethodGet, "/health", nil)
	reqB.RemoteAddr = "10.0.0.1:1234"
	reqB.Header.Set("X-Forwarded-For", "203.0.113.8")

	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, reqA)
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, reqB)

	assert.Equal(t, http.StatusOK, recA.Code)
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRequestContextStampsID(t *testing.T) {
	var sawHeader string
	handler := RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHeader = w.Header().Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, sawHeader)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
