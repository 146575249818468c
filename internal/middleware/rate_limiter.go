// Package middleware holds the HTTP middlewares of the service: request
// identity propagation and per-client rate limiting.
package middleware

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-client calls-per-minute budget on the API.
//
// Uses a sliding window algorithm: each window tracks request counts per key,
// and expired windows are garbage-collected periodically.
type RateLimiter struct {
	mu       sync.RWMutex
	windows  map[string]*rateLimitWindow
	defaults RateLimitConfig
	logger   *log.Logger
}

// RateLimitConfig defines the rate limiting thresholds.
type RateLimitConfig struct {
	MaxCallsPerMinute int // default max calls per minute per client
	BurstSize         int // temporary bursts tolerated above the limit
}

type rateLimitWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter with the given defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 120
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}

	rl := &RateLimiter{
		windows:  make(map[string]*rateLimitWindow),
		defaults: cfg,
		logger:   log.New(log.Writer(), "[RATE-LIMIT] ", log.LstdFlags),
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given key should be allowed.
//
// Read-first pattern: only acquires the write lock when a new window must be
// created or the window has expired. The count increment under RLock races
// slightly, acceptable for a soft limit.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		count := window.count
		rl.mu.RUnlock()

		if count > rl.defaults.BurstSize {
			rl.logger.Printf("rate limit exceeded (burst): key=%s count=%d limit=%d",
				key, count, rl.defaults.BurstSize)
			return false
		}
		if count > rl.defaults.MaxCallsPerMinute {
			rl.logger.Printf("rate limit exceeded: key=%s count=%d limit=%d",
				key, count, rl.defaults.MaxCallsPerMinute)
			return false
		}
		return true
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring the write lock.
	window, exists = rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		window.count++
		return window.count <= rl.defaults.BurstSize
	}

	rl.windows[key] = &rateLimitWindow{
		count:       1,
		windowStart: now,
	}
	return true
}

// Middleware enforces the limit keyed by client IP, preferring the
// X-Forwarded-For header set by the ingress.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"data":null,"errors":[{"message":"rate limit exceeded","code":"rate_limited"}]}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cleanup periodically removes expired windows to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Stats returns current rate limiter statistics.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return map[string]interface{}{
		"active_windows":    len(rl.windows),
		"max_calls_per_min": rl.defaults.MaxCallsPerMinute,
		"burst_size":        rl.defaults.BurstSize,
	}
}
