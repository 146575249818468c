package genai

import (
	"context"
	"math/rand"
	"time"

	"github.com/defeso/backend/internal/config"
	"github.com/defeso/backend/internal/metrics"
)

// doWithRetry runs fn up to cfg.MaxAttempts times, sleeping a jittered
// exponential backoff between attempts. Only errors IsRetryable accepts are
// retried; each retry bumps the named counter. The context cancels both the
// in-flight call and the backoff sleep.
func doWithRetry(ctx context.Context, cfg config.RetryConfig, retryCounter string, fn func(context.Context) (string, error)) (string, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.Increment(retryCounter)
			select {
			case <-time.After(backoffDelay(cfg, attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", lastErr
}

// backoffDelay doubles the initial wait per attempt, caps it, then applies
// 50-100% jitter so bursts of retries spread out.
func backoffDelay(cfg config.RetryConfig, attempt int) time.Duration {
	wait := cfg.WaitInitial
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		wait *= 2
		if cfg.WaitMax > 0 && wait >= cfg.WaitMax {
			wait = cfg.WaitMax
			break
		}
	}
	if cfg.WaitMax > 0 && wait > cfg.WaitMax {
		wait = cfg.WaitMax
	}
	jitter := 0.5 + rand.Float64()/2
	return time.Duration(float64(wait) * jitter)
}
