package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/defeso/backend/internal/core"
	"github.com/defeso/backend/internal/usecase"
)

type fakeLocks struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired int
	released int
}

func (f *fakeLocks) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return f.grant, f.err
}

func (f *fakeLocks) Release(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func newTestScheduler(locks *fakeLocks) *Scheduler {
	// A sync job with empty stores: every pass sees no stale cases.
	job := usecase.NewSyncLegalCases(emptyCases{}, nil, nil, 1, 1, 60)
	return New(job, locks, "America/Sao_Paulo", 3)
}

type emptyCases struct{}

func (emptyCases) GetByNumber(ctx context.Context, n string) (*core.PersistedLegalCase, error) {
	return nil, nil
}

func (emptyCases) Insert(ctx context.Context, n string, c *core.LegalCase) (*core.PersistedLegalCase, error) {
	return nil, nil
}

func (emptyCases) ApplyUpdates(ctx context.Context, n string, c *core.LegalCase) error { return nil }

func (emptyCases) TouchSynced(ctx context.Context, n string) error { return nil }

func (emptyCases) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]core.PersistedLegalCase, error) {
	return nil, nil
}

func TestRunOnceSkipsWhenLockHeldElsewhere(t *testing.T) {
	locks := &fakeLocks{grant: false}
	s := newTestScheduler(locks)

	s.RunOnce(context.Background())

	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 0, locks.released)
}

func TestRunOnceReleasesAfterPass(t *testing.T) {
	locks := &fakeLocks{grant: true}
	s := newTestScheduler(locks)

	s.RunOnce(context.Background())

	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)
}

func TestNextRunIsAMidnightMultipleDaysOut(t *testing.T) {
	s := newTestScheduler(&fakeLocks{grant: true})

	now := time.Date(2024, 3, 10, 15, 30, 0, 0, s.location)
	next := s.nextRun(now)

	assert.True(t, next.After(now))
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, 13, next.Day())
}

func TestStartStopIsIdempotent(t *testing.T) {
	s := newTestScheduler(&fakeLocks{grant: true})

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
