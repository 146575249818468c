// Package scheduler runs the periodic legal-case refresh. A database lock
// keeps multiple replicas from running the same pass; a crashed holder is
// recovered through the lock TTL.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/defeso/backend/internal/usecase"
)

const (
	lockName = "update_legal_cases_cron"
	lockTTL  = 30 * time.Minute
)

// LockStore is the database lock the scheduler serialises on.
type LockStore interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Scheduler fires the sync pass every N days at local midnight.
type Scheduler struct {
	sync      *usecase.SyncLegalCases
	locks     LockStore
	location  *time.Location
	everyDays int
	logger    *log.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New builds the scheduler. timezone names the location midnights are
// computed in; an unknown name falls back to UTC.
func New(syncJob *usecase.SyncLegalCases, locks LockStore, timezone string, everyDays int) *Scheduler {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("[SCHEDULER] unknown timezone %q, falling back to UTC", timezone)
		location = time.UTC
	}
	if everyDays < 1 {
		everyDays = 1
	}
	return &Scheduler{
		sync:      syncJob,
		locks:     locks,
		location:  location,
		everyDays: everyDays,
		logger:    log.New(log.Writer(), "[SCHEDULER] ", log.LstdFlags),
	}
}

// Start launches the background loop. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop()
}

// Stop halts the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()
	<-done
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	for {
		next := s.nextRun(time.Now().In(s.location))
		s.logger.Printf("next pass at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next local midnight at least one full interval away.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	next := midnight.AddDate(0, 0, s.everyDays)
	if !next.After(now) {
		next = next.AddDate(0, 0, s.everyDays)
	}
	return next
}

// RunOnce executes one pass under the database lock. Passes that lose the
// lock race log and return; the winning replica does the work.
func (s *Scheduler) RunOnce(ctx context.Context) {
	acquired, err := s.locks.Acquire(ctx, lockName, lockTTL)
	if err != nil {
		s.logger.Printf("lock acquisition failed: %v", err)
		return
	}
	if !acquired {
		s.logger.Printf("another replica holds %s, skipping pass", lockName)
		return
	}
	defer func() {
		if err := s.locks.Release(ctx, lockName); err != nil {
			s.logger.Printf("lock release failed: %v", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, lockTTL)
	defer cancel()

	summary, err := s.sync.Run(runCtx)
	if err != nil {
		s.logger.Printf("pass aborted: %v", err)
		return
	}
	s.logger.Printf("pass done: checked=%d updated=%d errors=%d",
		summary.Checked, summary.Updated, len(summary.Errors))
}
