package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SchedulerLockRepository implements the database-backed mutual exclusion
// the sync job takes before running, so only one replica executes each pass.
type SchedulerLockRepository struct {
	store *Store
}

// NewSchedulerLockRepository builds the repository over the shared pool.
func NewSchedulerLockRepository(store *Store) *SchedulerLockRepository {
	return &SchedulerLockRepository{store: store}
}

const uniqueViolation = "23505"

// Acquire tries to take the named lock with the given TTL. When the lock row
// already exists, the lock is stolen only if its TTL expired, which covers
// replicas that crashed while holding it. Returns false when another holder
// is still alive.
func (r *SchedulerLockRepository) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO cron_locks (name, locked_at, expires_at)
		VALUES ($1, $2, $3)`, name, now, expiresAt)
	if err == nil {
		return true, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	// Row exists. Steal it only if the previous holder's TTL lapsed.
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE cron_locks SET locked_at = $2, expires_at = $3
		WHERE name = $1 AND expires_at < $2`, name, now, expiresAt)
	if err != nil {
		return false, fmt.Errorf("steal lock %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("steal lock %s: %w", name, err)
	}
	if affected == 1 {
		r.store.logger.Printf("stole expired lock %s", name)
		return true, nil
	}
	return false, nil
}

// Release drops the named lock. Safe to call when the lock was already
// stolen; the delete simply affects no rows.
func (r *SchedulerLockRepository) Release(ctx context.Context, name string) error {
	_, err := r.store.db.ExecContext(ctx, `DELETE FROM cron_locks WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
