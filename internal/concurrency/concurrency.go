// Package concurrency owns the two process-wide coordination primitives of
// the pipeline: the bounded semaphore that caps in-flight GenAI calls, and
// the per-document mutex registry that serialises extractions touching the
// same document.
package concurrency

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

var (
	iaGuard     sync.Mutex
	iaSemaphore = semaphore.NewWeighted(1)

	registryGuard sync.Mutex
	documentLocks = make(map[string]*sync.Mutex)
)

// ConfigureIASemaphore sets the maximum number of concurrent GenAI calls.
// Values below one are normalised to one. Call once at startup, before any
// stage runs.
func ConfigureIASemaphore(maxInFlight int) {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	iaGuard.Lock()
	defer iaGuard.Unlock()
	iaSemaphore = semaphore.NewWeighted(int64(maxInFlight))
}

// AcquireIASlot blocks until a GenAI slot is free or ctx is done. The
// returned release function must be called exactly once.
func AcquireIASlot(ctx context.Context) (release func(), err error) {
	iaGuard.Lock()
	sem := iaSemaphore
	iaGuard.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}, nil
}

// DocumentLock returns the process-wide mutex for the given document id,
// creating it on first access. Entries are never removed; growth is bounded
// by the working set of documents in flight.
func DocumentLock(documentID string) *sync.Mutex {
	registryGuard.Lock()
	defer registryGuard.Unlock()

	lock, ok := documentLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		documentLocks[documentID] = lock
	}
	return lock
}
