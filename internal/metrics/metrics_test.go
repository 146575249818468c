package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrementAndSnapshot(t *testing.T) {
	Reset()

	Increment("documents_classified")
	Increment("documents_classified")
	Add("legal_case_new_movements", 5)

	snap := Snapshot()
	assert.EqualValues(t, 2, snap["documents_classified"])
	assert.EqualValues(t, 5, snap["legal_case_new_movements"])
}

func TestAddIgnoresNonPositiveDeltas(t *testing.T) {
	Reset()

	Add("x", 0)
	Add("x", -3)

	assert.NotContains(t, Snapshot(), "x")
}

func TestSnapshotIsACopy(t *testing.T) {
	Reset()
	Increment("a")

	snap := Snapshot()
	snap["a"] = 99

	assert.EqualValues(t, 1, Snapshot()["a"])
}

func TestConcurrentIncrements(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Increment("concurrent")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, Snapshot()["concurrent"])
}
