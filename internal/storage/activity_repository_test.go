package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-scanner/internal/types"
)

func TestActivityAppendOrder(t *testing.T) {
	repo := NewActivityRepository(NewSequence())

	for i := 0; i < 5; i++ {
		repo.Append(types.ActivityScan, fmt.Sprintf("event %d", i), nil, "")
	}

	list := repo.List(0)
	require.Len(t, list, 5)
	for i, a := range list {
		assert.Equal(t, int64(i+1), a.ID)
		assert.Equal(t, fmt.Sprintf("event %d", i), a.Description)
	}

	recent := repo.ListRecent(0)
	require.Len(t, recent, 5)
	assert.Equal(t, "event 4", recent[0].Description)
	assert.Equal(t, "event 0", recent[4].Description)
}

func TestActivityListLimit(t *testing.T) {
	repo := NewActivityRepository(NewSequence())

	for i := 0; i < 10; i++ {
		repo.Append(types.ActivityAgent, fmt.Sprintf("event %d", i), nil, "")
	}

	assert.Len(t, repo.List(3), 3)
	recent := repo.ListRecent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "event 9", recent[0].Description)
	assert.Equal(t, "event 7", recent[2].Description)
}

func TestActivityConcurrentAppend(t *testing.T) {
	repo := NewActivityRepository(NewSequence())

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Append(types.ActivityOpportunity, "found", nil, "")
		}()
	}
	wg.Wait()

	require.Equal(t, n, repo.Len())

	// Ids in the log are strictly increasing even under concurrent appends.
	list := repo.List(0)
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i].ID, list[i-1].ID)
	}
}
