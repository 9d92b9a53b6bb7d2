package storage

import (
	"sync"
	"time"

	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/types"
)

// ActivityRepository is the append-only activity log. The orchestrator and the
// execution engine both write here from concurrently completing tasks, so the
// id allocation and the append are serialized under one lock.
type ActivityRepository struct {
	mu         sync.RWMutex
	seq        *Sequence
	activities []*models.Activity
	now        func() time.Time
}

// NewActivityRepository creates an empty activity log.
func NewActivityRepository(seq *Sequence) *ActivityRepository {
	return &ActivityRepository{
		seq: seq,
		now: time.Now,
	}
}

// SetClock overrides the repository's time source. Used by tests.
func (r *ActivityRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Append records a new activity and returns it.
func (r *ActivityRepository) Append(activityType types.ActivityType, description string, details interface{}, userID string) *models.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := &models.Activity{
		ID:          r.seq.Next(KindActivity),
		Type:        activityType,
		Description: description,
		Details:     details,
		UserID:      userID,
		Timestamp:   r.now(),
	}
	r.activities = append(r.activities, a)

	cp := *a
	return &cp
}

// List returns activities in insertion order, capped at limit when positive.
func (r *ActivityRepository) List(limit int) []*models.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.activities)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Activity, n)
	for i := 0; i < n; i++ {
		cp := *r.activities[i]
		out[i] = &cp
	}
	return out
}

// ListRecent returns activities most recent first, capped at limit when
// positive. Insertion order is authoritative, so "recent" is simply the
// reverse of it.
func (r *ActivityRepository) ListRecent(limit int) []*models.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.activities)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Activity, n)
	for i := 0; i < n; i++ {
		cp := *r.activities[len(r.activities)-1-i]
		out[i] = &cp
	}
	return out
}

// Len returns the number of recorded activities.
func (r *ActivityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activities)
}
