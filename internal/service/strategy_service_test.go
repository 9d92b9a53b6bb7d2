package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

func newStrategyFixture(t *testing.T) (*StrategyService, *storage.ActivityRepository) {
	t.Helper()
	seq := storage.NewSequence()
	strategies := storage.NewStrategyRepository(seq)
	activities := storage.NewActivityRepository(seq)
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	return NewStrategyService(strategies, activities, logger), activities
}

func TestCreateStrategyDefaults(t *testing.T) {
	svc, _ := newStrategyFixture(t)

	s, err := svc.Create(&CreateStrategyInput{Name: "stable yield"})
	require.NoError(t, err)

	assert.Equal(t, types.StrategyActive, s.Status)
	assert.Equal(t, types.TriggerAPY, s.TriggerType)
	assert.Zero(t, s.TotalExecutions)
}

func TestCreateStrategyValidation(t *testing.T) {
	svc, _ := newStrategyFixture(t)

	_, err := svc.Create(&CreateStrategyInput{})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperrors.Categorize(err).Code)

	_, err = svc.Create(&CreateStrategyInput{Name: "x", TriggerType: "lunar-based"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperrors.Categorize(err).Code)
}

func TestCreateStrategyRejectsUnknownStatus(t *testing.T) {
	svc, _ := newStrategyFixture(t)

	_, err := svc.Create(&CreateStrategyInput{Name: "x", Status: "bogus"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperrors.Categorize(err).Code)

	// Known statuses pass through unchanged.
	s, err := svc.Create(&CreateStrategyInput{Name: "x", Status: types.StrategyPaused})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyPaused, s.Status)
}

func TestUpdateStrategyValidation(t *testing.T) {
	svc, _ := newStrategyFixture(t)

	s, err := svc.Create(&CreateStrategyInput{Name: "stable yield"})
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(s.ID, &storage.StrategyUpdate{Name: &empty})
	require.Error(t, err)

	bad := types.StrategyStatus("archived")
	_, err = svc.Update(s.ID, &storage.StrategyUpdate{Status: &bad})
	require.Error(t, err)

	paused := types.StrategyPaused
	updated, err := svc.Update(s.ID, &storage.StrategyUpdate{Status: &paused})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyPaused, updated.Status)
}

func TestStrategyLifecycleActivities(t *testing.T) {
	svc, activities := newStrategyFixture(t)

	s, err := svc.Create(&CreateStrategyInput{Name: "stable yield", UserID: "alice"})
	require.NoError(t, err)

	name := "renamed"
	_, err = svc.Update(s.ID, &storage.StrategyUpdate{Name: &name})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(s.ID))

	list := activities.List(0)
	require.Len(t, list, 3)
	for _, a := range list {
		assert.Equal(t, types.ActivityStrategy, a.Type)
		assert.Equal(t, "alice", a.UserID)
	}
	assert.Contains(t, list[0].Description, "created")
	assert.Contains(t, list[1].Description, "updated")
	assert.Contains(t, list[2].Description, "deleted")
}

func TestDeleteUnknownStrategy(t *testing.T) {
	svc, _ := newStrategyFixture(t)

	err := svc.Delete(99)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
