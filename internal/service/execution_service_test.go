package service

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

type engineFixture struct {
	strategies *storage.StrategyRepository
	catalog    *storage.CatalogRepository
	activities *storage.ActivityRepository
	engine     *ExecutionService
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	seq := storage.NewSequence()
	catalog := storage.NewCatalogRepository(seq)
	storage.SeedCatalog(catalog)

	strategies := storage.NewStrategyRepository(seq)
	activities := storage.NewActivityRepository(seq)

	// Pinned gas bands keep the simulated receipts deterministic.
	opts := EngineOptions{
		InvestmentAmount: 1.0,
		GasFeeMin:        0.005,
		GasFeeMax:        0.005,
		GasUsedMin:       21_000,
		GasUsedMax:       21_000,
	}
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	engine := NewExecutionService(strategies, catalog, activities, opts, logger)

	return &engineFixture{
		strategies: strategies,
		catalog:    catalog,
		activities: activities,
		engine:     engine,
	}
}

func (f *engineFixture) newStrategy(t *testing.T, protocols, networks []int64) *models.YieldStrategy {
	t.Helper()
	return f.strategies.Create(&models.YieldStrategy{
		Name:            "stable yield",
		TriggerType:     types.TriggerAPY,
		TargetProtocols: protocols,
		TargetNetworks:  networks,
	})
}

func TestExecuteSelectsHighestAPY(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	now := time.Now()
	f.catalog.AppendOpportunity(1, 1, "USDC", 12, 1_000_000, now)
	best := f.catalog.AppendOpportunity(1, 1, "DAI", 18, 2_000_000, now)

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionSuccess, exec.Status)
	require.NotNil(t, exec.OpportunityID)
	assert.Equal(t, best.ID, *exec.OpportunityID)
	require.NotNil(t, exec.Details)
	assert.InDelta(t, 18.0, exec.Details.APY, 1e-9)
	assert.InDelta(t, 1.0, exec.Details.Amount, 1e-9)
	assert.Equal(t, int64(21_000), exec.GasUsed)
	assert.InDelta(t, 0.005, exec.GasFee, 1e-9)

	got, err := f.strategies.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalExecutions)
	assert.InDelta(t, 1.0, got.TotalInvested, 1e-12)
	assert.InDelta(t, 1.0*18/100/365, got.TotalReturn, 1e-12)
	require.NotNil(t, got.LastExecutedAt)
	assert.Contains(t, got.ExecutionResults[exec.ID], "DAI")
}

func TestExecuteTieBreaksOnLowerID(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	now := time.Now()
	first := f.catalog.AppendOpportunity(1, 1, "USDC", 15, 1_000_000, now)
	f.catalog.AppendOpportunity(1, 1, "DAI", 15, 2_000_000, now)

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec.OpportunityID)
	assert.Equal(t, first.ID, *exec.OpportunityID)
}

func TestExecuteIsDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1, 2}, []int64{1, 2})

	now := time.Now()
	f.catalog.AppendOpportunity(1, 1, "USDC", 9, 1_000_000, now)
	f.catalog.AppendOpportunity(2, 2, "ETH", 14, 1_000_000, now)
	f.catalog.AppendOpportunity(1, 2, "DAI", 11, 1_000_000, now)

	first, err := f.engine.Execute(s.ID)
	require.NoError(t, err)
	second, err := f.engine.Execute(s.ID)
	require.NoError(t, err)

	// Same catalog, same strategy, same selection.
	assert.Equal(t, *first.OpportunityID, *second.OpportunityID)
	assert.NotEqual(t, first.ID, second.ID)
	// Hashes are salted per execution.
	assert.NotEqual(t, first.TransactionHash, second.TransactionHash)
}

func TestExecuteFiltersByTargets(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	now := time.Now()
	// Higher APY but outside the target sets.
	f.catalog.AppendOpportunity(2, 1, "ETH", 25, 1_000_000, now)
	f.catalog.AppendOpportunity(1, 2, "WBTC", 30, 1_000_000, now)
	eligible := f.catalog.AppendOpportunity(1, 1, "USDC", 5, 1_000_000, now)

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)
	require.NotNil(t, exec.OpportunityID)
	assert.Equal(t, eligible.ID, *exec.OpportunityID)
}

func TestExecuteNoEligibleOpportunities(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{6}, []int64{5})

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionFailed, exec.Status)
	assert.Equal(t, "No eligible opportunities found matching strategy criteria", exec.ErrorMessage)
	assert.Nil(t, exec.OpportunityID)
	assert.Empty(t, exec.TransactionHash)

	// A failed execution moves no counters.
	got, err := f.strategies.Get(s.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalExecutions)
	assert.Zero(t, got.TotalInvested)
	assert.Zero(t, got.TotalReturn)
	assert.Nil(t, got.LastExecutedAt)

	executions, err := f.engine.ListExecutions(s.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestExecuteUnknownStrategy(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Execute(99)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListExecutionsUnknownStrategy(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.ListExecutions(99)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestExecuteCountersAreMonotone(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	f.catalog.AppendOpportunity(1, 1, "USDC", 10, 1_000_000, time.Now())

	var prevInvested, prevReturn float64
	for i := 1; i <= 5; i++ {
		_, err := f.engine.Execute(s.ID)
		require.NoError(t, err)

		got, err := f.strategies.Get(s.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.TotalExecutions)
		assert.Greater(t, got.TotalInvested, prevInvested)
		assert.Greater(t, got.TotalReturn, prevReturn)
		prevInvested, prevReturn = got.TotalInvested, got.TotalReturn
	}
}

func TestExecuteRecordsTransactionActivity(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	f.catalog.AppendOpportunity(1, 1, "USDC", 10, 1_000_000, time.Now())

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)

	recent := f.activities.ListRecent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, types.ActivityTransaction, recent[0].Type)
	assert.Contains(t, recent[0].Description, "Aave")
	assert.Contains(t, recent[0].Description, "Ethereum")

	details, ok := recent[0].Details.(*models.TransactionActivityDetails)
	require.True(t, ok)
	assert.Equal(t, s.ID, details.StrategyID)
	assert.Equal(t, exec.ID, details.ExecutionID)
	assert.Equal(t, "Aave", details.ProtocolName)
	assert.Equal(t, "Ethereum", details.NetworkName)
}

func TestTransactionHashShape(t *testing.T) {
	f := newEngineFixture(t)
	s := f.newStrategy(t, []int64{1}, []int64{1})

	f.catalog.AppendOpportunity(1, 1, "USDC", 10, 1_000_000, time.Now())

	exec, err := f.engine.Execute(s.ID)
	require.NoError(t, err)

	// 0x-prefixed 32-byte hash.
	assert.Len(t, exec.TransactionHash, 66)
	assert.Equal(t, "0x", exec.TransactionHash[:2])
}

func TestExecuteSelectionProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("the selected opportunity carries the maximum eligible APY", prop.ForAll(
		func(apys []float64) bool {
			f := newEngineFixture(t)
			s := f.newStrategy(t, []int64{1}, []int64{1})

			maxAPY := apys[0]
			for _, apy := range apys {
				f.catalog.AppendOpportunity(1, 1, "USDC", apy, 1_000_000, time.Now())
				if apy > maxAPY {
					maxAPY = apy
				}
			}

			exec, err := f.engine.Execute(s.ID)
			if err != nil || exec.Details == nil {
				return false
			}
			return exec.Details.APY == maxAPY
		},
		gen.SliceOfN(5, gen.Float64Range(1, 30)),
	))

	properties.TestingRun(t)
}
