package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/types"
)

// StrategyRepository owns yield strategies and their execution ledger.
// Executions are append-only; a strategy's cumulative counters are only
// touched through ApplyExecution, which applies the counter update and the
// execution record as one critical section.
type StrategyRepository struct {
	mu         sync.RWMutex
	seq        *Sequence
	strategies map[int64]*models.YieldStrategy
	executions []*models.StrategyExecution
	now        func() time.Time
}

// NewStrategyRepository creates an empty strategy repository.
func NewStrategyRepository(seq *Sequence) *StrategyRepository {
	return &StrategyRepository{
		seq:        seq,
		strategies: make(map[int64]*models.YieldStrategy),
		now:        time.Now,
	}
}

// SetClock overrides the repository's time source. Used by tests.
func (r *StrategyRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Create stores a new strategy, seeding the cumulative fields at zero.
func (r *StrategyRepository) Create(s *models.YieldStrategy) *models.YieldStrategy {
	s.ID = r.seq.Next(KindStrategy)
	if s.Status == "" {
		s.Status = types.StrategyActive
	}
	s.TotalExecutions = 0
	s.TotalInvested = 0
	s.TotalReturn = 0
	s.LastExecutedAt = nil
	s.ExecutionResults = make(map[int64]string)
	s.CreatedAt = r.now()
	s.UpdatedAt = s.CreatedAt

	r.mu.Lock()
	stored := cloneStrategy(s)
	r.strategies[s.ID] = stored
	r.mu.Unlock()

	return s
}

// Get returns the strategy with the given id.
func (r *StrategyRepository) Get(id int64) (*models.YieldStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("strategy", id)
	}
	return cloneStrategy(s), nil
}

// StrategyUpdate is a partial update of a strategy's configuration.
// Cumulative fields are deliberately absent; they move only via ApplyExecution.
type StrategyUpdate struct {
	Name            *string
	Status          *types.StrategyStatus
	TriggerType     *types.TriggerType
	TargetProtocols []int64
	TargetNetworks  []int64
	Conditions      *models.StrategyConditions
	Actions         *models.StrategyActions
	MaxGasFee       *float64
}

// Update applies non-nil fields of the update to a strategy.
func (r *StrategyRepository) Update(id int64, update *StrategyUpdate) (*models.YieldStrategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("strategy", id)
	}

	if update.Name != nil {
		s.Name = *update.Name
	}
	if update.Status != nil {
		s.Status = *update.Status
	}
	if update.TriggerType != nil {
		s.TriggerType = *update.TriggerType
	}
	if update.TargetProtocols != nil {
		s.TargetProtocols = append([]int64(nil), update.TargetProtocols...)
	}
	if update.TargetNetworks != nil {
		s.TargetNetworks = append([]int64(nil), update.TargetNetworks...)
	}
	if update.Conditions != nil {
		s.Conditions = *update.Conditions
	}
	if update.Actions != nil {
		s.Actions = *update.Actions
	}
	if update.MaxGasFee != nil {
		s.MaxGasFee = *update.MaxGasFee
	}
	s.UpdatedAt = r.now()

	return cloneStrategy(s), nil
}

// Delete removes a strategy. Its past executions stay in the ledger.
func (r *StrategyRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[id]; !ok {
		return apperrors.NewNotFoundError("strategy", id)
	}
	delete(r.strategies, id)
	return nil
}

// List returns strategies ordered by id, optionally filtered by user.
func (r *StrategyRepository) List(userID string) []*models.YieldStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.YieldStrategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		if userID != "" && s.UserID != userID {
			continue
		}
		out = append(out, cloneStrategy(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordExecution appends an execution to the ledger without touching any
// strategy counters. Used for failed executions.
func (r *StrategyRepository) RecordExecution(exec *models.StrategyExecution) *models.StrategyExecution {
	exec.ID = r.seq.Next(KindExecution)

	r.mu.Lock()
	stored := *exec
	r.executions = append(r.executions, &stored)
	r.mu.Unlock()

	return exec
}

// ApplyExecution appends a successful execution and advances the owning
// strategy's cumulative counters as one atomic unit. Concurrent executions of
// the same strategy cannot lose an update to TotalInvested or TotalReturn;
// if the strategy disappeared mid-flight, nothing is applied.
func (r *StrategyRepository) ApplyExecution(exec *models.StrategyExecution, invested, yieldReturn float64) (*models.StrategyExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[exec.StrategyID]
	if !ok {
		return nil, apperrors.NewNotFoundError("strategy", exec.StrategyID)
	}

	exec.ID = r.seq.Next(KindExecution)

	s.TotalExecutions++
	s.TotalInvested += invested
	s.TotalReturn += yieldReturn
	executedAt := exec.ExecutedAt
	s.LastExecutedAt = &executedAt
	s.UpdatedAt = r.now()
	if exec.Details != nil {
		s.ExecutionResults[exec.ID] = fmt.Sprintf("deposited %.2f %s at %.2f%% APY",
			exec.Details.Amount, exec.Details.Asset, exec.Details.APY)
	}

	stored := *exec
	r.executions = append(r.executions, &stored)

	return exec, nil
}

// ListExecutions returns the executions of one strategy in insertion order.
func (r *StrategyRepository) ListExecutions(strategyID int64) []*models.StrategyExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.StrategyExecution
	for _, e := range r.executions {
		if e.StrategyID == strategyID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// ListAllExecutions returns the full execution ledger in insertion order.
func (r *StrategyRepository) ListAllExecutions() []*models.StrategyExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.StrategyExecution, len(r.executions))
	for i, e := range r.executions {
		cp := *e
		out[i] = &cp
	}
	return out
}

// cloneStrategy deep-copies a strategy so callers never share the stored maps
// and slices.
func cloneStrategy(s *models.YieldStrategy) *models.YieldStrategy {
	cp := *s
	cp.TargetProtocols = append([]int64(nil), s.TargetProtocols...)
	cp.TargetNetworks = append([]int64(nil), s.TargetNetworks...)
	cp.Conditions.AssetTypes = append([]string(nil), s.Conditions.AssetTypes...)
	cp.ExecutionResults = make(map[int64]string, len(s.ExecutionResults))
	for k, v := range s.ExecutionResults {
		cp.ExecutionResults[k] = v
	}
	if s.LastExecutedAt != nil {
		t := *s.LastExecutedAt
		cp.LastExecutedAt = &t
	}
	return &cp
}
