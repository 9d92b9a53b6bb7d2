package service

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/yield-scanner/internal/config"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// errNoEligible is the error message recorded on executions that matched
// nothing in the catalog.
const errNoEligible = "No eligible opportunities found matching strategy criteria"

// EngineOptions holds the tunable behavior of the strategy execution engine.
type EngineOptions struct {
	InvestmentAmount float64
	GasFeeMin        float64
	GasFeeMax        float64
	GasUsedMin       int64
	GasUsedMax       int64
}

// EngineOptionsFromConfig maps the application config onto engine options.
func EngineOptionsFromConfig(cfg *config.EngineConfig) EngineOptions {
	return EngineOptions{
		InvestmentAmount: cfg.InvestmentAmount,
		GasFeeMin:        cfg.GasFeeMin,
		GasFeeMax:        cfg.GasFeeMax,
		GasUsedMin:       cfg.GasUsedMin,
		GasUsedMax:       cfg.GasUsedMax,
	}
}

// ExecutionService is the strategy execution engine. It evaluates a
// strategy's targets against the catalog, deterministically selects the best
// opportunity, simulates a deposit and advances the strategy's cumulative
// counters.
type ExecutionService struct {
	strategies *storage.StrategyRepository
	catalog    *storage.CatalogRepository
	activities *storage.ActivityRepository
	opts       EngineOptions
	logger     *logging.Logger
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExecutionService creates a strategy execution engine.
func NewExecutionService(strategies *storage.StrategyRepository, catalog *storage.CatalogRepository, activities *storage.ActivityRepository, opts EngineOptions, logger *logging.Logger) *ExecutionService {
	return &ExecutionService{
		strategies: strategies,
		catalog:    catalog,
		activities: activities,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the engine's time source. Used by tests.
func (s *ExecutionService) SetClock(now func() time.Time) {
	s.now = now
}

// Execute runs a strategy once against the current catalog.
//
// Selection is deterministic: eligible opportunities are ordered by APY
// descending with ties broken by ascending id, and the first is taken. When
// nothing is eligible, a failed execution is recorded and the strategy's
// cumulative counters and LastExecutedAt are left untouched. A successful
// execution applies the counter update and the execution record as one
// atomic unit.
func (s *ExecutionService) Execute(strategyID int64) (*models.StrategyExecution, error) {
	strategy, err := s.strategies.Get(strategyID)
	if err != nil {
		return nil, err
	}

	eligible := s.eligibleOpportunities(strategy)
	if len(eligible) == 0 {
		exec := &models.StrategyExecution{
			StrategyID:   strategy.ID,
			Status:       types.ExecutionFailed,
			ErrorMessage: errNoEligible,
			ExecutedAt:   s.now(),
		}
		exec = s.strategies.RecordExecution(exec)

		s.logger.WithField("strategyId", strategy.ID).Warn("Execution found no eligible opportunities")
		return exec, nil
	}

	best := eligible[0]
	amount := s.opts.InvestmentAmount
	// One day's pro-rated yield at the opportunity's APY.
	dailyReturn := amount * best.APY / 100 / 365

	oppID := best.ID
	exec := &models.StrategyExecution{
		StrategyID:      strategy.ID,
		Status:          types.ExecutionSuccess,
		TransactionHash: s.synthesizeTxHash(strategy.ID, best.ID),
		GasUsed:         s.gasUsed(),
		GasFee:          s.gasFee(),
		OpportunityID:   &oppID,
		Details: &models.ExecutionDetails{
			ProtocolID: best.ProtocolID,
			NetworkID:  best.NetworkID,
			Asset:      best.Asset,
			APY:        best.APY,
			Amount:     amount,
		},
		ExecutedAt: s.now(),
	}

	exec, err = s.strategies.ApplyExecution(exec, amount, dailyReturn)
	if err != nil {
		return nil, err
	}

	protocolName := fmt.Sprintf("protocol %d", best.ProtocolID)
	if p, ok := s.catalog.Protocol(best.ProtocolID); ok {
		protocolName = p.Name
	}
	networkName := fmt.Sprintf("network %d", best.NetworkID)
	if n, ok := s.catalog.Network(best.NetworkID); ok {
		networkName = n.Name
	}

	s.activities.Append(types.ActivityTransaction,
		fmt.Sprintf("Executed strategy %q: deposited %.2f %s into %s on %s at %.2f%% APY",
			strategy.Name, amount, best.Asset, protocolName, networkName, best.APY),
		&models.TransactionActivityDetails{
			StrategyID:   strategy.ID,
			ExecutionID:  exec.ID,
			ProtocolName: protocolName,
			NetworkName:  networkName,
			Asset:        best.Asset,
			APY:          best.APY,
			Amount:       amount,
		},
		strategy.UserID)

	s.logger.WithFields(map[string]interface{}{
		"strategyId":    strategy.ID,
		"executionId":   exec.ID,
		"opportunityId": best.ID,
		"apy":           best.APY,
	}).Info("Strategy executed")

	return exec, nil
}

// eligibleOpportunities filters the catalog by the strategy's target sets and
// orders the result deterministically: APY descending, id ascending on ties.
func (s *ExecutionService) eligibleOpportunities(strategy *models.YieldStrategy) []*models.Opportunity {
	var eligible []*models.Opportunity
	for _, opp := range s.catalog.ListOpportunities() {
		if strategy.TargetsProtocol(opp.ProtocolID) && strategy.TargetsNetwork(opp.NetworkID) {
			eligible = append(eligible, opp)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].APY != eligible[j].APY {
			return eligible[i].APY > eligible[j].APY
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// ListExecutions returns one strategy's executions. Unknown strategies report
// NotFound rather than an empty ledger.
func (s *ExecutionService) ListExecutions(strategyID int64) ([]*models.StrategyExecution, error) {
	if _, err := s.strategies.Get(strategyID); err != nil {
		return nil, err
	}
	return s.strategies.ListExecutions(strategyID), nil
}

// ListAllExecutions returns the global execution ledger.
func (s *ExecutionService) ListAllExecutions() []*models.StrategyExecution {
	return s.strategies.ListAllExecutions()
}

// synthesizeTxHash derives a plausible transaction hash for a simulated
// deposit. The uuid salt keeps hashes unique across repeated executions of
// the same strategy/opportunity pair.
func (s *ExecutionService) synthesizeTxHash(strategyID, opportunityID int64) string {
	payload := fmt.Sprintf("%d:%d:%s", strategyID, opportunityID, uuid.NewString())
	return crypto.Keccak256Hash([]byte(payload)).Hex()
}

// gasFee draws a simulated gas fee from the configured band.
func (s *ExecutionService) gasFee() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if s.opts.GasFeeMax <= s.opts.GasFeeMin {
		return s.opts.GasFeeMin
	}
	return s.opts.GasFeeMin + s.rng.Float64()*(s.opts.GasFeeMax-s.opts.GasFeeMin)
}

// gasUsed draws simulated gas units from the configured band.
func (s *ExecutionService) gasUsed() int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if s.opts.GasUsedMax <= s.opts.GasUsedMin {
		return s.opts.GasUsedMin
	}
	return s.opts.GasUsedMin + s.rng.Int63n(s.opts.GasUsedMax-s.opts.GasUsedMin)
}
