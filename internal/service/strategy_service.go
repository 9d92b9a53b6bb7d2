package service

import (
	"fmt"

	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// StrategyService owns yield strategy configuration. Every mutation is
// recorded in the activity log.
type StrategyService struct {
	strategies *storage.StrategyRepository
	activities *storage.ActivityRepository
	logger     *logging.Logger
}

// NewStrategyService creates a strategy store service.
func NewStrategyService(strategies *storage.StrategyRepository, activities *storage.ActivityRepository, logger *logging.Logger) *StrategyService {
	return &StrategyService{
		strategies: strategies,
		activities: activities,
		logger:     logger,
	}
}

// CreateStrategyInput defines input for creating a yield strategy
type CreateStrategyInput struct {
	UserID          string
	Name            string
	Status          types.StrategyStatus
	TriggerType     types.TriggerType
	TargetProtocols []int64
	TargetNetworks  []int64
	Conditions      models.StrategyConditions
	Actions         models.StrategyActions
	MaxGasFee       float64
}

// Create stores a new strategy. Status defaults to active; the cumulative
// performance fields are seeded at zero.
func (s *StrategyService) Create(input *CreateStrategyInput) (*models.YieldStrategy, error) {
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", input.Status))
	}
	if err := validateTrigger(input.TriggerType); err != nil {
		return nil, err
	}

	strategy := &models.YieldStrategy{
		UserID:          input.UserID,
		Name:            input.Name,
		Status:          input.Status,
		TriggerType:     input.TriggerType,
		TargetProtocols: append([]int64(nil), input.TargetProtocols...),
		TargetNetworks:  append([]int64(nil), input.TargetNetworks...),
		Conditions:      input.Conditions,
		Actions:         input.Actions,
		MaxGasFee:       input.MaxGasFee,
	}
	if strategy.TriggerType == "" {
		strategy.TriggerType = types.TriggerAPY
	}

	strategy = s.strategies.Create(strategy)

	s.activities.Append(types.ActivityStrategy,
		fmt.Sprintf("Strategy %q created", strategy.Name),
		&models.StrategyActivityDetails{StrategyID: strategy.ID, Action: "created"},
		strategy.UserID)

	s.logger.WithField("strategyId", strategy.ID).Info("Strategy created")
	return strategy, nil
}

// Get returns a strategy by id.
func (s *StrategyService) Get(id int64) (*models.YieldStrategy, error) {
	return s.strategies.Get(id)
}

// Update applies a partial update to a strategy and records the change.
func (s *StrategyService) Update(id int64, update *storage.StrategyUpdate) (*models.YieldStrategy, error) {
	if update.Name != nil && *update.Name == "" {
		return nil, apperrors.NewValidationError("name", "must not be empty")
	}
	if update.TriggerType != nil {
		if err := validateTrigger(*update.TriggerType); err != nil {
			return nil, err
		}
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", *update.Status))
	}

	strategy, err := s.strategies.Update(id, update)
	if err != nil {
		return nil, err
	}

	s.activities.Append(types.ActivityStrategy,
		fmt.Sprintf("Strategy %q updated", strategy.Name),
		&models.StrategyActivityDetails{StrategyID: strategy.ID, Action: "updated"},
		strategy.UserID)

	return strategy, nil
}

// Delete removes a strategy and records the deletion.
func (s *StrategyService) Delete(id int64) error {
	strategy, err := s.strategies.Get(id)
	if err != nil {
		return err
	}

	if err := s.strategies.Delete(id); err != nil {
		return err
	}

	s.activities.Append(types.ActivityStrategy,
		fmt.Sprintf("Strategy %q deleted", strategy.Name),
		&models.StrategyActivityDetails{StrategyID: strategy.ID, Action: "deleted"},
		strategy.UserID)

	s.logger.WithField("strategyId", id).Info("Strategy deleted")
	return nil
}

// List returns strategies, optionally filtered by user.
func (s *StrategyService) List(userID string) []*models.YieldStrategy {
	return s.strategies.List(userID)
}

// validateTrigger rejects unknown trigger types. Empty means "use the default".
func validateTrigger(trigger types.TriggerType) error {
	switch trigger {
	case "", types.TriggerAPY, types.TriggerTime, types.TriggerGas:
		return nil
	}
	return apperrors.NewValidationError("triggerType", fmt.Sprintf("unknown trigger type %q", trigger))
}
