// Package service implements the business operations of the yield scanner:
// the agent registry, the scan orchestrator, the strategy store and the
// strategy execution engine.
package service

import (
	"fmt"

	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// AgentService is the agent registry: it owns configuration and instance
// lifecycle and is the only write path into the agent repository besides the
// scan orchestrator's status updates.
type AgentService struct {
	agents     *storage.AgentRepository
	activities *storage.ActivityRepository
	logger     *logging.Logger
}

// NewAgentService creates an agent registry service.
func NewAgentService(agents *storage.AgentRepository, activities *storage.ActivityRepository, logger *logging.Logger) *AgentService {
	return &AgentService{
		agents:     agents,
		activities: activities,
		logger:     logger,
	}
}

// CreateConfigurationInput defines input for creating an agent configuration
type CreateConfigurationInput struct {
	ScanFrequencySeconds int
	RiskTolerance        types.RiskLevel
	Networks             []int64
	PostingMode          types.PostingMode
	ParallelScanning     bool
	MaxAgents            int
	RestrictNetworks     bool
}

// CreateConfiguration stores a new agent configuration.
func (s *AgentService) CreateConfiguration(input *CreateConfigurationInput) (*models.AgentConfiguration, error) {
	if input.MaxAgents < 1 {
		return nil, apperrors.NewValidationError("maxAgents", "must be at least 1")
	}
	if input.RiskTolerance != "" && !input.RiskTolerance.Valid() {
		return nil, apperrors.NewValidationError("riskTolerance", fmt.Sprintf("unknown risk tolerance %q", input.RiskTolerance))
	}
	if input.PostingMode != "" && !input.PostingMode.Valid() {
		return nil, apperrors.NewValidationError("postingMode", fmt.Sprintf("unknown posting mode %q", input.PostingMode))
	}

	cfg := &models.AgentConfiguration{
		ScanFrequencySeconds: input.ScanFrequencySeconds,
		RiskTolerance:        input.RiskTolerance,
		Networks:             append([]int64(nil), input.Networks...),
		PostingMode:          input.PostingMode,
		ParallelScanning:     input.ParallelScanning,
		MaxAgents:            input.MaxAgents,
		RestrictNetworks:     input.RestrictNetworks,
	}
	if cfg.RiskTolerance == "" {
		cfg.RiskTolerance = types.RiskMedium
	}
	if cfg.PostingMode == "" {
		cfg.PostingMode = types.PostingManual
	}
	if cfg.ScanFrequencySeconds <= 0 {
		cfg.ScanFrequencySeconds = 300
	}

	cfg = s.agents.CreateConfiguration(cfg)

	s.logger.WithFields(map[string]interface{}{
		"configurationId": cfg.ID,
		"maxAgents":       cfg.MaxAgents,
	}).Info("Agent configuration created")

	return cfg, nil
}

// GetConfiguration returns a configuration by id.
func (s *AgentService) GetConfiguration(id int64) (*models.AgentConfiguration, error) {
	return s.agents.GetConfiguration(id)
}

// UpdateConfiguration applies a partial update to a configuration. The
// repository rejects lowering maxAgents below the live instance count.
func (s *AgentService) UpdateConfiguration(id int64, update *storage.ConfigurationUpdate) (*models.AgentConfiguration, error) {
	if update.MaxAgents != nil && *update.MaxAgents < 1 {
		return nil, apperrors.NewValidationError("maxAgents", "must be at least 1")
	}
	if update.RiskTolerance != nil && !update.RiskTolerance.Valid() {
		return nil, apperrors.NewValidationError("riskTolerance", fmt.Sprintf("unknown risk tolerance %q", *update.RiskTolerance))
	}
	if update.PostingMode != nil && !update.PostingMode.Valid() {
		return nil, apperrors.NewValidationError("postingMode", fmt.Sprintf("unknown posting mode %q", *update.PostingMode))
	}
	return s.agents.UpdateConfiguration(id, update)
}

// ListConfigurations returns all configurations.
func (s *AgentService) ListConfigurations() []*models.AgentConfiguration {
	return s.agents.ListConfigurations()
}

// CreateInstanceInput defines input for creating an agent instance
type CreateInstanceInput struct {
	Name               string
	AssignedProtocolID *int64
	AssignedNetworkID  *int64
	ConfigurationID    int64
}

// CreateInstance registers a new scanning agent under a configuration.
// Fails when the configuration is unknown or already at MaxAgents.
func (s *AgentService) CreateInstance(input *CreateInstanceInput) (*models.AgentInstance, error) {
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if input.ConfigurationID == 0 {
		return nil, apperrors.NewValidationError("configurationId", "is required")
	}

	inst, err := s.agents.CreateInstance(input.Name, input.AssignedProtocolID, input.AssignedNetworkID, input.ConfigurationID)
	if err != nil {
		return nil, err
	}

	s.activities.Append(types.ActivityAgent,
		fmt.Sprintf("Agent %q created", inst.Name),
		&models.AgentActivityDetails{AgentID: inst.ID, Action: "created"}, "")

	s.logger.WithFields(map[string]interface{}{
		"agentId":         inst.ID,
		"configurationId": inst.ConfigurationID,
	}).Info("Agent instance created")

	return inst, nil
}

// GetInstance returns an agent instance by id.
func (s *AgentService) GetInstance(id int64) (*models.AgentInstance, error) {
	return s.agents.GetInstance(id)
}

// UpdateInstance applies a partial update to an agent instance.
func (s *AgentService) UpdateInstance(id int64, update *storage.InstanceUpdate) (*models.AgentInstance, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", *update.Status))
	}
	return s.agents.UpdateInstance(id, update)
}

// DeleteInstance removes an agent instance and records the deletion.
func (s *AgentService) DeleteInstance(id int64) error {
	inst, err := s.agents.GetInstance(id)
	if err != nil {
		return err
	}

	if err := s.agents.DeleteInstance(id); err != nil {
		return err
	}

	s.activities.Append(types.ActivityAgent,
		fmt.Sprintf("Agent %q deleted", inst.Name),
		&models.AgentActivityDetails{AgentID: inst.ID, Action: "deleted"}, "")

	s.logger.WithField("agentId", id).Info("Agent instance deleted")
	return nil
}

// ListInstances returns all agent instances.
func (s *AgentService) ListInstances() []*models.AgentInstance {
	return s.agents.ListInstances()
}

// ListInstancesByConfiguration returns the instances under one configuration.
func (s *AgentService) ListInstancesByConfiguration(configurationID int64) []*models.AgentInstance {
	return s.agents.ListInstancesByConfiguration(configurationID)
}
