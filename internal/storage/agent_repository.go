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

// AgentRepository owns agent configurations and instances. The capacity
// invariant (instances per configuration never exceed MaxAgents) and the
// lifecycle stamping rules are enforced here, at the single mutation boundary.
type AgentRepository struct {
	mu             sync.RWMutex
	seq            *Sequence
	configurations map[int64]*models.AgentConfiguration
	instances      map[int64]*models.AgentInstance
	now            func() time.Time
}

// NewAgentRepository creates an empty agent repository.
func NewAgentRepository(seq *Sequence) *AgentRepository {
	return &AgentRepository{
		seq:            seq,
		configurations: make(map[int64]*models.AgentConfiguration),
		instances:      make(map[int64]*models.AgentInstance),
		now:            time.Now,
	}
}

// SetClock overrides the repository's time source. Used by tests.
func (r *AgentRepository) SetClock(now func() time.Time) {
	r.now = now
}

// CreateConfiguration stores a new agent configuration.
func (r *AgentRepository) CreateConfiguration(cfg *models.AgentConfiguration) *models.AgentConfiguration {
	cfg.ID = r.seq.Next(KindConfiguration)
	cfg.CreatedAt = r.now()

	r.mu.Lock()
	stored := *cfg
	r.configurations[cfg.ID] = &stored
	r.mu.Unlock()

	return cfg
}

// GetConfiguration returns the configuration with the given id.
func (r *AgentRepository) GetConfiguration(id int64) (*models.AgentConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configurations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("configuration", id)
	}
	cp := *cfg
	return &cp, nil
}

// UpdateConfiguration applies non-nil fields of the update to a configuration.
// Lowering MaxAgents below the live instance count is rejected inside the same
// critical section that guards instance creation, so a concurrent create
// cannot slip between the check and the write.
func (r *AgentRepository) UpdateConfiguration(id int64, update *ConfigurationUpdate) (*models.AgentConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configurations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("configuration", id)
	}

	if update.MaxAgents != nil {
		count := 0
		for _, inst := range r.instances {
			if inst.ConfigurationID == id {
				count++
			}
		}
		if count > *update.MaxAgents {
			return nil, apperrors.NewValidationError("maxAgents",
				fmt.Sprintf("configuration already has %d agents", count))
		}
	}

	if update.ScanFrequencySeconds != nil {
		cfg.ScanFrequencySeconds = *update.ScanFrequencySeconds
	}
	if update.RiskTolerance != nil {
		cfg.RiskTolerance = *update.RiskTolerance
	}
	if update.Networks != nil {
		cfg.Networks = append([]int64(nil), update.Networks...)
	}
	if update.PostingMode != nil {
		cfg.PostingMode = *update.PostingMode
	}
	if update.ParallelScanning != nil {
		cfg.ParallelScanning = *update.ParallelScanning
	}
	if update.MaxAgents != nil {
		cfg.MaxAgents = *update.MaxAgents
	}
	if update.RestrictNetworks != nil {
		cfg.RestrictNetworks = *update.RestrictNetworks
	}

	cp := *cfg
	return &cp, nil
}

// ListConfigurations returns all configurations ordered by id.
func (r *AgentRepository) ListConfigurations() []*models.AgentConfiguration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AgentConfiguration, 0, len(r.configurations))
	for _, cfg := range r.configurations {
		cp := *cfg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConfigurationUpdate is a partial update of an agent configuration
type ConfigurationUpdate struct {
	ScanFrequencySeconds *int
	RiskTolerance        *types.RiskLevel
	Networks             []int64
	PostingMode          *types.PostingMode
	ParallelScanning     *bool
	MaxAgents            *int
	RestrictNetworks     *bool
}

// CreateInstance stores a new agent instance under a configuration. The
// capacity check and the insert happen under one lock so concurrent creates
// cannot overshoot MaxAgents.
func (r *AgentRepository) CreateInstance(name string, protocolID, networkID *int64, configurationID int64) (*models.AgentInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configurations[configurationID]
	if !ok {
		return nil, apperrors.NewNotFoundError("configuration", configurationID)
	}

	count := 0
	for _, inst := range r.instances {
		if inst.ConfigurationID == configurationID {
			count++
		}
	}
	if count >= cfg.MaxAgents {
		return nil, apperrors.NewCapacityExceededError(configurationID, cfg.MaxAgents)
	}

	inst := &models.AgentInstance{
		ID:                 r.seq.Next(KindAgent),
		Name:               name,
		Status:             types.AgentIdle,
		AssignedProtocolID: protocolID,
		AssignedNetworkID:  networkID,
		CurrentTask:        "Waiting for next scan",
		ConfigurationID:    configurationID,
		Performance:        models.AgentPerformance{},
		CreatedAt:          r.now(),
	}
	r.instances[inst.ID] = inst

	cp := *inst
	return &cp, nil
}

// GetInstance returns the agent instance with the given id.
func (r *AgentRepository) GetInstance(id int64) (*models.AgentInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("agent instance", id)
	}
	cp := *inst
	return &cp, nil
}

// InstanceUpdate is a partial update of an agent instance
type InstanceUpdate struct {
	Name               *string
	Status             *types.AgentStatus
	AssignedProtocolID *int64
	AssignedNetworkID  *int64
	CurrentTask        *string
	Performance        *models.AgentPerformance
}

// UpdateInstance applies non-nil fields of the update. A transition of Status
// into scanning from a non-scanning state stamps LastScanTime.
func (r *AgentRepository) UpdateInstance(id int64, update *InstanceUpdate) (*models.AgentInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("agent instance", id)
	}

	if update.Name != nil {
		inst.Name = *update.Name
	}
	if update.Status != nil {
		if *update.Status == types.AgentScanning && inst.Status != types.AgentScanning {
			now := r.now()
			inst.LastScanTime = &now
		}
		inst.Status = *update.Status
	}
	if update.AssignedProtocolID != nil {
		inst.AssignedProtocolID = update.AssignedProtocolID
	}
	if update.AssignedNetworkID != nil {
		inst.AssignedNetworkID = update.AssignedNetworkID
	}
	if update.CurrentTask != nil {
		inst.CurrentTask = *update.CurrentTask
	}
	if update.Performance != nil {
		inst.Performance = *update.Performance
	}

	cp := *inst
	return &cp, nil
}

// MarkScanning forces an agent into the scanning state regardless of its
// current state, stamping LastScanTime on the transition. Re-dispatch of an
// agent stuck in error is permitted through here.
func (r *AgentRepository) MarkScanning(id int64, task string) (*models.AgentInstance, error) {
	status := types.AgentScanning
	return r.UpdateInstance(id, &InstanceUpdate{Status: &status, CurrentTask: &task})
}

// DeleteInstance removes an agent instance.
func (r *AgentRepository) DeleteInstance(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[id]; !ok {
		return apperrors.NewNotFoundError("agent instance", id)
	}
	delete(r.instances, id)
	return nil
}

// ListInstances returns all agent instances ordered by id.
func (r *AgentRepository) ListInstances() []*models.AgentInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.AgentInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListInstancesByConfiguration returns the instances under a configuration,
// ordered by id.
func (r *AgentRepository) ListInstancesByConfiguration(configurationID int64) []*models.AgentInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.AgentInstance
	for _, inst := range r.instances {
		if inst.ConfigurationID == configurationID {
			cp := *inst
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountInstances returns the number of instances under a configuration.
func (r *AgentRepository) CountInstances(configurationID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, inst := range r.instances {
		if inst.ConfigurationID == configurationID {
			count++
		}
	}
	return count
}
