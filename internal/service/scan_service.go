package service

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/yield-scanner/internal/config"
	apperrors "github.com/yield-scanner/internal/errors"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// Task strings shown on agent instances while the orchestrator drives them.
const (
	taskScanning = "Scanning for yield opportunities"
	taskWaiting  = "Waiting for next scan"
	taskFailed   = "Scan failed - see logs"
)

// successRateFloor is where a missed scan settles the success rate.
const successRateFloor = 80

// ScanOptions holds the tunable behavior of the scan orchestrator. Latencies
// and randomness are injectable so tests can force deterministic completion
// ordering.
type ScanOptions struct {
	Latency            time.Duration
	ParallelLatencyMin time.Duration
	ParallelLatencyMax time.Duration
	FindProbability    float64
	APYMin             float64
	APYMax             float64
	TVLMin             float64
	TVLMax             float64
	Assets             []string
}

// ScanOptionsFromConfig maps the application config onto scan options.
func ScanOptionsFromConfig(cfg *config.ScannerConfig) ScanOptions {
	return ScanOptions{
		Latency:            cfg.ScanLatency,
		ParallelLatencyMin: cfg.ParallelLatencyMin,
		ParallelLatencyMax: cfg.ParallelLatencyMax,
		FindProbability:    cfg.FindProbability,
		APYMin:             cfg.APYMin,
		APYMax:             cfg.APYMax,
		TVLMin:             cfg.TVLMin,
		TVLMax:             cfg.TVLMax,
		Assets:             cfg.Assets,
	}
}

// ScanService is the scan orchestrator. It dispatches single or parallel scan
// tasks to agents, runs each as an independent goroutine, and applies each
// task's outcome back to the agent repository and the catalog. Each task only
// mutates its own agent; the id allocator and the activity log are the only
// cross-task shared resources and both serialize internally.
type ScanService struct {
	agents     *storage.AgentRepository
	catalog    *storage.CatalogRepository
	activities *storage.ActivityRepository
	opts       ScanOptions
	logger     *logging.Logger
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	tasks sync.WaitGroup
}

// NewScanService creates a scan orchestrator.
func NewScanService(agents *storage.AgentRepository, catalog *storage.CatalogRepository, activities *storage.ActivityRepository, opts ScanOptions, logger *logging.Logger) *ScanService {
	return &ScanService{
		agents:     agents,
		catalog:    catalog,
		activities: activities,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the orchestrator's time source. Used by tests.
func (s *ScanService) SetClock(now func() time.Time) {
	s.now = now
}

// SetSeed reseeds the orchestrator's random source. Used by tests.
func (s *ScanService) SetSeed(seed int64) {
	s.rngMu.Lock()
	s.rng = rand.New(rand.NewSource(seed))
	s.rngMu.Unlock()
}

// StartScan dispatches a single-agent scan. The agent flips to scanning
// synchronously; the outcome arrives asynchronously after the simulated
// latency and is only observable through subsequent reads. Dispatching an
// agent that is already scanning or stuck in error re-arms it.
func (s *ScanService) StartScan(agentID int64) (*models.AgentInstance, error) {
	inst, err := s.agents.MarkScanning(agentID, taskScanning)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("agentId", agentID).Info("Scan dispatched")

	s.tasks.Add(1)
	go s.runScan(agentID, s.opts.Latency)

	return inst, nil
}

// ParallelScan dispatches independent scan tasks to every idle agent under a
// configuration. Agents already scanning are left untouched. The aggregate
// activity is recorded synchronously before returning; each task still records
// its own per-opportunity activity as it completes.
func (s *ScanService) ParallelScan(configurationID int64) ([]*models.AgentInstance, error) {
	cfg, err := s.agents.GetConfiguration(configurationID)
	if err != nil {
		return nil, err
	}
	if !cfg.ParallelScanning {
		return nil, apperrors.NewParallelScanDisabledError(configurationID)
	}

	var idle []*models.AgentInstance
	for _, inst := range s.agents.ListInstancesByConfiguration(configurationID) {
		if inst.Status == types.AgentIdle {
			idle = append(idle, inst)
		}
	}
	if len(idle) == 0 {
		return nil, apperrors.NewNoAvailableAgentsError(configurationID)
	}

	dispatched := make([]*models.AgentInstance, 0, len(idle))
	agentIDs := make([]int64, 0, len(idle))
	for _, inst := range idle {
		marked, err := s.agents.MarkScanning(inst.ID, taskScanning)
		if err != nil {
			// Deleted between listing and dispatch; skip it.
			continue
		}
		dispatched = append(dispatched, marked)
		agentIDs = append(agentIDs, marked.ID)

		s.tasks.Add(1)
		go s.runScan(marked.ID, s.parallelLatency())
	}
	if len(dispatched) == 0 {
		return nil, apperrors.NewNoAvailableAgentsError(configurationID)
	}

	s.activities.Append(types.ActivityScan,
		fmt.Sprintf("Started parallel scan with %d agents", len(dispatched)),
		&models.ScanActivityDetails{
			ConfigurationID:  configurationID,
			AgentsDispatched: len(dispatched),
			AgentIDs:         agentIDs,
		}, "")

	s.logger.WithFields(map[string]interface{}{
		"configurationId": configurationID,
		"agents":          len(dispatched),
	}).Info("Parallel scan dispatched")

	return dispatched, nil
}

// Wait blocks until all in-flight scan tasks have completed. Used by tests
// and graceful shutdown.
func (s *ScanService) Wait() {
	s.tasks.Wait()
}

// runScan is the asynchronous completion task of one scan dispatch. Failures
// here are never surfaced to the dispatching caller; the agent is moved to
// the error state and the fault is only observable on the next read.
func (s *ScanService) runScan(agentID int64, latency time.Duration) {
	defer s.tasks.Done()
	defer func() {
		if rec := recover(); rec != nil {
			s.failAgent(agentID, rec)
		}
	}()

	time.Sleep(latency)
	s.completeScan(agentID)
}

// completeScan draws the discovery outcome and applies it to the agent.
func (s *ScanService) completeScan(agentID int64) {
	inst, err := s.agents.GetInstance(agentID)
	if err != nil {
		// Agent deleted while its scan was in flight; its outcome is moot.
		s.logger.WithField("agentId", agentID).Debug("Scan completion for deleted agent dropped")
		return
	}

	if s.roll() < s.opts.FindProbability {
		if opp, proto, network, ok := s.discover(inst); ok {
			s.applyFound(inst, opp, proto, network)
			return
		}
	}
	s.applyMiss(inst)
}

// discover synthesizes a new opportunity for the agent's assigned
// protocol/network pair. Discovery fails when the agent has no assignment,
// the assignment does not resolve in the catalog, or the configuration's
// network allowlist rejects it.
func (s *ScanService) discover(inst *models.AgentInstance) (*models.Opportunity, *models.Protocol, *models.Network, bool) {
	if inst.AssignedProtocolID == nil || inst.AssignedNetworkID == nil {
		return nil, nil, nil, false
	}

	proto, ok := s.catalog.Protocol(*inst.AssignedProtocolID)
	if !ok {
		return nil, nil, nil, false
	}
	network, ok := s.catalog.Network(*inst.AssignedNetworkID)
	if !ok {
		return nil, nil, nil, false
	}

	if cfg, err := s.agents.GetConfiguration(inst.ConfigurationID); err == nil && !cfg.AllowsNetwork(network.ID) {
		return nil, nil, nil, false
	}

	apy := s.uniform(s.opts.APYMin, s.opts.APYMax)
	tvl := s.uniform(s.opts.TVLMin, s.opts.TVLMax)
	asset := s.pickAsset()

	opp := s.catalog.AppendOpportunity(proto.ID, network.ID, asset, apy, tvl, s.now())
	return opp, proto, network, true
}

// applyFound moves the agent back to idle with updated performance and
// records the discovery activity.
func (s *ScanService) applyFound(inst *models.AgentInstance, opp *models.Opportunity, proto *models.Protocol, network *models.Network) {
	found := s.now()
	perf := inst.Performance
	perf.OpportunitiesFound++
	perf.SuccessRate = math.Min(100, perf.SuccessRate+1)
	perf.LastFound = &found

	idle := types.AgentIdle
	task := taskWaiting
	if _, err := s.agents.UpdateInstance(inst.ID, &storage.InstanceUpdate{
		Status:      &idle,
		CurrentTask: &task,
		Performance: &perf,
	}); err != nil {
		s.logger.WithField("agentId", inst.ID).Warn("Agent disappeared before scan result could be applied")
		return
	}

	s.activities.Append(types.ActivityOpportunity,
		fmt.Sprintf("Agent %q found %s opportunity on %s via %s (%.2f%% APY)",
			inst.Name, opp.Asset, network.Name, proto.Name, opp.APY),
		&models.OpportunityActivityDetails{
			OpportunityID: opp.ID,
			AgentID:       inst.ID,
			ProtocolID:    proto.ID,
			NetworkID:     network.ID,
			Asset:         opp.Asset,
			APY:           opp.APY,
		}, "")

	s.logger.WithFields(map[string]interface{}{
		"agentId":       inst.ID,
		"opportunityId": opp.ID,
		"apy":           opp.APY,
	}).Info("Scan found opportunity")
}

// applyMiss moves the agent back to idle, easing the success rate toward the
// floor. OpportunitiesFound is left unchanged.
func (s *ScanService) applyMiss(inst *models.AgentInstance) {
	perf := inst.Performance
	perf.SuccessRate = math.Max(successRateFloor, perf.SuccessRate-0.5)

	idle := types.AgentIdle
	task := taskWaiting
	if _, err := s.agents.UpdateInstance(inst.ID, &storage.InstanceUpdate{
		Status:      &idle,
		CurrentTask: &task,
		Performance: &perf,
	}); err != nil {
		s.logger.WithField("agentId", inst.ID).Warn("Agent disappeared before scan result could be applied")
	}
}

// failAgent moves the agent to the terminal error state. No opportunity or
// activity is produced; an operator re-arms the agent with another dispatch.
func (s *ScanService) failAgent(agentID int64, cause interface{}) {
	status := types.AgentError
	task := taskFailed
	_, err := s.agents.UpdateInstance(agentID, &storage.InstanceUpdate{
		Status:      &status,
		CurrentTask: &task,
	})

	logger := s.logger.WithFields(map[string]interface{}{
		"agentId": agentID,
		"cause":   fmt.Sprintf("%v", cause),
	})
	if err != nil {
		logger.Warn("Scan task failed for deleted agent")
		return
	}
	logger.Error("Scan task failed")
}

// parallelLatency draws a latency from the parallel band so completions
// interleave out of order.
func (s *ScanService) parallelLatency() time.Duration {
	span := s.opts.ParallelLatencyMax - s.opts.ParallelLatencyMin
	if span <= 0 {
		return s.opts.ParallelLatencyMin
	}
	return s.opts.ParallelLatencyMin + time.Duration(s.roll()*float64(span))
}

// roll draws a uniform number in [0,1). rand.Rand is not safe for concurrent
// use, so draws are serialized.
func (s *ScanService) roll() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// uniform draws a number uniformly from [min,max).
func (s *ScanService) uniform(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + s.roll()*(max-min)
}

// pickAsset draws an asset from the fixed set.
func (s *ScanService) pickAsset() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.opts.Assets[s.rng.Intn(len(s.opts.Assets))]
}
