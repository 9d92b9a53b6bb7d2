// Package api implements the REST surface of the yield scanner.
package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/service"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// AgentHandler handles agent configuration, agent instance and scan dispatch
// endpoints.
type AgentHandler struct {
	agents *service.AgentService
	scans  *service.ScanService
	cache  *storage.CatalogCache
	logger *logging.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents *service.AgentService, scans *service.ScanService, cache *storage.CatalogCache, logger *logging.Logger) *AgentHandler {
	return &AgentHandler{
		agents: agents,
		scans:  scans,
		cache:  cache,
		logger: logger,
	}
}

// agentInstanceView is an agent instance enriched with resolved protocol and
// network references for the read path.
type agentInstanceView struct {
	*models.AgentInstance
	AssignedProtocol *models.EntityRef `json:"assignedProtocol,omitempty"`
	AssignedNetwork  *models.EntityRef `json:"assignedNetwork,omitempty"`
}

func (h *AgentHandler) enrichInstance(r *http.Request, inst *models.AgentInstance) *agentInstanceView {
	view := &agentInstanceView{AgentInstance: inst}
	if inst.AssignedProtocolID != nil {
		if ref, ok := h.cache.ProtocolRef(r.Context(), *inst.AssignedProtocolID); ok {
			view.AssignedProtocol = ref
		}
	}
	if inst.AssignedNetworkID != nil {
		if ref, ok := h.cache.NetworkRef(r.Context(), *inst.AssignedNetworkID); ok {
			view.AssignedNetwork = ref
		}
	}
	return view
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// createConfigurationRequest is the body of POST /agent-configurations.
type createConfigurationRequest struct {
	ScanFrequencySeconds int               `json:"scanFrequencySecs"`
	RiskTolerance        types.RiskLevel   `json:"riskTolerance"`
	Networks             []int64           `json:"networks"`
	PostingMode          types.PostingMode `json:"postingMode"`
	ParallelScanning     bool              `json:"parallelScanning"`
	MaxAgents            int               `json:"maxAgents"`
	RestrictNetworks     bool              `json:"restrictNetworks"`
}

// CreateConfiguration handles POST /api/agent-configurations.
func (h *AgentHandler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req createConfigurationRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cfg, err := h.agents.CreateConfiguration(&service.CreateConfigurationInput{
		ScanFrequencySeconds: req.ScanFrequencySeconds,
		RiskTolerance:        req.RiskTolerance,
		Networks:             req.Networks,
		PostingMode:          req.PostingMode,
		ParallelScanning:     req.ParallelScanning,
		MaxAgents:            req.MaxAgents,
		RestrictNetworks:     req.RestrictNetworks,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cfg)
}

// ListConfigurations handles GET /api/agent-configurations.
func (h *AgentHandler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.agents.ListConfigurations())
}

// GetConfiguration handles GET /api/agent-configurations/{id}.
func (h *AgentHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid configuration id", nil)
		return
	}

	cfg, err := h.agents.GetConfiguration(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// updateConfigurationRequest is the body of PUT /agent-configurations/{id}.
// Absent fields are left unchanged.
type updateConfigurationRequest struct {
	ScanFrequencySeconds *int               `json:"scanFrequencySecs"`
	RiskTolerance        *types.RiskLevel   `json:"riskTolerance"`
	Networks             []int64            `json:"networks"`
	PostingMode          *types.PostingMode `json:"postingMode"`
	ParallelScanning     *bool              `json:"parallelScanning"`
	MaxAgents            *int               `json:"maxAgents"`
	RestrictNetworks     *bool              `json:"restrictNetworks"`
}

// UpdateConfiguration handles PUT /api/agent-configurations/{id}.
func (h *AgentHandler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid configuration id", nil)
		return
	}

	var req updateConfigurationRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cfg, err := h.agents.UpdateConfiguration(id, &storage.ConfigurationUpdate{
		ScanFrequencySeconds: req.ScanFrequencySeconds,
		RiskTolerance:        req.RiskTolerance,
		Networks:             req.Networks,
		PostingMode:          req.PostingMode,
		ParallelScanning:     req.ParallelScanning,
		MaxAgents:            req.MaxAgents,
		RestrictNetworks:     req.RestrictNetworks,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// createInstanceRequest is the body of POST /agent-instances.
type createInstanceRequest struct {
	Name               string `json:"name"`
	AssignedProtocolID *int64 `json:"assignedProtocol"`
	AssignedNetworkID  *int64 `json:"assignedNetwork"`
	ConfigurationID    int64  `json:"configurationId"`
}

// CreateInstance handles POST /api/agent-instances.
func (h *AgentHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	inst, err := h.agents.CreateInstance(&service.CreateInstanceInput{
		Name:               req.Name,
		AssignedProtocolID: req.AssignedProtocolID,
		AssignedNetworkID:  req.AssignedNetworkID,
		ConfigurationID:    req.ConfigurationID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.enrichInstance(r, inst))
}

// ListInstances handles GET /api/agent-instances. An optional configurationId
// query parameter narrows the listing.
func (h *AgentHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	var instances []*models.AgentInstance
	if raw := r.URL.Query().Get("configurationId"); raw != "" {
		configID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid configurationId parameter", nil)
			return
		}
		instances = h.agents.ListInstancesByConfiguration(configID)
	} else {
		instances = h.agents.ListInstances()
	}

	views := make([]*agentInstanceView, len(instances))
	for i, inst := range instances {
		views[i] = h.enrichInstance(r, inst)
	}
	respondJSON(w, http.StatusOK, views)
}

// GetInstance handles GET /api/agent-instances/{id}.
func (h *AgentHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid agent id", nil)
		return
	}

	inst, err := h.agents.GetInstance(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.enrichInstance(r, inst))
}

// updateInstanceRequest is the body of PUT /agent-instances/{id}.
type updateInstanceRequest struct {
	Name               *string            `json:"name"`
	Status             *types.AgentStatus `json:"status"`
	AssignedProtocolID *int64             `json:"assignedProtocol"`
	AssignedNetworkID  *int64             `json:"assignedNetwork"`
	CurrentTask        *string            `json:"currentTask"`
}

// UpdateInstance handles PUT /api/agent-instances/{id}.
func (h *AgentHandler) UpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid agent id", nil)
		return
	}

	var req updateInstanceRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	inst, err := h.agents.UpdateInstance(id, &storage.InstanceUpdate{
		Name:               req.Name,
		Status:             req.Status,
		AssignedProtocolID: req.AssignedProtocolID,
		AssignedNetworkID:  req.AssignedNetworkID,
		CurrentTask:        req.CurrentTask,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.enrichInstance(r, inst))
}

// DeleteInstance handles DELETE /api/agent-instances/{id}.
func (h *AgentHandler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid agent id", nil)
		return
	}

	if err := h.agents.DeleteInstance(id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StartScan handles POST /api/agent-instances/{id}/scan. The response carries
// the agent already flipped to scanning; the scan outcome lands asynchronously.
func (h *AgentHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid agent id", nil)
		return
	}

	inst, err := h.scans.StartScan(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Scan initiated",
		"instance": h.enrichInstance(r, inst),
	})
}

// parallelScanRequest is the body of POST /parallel-scan.
type parallelScanRequest struct {
	ConfigurationID int64 `json:"configurationId"`
}

// ParallelScan handles POST /api/parallel-scan. Every idle agent under the
// configuration is dispatched; agents already scanning are left alone.
func (h *AgentHandler) ParallelScan(w http.ResponseWriter, r *http.Request) {
	var req parallelScanRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ConfigurationID < 1 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "configurationId is required", nil)
		return
	}

	dispatched, err := h.scans.ParallelScan(req.ConfigurationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	views := make([]*agentInstanceView, len(dispatched))
	for i, inst := range dispatched {
		views[i] = h.enrichInstance(r, inst)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Parallel scan initiated",
		"agents":  views,
	})
}
