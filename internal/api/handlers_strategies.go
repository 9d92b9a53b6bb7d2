package api

import (
	"net/http"

	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/service"
	"github.com/yield-scanner/internal/storage"
	"github.com/yield-scanner/internal/types"
)

// StrategyHandler handles yield strategy and strategy execution endpoints.
type StrategyHandler struct {
	strategies *service.StrategyService
	engine     *service.ExecutionService
	cache      *storage.CatalogCache
	logger     *logging.Logger
}

// NewStrategyHandler creates a new strategy handler.
func NewStrategyHandler(strategies *service.StrategyService, engine *service.ExecutionService, cache *storage.CatalogCache, logger *logging.Logger) *StrategyHandler {
	return &StrategyHandler{
		strategies: strategies,
		engine:     engine,
		cache:      cache,
		logger:     logger,
	}
}

// strategyView is a strategy enriched with resolved target protocol and
// network references for the read path.
type strategyView struct {
	*models.YieldStrategy
	Protocols []*models.EntityRef `json:"protocols"`
	Networks  []*models.EntityRef `json:"networks"`
}

func (h *StrategyHandler) enrichStrategy(r *http.Request, s *models.YieldStrategy) *strategyView {
	view := &strategyView{
		YieldStrategy: s,
		Protocols:     make([]*models.EntityRef, 0, len(s.TargetProtocols)),
		Networks:      make([]*models.EntityRef, 0, len(s.TargetNetworks)),
	}
	for _, id := range s.TargetProtocols {
		if ref, ok := h.cache.ProtocolRef(r.Context(), id); ok {
			view.Protocols = append(view.Protocols, ref)
		}
	}
	for _, id := range s.TargetNetworks {
		if ref, ok := h.cache.NetworkRef(r.Context(), id); ok {
			view.Networks = append(view.Networks, ref)
		}
	}
	return view
}

// createStrategyRequest is the body of POST /yield-strategies.
type createStrategyRequest struct {
	Name            string                    `json:"name"`
	Status          types.StrategyStatus      `json:"status"`
	TriggerType     types.TriggerType         `json:"triggerType"`
	TargetProtocols []int64                   `json:"targetProtocols"`
	TargetNetworks  []int64                   `json:"targetNetworks"`
	Conditions      models.StrategyConditions `json:"conditions"`
	Actions         models.StrategyActions    `json:"actions"`
	MaxGasFee       float64                   `json:"maxGasFee"`
}

// CreateStrategy handles POST /api/yield-strategies. The caller's identity is
// taken from the X-User-ID header when present.
func (h *StrategyHandler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req createStrategyRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	strategy, err := h.strategies.Create(&service.CreateStrategyInput{
		UserID:          r.Header.Get("X-User-ID"),
		Name:            req.Name,
		Status:          req.Status,
		TriggerType:     req.TriggerType,
		TargetProtocols: req.TargetProtocols,
		TargetNetworks:  req.TargetNetworks,
		Conditions:      req.Conditions,
		Actions:         req.Actions,
		MaxGasFee:       req.MaxGasFee,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.enrichStrategy(r, strategy))
}

// ListStrategies handles GET /api/yield-strategies. When X-User-ID is present
// the listing is scoped to that user.
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := h.strategies.List(r.Header.Get("X-User-ID"))

	views := make([]*strategyView, len(strategies))
	for i, s := range strategies {
		views[i] = h.enrichStrategy(r, s)
	}
	respondJSON(w, http.StatusOK, views)
}

// GetStrategy handles GET /api/yield-strategies/{id}.
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid strategy id", nil)
		return
	}

	strategy, err := h.strategies.Get(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.enrichStrategy(r, strategy))
}

// updateStrategyRequest is the body of PUT /yield-strategies/{id}.
// Absent fields are left unchanged.
type updateStrategyRequest struct {
	Name            *string                    `json:"name"`
	Status          *types.StrategyStatus      `json:"status"`
	TriggerType     *types.TriggerType         `json:"triggerType"`
	TargetProtocols []int64                    `json:"targetProtocols"`
	TargetNetworks  []int64                    `json:"targetNetworks"`
	Conditions      *models.StrategyConditions `json:"conditions"`
	Actions         *models.StrategyActions    `json:"actions"`
	MaxGasFee       *float64                   `json:"maxGasFee"`
}

// UpdateStrategy handles PUT /api/yield-strategies/{id}.
func (h *StrategyHandler) UpdateStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid strategy id", nil)
		return
	}

	var req updateStrategyRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	strategy, err := h.strategies.Update(id, &storage.StrategyUpdate{
		Name:            req.Name,
		Status:          req.Status,
		TriggerType:     req.TriggerType,
		TargetProtocols: req.TargetProtocols,
		TargetNetworks:  req.TargetNetworks,
		Conditions:      req.Conditions,
		Actions:         req.Actions,
		MaxGasFee:       req.MaxGasFee,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.enrichStrategy(r, strategy))
}

// DeleteStrategy handles DELETE /api/yield-strategies/{id}.
func (h *StrategyHandler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid strategy id", nil)
		return
	}

	if err := h.strategies.Delete(id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ExecuteStrategy handles POST /api/yield-strategies/{id}/execute. Execution
// is synchronous; the response carries the execution record, successful or not.
func (h *StrategyHandler) ExecuteStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid strategy id", nil)
		return
	}

	exec, err := h.engine.Execute(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	message := "Strategy executed"
	if exec.Status == types.ExecutionFailed {
		message = "Strategy execution failed"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   message,
		"execution": exec,
	})
}

// ListStrategyExecutions handles GET /api/yield-strategies/{id}/executions.
func (h *StrategyHandler) ListStrategyExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid strategy id", nil)
		return
	}

	executions, err := h.engine.ListExecutions(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, executions)
}

// ListAllExecutions handles GET /api/strategy-executions.
func (h *StrategyHandler) ListAllExecutions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.ListAllExecutions())
}
