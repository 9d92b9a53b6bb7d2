package api

import (
	"net/http"
	"strconv"

	"github.com/yield-scanner/internal/logging"
	"github.com/yield-scanner/internal/models"
	"github.com/yield-scanner/internal/storage"
)

// defaultActivityLimit caps activity listings when the caller does not ask
// for a specific window.
const defaultActivityLimit = 100

// CatalogHandler handles the read-only catalog and activity log endpoints.
type CatalogHandler struct {
	catalog    *storage.CatalogRepository
	activities *storage.ActivityRepository
	cache      *storage.CatalogCache
	logger     *logging.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalog *storage.CatalogRepository, activities *storage.ActivityRepository, cache *storage.CatalogCache, logger *logging.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:    catalog,
		activities: activities,
		cache:      cache,
		logger:     logger,
	}
}

// ListProtocols handles GET /api/protocols.
func (h *CatalogHandler) ListProtocols(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.ListProtocols())
}

// ListNetworks handles GET /api/networks.
func (h *CatalogHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.ListNetworks())
}

// opportunityView is an opportunity enriched with resolved protocol and
// network references.
type opportunityView struct {
	*models.Opportunity
	Protocol *models.EntityRef `json:"protocol,omitempty"`
	Network  *models.EntityRef `json:"network,omitempty"`
}

// ListOpportunities handles GET /api/opportunities.
func (h *CatalogHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	opportunities := h.catalog.ListOpportunities()

	views := make([]*opportunityView, len(opportunities))
	for i, opp := range opportunities {
		view := &opportunityView{Opportunity: opp}
		if ref, ok := h.cache.ProtocolRef(r.Context(), opp.ProtocolID); ok {
			view.Protocol = ref
		}
		if ref, ok := h.cache.NetworkRef(r.Context(), opp.NetworkID); ok {
			view.Network = ref
		}
		views[i] = view
	}
	respondJSON(w, http.StatusOK, views)
}

// GetOpportunity handles GET /api/opportunities/{id}.
func (h *CatalogHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid opportunity id", nil)
		return
	}

	opp, ok := h.catalog.Opportunity(id)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Opportunity not found", map[string]interface{}{"id": id})
		return
	}

	view := &opportunityView{Opportunity: opp}
	if ref, ok := h.cache.ProtocolRef(r.Context(), opp.ProtocolID); ok {
		view.Protocol = ref
	}
	if ref, ok := h.cache.NetworkRef(r.Context(), opp.NetworkID); ok {
		view.Network = ref
	}
	respondJSON(w, http.StatusOK, view)
}

// ListActivities handles GET /api/activities. The default is the most recent
// entries first; order=asc returns insertion order instead. limit caps the
// window.
func (h *CatalogHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid limit parameter", nil)
			return
		}
		limit = parsed
	}

	switch r.URL.Query().Get("order") {
	case "", "desc":
		respondJSON(w, http.StatusOK, h.activities.ListRecent(limit))
	case "asc":
		respondJSON(w, http.StatusOK, h.activities.List(limit))
	default:
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "order must be asc or desc", nil)
	}
}
