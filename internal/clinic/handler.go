package clinic

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

type hoursStore interface {
	Get(ctx context.Context, orgID string) (*Hours, error)
	Set(ctx context.Context, hours *Hours) error
}

// Handler provides HTTP endpoints for business-hours management.
type Handler struct {
	store  hoursStore
	logger *logging.Logger
}

// NewHandler creates a new clinic hours HTTP handler.
func NewHandler(store hoursStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes mounts the hours endpoints under a router already scoped to {orgID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/business-hours", h.GetHours)
	r.Put("/business-hours", h.UpdateHours)
}

// GetHours returns the business hours for an org.
// GET /admin/orgs/{orgID}/business-hours
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org_id required"}`, http.StatusBadRequest)
		return
	}

	hours, err := h.store.Get(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get business hours", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hours); err != nil {
		h.logger.Error("failed to encode business hours", "org_id", orgID, "error", err)
	}
}

// UpdateHoursRequest is the request body for updating business hours.
type UpdateHoursRequest struct {
	Timezone      string         `json:"timezone,omitempty"`
	BusinessHours *BusinessHours `json:"business_hours,omitempty"`
}

// UpdateHours partially updates the business hours for an org.
// PUT /admin/orgs/{orgID}/business-hours
func (h *Handler) UpdateHours(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org_id required"}`, http.StatusBadRequest)
		return
	}

	var req UpdateHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	hours, err := h.store.Get(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to get business hours", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	if req.Timezone != "" {
		hours.Timezone = req.Timezone
	}
	if req.BusinessHours != nil {
		hours.BusinessHours = *req.BusinessHours
	}
	if err := hours.Validate(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	if err := h.store.Set(r.Context(), hours); err != nil {
		h.logger.Error("failed to save business hours", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "failed to save business hours"}`, http.StatusInternalServerError)
		return
	}

	h.logger.Info("business hours updated", "org_id", orgID, "timezone", hours.Timezone)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hours); err != nil {
		h.logger.Error("failed to encode business hours", "org_id", orgID, "error", err)
	}
}
