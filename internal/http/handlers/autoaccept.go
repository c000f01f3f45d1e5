package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/autoaccept"
	"github.com/wolfman30/clinic-decision-core/internal/decisionqueue"
	"github.com/wolfman30/clinic-decision-core/internal/http/middleware"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

type settingsService interface {
	Get(ctx context.Context, orgID uuid.UUID) (autoaccept.Settings, error)
	Update(ctx context.Context, orgID uuid.UUID, upd autoaccept.SettingsUpdate, actor string) (autoaccept.Settings, error)
}

type candidateProcessor interface {
	Process(ctx context.Context, c autoaccept.Candidate) (*autoaccept.Result, error)
	Resolve(ctx context.Context, orgID, entryID uuid.UUID, decision, note, resolvedBy string) (*autoaccept.Resolution, error)
	ResolveBulk(ctx context.Context, orgID uuid.UUID, entryIDs []uuid.UUID, decision, note, resolvedBy string) (*decisionqueue.BulkResult, error)
}

type logLister interface {
	List(ctx context.Context, orgID uuid.UUID, limit int) ([]autoaccept.LogEntry, error)
}

// AutoAcceptHandler serves settings, evaluation and the auto-accept log.
type AutoAcceptHandler struct {
	settings  settingsService
	processor candidateProcessor
	logs      logLister
	logger    *logging.Logger
}

// NewAutoAcceptHandler creates the auto-accept admin handler.
func NewAutoAcceptHandler(settings settingsService, processor candidateProcessor, logs logLister, logger *logging.Logger) *AutoAcceptHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AutoAcceptHandler{settings: settings, processor: processor, logs: logs, logger: logger}
}

// RegisterRoutes mounts the endpoints under a router scoped to {orgID}.
func (h *AutoAcceptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/auto-accept/settings", h.GetSettings)
	r.Put("/auto-accept/settings", h.UpdateSettings)
	r.Post("/auto-accept/evaluate", h.Evaluate)
	r.Get("/auto-accept/log", h.ListLog)
}

// GetSettings returns the organization's settings, or defaults.
// GET /admin/orgs/{orgID}/auto-accept/settings
func (h *AutoAcceptHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	s, err := h.settings.Get(r.Context(), orgID)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings applies a partial update.
// PUT /admin/orgs/{orgID}/auto-accept/settings
func (h *AutoAcceptHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var upd autoaccept.SettingsUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, h.logger, err)
		return
	}
	s, err := h.settings.Update(r.Context(), orgID, upd, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// EvaluateRequest is the candidate submitted for evaluation.
type EvaluateRequest struct {
	ID             uuid.UUID `json:"id"`
	ResourceType   string    `json:"resource_type"`
	Type           string    `json:"type"`
	RequestedAt    time.Time `json:"requested_at"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	EndAt          time.Time `json:"end_at"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
}

// Evaluate runs the candidate through auto-accept and returns the verdict.
// POST /admin/orgs/{orgID}/auto-accept/evaluate
func (h *AutoAcceptHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rt, err := autoaccept.ParseResourceType(req.ResourceType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	res, err := h.processor.Process(r.Context(), autoaccept.Candidate{
		ID:             req.ID,
		OrgID:          orgID,
		ResourceType:   rt,
		Type:           req.Type,
		RequestedAt:    req.RequestedAt,
		ScheduledAt:    req.ScheduledAt,
		EndAt:          req.EndAt,
		PractitionerID: req.PractitionerID,
	})
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID, "resource_id", req.ID)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListLog returns the newest auto-accept log rows.
// GET /admin/orgs/{orgID}/auto-accept/log?limit=50
func (h *AutoAcceptHandler) ListLog(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	entries, err := h.logs.List(r.Context(), orgID, limit)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	if entries == nil {
		entries = []autoaccept.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
