package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/autoaccept"
	"github.com/wolfman30/clinic-decision-core/internal/decisionqueue"
	"github.com/wolfman30/clinic-decision-core/internal/http/middleware"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

type decisionQueue interface {
	ListPending(ctx context.Context, orgID uuid.UUID, filter decisionqueue.Filter) ([]decisionqueue.Entry, error)
	CountPending(ctx context.Context, orgID uuid.UUID) (int, error)
}

// DecisionsHandler serves the human review queue.
type DecisionsHandler struct {
	queue     decisionQueue
	processor candidateProcessor
	logger    *logging.Logger
}

// NewDecisionsHandler creates the decision queue handler. Reads go to queue;
// resolutions go through processor, which closes the entry and changes the
// underlying record together.
func NewDecisionsHandler(queue decisionQueue, processor candidateProcessor, logger *logging.Logger) *DecisionsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DecisionsHandler{queue: queue, processor: processor, logger: logger}
}

func (h *DecisionsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/decisions", h.ListPending)
	r.Post("/decisions/resolve-bulk", h.ResolveBulk)
	r.Post("/decisions/{entryID}/resolve", h.Resolve)
}

// ListPending returns PENDING entries, oldest first.
// GET /admin/orgs/{orgID}/decisions?resource_type=appointment&limit=100
func (h *DecisionsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	filter := decisionqueue.Filter{Limit: limit}
	if rt := r.URL.Query().Get("resource_type"); rt != "" {
		parsed, err := autoaccept.ParseResourceType(rt)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		filter.ResourceType = string(parsed)
	}

	entries, err := h.queue.ListPending(r.Context(), orgID, filter)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	total, err := h.queue.CountPending(r.Context(), orgID)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	if entries == nil {
		entries = []decisionqueue.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total_pending": total})
}

// ResolveRequest is the body of a single resolution.
type ResolveRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// ResolveResponse reports the resolved entry and the log row written when
// the decision changed the underlying record.
type ResolveResponse = autoaccept.Resolution

// Resolve records a human decision and applies it.
// POST /admin/orgs/{orgID}/decisions/{entryID}/resolve
func (h *DecisionsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	entryID, err := uuidParam(r, "entryID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.processor.Resolve(r.Context(), orgID, entryID, req.Decision, req.Note, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID, "entry_id", entryID, "decision", req.Decision)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BulkResolveRequest resolves many entries with one decision.
type BulkResolveRequest struct {
	IDs      []string `json:"ids"`
	Decision string   `json:"decision"`
	Note     string   `json:"note"`
}

// BulkResolveResponse carries per-item counts. Malformed ids count as failed,
// and so does an entry whose record change failed; it stays PENDING.
type BulkResolveResponse struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// ResolveBulk resolves every listed entry, reporting partial failures as counts.
// POST /admin/orgs/{orgID}/decisions/resolve-bulk
func (h *DecisionsHandler) ResolveBulk(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req BulkResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var resp BulkResolveResponse
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			resp.Failed++
			continue
		}
		ids = append(ids, id)
	}

	res, err := h.processor.ResolveBulk(r.Context(), orgID, ids, req.Decision, req.Note, middleware.Actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	resp.Resolved = res.Resolved
	resp.Failed += res.Failed
	writeJSON(w, http.StatusOK, resp)
}
