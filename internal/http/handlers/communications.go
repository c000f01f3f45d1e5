package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/comms"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

type commsPlanner interface {
	Schedule(ctx context.Context, req comms.ScheduleRequest) ([]comms.Communication, error)
	DueNow(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]comms.Communication, error)
	Cancel(ctx context.Context, orgID, id uuid.UUID) error
	CancelForAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) (int, error)
}

// CommunicationsHandler serves reminder scheduling.
type CommunicationsHandler struct {
	planner        commsPlanner
	defaultOffsets []time.Duration
	logger         *logging.Logger
}

// NewCommunicationsHandler creates the handler. defaultOffsets apply when a
// request lists none.
func NewCommunicationsHandler(planner commsPlanner, defaultOffsets []time.Duration, logger *logging.Logger) *CommunicationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CommunicationsHandler{planner: planner, defaultOffsets: defaultOffsets, logger: logger}
}

func (h *CommunicationsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/communications", h.Schedule)
	r.Get("/communications/due", h.DueNow)
	r.Post("/communications/{commID}/cancel", h.Cancel)
	r.Post("/appointments/{appointmentID}/communications/cancel", h.CancelForAppointment)
}

// ScheduleCommunicationRequest schedules reminders for one appointment.
type ScheduleCommunicationRequest struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	AppointmentID   *uuid.UUID `json:"appointment_id,omitempty"`
	Channel         string     `json:"channel"`
	Recipient       string     `json:"recipient"`
	Message         string     `json:"message"`
	AppointmentTime time.Time  `json:"appointment_time"`
	Offsets         []string   `json:"offsets"`
}

// Schedule creates one communication per offset.
// POST /admin/orgs/{orgID}/communications
func (h *CommunicationsHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ScheduleCommunicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	channel, err := comms.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offsets := h.defaultOffsets
	if len(req.Offsets) > 0 {
		if offsets, err = comms.ParseOffsets(req.Offsets); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	items, err := h.planner.Schedule(r.Context(), comms.ScheduleRequest{
		OrgID:           orgID,
		PatientID:       req.PatientID,
		AppointmentID:   req.AppointmentID,
		Channel:         channel,
		Recipient:       req.Recipient,
		Message:         req.Message,
		AppointmentTime: req.AppointmentTime,
		Offsets:         offsets,
	})
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"communications": items})
}

// DueNow lists PENDING communications due at as_of (RFC3339, default now).
// GET /admin/orgs/{orgID}/communications/due?as_of=2026-01-31T10:00:01Z
func (h *CommunicationsHandler) DueNow(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, h.logger, apperr.Validation("invalid as_of %q", raw))
			return
		}
	}
	items, err := h.planner.DueNow(r.Context(), orgID, asOf)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID)
		return
	}
	if items == nil {
		items = []comms.Communication{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"communications": items, "as_of": asOf})
}

// Cancel cancels one PENDING communication. Already-final rows are left alone.
// POST /admin/orgs/{orgID}/communications/{commID}/cancel
func (h *CommunicationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, err := uuidParam(r, "commID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.planner.Cancel(r.Context(), orgID, id); err != nil {
		writeError(w, h.logger, err, "org_id", orgID, "communication_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelForAppointment cancels every PENDING communication of an appointment.
// POST /admin/orgs/{orgID}/appointments/{appointmentID}/communications/cancel
func (h *CommunicationsHandler) CancelForAppointment(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	apptID, err := uuidParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	n, err := h.planner.CancelForAppointment(r.Context(), orgID, apptID)
	if err != nil {
		writeError(w, h.logger, err, "org_id", orgID, "appointment_id", apptID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}
