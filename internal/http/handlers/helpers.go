package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/tenancy"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps business errors to their status and code. Anything else is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error, args ...any) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Error("request failed", append(args, "error", err)...)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": apperr.Code(err)})
}

// orgIDParam prefers the org already validated by the router's tenancy
// middleware and falls back to the URL parameter.
func orgIDParam(r *http.Request) (uuid.UUID, error) {
	if orgID, ok := tenancy.OrgIDFromContext(r.Context()); ok {
		return orgID, nil
	}
	return uuidParam(r, "orgID")
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return n, nil
}
