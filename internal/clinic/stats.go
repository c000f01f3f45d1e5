package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// Stats summarizes a clinic's decision activity over a period.
type Stats struct {
	OrgID              string `json:"org_id"`
	AutoAccepted       int64  `json:"auto_accepted"`
	Rejected           int64  `json:"rejected"`
	Queued             int64  `json:"queued"`
	PendingDecisions   int64  `json:"pending_decisions"`
	CommunicationsSent int64  `json:"communications_sent"`
	PeriodStart        string `json:"period_start"`
	PeriodEnd          string `json:"period_end"`
}

type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries decision metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("clinic: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats aggregates log, queue and communication counts for a clinic.
// Start and end are both set or both nil; nil means all time. The pending
// count is always the current backlog.
func (r *StatsRepository) GetStats(ctx context.Context, orgID string, start, end *time.Time) (*Stats, error) {
	stats := &Stats{OrgID: orgID}

	logFilter, sentFilter := "", ""
	args := []any{orgID}
	if start != nil && end != nil {
		logFilter = " AND processed_at >= $2 AND processed_at < $3"
		sentFilter = " AND sent_at >= $2 AND sent_at < $3"
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format(time.RFC3339)
		stats.PeriodEnd = end.Format(time.RFC3339)
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE action = 'accepted'),
			COUNT(*) FILTER (WHERE action = 'rejected'),
			COUNT(*) FILTER (WHERE action = 'queued')
		FROM auto_accept_log WHERE org_id = $1`+logFilter, args...).
		Scan(&stats.AutoAccepted, &stats.Rejected, &stats.Queued)
	if err != nil {
		return nil, fmt.Errorf("clinic stats: count log: %w", err)
	}

	pendingQuery := `SELECT COUNT(*) FROM decision_queue WHERE org_id = $1 AND status = 'PENDING'`
	if err := r.db.QueryRow(ctx, pendingQuery, orgID).Scan(&stats.PendingDecisions); err != nil {
		return nil, fmt.Errorf("clinic stats: count pending: %w", err)
	}

	sentQuery := `SELECT COUNT(*) FROM scheduled_communications WHERE org_id = $1 AND status = 'SENT'` + sentFilter
	if err := r.db.QueryRow(ctx, sentQuery, args...).Scan(&stats.CommunicationsSent); err != nil {
		return nil, fmt.Errorf("clinic stats: count sent: %w", err)
	}

	return stats, nil
}

type statsRepo interface {
	GetStats(ctx context.Context, orgID string, start, end *time.Time) (*Stats, error)
}

// StatsHandler provides HTTP endpoints for clinic statistics.
type StatsHandler struct {
	repo   statsRepo
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo statsRepo, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes mounts the stats endpoint under a router scoped to {orgID}.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.GetStats)
}

// GetStats returns aggregated decision metrics for a clinic.
// GET /admin/orgs/{orgID}/stats
// Query params:
//   - start: RFC3339 timestamp for period start (optional)
//   - end: RFC3339 timestamp for period end (optional)
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, `{"error": "org_id required"}`, http.StatusBadRequest)
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, `{"error": "invalid start time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			http.Error(w, `{"error": "invalid end time, use RFC3339 format"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}

	if (start == nil) != (end == nil) {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), orgID, start, end)
	if err != nil {
		h.logger.Error("failed to get clinic stats", "org_id", orgID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode clinic stats", "org_id", orgID, "error", err)
	}
}
