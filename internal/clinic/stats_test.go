package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

func TestStatsRepository_GetStats_AllTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	orgID := "org-123"

	mock.ExpectQuery(`FROM auto_accept_log WHERE org_id = \$1`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"accepted", "rejected", "queued"}).AddRow(int64(42), int64(3), int64(7)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM decision_queue WHERE org_id = \$1 AND status = 'PENDING'`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scheduled_communications WHERE org_id = \$1 AND status = 'SENT'`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(90)))

	repo := NewStatsRepositoryWithDB(mock)
	stats, err := repo.GetStats(context.Background(), orgID, nil, nil)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.AutoAccepted != 42 || stats.Rejected != 3 || stats.Queued != 7 {
		t.Errorf("log counts = %d/%d/%d, want 42/3/7", stats.AutoAccepted, stats.Rejected, stats.Queued)
	}
	if stats.PendingDecisions != 4 {
		t.Errorf("PendingDecisions = %d, want 4", stats.PendingDecisions)
	}
	if stats.CommunicationsSent != 90 {
		t.Errorf("CommunicationsSent = %d, want 90", stats.CommunicationsSent)
	}
	if stats.PeriodStart != "all-time" {
		t.Errorf("PeriodStart = %q, want 'all-time'", stats.PeriodStart)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStatsRepository_GetStats_WithTimeRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	orgID := "org-456"
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM auto_accept_log WHERE org_id = \$1 AND processed_at >= \$2 AND processed_at < \$3`).
		WithArgs(orgID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"accepted", "rejected", "queued"}).AddRow(int64(20), int64(0), int64(5)))
	// Pending is a point-in-time backlog and ignores the window.
	mock.ExpectQuery(`FROM decision_queue`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`status = 'SENT' AND sent_at >= \$2 AND sent_at < \$3`).
		WithArgs(orgID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))

	repo := NewStatsRepositoryWithDB(mock)
	stats, err := repo.GetStats(context.Background(), orgID, &start, &end)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.AutoAccepted != 20 {
		t.Errorf("AutoAccepted = %d, want 20", stats.AutoAccepted)
	}
	if stats.CommunicationsSent != 11 {
		t.Errorf("CommunicationsSent = %d, want 11", stats.CommunicationsSent)
	}
	if stats.PeriodStart != start.Format(time.RFC3339) {
		t.Errorf("PeriodStart = %q, want %q", stats.PeriodStart, start.Format(time.RFC3339))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStatsRepository_GetStats_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM auto_accept_log`).WillReturnError(errors.New("db down"))

	_, err = NewStatsRepositoryWithDB(mock).GetStats(context.Background(), "org-1", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStatsHandler_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	orgID := "org-789"

	mock.ExpectQuery(`FROM auto_accept_log`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"accepted", "rejected", "queued"}).AddRow(int64(100), int64(1), int64(9)))
	mock.ExpectQuery(`FROM decision_queue`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(9)))
	mock.ExpectQuery(`FROM scheduled_communications`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(250)))

	handler := NewStatsHandler(NewStatsRepositoryWithDB(mock), logging.Default())

	r := chi.NewRouter()
	r.Route("/orgs/{orgID}", handler.RegisterRoutes)

	req := httptest.NewRequest(http.MethodGet, "/orgs/"+orgID+"/stats", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var stats Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if stats.OrgID != orgID {
		t.Errorf("OrgID = %q, want %q", stats.OrgID, orgID)
	}
	if stats.AutoAccepted != 100 {
		t.Errorf("AutoAccepted = %d, want 100", stats.AutoAccepted)
	}
	if stats.PendingDecisions != 9 {
		t.Errorf("PendingDecisions = %d, want 9", stats.PendingDecisions)
	}
}

func TestStatsHandler_RequiresBothStartAndEnd(t *testing.T) {
	handler := NewStatsHandler(NewStatsRepositoryWithDB(nil), logging.Default())

	r := chi.NewRouter()
	r.Get("/orgs/{orgID}/stats", handler.GetStats)

	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/stats?start=2025-01-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/orgs/org-1/stats?end=2025-02-01T00:00:00Z", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}
