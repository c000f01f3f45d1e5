package autoaccept

import (
	"context"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// SettingsService is the explicit settings read/write operation. The
// evaluator never writes settings.
type SettingsService struct {
	provider SettingsProvider
	auditor  Auditor
	logger   *logging.Logger
}

// NewSettingsService creates a settings service. auditor may be nil.
func NewSettingsService(provider SettingsProvider, auditor Auditor, logger *logging.Logger) *SettingsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsService{provider: provider, auditor: auditor, logger: logger}
}

// Get returns current settings for the organization.
func (s *SettingsService) Get(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	if orgID == uuid.Nil {
		return Settings{}, apperr.Validation("org_id is required")
	}
	return s.provider.Get(ctx, orgID)
}

// Update merges a partial update onto the current settings and saves it.
func (s *SettingsService) Update(ctx context.Context, orgID uuid.UUID, upd SettingsUpdate, actor string) (Settings, error) {
	current, err := s.Get(ctx, orgID)
	if err != nil {
		return Settings{}, err
	}
	next := upd.Apply(current).Normalize()
	next.OrgID = orgID
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	saved, err := s.provider.Update(ctx, next)
	if err != nil {
		return Settings{}, err
	}

	s.logger.Info("auto-accept settings updated",
		"org_id", orgID,
		"actor", actor,
		"auto_accept_appointments", saved.AutoAcceptAppointments,
		"auto_accept_referrals", saved.AutoAcceptReferrals,
		"max_daily_limit", saved.MaxDailyLimit,
	)
	if s.auditor != nil {
		if err := s.auditor.LogEvent(ctx, audit.Event{
			EventType: audit.EventSettingsUpdated,
			OrgID:     orgID.String(),
			Actor:     actor,
			Details:   detailsJSON(saved),
		}); err != nil {
			s.logger.Warn("audit log failed", "event_type", audit.EventSettingsUpdated, "org_id", orgID, "error", err)
		}
	}
	return saved, nil
}
