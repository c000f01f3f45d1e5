package autoaccept

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/clinic-decision-core/internal/conflicts"
)

// SettingsProvider reads and writes per-organization settings.
type SettingsProvider interface {
	Get(ctx context.Context, orgID uuid.UUID) (Settings, error)
	Update(ctx context.Context, s Settings) (Settings, error)
}

// SettingsStore persists settings in auto_accept_settings.
type SettingsStore struct {
	db conflicts.Querier
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(db conflicts.Querier) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the organization's settings, or defaults when none are saved.
func (s *SettingsStore) Get(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	out := Settings{OrgID: orgID}
	err := s.db.QueryRow(ctx, `
		SELECT auto_accept_appointments, auto_accept_referrals, accept_delay_minutes,
			referral_accept_delay_minutes, types_included, types_excluded,
			max_daily_limit, business_hours_only, updated_at
		FROM auto_accept_settings
		WHERE org_id = $1`, orgID).Scan(
		&out.AutoAcceptAppointments, &out.AutoAcceptReferrals, &out.AcceptDelayMinutes,
		&out.ReferralAcceptDelayMinutes, &out.TypesIncluded, &out.TypesExcluded,
		&out.MaxDailyLimit, &out.BusinessHoursOnly, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(orgID), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("autoaccept: get settings: %w", err)
	}
	return out.Normalize(), nil
}

// Update validates and upserts settings, returning the stored version.
func (s *SettingsStore) Update(ctx context.Context, in Settings) (Settings, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Settings{}, err
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO auto_accept_settings (
			org_id, auto_accept_appointments, auto_accept_referrals, accept_delay_minutes,
			referral_accept_delay_minutes, types_included, types_excluded,
			max_daily_limit, business_hours_only, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (org_id) DO UPDATE SET
			auto_accept_appointments = EXCLUDED.auto_accept_appointments,
			auto_accept_referrals = EXCLUDED.auto_accept_referrals,
			accept_delay_minutes = EXCLUDED.accept_delay_minutes,
			referral_accept_delay_minutes = EXCLUDED.referral_accept_delay_minutes,
			types_included = EXCLUDED.types_included,
			types_excluded = EXCLUDED.types_excluded,
			max_daily_limit = EXCLUDED.max_daily_limit,
			business_hours_only = EXCLUDED.business_hours_only,
			updated_at = now()
		RETURNING updated_at`,
		in.OrgID, in.AutoAcceptAppointments, in.AutoAcceptReferrals, in.AcceptDelayMinutes,
		in.ReferralAcceptDelayMinutes, in.TypesIncluded, in.TypesExcluded,
		in.MaxDailyLimit, in.BusinessHoursOnly,
	).Scan(&in.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("autoaccept: update settings: %w", err)
	}
	return in, nil
}
