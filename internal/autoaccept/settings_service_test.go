package autoaccept

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
	"github.com/wolfman30/clinic-decision-core/internal/audit"
)

func TestSettingsService_GetDefaults(t *testing.T) {
	svc := NewSettingsService(newMemSettings(), nil, nil)
	orgID := uuid.New()

	s, err := svc.Get(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(orgID), s)

	_, err = svc.Get(context.Background(), uuid.Nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSettingsService_PartialUpdateKeepsOtherFields(t *testing.T) {
	store := newMemSettings()
	auditor := &recordingAuditor{}
	svc := NewSettingsService(store, auditor, nil)
	ctx := context.Background()
	orgID := uuid.New()

	on, limit := true, 4
	_, err := svc.Update(ctx, orgID, SettingsUpdate{AutoAcceptAppointments: &on, MaxDailyLimit: &limit}, "dr.lee")
	require.NoError(t, err)

	delay := 15
	s, err := svc.Update(ctx, orgID, SettingsUpdate{AcceptDelayMinutes: &delay}, "dr.lee")
	require.NoError(t, err)
	assert.True(t, s.AutoAcceptAppointments)
	assert.Equal(t, 4, s.MaxDailyLimit)
	assert.Equal(t, 15, s.AcceptDelayMinutes)

	require.Len(t, auditor.events, 2)
	assert.Equal(t, audit.EventSettingsUpdated, auditor.events[1].EventType)
	assert.Equal(t, "dr.lee", auditor.events[1].Actor)
}

func TestSettingsService_RejectsNegativeValues(t *testing.T) {
	store := newMemSettings()
	svc := NewSettingsService(store, nil, nil)
	orgID := uuid.New()

	bad := -1
	_, err := svc.Update(context.Background(), orgID, SettingsUpdate{MaxDailyLimit: &bad}, "ops")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	s, err := svc.Get(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(orgID), s, "nothing was written")
}

func TestSettingsService_AuditFailureIsNotFatal(t *testing.T) {
	svc := NewSettingsService(newMemSettings(), &recordingAuditor{err: errors.New("audit down")}, nil)
	on := true

	s, err := svc.Update(context.Background(), uuid.New(), SettingsUpdate{AutoAcceptReferrals: &on}, "ops")
	require.NoError(t, err)
	assert.True(t, s.AutoAcceptReferrals)
}
