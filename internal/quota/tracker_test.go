package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-decision-core/internal/clinic"
)

func TestTracker_BusinessHoursAndToday(t *testing.T) {
	client, _ := setupTestRedis(t)
	hours := clinic.NewStore(client)
	tracker := NewTracker(NewRedisCounter(client), hours)
	ctx := context.Background()
	orgID := uuid.New()
	weekday := &clinic.DayHours{Open: "09:00", Close: "18:00"}
	require.NoError(t, hours.Set(ctx, &clinic.Hours{
		OrgID:    orgID.String(),
		Timezone: "America/New_York",
		BusinessHours: clinic.BusinessHours{
			Monday: weekday, Tuesday: weekday, Wednesday: weekday, Thursday: weekday, Friday: weekday,
		},
	}))

	// Monday 15:00 UTC is 10:00 in New York.
	open, err := tracker.IsWithinBusinessHours(ctx, orgID, time.Date(2025, 12, 8, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open)

	// No Saturday hours were saved.
	open, err = tracker.IsWithinBusinessHours(ctx, orgID, time.Date(2025, 12, 13, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, open)

	today, err := tracker.Today(ctx, orgID, time.Date(2025, 12, 9, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC), today)
}

func TestTracker_UnconfiguredOrgIsAlwaysOpenOnUTCDay(t *testing.T) {
	client, _ := setupTestRedis(t)
	tracker := NewTracker(NewRedisCounter(client), clinic.NewStore(client))
	ctx := context.Background()
	orgID := uuid.New()

	open, err := tracker.IsWithinBusinessHours(ctx, orgID, time.Date(2026, 1, 31, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, open, "saturday is open when no hours are saved")

	today, err := tracker.Today(ctx, orgID, time.Date(2026, 2, 3, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), today)
}

func TestTracker_NormalizesDay(t *testing.T) {
	client, _ := setupTestRedis(t)
	tracker := NewTracker(NewRedisCounter(client), clinic.NewStore(client))
	ctx := context.Background()
	orgID := uuid.New()

	morning := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 2, 1, 20, 30, 0, 0, time.UTC)

	_, err := tracker.IncrementAndGet(ctx, orgID, "appointment", morning)
	require.NoError(t, err)
	n, err := tracker.IncrementAndGet(ctx, orgID, "appointment", evening)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, tracker.Release(ctx, orgID, "appointment", evening))
	current, err := tracker.Current(ctx, orgID, "appointment", morning)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

type failingHours struct{}

func (failingHours) IsOpenAt(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("redis down")
}

func (failingHours) LocalDate(context.Context, string, time.Time) (time.Time, error) {
	return time.Time{}, errors.New("redis down")
}

func TestTracker_PropagatesHoursErrors(t *testing.T) {
	client, _ := setupTestRedis(t)
	tracker := NewTracker(NewRedisCounter(client), failingHours{})

	_, err := tracker.IsWithinBusinessHours(context.Background(), uuid.New(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota: business hours")

	_, err = tracker.Today(context.Background(), uuid.New(), time.Now())
	require.Error(t, err)
}
