package autoaccept

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSettings struct {
	*memSettings
	gets int
}

func (c *countingSettings) Get(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	c.gets++
	return c.memSettings.Get(ctx, orgID)
}

func setupCache(t *testing.T, ttl time.Duration) (*CachedSettings, *countingSettings, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	inner := &countingSettings{memSettings: newMemSettings()}
	return NewCachedSettings(inner, client, ttl, nil), inner, mr
}

func TestCachedSettings_HitAvoidsInner(t *testing.T) {
	cache, inner, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	orgID := uuid.New()
	_, _ = inner.Update(ctx, Settings{OrgID: orgID, AutoAcceptReferrals: true})

	for i := 0; i < 3; i++ {
		s, err := cache.Get(ctx, orgID)
		require.NoError(t, err)
		assert.True(t, s.AutoAcceptReferrals)
	}
	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, time.Minute, mr.TTL(cache.key(orgID)))
}

func TestCachedSettings_UpdateInvalidates(t *testing.T) {
	cache, inner, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	orgID := uuid.New()

	_, err := cache.Get(ctx, orgID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.key(orgID)))

	_, err = cache.Update(ctx, Settings{OrgID: orgID, MaxDailyLimit: 4})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.key(orgID)))

	s, err := cache.Get(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 4, s.MaxDailyLimit)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedSettings_CorruptEntryFallsThrough(t *testing.T) {
	cache, inner, mr := setupCache(t, time.Minute)
	orgID := uuid.New()
	require.NoError(t, mr.Set(cache.key(orgID), "{not json"))

	s, err := cache.Get(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, s.OrgID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedSettings_ZeroTTLBypasses(t *testing.T) {
	cache, inner, mr := setupCache(t, 0)
	orgID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := cache.Get(context.Background(), orgID)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.gets)
	assert.False(t, mr.Exists(cache.key(orgID)))
}
