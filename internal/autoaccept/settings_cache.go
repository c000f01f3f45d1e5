package autoaccept

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// CachedSettings fronts a SettingsProvider with a short Redis TTL. Cache
// failures fall through to the underlying provider.
type CachedSettings struct {
	inner  SettingsProvider
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedSettings wraps inner. A ttl <= 0 disables caching.
func NewCachedSettings(inner SettingsProvider, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedSettings {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSettings{inner: inner, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedSettings) key(orgID uuid.UUID) string {
	return fmt.Sprintf("autoaccept:settings:%s", orgID)
}

// Get returns cached settings when fresh, otherwise loads and caches them.
func (c *CachedSettings) Get(ctx context.Context, orgID uuid.UUID) (Settings, error) {
	if c.ttl <= 0 || c.redis == nil {
		return c.inner.Get(ctx, orgID)
	}

	data, err := c.redis.Get(ctx, c.key(orgID)).Bytes()
	switch {
	case err == nil:
		var s Settings
		if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
			return s, nil
		}
		c.logger.Warn("discarding corrupt settings cache entry", "org_id", orgID)
	case err != redis.Nil:
		c.logger.Warn("settings cache read failed", "org_id", orgID, "error", err)
	}

	s, err := c.inner.Get(ctx, orgID)
	if err != nil {
		return Settings{}, err
	}
	if payload, err := json.Marshal(s); err == nil {
		if err := c.redis.Set(ctx, c.key(orgID), payload, c.ttl).Err(); err != nil {
			c.logger.Warn("settings cache write failed", "org_id", orgID, "error", err)
		}
	}
	return s, nil
}

// Update writes through and invalidates the cached copy.
func (c *CachedSettings) Update(ctx context.Context, s Settings) (Settings, error) {
	out, err := c.inner.Update(ctx, s)
	if err != nil {
		return Settings{}, err
	}
	if c.redis != nil {
		if err := c.redis.Del(ctx, c.key(s.OrgID)).Err(); err != nil {
			c.logger.Warn("settings cache invalidation failed", "org_id", s.OrgID, "error", err)
		}
	}
	return out, nil
}
