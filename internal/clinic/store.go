package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store provides persistence for clinic business hours.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new clinic hours store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(orgID string) string {
	return fmt.Sprintf("clinic:hours:%s", orgID)
}

// Get retrieves clinic hours. An organization with nothing saved gets
// DefaultHours, which is always open.
func (s *Store) Get(ctx context.Context, orgID string) (*Hours, error) {
	data, err := s.redis.Get(ctx, s.key(orgID)).Bytes()
	if err == redis.Nil {
		return DefaultHours(orgID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get hours: %w", err)
	}

	var hours Hours
	if err := json.Unmarshal(data, &hours); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal hours: %w", err)
	}
	return &hours, nil
}

// Set saves clinic hours.
func (s *Store) Set(ctx context.Context, hours *Hours) error {
	data, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("clinic: marshal hours: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(hours.OrgID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set hours: %w", err)
	}
	return nil
}

// IsOpenAt loads the organization's hours and checks t against them.
func (s *Store) IsOpenAt(ctx context.Context, orgID string, t time.Time) (bool, error) {
	hours, err := s.Get(ctx, orgID)
	if err != nil {
		return false, err
	}
	return hours.IsOpenAt(t), nil
}

// LocalDate returns the calendar date of t in the organization's timezone.
func (s *Store) LocalDate(ctx context.Context, orgID string, t time.Time) (time.Time, error) {
	hours, err := s.Get(ctx, orgID)
	if err != nil {
		return time.Time{}, err
	}
	return hours.LocalDate(t), nil
}
