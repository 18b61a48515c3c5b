// Package subscription contains the read-side business logic for
// subscriptions, including read-time expiry evaluation and caching.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
)

// Repository is the storage surface for subscription reads.
type Repository interface {
	// CurrentSubscription returns the school's most recent subscription.
	CurrentSubscription(ctx context.Context, schoolID string) (*models.Subscription, error)
	// ListSubscriptions returns the school's subscription history.
	ListSubscriptions(ctx context.Context, schoolID string, limit, offset int) ([]*models.Subscription, error)
}

// Cache describes the cache-aside operations.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service implements subscription queries.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New creates a subscription service.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// SetNow overrides the clock, for deterministic tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// CacheKey is the cache key for a school's current subscription. The
// webhook flow invalidates it after reconciliation.
func CacheKey(schoolID string) string {
	return fmt.Sprintf("subscription:school:%s", schoolID)
}

// Current returns the school's current subscription. Expiry is
// evaluated at read time: the reported status is expired whenever the
// end date has passed, even if the sweeper has not updated the row yet.
func (s *Service) Current(ctx context.Context, schoolID string) (*models.Subscription, error) {
	var result *models.Subscription
	cacheKey := CacheKey(schoolID)
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("cache read failed", slog.String("key", cacheKey), slog.Any("err", err))
	}
	if !found || result == nil {
		result, err = s.repo.CurrentSubscription(ctx, schoolID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
			s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), slog.Any("err", err))
		}
	}

	// Status is computed from the stored row, never cached.
	sub := *result
	sub.Status = sub.EffectiveStatus(s.now())
	return &sub, nil
}

// List returns the school's subscription history with read-time status
// evaluation applied to each row.
func (s *Service) List(ctx context.Context, schoolID string, limit, offset int) ([]*models.Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx, schoolID, limit, offset)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, sub := range subs {
		sub.Status = sub.EffectiveStatus(now)
	}
	return subs, nil
}
