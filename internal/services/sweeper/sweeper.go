// Package sweeper runs the periodic expiry sweep: subscriptions past
// their end date are marked expired, and subscriptions about to expire
// are announced on the notifications exchange for external delivery
// workers. The sweep is advisory; the read path evaluates expiry itself
// and never depends on it.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/metrics"
	"github.com/swadiqdev/school-billing/internal/models"
)

// Repository is the storage surface for the sweep.
type Repository interface {
	// ExpireOverdue marks active/trial subscriptions past their end date
	// as expired and returns the number of rows touched.
	ExpireOverdue(ctx context.Context) (int64, error)
	// FindExpiringWithin returns active subscriptions ending inside the window.
	FindExpiringWithin(ctx context.Context, within time.Duration) ([]*models.SubscriptionInfo, error)
}

// Publisher publishes expiry events for notification workers.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service is the expiry sweeper.
type Service struct {
	repo           Repository
	publisher      Publisher
	expiringWithin time.Duration
	log            *slog.Logger
}

// New creates a sweeper.
func New(repo Repository, publisher Publisher, expiringWithin time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		publisher:      publisher,
		expiringWithin: expiringWithin,
		log:            log,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Errors are logged, never fatal: the next tick
// retries.
func (s *Service) Sweep(ctx context.Context) {
	const op = "sweeper.Sweep"
	log := s.log.With(slog.String("op", op))

	expired, err := s.repo.ExpireOverdue(ctx)
	if err != nil {
		log.Error("failed to expire overdue subscriptions", sl.Err(err))
	} else if expired > 0 {
		metrics.SubscriptionsExpired.Add(float64(expired))
		log.Info("marked subscriptions expired", slog.Int64("count", expired))
	}

	expiring, err := s.repo.FindExpiringWithin(ctx, s.expiringWithin)
	if err != nil {
		log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	if len(expiring) == 0 {
		return
	}
	log.Info("found expiring subscriptions", slog.Int("count", len(expiring)))
	for _, info := range expiring {
		if err := s.publisher.Publish("subscription.expiring", info); err != nil {
			log.Error("failed to publish expiry event", sl.Err(err),
				slog.String("school_id", info.SchoolID))
		}
	}
}
