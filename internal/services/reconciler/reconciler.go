// Package reconciler converts one confirmed payment into the correct
// subscription state while preserving the invariant that a school has
// at most one active subscription.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
)

// Service implements the extend-or-create decision. It always runs
// inside the caller's transaction so the payment completion and the
// subscription effect commit or roll back together.
type Service struct {
	log *slog.Logger
	now func() time.Time
}

// New creates a reconciler.
func New(log *slog.Logger) *Service {
	return &Service{
		log: log,
		now: time.Now,
	}
}

// SetNow overrides the clock, for deterministic tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// Reconcile applies a completed payment to the school's subscription:
// extend the active one additively, or create a new one when none is
// active. A payment already linked to a subscription is a no-op
// success, so reconciling the same payment twice never double-extends.
func (s *Service) Reconcile(ctx context.Context, tx storage.Tx, p *models.Payment) (*models.Subscription, error) {
	const op = "reconciler.Reconcile"
	log := s.log.With(
		slog.String("op", op),
		slog.String("reference", p.Reference),
		slog.String("school_id", p.SchoolID),
	)

	if p.Reconciled() {
		log.Info("payment already reconciled, skipping",
			slog.Int64("subscription_id", *p.SubscriptionID))
		return nil, nil
	}

	active, err := tx.ActiveSubscriptionForUpdate(ctx, p.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var sub models.Subscription
	if active != nil {
		// Additive extension keeps the remaining time on early renewal.
		newEnd, err := tx.ExtendSubscription(ctx, active.ID, p.DurationDays)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub = *active
		sub.EndDate = newEnd
		log.Info("extended active subscription",
			slog.Int64("subscription_id", sub.ID),
			slog.Time("end_date", sub.EndDate))
	} else {
		now := s.now()
		sub = models.Subscription{
			SchoolID:    p.SchoolID,
			PlanName:    p.PlanName,
			PlanType:    p.PlanType,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Status:      models.SubscriptionStatusActive,
			StartDate:   now,
			EndDate:     now.AddDate(0, 0, p.DurationDays),
			MaxStudents: p.MaxStudents,
		}
		id, err := tx.CreateSubscription(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.ID = id
		log.Info("created new subscription",
			slog.Int64("subscription_id", sub.ID),
			slog.Time("end_date", sub.EndDate))
	}

	if err := tx.LinkPayment(ctx, p.ID, sub.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}
