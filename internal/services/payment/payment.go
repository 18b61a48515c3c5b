// Package payment contains the business logic for initiating plan
// purchases and querying payment history.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/swadiqdev/school-billing/internal/models"
)

// Repository is the storage surface for payments.
type Repository interface {
	// CreatePayment inserts a new pending payment and returns its id.
	CreatePayment(ctx context.Context, p models.Payment) (int64, error)
	// ListPayments returns the school's payment history with pagination.
	ListPayments(ctx context.Context, schoolID string, limit, offset int) ([]*models.Payment, error)
	// ListUnreconciled returns completed payments with no subscription link.
	ListUnreconciled(ctx context.Context) ([]*models.Payment, error)
}

// Service implements payment initiation and queries.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New creates a payment service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// InitiatePurchase creates a pending payment for one of the catalog
// plans. The generated merchant reference is what the provider webhook
// later uses to find this payment; it is unique and never changes.
func (s *Service) InitiatePurchase(ctx context.Context, schoolID string, req models.DummyPurchase) (*models.Payment, error) {
	plan, ok := models.PlanByType(req.PlanType)
	if !ok {
		return nil, fmt.Errorf("unknown plan type: %s", req.PlanType)
	}

	p := models.Payment{
		Reference:    "SCH-" + uuid.NewString(),
		SchoolID:     schoolID,
		Amount:       plan.Amount,
		Currency:     plan.Currency,
		Status:       models.PaymentStatusPending,
		PlanName:     plan.Name,
		PlanType:     plan.Type,
		DurationDays: plan.DurationDays,
		MaxStudents:  plan.MaxStudents,
	}

	id, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id

	s.log.Info("initiated plan purchase",
		slog.String("school_id", schoolID),
		slog.String("reference", p.Reference),
		slog.String("plan", plan.Name))
	return &p, nil
}

// List returns the school's payment history.
func (s *Service) List(ctx context.Context, schoolID string, limit, offset int) ([]*models.Payment, error) {
	return s.repo.ListPayments(ctx, schoolID, limit, offset)
}

// ListUnreconciled is the reconciliation audit: completed payments that
// produced no subscription effect. Anything here means a lost
// reconciliation and needs operator attention.
func (s *Service) ListUnreconciled(ctx context.Context) ([]*models.Payment, error) {
	return s.repo.ListUnreconciled(ctx)
}
