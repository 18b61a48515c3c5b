package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
)

const paymentColumns = `id, reference, school_id, amount, currency, status,
	plan_name, plan_type, duration_days, max_students,
	provider, transaction_id, paid_at, subscription_id, reconciled_at, created_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	var provider sql.NullString
	err := row.Scan(&p.ID, &p.Reference, &p.SchoolID, &p.Amount, &p.Currency, &p.Status,
		&p.PlanName, &p.PlanType, &p.DurationDays, &p.MaxStudents,
		&provider, &p.TransactionID, &p.PaidAt, &p.SubscriptionID, &p.ReconciledAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Provider = provider.String
	return &p, nil
}

// CreatePayment inserts a new pending payment and returns its id.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (int64, error) {
	const op = "repository.CreatePayment"

	query := `INSERT INTO payments (reference, school_id, amount, currency, status,
			      plan_name, plan_type, duration_days, max_students)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		p.Reference, p.SchoolID, p.Amount, p.Currency, p.Status,
		p.PlanName, p.PlanType, p.DurationDays, p.MaxStudents).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// PaymentByReference returns the payment with this merchant reference.
func (s *Storage) PaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	const op = "repository.PaymentByReference"

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPayments returns the school's payment history, newest first.
func (s *Storage) ListPayments(ctx context.Context, schoolID string, limit, offset int) ([]*models.Payment, error) {
	const op = "repository.ListPayments"

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE school_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, schoolID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUnreconciled returns completed payments with no linked
// subscription. A non-empty result means a reconciliation was lost and
// needs operator attention.
func (s *Storage) ListUnreconciled(ctx context.Context) ([]*models.Payment, error) {
	const op = "repository.ListUnreconciled"

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE status = 'completed' AND subscription_id IS NULL
			  ORDER BY paid_at`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
