package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
)

// sqlTx implements storage.Tx on top of an open *sql.Tx. All methods
// run inside the same transaction, so the row lock taken by
// ActiveSubscriptionForUpdate is held until commit or rollback.
type sqlTx struct {
	tx *sql.Tx
}

// CompletePayment implements storage.Tx. The WHERE clause on status is
// the conditional update that makes concurrent duplicate deliveries
// lose cleanly: only one of them sees rowsAffected == 1.
func (t *sqlTx) CompletePayment(ctx context.Context, reference, provider, transactionID string, payload []byte) (bool, error) {
	const op = "repository.CompletePayment"

	query := `UPDATE payments
			  SET status = 'completed', provider = $2, transaction_id = $3,
			      paid_at = now(), provider_payload = $4, updated_at = now()
			  WHERE reference = $1 AND status = 'pending'`
	result, err := t.tx.ExecContext(ctx, query, reference, provider, transactionID, payload)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// ActiveSubscriptionForUpdate implements storage.Tx. FOR UPDATE blocks
// a concurrent reconciliation for the same school until this
// transaction finishes, so two near-simultaneous payments cannot both
// extend from the same stale end date.
func (t *sqlTx) ActiveSubscriptionForUpdate(ctx context.Context, schoolID string) (*models.Subscription, error) {
	const op = "repository.ActiveSubscriptionForUpdate"

	// FOR UPDATE locks nothing when the school has no active row, so two
	// first payments could both take the create branch. The advisory lock
	// serializes reconciliation per school until commit.
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, schoolID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE school_id = $1 AND status = 'active' AND end_date >= now()
			  ORDER BY end_date DESC
			  LIMIT 1
			  FOR UPDATE`
	sub, err := scanSubscription(t.tx.QueryRowContext(ctx, query, schoolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ExtendSubscription implements storage.Tx. The increment happens in
// SQL so the new end date is computed from the locked row, not from a
// value read earlier.
func (t *sqlTx) ExtendSubscription(ctx context.Context, id int64, days int) (time.Time, error) {
	const op = "repository.ExtendSubscription"

	query := `UPDATE subscriptions
			  SET end_date = end_date + make_interval(days => $2), updated_at = now()
			  WHERE id = $1
			  RETURNING end_date`
	var endDate time.Time
	if err := t.tx.QueryRowContext(ctx, query, id, days).Scan(&endDate); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return endDate, nil
}

// CreateSubscription implements storage.Tx.
func (t *sqlTx) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "repository.CreateSubscription"

	query := `INSERT INTO subscriptions (school_id, plan_name, plan_type, amount, currency,
			      status, start_date, end_date, max_students)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var newID int64
	err := t.tx.QueryRowContext(ctx, query,
		sub.SchoolID, sub.PlanName, sub.PlanType, sub.Amount, sub.Currency,
		sub.Status, sub.StartDate, sub.EndDate, sub.MaxStudents).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// LinkPayment implements storage.Tx.
func (t *sqlTx) LinkPayment(ctx context.Context, paymentID, subscriptionID int64) error {
	const op = "repository.LinkPayment"

	query := `UPDATE payments
			  SET subscription_id = $2, reconciled_at = now(), updated_at = now()
			  WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, paymentID, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("%s: payment %d not found", op, paymentID)
	}
	return nil
}
