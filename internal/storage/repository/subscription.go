package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
)

const subscriptionColumns = `id, school_id, plan_name, plan_type, amount, currency,
	status, start_date, end_date, max_students, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.ID, &sub.SchoolID, &sub.PlanName, &sub.PlanType, &sub.Amount, &sub.Currency,
		&sub.Status, &sub.StartDate, &sub.EndDate, &sub.MaxStudents, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CurrentSubscription returns the school's most recent subscription.
// The stored status is returned as-is; callers evaluate expiry at read
// time via EffectiveStatus.
func (s *Storage) CurrentSubscription(ctx context.Context, schoolID string) (*models.Subscription, error) {
	const op = "repository.CurrentSubscription"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE school_id = $1
			  ORDER BY end_date DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, schoolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListSubscriptions returns the school's subscription history.
func (s *Storage) ListSubscriptions(ctx context.Context, schoolID string, limit, offset int) ([]*models.Subscription, error) {
	const op = "repository.ListSubscriptions"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE school_id = $1
			  ORDER BY end_date DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, schoolID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExpireOverdue marks active and trial subscriptions whose end date has
// passed as expired, returning the number of rows touched.
func (s *Storage) ExpireOverdue(ctx context.Context) (int64, error) {
	const op = "repository.ExpireOverdue"

	query := `UPDATE subscriptions
			  SET status = 'expired', updated_at = now()
			  WHERE status IN ('active', 'trial') AND end_date < now()`
	result, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected, nil
}

// FindExpiringWithin returns active subscriptions ending inside the
// window, for expiry notifications.
func (s *Storage) FindExpiringWithin(ctx context.Context, within time.Duration) ([]*models.SubscriptionInfo, error) {
	const op = "repository.FindExpiringWithin"

	query := `SELECT school_id, plan_name, end_date
			  FROM subscriptions
			  WHERE status = 'active'
			    AND end_date >= now()
			    AND end_date < now() + make_interval(secs => $1)`
	rows, err := s.DB.QueryContext(ctx, query, within.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.SubscriptionInfo
	for rows.Next() {
		var info models.SubscriptionInfo
		if err := rows.Scan(&info.SchoolID, &info.PlanName, &info.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
