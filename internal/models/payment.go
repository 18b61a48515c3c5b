// Package models contains the domain structures shared between the
// storage layer, the services and the HTTP handlers: payments,
// subscriptions and the plan catalog.
package models

import "time"

// PaymentStatus is the lifecycle state of a payment. A payment moves
// pending -> completed or pending -> failed, never back.
type PaymentStatus string

const (
	// PaymentStatusPending is the state of a payment between initiation
	// and provider confirmation.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted is set exactly once, by the webhook flow.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed is a terminal state for declined payments.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment is a single plan purchase by a school. Reference is the
// merchant reference generated by us; TransactionID is assigned by the
// payment provider once the payment is confirmed.
//
// SubscriptionID and ReconciledAt are set by the reconciler and double
// as the idempotency marker: a payment already linked to a subscription
// is never reconciled again.
type Payment struct {
	ID            int64         `json:"id"`
	Reference     string        `json:"reference"`
	SchoolID      string        `json:"school_id"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	PlanName      string        `json:"plan_name"`
	PlanType      string        `json:"plan_type"`
	DurationDays  int           `json:"duration_days"`
	MaxStudents   int           `json:"max_students"`
	Provider      string        `json:"provider,omitempty"`
	TransactionID *string       `json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	SubscriptionID *int64     `json:"subscription_id,omitempty"`
	ReconciledAt   *time.Time `json:"reconciled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Reconciled reports whether this payment has already been converted
// into a subscription effect.
func (p *Payment) Reconciled() bool {
	return p.SubscriptionID != nil
}

// DummyPurchase is the JSON request body for initiating a plan
// purchase. Only the plan type is taken from the client; amount,
// currency and features come from the plan catalog.
type DummyPurchase struct {
	PlanType string `json:"plan_type" validate:"required"`
}
