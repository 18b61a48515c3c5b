package models

import "time"

// SubscriptionStatus is the stored state of a subscription.
type SubscriptionStatus string

const (
	// SubscriptionStatusTrial is the state created at school registration.
	SubscriptionStatusTrial SubscriptionStatus = "trial"
	// SubscriptionStatusActive is a paid, running subscription.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusExpired is set by the sweeper; the read path also
	// reports it whenever end_date has passed, regardless of the stored value.
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	// SubscriptionStatusCancelled is set by an administrative action.
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the billing state of one school. At most one row per
// school is active (status=active and end_date >= now) at any time.
type Subscription struct {
	ID          int64              `json:"id"`
	SchoolID    string             `json:"school_id"`
	PlanName    string             `json:"plan_name"`
	PlanType    string             `json:"plan_type"`
	Amount      float64            `json:"amount"`
	Currency    string             `json:"currency"`
	Status      SubscriptionStatus `json:"status"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	MaxStudents int                `json:"max_students"`
	CreatedAt   time.Time          `json:"created_at"`
}

// EffectiveStatus evaluates expiry at read time: an active or trial
// subscription whose end date has passed is reported as expired even if
// the sweeper has not touched the row yet.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if (s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrial) && s.EndDate.Before(now) {
		return SubscriptionStatusExpired
	}
	return s.Status
}

// SubscriptionInfo is the message published for subscriptions that are
// about to expire; notification workers consume it from the queue.
type SubscriptionInfo struct {
	SchoolID string    `json:"school_id"`
	PlanName string    `json:"plan_name"`
	EndDate  time.Time `json:"end_date"`
}
