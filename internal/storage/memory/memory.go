// Package memory is an in-memory store implementing the same
// transactional surface as the PostgreSQL repository. It backs the
// service unit tests and the concurrent-delivery property tests: the
// store mutex plays the role of the row locks, and transactions work on
// copies that are only published on commit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
)

// Store holds payments keyed by merchant reference and subscriptions
// keyed by id.
type Store struct {
	mu            sync.Mutex
	payments      map[string]*models.Payment
	subscriptions map[int64]*models.Subscription
	nextPaymentID int64
	nextSubID     int64
	now           func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		payments:      make(map[string]*models.Payment),
		subscriptions: make(map[int64]*models.Subscription),
		now:           time.Now,
	}
}

// SetNow overrides the clock, for deterministic tests.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// AddPayment seeds a payment, assigning an id, and returns a copy.
func (s *Store) AddPayment(p models.Payment) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	cp := p
	s.payments[p.Reference] = &cp
	return p
}

// AddSubscription seeds a subscription, assigning an id, and returns a copy.
func (s *Store) AddSubscription(sub models.Subscription) models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	sub.ID = s.nextSubID
	cp := sub
	s.subscriptions[sub.ID] = &cp
	return sub
}

// PaymentByReference returns a copy of the payment with this reference.
func (s *Store) PaymentByReference(_ context.Context, reference string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[reference]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Subscription returns a copy of the subscription with this id, or nil.
func (s *Store) Subscription(id int64) *models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return nil
	}
	cp := *sub
	return &cp
}

// SubscriptionCount returns the number of subscription rows.
func (s *Store) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

// WithTx implements storage.TxRunner. The store lock is held for the
// whole transaction, which serializes transactions the way row locks
// do in PostgreSQL; mutations land on copies and are published only on
// commit, so a failed fn leaves the store untouched.
func (s *Store) WithTx(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		now:           s.now,
		payments:      make(map[string]*models.Payment, len(s.payments)),
		subscriptions: make(map[int64]*models.Subscription, len(s.subscriptions)),
		nextSubID:     s.nextSubID,
	}
	for ref, p := range s.payments {
		cp := *p
		tx.payments[ref] = &cp
	}
	for id, sub := range s.subscriptions {
		cp := *sub
		tx.subscriptions[id] = &cp
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.payments = tx.payments
	s.subscriptions = tx.subscriptions
	s.nextSubID = tx.nextSubID
	return nil
}

type memTx struct {
	now           func() time.Time
	payments      map[string]*models.Payment
	subscriptions map[int64]*models.Subscription
	nextSubID     int64
}

// CompletePayment implements storage.Tx.
func (t *memTx) CompletePayment(_ context.Context, reference, provider, transactionID string, _ []byte) (bool, error) {
	p, ok := t.payments[reference]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Status != models.PaymentStatusPending {
		return false, nil
	}
	now := t.now()
	p.Status = models.PaymentStatusCompleted
	p.Provider = provider
	p.TransactionID = &transactionID
	p.PaidAt = &now
	return true, nil
}

// ActiveSubscriptionForUpdate implements storage.Tx.
func (t *memTx) ActiveSubscriptionForUpdate(_ context.Context, schoolID string) (*models.Subscription, error) {
	now := t.now()
	var active *models.Subscription
	for _, sub := range t.subscriptions {
		if sub.SchoolID != schoolID || sub.Status != models.SubscriptionStatusActive {
			continue
		}
		if sub.EndDate.Before(now) {
			continue
		}
		if active == nil || sub.EndDate.After(active.EndDate) {
			active = sub
		}
	}
	if active == nil {
		return nil, nil
	}
	cp := *active
	return &cp, nil
}

// ExtendSubscription implements storage.Tx.
func (t *memTx) ExtendSubscription(_ context.Context, id int64, days int) (time.Time, error) {
	sub, ok := t.subscriptions[id]
	if !ok {
		return time.Time{}, fmt.Errorf("subscription %d: %w", id, storage.ErrNotFound)
	}
	sub.EndDate = sub.EndDate.AddDate(0, 0, days)
	return sub.EndDate, nil
}

// CreateSubscription implements storage.Tx.
func (t *memTx) CreateSubscription(_ context.Context, sub models.Subscription) (int64, error) {
	t.nextSubID++
	sub.ID = t.nextSubID
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = t.now()
	}
	cp := sub
	t.subscriptions[sub.ID] = &cp
	return sub.ID, nil
}

// LinkPayment implements storage.Tx.
func (t *memTx) LinkPayment(_ context.Context, paymentID, subscriptionID int64) error {
	for _, p := range t.payments {
		if p.ID == paymentID {
			now := t.now()
			p.SubscriptionID = &subscriptionID
			p.ReconciledAt = &now
			return nil
		}
	}
	return fmt.Errorf("payment %d: %w", paymentID, storage.ErrNotFound)
}
