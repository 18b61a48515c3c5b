// Package storage declares the transactional surface shared by the
// PostgreSQL repository and the in-memory store. Payment completion and
// subscription reconciliation must happen inside one transaction, so
// the mutation methods live on Tx rather than on the stores directly.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/swadiqdev/school-billing/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Tx is the only mutation surface for the webhook/reconciliation flow.
// Implementations guarantee that CompletePayment is conditional on the
// current status and that ActiveSubscriptionForUpdate holds the row
// until the transaction ends.
type Tx interface {
	// CompletePayment transitions the payment with this reference from
	// pending to completed, recording provider, transaction id, paid-at
	// and the raw provider payload for audit. It returns false when the
	// payment was not pending, which is how a concurrent duplicate
	// delivery loses the race.
	CompletePayment(ctx context.Context, reference, provider, transactionID string, payload []byte) (bool, error)

	// ActiveSubscriptionForUpdate returns the school's active
	// subscription (status=active, end_date >= now) locked for the rest
	// of the transaction, or nil when there is none.
	ActiveSubscriptionForUpdate(ctx context.Context, schoolID string) (*models.Subscription, error)

	// ExtendSubscription adds days to the subscription's end date and
	// returns the new end date. The extension is additive, never a
	// reset from today.
	ExtendSubscription(ctx context.Context, id int64, days int) (time.Time, error)

	// CreateSubscription inserts a new subscription row and returns its id.
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)

	// LinkPayment records on the payment which subscription its
	// reconciliation produced, stamping reconciled_at.
	LinkPayment(ctx context.Context, paymentID, subscriptionID int64) error
}

// TxRunner runs a function inside a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise, so a failed
// reconciliation also reverts the payment completion.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
