package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
	"github.com/swadiqdev/school-billing/internal/storage/memory"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func proPayment() models.Payment {
	return models.Payment{
		Reference:    "TX123",
		SchoolID:     "S1",
		Amount:       45000,
		Currency:     "NGN",
		Status:       models.PaymentStatusCompleted,
		PlanName:     "Pro",
		PlanType:     "pro",
		DurationDays: 30,
		MaxStudents:  1000,
	}
}

func reconcileInTx(t *testing.T, store *memory.Store, svc *Service, p *models.Payment) (*models.Subscription, error) {
	t.Helper()
	var sub *models.Subscription
	var rerr error
	err := store.WithTx(context.Background(), func(tx storage.Tx) error {
		sub, rerr = svc.Reconcile(context.Background(), tx, p)
		return rerr
	})
	if rerr == nil {
		require.NoError(t, err)
	}
	return sub, rerr
}

func TestReconcile_FirstPaymentCreates(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	svc := New(newNoopLogger())
	svc.SetNow(fixedNow)

	p := store.AddPayment(proPayment())

	sub, err := reconcileInTx(t, store, svc, &p)
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.Equal(t, 1, store.SubscriptionCount())
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "S1", sub.SchoolID)
	assert.Equal(t, "Pro", sub.PlanName)
	assert.Equal(t, fixedNow(), sub.StartDate)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), sub.EndDate)
	assert.Equal(t, 1000, sub.MaxStudents)

	got, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	require.NotNil(t, got.SubscriptionID)
	assert.Equal(t, sub.ID, *got.SubscriptionID)
	assert.NotNil(t, got.ReconciledAt)
}

func TestReconcile_ExtensionIsAdditive(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	svc := New(newNoopLogger())
	svc.SetNow(fixedNow)

	// Active subscription with 10 days remaining.
	existing := store.AddSubscription(models.Subscription{
		SchoolID:  "S1",
		PlanName:  "Pro",
		PlanType:  "pro",
		Status:    models.SubscriptionStatusActive,
		StartDate: fixedNow().AddDate(0, 0, -20),
		EndDate:   fixedNow().AddDate(0, 0, 10),
	})
	p := store.AddPayment(proPayment())

	sub, err := reconcileInTx(t, store, svc, &p)
	require.NoError(t, err)
	require.NotNil(t, sub)

	// end_date = old end + 30 days, not now + 30 days.
	assert.Equal(t, existing.ID, sub.ID)
	assert.Equal(t, fixedNow().AddDate(0, 0, 40), sub.EndDate)
	assert.Equal(t, 1, store.SubscriptionCount())
}

func TestReconcile_ExpiredSubscriptionDoesNotExtend(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	svc := New(newNoopLogger())
	svc.SetNow(fixedNow)

	// Stored as active but already past its end date: a new row must be
	// created instead of extending the stale one.
	store.AddSubscription(models.Subscription{
		SchoolID:  "S1",
		PlanName:  "Pro",
		PlanType:  "pro",
		Status:    models.SubscriptionStatusActive,
		StartDate: fixedNow().AddDate(0, 0, -60),
		EndDate:   fixedNow().AddDate(0, 0, -30),
	})
	p := store.AddPayment(proPayment())

	sub, err := reconcileInTx(t, store, svc, &p)
	require.NoError(t, err)
	require.NotNil(t, sub)

	assert.Equal(t, 2, store.SubscriptionCount())
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), sub.EndDate)
}

func TestReconcile_AlreadyLinkedIsNoop(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	svc := New(newNoopLogger())
	svc.SetNow(fixedNow)

	existing := store.AddSubscription(models.Subscription{
		SchoolID: "S1",
		Status:   models.SubscriptionStatusActive,
		EndDate:  fixedNow().AddDate(0, 0, 10),
	})

	p := proPayment()
	p.SubscriptionID = &existing.ID
	seeded := store.AddPayment(p)

	sub, err := reconcileInTx(t, store, svc, &seeded)
	require.NoError(t, err)
	assert.Nil(t, sub)

	// endDate unchanged.
	got := store.Subscription(existing.ID)
	require.NotNil(t, got)
	assert.Equal(t, existing.EndDate, got.EndDate)
}

type failingTx struct {
	storage.Tx
}

func (f *failingTx) LinkPayment(context.Context, int64, int64) error {
	return errors.New("write failed")
}

func TestReconcile_LinkFailurePropagates(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	svc := New(newNoopLogger())
	svc.SetNow(fixedNow)

	p := store.AddPayment(proPayment())

	err := store.WithTx(context.Background(), func(tx storage.Tx) error {
		_, err := svc.Reconcile(context.Background(), &failingTx{Tx: tx}, &p)
		return err
	})
	require.Error(t, err)

	// Rolled back: nothing was published.
	assert.Equal(t, 0, store.SubscriptionCount())
	got, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Nil(t, got.SubscriptionID)
}
