package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/provider"
	"github.com/swadiqdev/school-billing/internal/services/reconciler"
	"github.com/swadiqdev/school-billing/internal/storage/memory"
)

const (
	flwSecretHash = "flw-secret"
	pagaKey       = "paga-key"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(fixedNow)
	rec := reconciler.New(newNoopLogger())
	rec.SetNow(fixedNow)
	providers := []provider.Provider{
		&provider.Flutterwave{SecretHash: flwSecretHash},
		&provider.Paga{HMACKey: pagaKey},
	}
	return New(store, rec, nil, providers, false, newNoopLogger()), store
}

func pendingPayment(reference string) models.Payment {
	return models.Payment{
		Reference:    reference,
		SchoolID:     "S1",
		Amount:       45000,
		Currency:     "NGN",
		Status:       models.PaymentStatusPending,
		PlanName:     "Pro",
		PlanType:     "pro",
		DurationDays: 30,
		MaxStudents:  1000,
	}
}

func flwHeaders() http.Header {
	h := http.Header{}
	h.Set(provider.FlutterwaveSignatureHeader, flwSecretHash)
	return h
}

func flwSuccessBody(reference string, amount float64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.completed","data":{"tx_ref":"%s","flw_ref":"FLW-1","amount":%g,"currency":"NGN","status":"successful"}}`,
		reference, amount))
}

func pagaHeaders(body []byte) http.Header {
	mac := hmac.New(sha256.New, []byte(pagaKey))
	mac.Write(body)
	h := http.Header{}
	h.Set(provider.PagaSignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	return h
}

func TestProcessEvent_SuccessCreatesSubscription(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	res, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, "flutterwave", res.Provider)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), res.Subscription.EndDate)

	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "FLW-1", *p.TransactionID)
	assert.NotNil(t, p.PaidAt)
	require.NotNil(t, p.SubscriptionID)
	assert.Equal(t, res.Subscription.ID, *p.SubscriptionID)
}

func TestProcessEvent_PagaSuccess(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX456"))

	body := []byte(`{"eventType":"SUCCESSFUL_PAYMENT","data":{"merchantReference":"TX456","transactionId":"PG-9","amount":45000,"currency":"NGN"}}`)
	res, err := svc.ProcessEvent(context.Background(), pagaHeaders(body), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, "paga", res.Provider)
}

func TestProcessEvent_IdempotentSecondDelivery(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	res, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
	require.NoError(t, err)
	require.NotNil(t, res.Subscription)
	firstEnd := res.Subscription.EndDate
	subID := res.Subscription.ID

	// Identical redelivery: no second extension.
	res2, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res2.Outcome)

	sub := store.Subscription(subID)
	require.NotNil(t, sub)
	assert.Equal(t, firstEnd, sub.EndDate)
	assert.Equal(t, 1, store.SubscriptionCount())
}

func TestProcessEvent_AmountMismatchNeverCompletes(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	_, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 44999))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, 0, store.SubscriptionCount())
}

func TestProcessEvent_CurrencyMismatch(t *testing.T) {
	svc, store := newService(t)
	p := pendingPayment("TX123")
	p.Currency = "USD"
	store.AddPayment(p)

	_, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestProcessEvent_PaymentNotFound(t *testing.T) {
	svc, store := newService(t)

	_, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TXNOPE", 45000))
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.Equal(t, 0, store.SubscriptionCount())
}

func TestProcessEvent_UnknownProviderIsNoop(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	_, err := svc.ProcessEvent(context.Background(), http.Header{}, []byte(`{"kind":"mystery","payload":{"ref":"TX123"}}`))
	assert.ErrorIs(t, err, ErrUnknownProvider)

	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, 0, store.SubscriptionCount())
}

func TestProcessEvent_InvalidSignatureNoMutation(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	h := http.Header{}
	h.Set(provider.FlutterwaveSignatureHeader, "wrong-hash")
	_, err := svc.ProcessEvent(context.Background(), h, flwSuccessBody("TX123", 45000))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestProcessEvent_SkipVerifyOutsideProd(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	rec := reconciler.New(newNoopLogger())
	rec.SetNow(fixedNow)
	providers := []provider.Provider{&provider.Flutterwave{SecretHash: flwSecretHash}}
	svc := New(store, rec, nil, providers, true, newNoopLogger())

	store.AddPayment(pendingPayment("TX123"))

	h := http.Header{}
	h.Set(provider.FlutterwaveSignatureHeader, "whatever")
	res, err := svc.ProcessEvent(context.Background(), h, flwSuccessBody("TX123", 45000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
}

func TestProcessEvent_BenignEventIgnored(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	body := []byte(`{"event":"charge.dispute.create","data":{"tx_ref":"TX123","amount":45000,"currency":"NGN","status":"pending"}}`)
	res, err := svc.ProcessEvent(context.Background(), flwHeaders(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestProcessEvent_ConcurrentDuplicateDelivery(t *testing.T) {
	svc, store := newService(t)
	store.AddPayment(pendingPayment("TX123"))

	const deliveries = 8
	results := make([]string, deliveries)
	errs := make([]error, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
			errs[i] = err
			if res != nil {
				results[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := 0; i < deliveries; i++ {
		require.NoError(t, errs[i])
		if results[i] == OutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, OutcomeAlreadyProcessed, results[i])
		}
	}
	assert.Equal(t, 1, processed, "exactly one delivery must win the conditional update")

	// Exactly one subscription, extended exactly once.
	assert.Equal(t, 1, store.SubscriptionCount())
	p, err := store.PaymentByReference(context.Background(), "TX123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.SubscriptionID)
	sub := store.Subscription(*p.SubscriptionID)
	require.NotNil(t, sub)
	assert.Equal(t, fixedNow().AddDate(0, 0, 30), sub.EndDate)
}

func TestProcessEvent_ConcurrentFirstPayments(t *testing.T) {
	svc, store := newService(t)

	// Two distinct pending payments for the same school, no subscription
	// yet. Delivered together, the second must extend what the first
	// created, never create a sibling active row.
	store.AddPayment(pendingPayment("TX-A"))
	store.AddPayment(pendingPayment("TX-B"))

	refs := []string{"TX-A", "TX-B"}
	errs := make([]error, len(refs))

	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			_, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody(ref, 45000))
			errs[i] = err
		}(i, ref)
	}
	wg.Wait()

	for i := range refs {
		require.NoError(t, errs[i])
	}

	assert.Equal(t, 1, store.SubscriptionCount(), "concurrent first payments must share one subscription")

	for _, ref := range refs {
		p, err := store.PaymentByReference(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, p.Status)
		require.NotNil(t, p.SubscriptionID)
		sub := store.Subscription(*p.SubscriptionID)
		require.NotNil(t, sub)
		assert.Equal(t, fixedNow().AddDate(0, 0, 60), sub.EndDate, "both durations must land on the same row")
	}
}

type spyCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *spyCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

func TestProcessEvent_InvalidatesSubscriptionCache(t *testing.T) {
	store := memory.NewStore()
	store.SetNow(fixedNow)
	rec := reconciler.New(newNoopLogger())
	rec.SetNow(fixedNow)
	cache := &spyCache{}
	providers := []provider.Provider{&provider.Flutterwave{SecretHash: flwSecretHash}}
	svc := New(store, rec, cache, providers, false, newNoopLogger())

	store.AddPayment(pendingPayment("TX123"))

	_, err := svc.ProcessEvent(context.Background(), flwHeaders(), flwSuccessBody("TX123", 45000))
	require.NoError(t, err)
	assert.Equal(t, []string{"subscription:school:S1"}, cache.keys)
}
