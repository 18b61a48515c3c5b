// Package webhook implements the ingestion of payment-provider
// notifications: provider detection, signature verification, payload
// normalization and the transactional hand-off to the reconciler.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/metrics"
	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/provider"
	"github.com/swadiqdev/school-billing/internal/services/subscription"
	"github.com/swadiqdev/school-billing/internal/storage"
)

// Errors of the ingestion flow. Provider errors are re-exported so
// handlers only need this package for classification.
var (
	ErrUnknownProvider  = provider.ErrUnknownProvider
	ErrInvalidSignature = provider.ErrInvalidSignature
	ErrBadPayload       = provider.ErrBadPayload
	// ErrPaymentNotFound means no payment carries the event's merchant
	// reference.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrAmountMismatch means the confirmed amount or currency differs
	// from the recorded payment. The payment is never completed in that
	// case, regardless of provider trust.
	ErrAmountMismatch = errors.New("amount mismatch")
)

// Outcomes of a processed delivery.
const (
	OutcomeProcessed        = "processed"
	OutcomeIgnored          = "ignored"
	OutcomeAlreadyProcessed = "already_processed"
)

// Result is what a successful ProcessEvent returns.
type Result struct {
	Outcome      string               `json:"result"`
	Provider     string               `json:"provider,omitempty"`
	Reference    string               `json:"reference,omitempty"`
	Subscription *models.Subscription `json:"-"`
}

// Store is the persistence surface the ingestor needs.
type Store interface {
	PaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	storage.TxRunner
}

// Reconciler converts a completed payment into a subscription effect
// inside the open transaction.
type Reconciler interface {
	Reconcile(ctx context.Context, tx storage.Tx, p *models.Payment) (*models.Subscription, error)
}

// Cache invalidates cached subscription reads after reconciliation.
type Cache interface {
	Invalidate(key string) error
}

// Service is the webhook ingestor.
type Service struct {
	store      Store
	reconciler Reconciler
	cache      Cache
	providers  []provider.Provider
	skipVerify bool
	log        *slog.Logger
}

// New creates the ingestor. providers is the ordered detection list;
// skipVerify must only ever be true outside production (the config
// layer enforces that).
func New(store Store, reconciler Reconciler, cache Cache, providers []provider.Provider, skipVerify bool, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		reconciler: reconciler,
		cache:      cache,
		providers:  providers,
		skipVerify: skipVerify,
		log:        log,
	}
}

// errLostRace is internal to the tx closure: a concurrent delivery won
// the conditional update first.
var errLostRace = errors.New("payment no longer pending")

// ProcessEvent runs the full ingestion flow for one delivery. The
// returned error, when non-nil, is one of the taxonomy errors above or
// a wrapped storage failure; no state is mutated on any error path.
func (s *Service) ProcessEvent(ctx context.Context, header http.Header, body []byte) (*Result, error) {
	const op = "webhook.ProcessEvent"
	log := s.log.With(slog.String("op", op))

	prov, err := provider.Detect(s.providers, header, body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "unknown_provider").Inc()
		log.Warn("unrecognized webhook delivery")
		return nil, err
	}
	log = log.With(slog.String("provider", prov.Name()))

	if s.skipVerify {
		log.Warn("signature verification skipped (non-production mode)")
	} else if err := prov.Verify(header, body); err != nil {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), "invalid_signature").Inc()
		log.Error("signature verification failed", sl.Err(err))
		return nil, err
	}

	ev, err := prov.Parse(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), "bad_payload").Inc()
		log.Error("failed to parse payload", sl.Err(err))
		return nil, err
	}
	log = log.With(slog.String("event", ev.Type), slog.String("reference", ev.Reference))

	if !ev.Success {
		// Acknowledge benign events so the provider stops retrying.
		metrics.WebhookEvents.WithLabelValues(prov.Name(), OutcomeIgnored).Inc()
		log.Info("ignored webhook event")
		return &Result{Outcome: OutcomeIgnored, Provider: prov.Name(), Reference: ev.Reference}, nil
	}

	payment, err := s.store.PaymentByReference(ctx, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), "payment_not_found").Inc()
		log.Error("no payment for merchant reference")
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if payment.Status != models.PaymentStatusPending {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), OutcomeAlreadyProcessed).Inc()
		log.Info("payment already processed", slog.String("status", string(payment.Status)))
		return &Result{Outcome: OutcomeAlreadyProcessed, Provider: prov.Name(), Reference: ev.Reference}, nil
	}

	if ev.Amount != payment.Amount || ev.Currency != payment.Currency {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), "amount_mismatch").Inc()
		log.Error("confirmed amount differs from recorded payment",
			slog.Float64("confirmed", ev.Amount),
			slog.Float64("recorded", payment.Amount),
			slog.String("confirmed_currency", ev.Currency),
			slog.String("recorded_currency", payment.Currency))
		return nil, ErrAmountMismatch
	}

	var sub *models.Subscription
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		ok, err := tx.CompletePayment(ctx, payment.Reference, prov.Name(), ev.TransactionID, ev.Raw)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		sub, err = s.reconciler.Reconcile(ctx, tx, payment)
		return err
	})
	if errors.Is(err, errLostRace) {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), OutcomeAlreadyProcessed).Inc()
		log.Info("concurrent delivery already completed this payment")
		return &Result{Outcome: OutcomeAlreadyProcessed, Provider: prov.Name(), Reference: ev.Reference}, nil
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(prov.Name(), "reconciliation_failure").Inc()
		log.Error("reconciliation failed, transaction rolled back", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		cacheKey := subscription.CacheKey(payment.SchoolID)
		if err := s.cache.Invalidate(cacheKey); err != nil {
			log.Warn("failed to invalidate subscription cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}

	metrics.WebhookEvents.WithLabelValues(prov.Name(), OutcomeProcessed).Inc()
	if sub != nil {
		log.Info("payment reconciled",
			slog.Int64("subscription_id", sub.ID),
			slog.Time("end_date", sub.EndDate))
	}
	return &Result{
		Outcome:      OutcomeProcessed,
		Provider:     prov.Name(),
		Reference:    ev.Reference,
		Subscription: sub,
	}, nil
}
