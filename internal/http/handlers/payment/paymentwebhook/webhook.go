// Package paymentwebhook exposes the payment-provider webhook endpoint:
// POST deliveries are handed to the ingestion service, GET is the
// provider handshake.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/swadiqdev/school-billing/internal/http/response"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/services/webhook"
)

// Service runs the ingestion flow for one webhook delivery.
type Service interface {
	ProcessEvent(ctx context.Context, header http.Header, body []byte) (*webhook.Result, error)
}

// Handler serves the webhook endpoint.
type Handler struct {
	log         *slog.Logger
	service     Service
	verifyToken string // handshake token configured at the provider
}

// New creates a webhook handler.
func New(log *slog.Logger, service Service, verifyToken string) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		verifyToken: verifyToken,
	}
}

// ServeHTTP godoc
// @Summary Receive a payment-provider webhook
// @Description Verifies and processes a payment notification from Flutterwave or Paga
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} webhook.Result "Processed, ignored or already processed"
// @Failure 400 {object} response.ErrorResponse "Unknown provider, malformed payload or amount mismatch"
// @Failure 401 {object} response.ErrorResponse "Invalid signature"
// @Failure 404 {object} response.ErrorResponse "No payment for the merchant reference"
// @Failure 500 {object} response.ErrorResponse "Reconciliation failure"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read body"))
		return
	}
	defer r.Body.Close()

	result, err := h.service.ProcessEvent(r.Context(), r.Header, body)
	if err != nil {
		w.WriteHeader(statusFor(err))
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	render.JSON(w, r, result)
}

// statusFor maps the ingestion error taxonomy to HTTP status codes.
// Anything outside the taxonomy is a storage or reconciliation failure
// and answers 500 so the provider retries.
func statusFor(err error) int {
	switch {
	case errors.Is(err, webhook.ErrUnknownProvider),
		errors.Is(err, webhook.ErrBadPayload),
		errors.Is(err, webhook.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrPaymentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Handshake godoc
// @Summary Webhook endpoint verification
// @Description Answers the provider's subscribe handshake by echoing hub.challenge
// @Tags Payments
// @Produce  plain
// @Param hub.mode query string true "Must be subscribe"
// @Param hub.verify_token query string true "Token configured at the provider"
// @Param hub.challenge query string true "Opaque challenge to echo back"
// @Success 200 {string} string "The challenge"
// @Failure 403 {object} response.ErrorResponse "Mode or token mismatch"
// @Router /payments/webhook [get]
func (h *Handler) Handshake(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook.handshake"
	log := h.log.With(slog.String("op", op))

	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		log.Warn("webhook handshake rejected", slog.String("mode", mode))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("verification failed"))
		return
	}

	log.Info("webhook handshake verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}
