package paymentwebhook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentwebhook"
	"github.com/swadiqdev/school-billing/internal/services/webhook"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ProcessEvent(ctx context.Context, header http.Header, body []byte) (*webhook.Result, error) {
	args := m.Called(ctx, header, body)
	res, _ := args.Get(0).(*webhook.Result)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		result     *webhook.Result
		err        error
		wantStatus int
	}{
		{
			name:       "processed",
			result:     &webhook.Result{Outcome: webhook.OutcomeProcessed, Provider: "flutterwave", Reference: "SCH-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "ignored event",
			result:     &webhook.Result{Outcome: webhook.OutcomeIgnored, Provider: "paga"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "already processed",
			result:     &webhook.Result{Outcome: webhook.OutcomeAlreadyProcessed, Provider: "flutterwave"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown provider",
			err:        webhook.ErrUnknownProvider,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad payload",
			err:        webhook.ErrBadPayload,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "amount mismatch",
			err:        webhook.ErrAmountMismatch,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid signature",
			err:        webhook.ErrInvalidSignature,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "payment not found",
			err:        webhook.ErrPaymentNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "reconciliation failure",
			err:        errors.New("storage: connection reset"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("ProcessEvent", mock.Anything, mock.Anything, mock.Anything).
				Return(tt.result, tt.err).Once()

			h := paymentwebhook.New(newNoopLogger(), svc, "verify-token")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook",
				strings.NewReader(`{"event":"charge.completed"}`))
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.result != nil {
				assert.Contains(t, rec.Body.String(), tt.result.Outcome)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandshake(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid handshake",
			query:      "hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=challenge-123",
			wantStatus: http.StatusOK,
			wantBody:   "challenge-123",
		},
		{
			name:       "wrong token",
			query:      "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-123",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "wrong mode",
			query:      "hub.mode=unsubscribe&hub.verify_token=verify-token&hub.challenge=challenge-123",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing parameters",
			query:      "",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := paymentwebhook.New(newNoopLogger(), new(ServiceMock), "verify-token")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/webhook?"+tt.query, nil)
			rec := httptest.NewRecorder()

			h.Handshake(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}
