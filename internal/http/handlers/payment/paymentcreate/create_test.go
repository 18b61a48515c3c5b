package paymentcreate_test

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

	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentcreate"
	"github.com/swadiqdev/school-billing/internal/http/middlewarectx"
	"github.com/swadiqdev/school-billing/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) InitiatePurchase(ctx context.Context, schoolID string, req models.DummyPurchase) (*models.Payment, error) {
	args := m.Called(ctx, schoolID, req)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		schoolID   string
		mockResult *models.Payment
		mockErr    error
		wantMock   bool
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"plan_type":"basic"}`,
			schoolID:   "school-1",
			mockResult: &models.Payment{ID: 1, Reference: "SCH-abc", PlanType: "basic"},
			wantMock:   true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"plan_type":`,
			schoolID:   "school-1",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing plan type",
			body:       `{}`,
			schoolID:   "school-1",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "no school in context",
			body:       `{"plan_type":"basic"}`,
			schoolID:   "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown plan",
			body:       `{"plan_type":"platinum"}`,
			schoolID:   "school-1",
			mockErr:    errors.New("unknown plan type: platinum"),
			wantMock:   true,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.wantMock {
				svc.On("InitiatePurchase", mock.Anything, tt.schoolID, mock.Anything).
					Return(tt.mockResult, tt.mockErr).Once()
			}

			h := paymentcreate.New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(tt.body))
			if tt.schoolID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.SchoolID, tt.schoolID)
				req = req.WithContext(ctx)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
