// Package paymentunreconciled is the reconciliation audit endpoint:
// completed payments that produced no subscription effect.
package paymentunreconciled

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/swadiqdev/school-billing/internal/http/response"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/models"
)

// Service lists unreconciled payments.
type Service interface {
	ListUnreconciled(ctx context.Context) ([]*models.Payment, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary List unreconciled payments
// @Description Returns completed payments with no linked subscription; a non-empty list means a lost reconciliation
// @Tags Payments
// @Produce  json
// @Success 200 {object} response.Response "Unreconciled payments"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /payments/unreconciled [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.unreconciled"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	res, err := h.service.ListUnreconciled(r.Context())
	if err != nil {
		log.Error("failed to list unreconciled payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list"))
		return
	}

	if len(res) > 0 {
		log.Warn("unreconciled payments present", "count", len(res))
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(res),
		"payments":   res,
	}))
}
