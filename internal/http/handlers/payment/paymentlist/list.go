// Package paymentlist returns a school's payment history.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/swadiqdev/school-billing/internal/http/middlewarectx"
	"github.com/swadiqdev/school-billing/internal/http/response"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/models"
)

// Service lists a school's payments.
type Service interface {
	List(ctx context.Context, schoolID string, limit, offset int) ([]*models.Payment, error)
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
// @Summary List payments
// @Description Returns the school's payment history, newest first
// @Tags Payments
// @Produce  json
// @Param limit query int false "Page size, default 10"
// @Param offset query int false "Offset, default 0"
// @Success 200 {object} response.Response "Payments"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /payments/list [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	schoolID, ok := r.Context().Value(middlewarectx.SchoolID).(string)
	if !ok || schoolID == "" {
		log.Error("school id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	res, err := h.service.List(r.Context(), schoolID, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list"))
		return
	}

	log.Info("list payments", "count", len(res))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(res),
		"payments":   res,
	}))
}
