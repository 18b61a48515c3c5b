// Package current returns a school's current subscription.
package current

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/swadiqdev/school-billing/internal/http/middlewarectx"
	"github.com/swadiqdev/school-billing/internal/http/response"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/models"
	"github.com/swadiqdev/school-billing/internal/storage"
)

// Service returns the current subscription of a school.
type Service interface {
	Current(ctx context.Context, schoolID string) (*models.Subscription, error)
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
// @Summary Current subscription
// @Description Returns the school's current subscription with the status evaluated against the clock
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Current subscription"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 404 {object} response.ErrorResponse "The school never subscribed"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /subscriptions/current [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.current"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	schoolID, ok := r.Context().Value(middlewarectx.SchoolID).(string)
	if !ok || schoolID == "" {
		log.Error("school id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, err := h.service.Current(r.Context(), schoolID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Info("school has no subscription")
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no subscription"))
		return
	}
	if err != nil {
		log.Error("failed to read current subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(sub))
}
