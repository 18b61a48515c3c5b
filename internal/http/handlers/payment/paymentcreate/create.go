// Package paymentcreate handles initiation of plan purchases.
package paymentcreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/swadiqdev/school-billing/internal/http/middlewarectx"
	"github.com/swadiqdev/school-billing/internal/http/response"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/models"
)

// Service initiates plan purchases.
type Service interface {
	InitiatePurchase(ctx context.Context, schoolID string, req models.DummyPurchase) (*models.Payment, error)
}

// Handler handles purchase initiation requests.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New creates a Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Initiate a plan purchase
// @Description Creates a pending payment for one of the catalog plans and returns the merchant reference
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body models.DummyPurchase true "Plan to purchase"
// @Success 200 {object} response.Response "Pending payment with the merchant reference"
// @Failure 400 {object} response.ErrorResponse "Invalid JSON or unknown plan"
// @Failure 401 {object} response.ErrorResponse "Unauthorized"
// @Failure 422 {object} response.ErrorResponse "Validation error"
// @Failure 500 {object} response.ErrorResponse "Server error"
// @Router /payments [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPurchase
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	schoolID, ok := r.Context().Value(middlewarectx.SchoolID).(string)
	if !ok || schoolID == "" {
		log.Error("school id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	payment, err := h.service.InitiatePurchase(r.Context(), schoolID, req)
	if err != nil {
		log.Error("failed to initiate purchase", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to initiate purchase"))
		return
	}

	log.Info("purchase initiated", slog.String("reference", payment.Reference))
	render.JSON(w, r, response.StatusOKWithData(payment))
}
