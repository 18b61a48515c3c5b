package billing

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/swadiqdev/school-billing/internal/config"
	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentcreate"
	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentlist"
	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentunreconciled"
	"github.com/swadiqdev/school-billing/internal/http/handlers/payment/paymentwebhook"
	"github.com/swadiqdev/school-billing/internal/http/handlers/subscription/current"
	"github.com/swadiqdev/school-billing/internal/http/handlers/subscription/health"
	"github.com/swadiqdev/school-billing/internal/http/handlers/subscription/list"
	"github.com/swadiqdev/school-billing/internal/http/middlewarectx"
	paymentservice "github.com/swadiqdev/school-billing/internal/services/payment"
	subservice "github.com/swadiqdev/school-billing/internal/services/subscription"
	webhookservice "github.com/swadiqdev/school-billing/internal/services/webhook"
)

// RegisterRoutes registers all routes of the billing API. The webhook
// endpoints stay outside the JWT group: providers authenticate with
// signatures, not tokens.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	jwtMaker middlewarectx.TokenParser,
	webhookService *webhookservice.Service,
	paymentService *paymentservice.Service,
	subscriptionService *subservice.Service,
) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		webhookHandler := paymentwebhook.New(logger, webhookService, cfg.Providers.WebhookVerifyToken)
		r.Post("/payments/webhook", webhookHandler.ServeHTTP)
		r.Get("/payments/webhook", webhookHandler.Handshake)

		r.Get("/health", health.New(logger).ServeHTTP)

		// School-admin endpoints, JWT authenticated.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/payments", paymentcreate.New(logger, paymentService).ServeHTTP)
			r.Get("/payments/list", paymentlist.New(logger, paymentService).ServeHTTP)
			r.Get("/payments/unreconciled", paymentunreconciled.New(logger, paymentService).ServeHTTP)
			r.Get("/subscriptions/current", current.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/list", list.New(logger, subscriptionService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
