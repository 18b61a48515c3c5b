// Package billing assembles the billing HTTP application: storage,
// migrations, cache, services, router and graceful shutdown.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/swadiqdev/school-billing/internal/cache"
	"github.com/swadiqdev/school-billing/internal/config"
	jwtlib "github.com/swadiqdev/school-billing/internal/lib/jwt"
	"github.com/swadiqdev/school-billing/internal/migrations"
	"github.com/swadiqdev/school-billing/internal/provider"
	paymentservice "github.com/swadiqdev/school-billing/internal/services/payment"
	"github.com/swadiqdev/school-billing/internal/services/reconciler"
	subservice "github.com/swadiqdev/school-billing/internal/services/subscription"
	webhookservice "github.com/swadiqdev/school-billing/internal/services/webhook"
	"github.com/swadiqdev/school-billing/internal/storage/repository"
)

// App is the running billing service.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New builds the application: connects storage and cache, runs the
// migrations and wires the services into the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Detection order matters only for payloads without a signature
	// header; both providers match on their header first.
	providers := []provider.Provider{
		&provider.Flutterwave{SecretHash: cfg.Providers.FlutterwaveSecretHash},
		&provider.Paga{HMACKey: cfg.Providers.PagaHMACKey},
	}

	reconcilerService := reconciler.New(logger)
	webhookService := webhookservice.New(db, reconcilerService, cacheRedis, providers, cfg.VerificationSkipped(), logger)
	paymentService := paymentservice.New(db, logger)
	subscriptionService := subservice.New(db, cacheRedis, logger)
	jwtMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, webhookService, paymentService, subscriptionService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, shutting down gracefully on cancellation.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}
