// The sweeper marks overdue subscriptions expired and publishes
// expiry-warning events for the notification workers.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/swadiqdev/school-billing/internal/config"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
	"github.com/swadiqdev/school-billing/internal/rabbitmq"
	"github.com/swadiqdev/school-billing/internal/services/sweeper"
	"github.com/swadiqdev/school-billing/internal/storage/repository"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting sweeper", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = ch.Close()
	}()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.DB.Close()
	}()

	// The billing service owns the migrations; wait for the schema.
	for {
		if err := repository.CheckDatabaseReady(db); err == nil {
			break
		}
		logger.Info("waiting for database schema")
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}

	svc := sweeper.New(db, rabbitmq.NewPublisher(ch), cfg.ExpiringWithin, logger)
	svc.Run(ctx, cfg.SweepInterval)

	logger.Info("sweeper stopped gracefully")
}
