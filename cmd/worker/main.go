package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"community_capital/internal/config"
	"community_capital/internal/models"
	"community_capital/internal/notify"
	"community_capital/internal/queue"
	"community_capital/internal/services"
	"community_capital/internal/storage"
	"community_capital/internal/storage/postgres"
	"community_capital/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := services.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	store := postgres.New(db)

	cache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	notifier := notify.NewRedisNotifier(cache.Client())
	jobs := queue.NewRedisQueue(cache.Client())

	stripeService := services.NewStripeService(cfg.Stripe.SecretKey, cfg.Stripe.CardholderID)
	paymentService := services.NewPaymentService(store, stripeService, notifier, cache, services.DefaultRetryPolicy())

	receipts := services.NewReceiptService(store, services.NewEmailService())
	go receipts.Run(ctx, notify.Subscribe(ctx, cache.Client()))

	go reconcile(ctx, store, jobs, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileAge)

	slog.Info("worker starting", "concurrency", cfg.Worker.Concurrency)
	pool := queue.NewPool(jobs, paymentService.ProcessCharge, cfg.Worker.Concurrency)
	pool.Run(ctx)

	slog.Info("worker stopped")
}

// reconcile re-enqueues payments that were reserved but never reached a
// terminal state, typically because a worker died mid-charge. The
// orchestrator's in-flight short-circuit makes re-enqueueing a live job
// harmless.
func reconcile(ctx context.Context, store storage.Store, jobs queue.Queue, interval, age time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stale, err := store.StaleReservedPayments(ctx, time.Now().Add(-age))
			if err != nil {
				slog.Error("stale payment scan failed", "error", err)
				continue
			}
			for _, payment := range stale {
				slog.Warn("re-enqueueing stale payment",
					"payment_id", payment.ID,
					"event_id", payment.EventID,
					"user_id", payment.UserID)
				// Release the dead reservation so the next worker can revive
				// it; a still-processing row would short-circuit the retry.
				// The payment keeps its idempotency key, so if the dead
				// attempt did reach the processor the revival replays its
				// outcome instead of charging again.
				if err := store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusFailed, ""); err != nil {
					slog.Error("failed to release stale payment", "payment_id", payment.ID, "error", err)
					continue
				}
				job := queue.ChargeJob{EventID: payment.EventID, UserID: payment.UserID}
				if err := jobs.Enqueue(ctx, job); err != nil {
					slog.Error("failed to re-enqueue stale payment", "payment_id", payment.ID, "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
