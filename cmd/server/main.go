package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"community_capital/internal/config"
	"community_capital/internal/handlers"
	"community_capital/internal/middleware"
	"community_capital/internal/notify"
	"community_capital/internal/queue"
	"community_capital/internal/services"
	"community_capital/internal/storage/postgres"
	"community_capital/internal/ws"
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
	if err := services.AutoMigrate(db); err != nil {
		slog.Error("failed to run database migrations", "error", err)
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
	plaidService := services.NewPlaidService(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Environment)
	twilioService := services.NewTwilioService(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	paymentService := services.NewPaymentService(store, stripeService, notifier, cache, services.DefaultRetryPolicy())

	authHandler := handlers.NewAuthHandler(store, services.NewOTPStore(cache), twilioService, cfg.JWT.Secret, cfg.JWT.TTL)
	eventHandler := handlers.NewEventHandler(store, notifier)
	paymentHandler := handlers.NewPaymentHandler(store, plaidService, paymentService, jobs)

	// The hub relays Redis notifications, including those published by
	// worker processes, to connected WebSocket clients.
	hub := ws.NewHub()
	go hub.Run(ctx, notify.Subscribe(ctx, cache.Client()))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = middleware.CustomErrorHandler(cfg.IsProduction())

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.RateLimit(cache, "api", 100, 15*time.Minute))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/verify", authHandler.Verify)

	protected := api.Group("", middleware.RequireAuth(cfg.JWT.Secret))
	protected.POST("/events", eventHandler.Create)
	protected.POST("/events/join", eventHandler.Join)
	protected.GET("/events/:id", eventHandler.Get)
	protected.POST("/events/:id/claim", eventHandler.Claim)
	protected.GET("/events/:id/share", eventHandler.MyShare)
	protected.GET("/events/:id/payment", paymentHandler.MyPayment)

	payments := protected.Group("/payments",
		middleware.RateLimit(cache, "payments", 5, 15*time.Minute),
		middleware.Idempotency(cache))
	payments.POST("/link-bank", paymentHandler.LinkBank)
	payments.POST("/charge", paymentHandler.Charge)

	e.GET("/ws", func(c echo.Context) error {
		return hub.Serve(c.Response(), c.Request(), middleware.UserID(c))
	}, middleware.RequireAuth(cfg.JWT.Secret))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		slog.Info("server starting", "addr", addr, "env", cfg.App.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
