package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vjpiles/backend/internal/config"
	"github.com/vjpiles/backend/internal/handler"
	"github.com/vjpiles/backend/internal/logger"
	appMiddleware "github.com/vjpiles/backend/internal/middleware"
	"github.com/vjpiles/backend/internal/repository"
	"github.com/vjpiles/backend/internal/service"
	"github.com/vjpiles/backend/internal/ws"
	"github.com/vjpiles/backend/pkg/payment"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()
	zap.ReplaceGlobals(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subStore, closeStore, err := repository.Open(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("store error", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	gateway, err := newGateway(cfg)
	if err != nil {
		zapLog.Fatal("gateway error", zap.Error(err))
	}
	zapLog.Info("payment gateway ready", zap.String("mode", cfg.Gateway.Mode))

	phone, err := payment.NewPhoneNormalizer(cfg.Flow.CountryCode, cfg.Flow.MobilePrefixes)
	if err != nil {
		zapLog.Fatal("phone normalizer error", zap.Error(err))
	}

	flow, err := service.NewPaymentFlow(service.PaymentFlowConfig{
		PollInterval:         cfg.Flow.PollInterval,
		MaxAttempts:          cfg.Flow.MaxAttempts,
		CountTransientErrors: cfg.Flow.CountTransientErrors,
		MerchantLabel:        cfg.Flow.MerchantLabel,
		Phone:                phone,
	}, gateway, subStore, zapLog.Named("payment"))
	if err != nil {
		zapLog.Fatal("payment flow error", zap.Error(err))
	}

	authSvc := service.NewAuthService(cfg.JWTSecret)
	subSvc := service.NewSubscriptionService(flow, subStore, authSvc, cfg.Flow.Timeout, zapLog.Named("subscription"))

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(subStore, cfg.StoreBackend)
	plansHandler := handler.NewPlansHandler()
	paymentHandler := handler.NewPaymentHandler(subSvc)
	adminHandler := handler.NewAdminHandler(subSvc)
	progressHandler := ws.NewProgressHandler(subSvc, authSvc, zapLog.Named("ws"))

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery(zapLog))
	r.Use(appMiddleware.Logger(zapLog.Named("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(ctx, 20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/plans", plansHandler.List)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		// Payment routes
		r.With(appMiddleware.StrictRateLimiter(ctx)).Post("/api/payment/checkout", paymentHandler.CreateCheckout)
		r.Get("/api/payment/checkout", paymentHandler.CheckoutStatus)
		r.Delete("/api/payment/checkout", paymentHandler.CancelCheckout)
		r.Get("/api/payment/subscription", paymentHandler.GetSubscription)
		r.Get("/api/payment/access", paymentHandler.Access)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Get("/api/admin/subscriptions", adminHandler.ListSubscriptions)
		})
	})

	// WebSocket progress stream (auth via query param)
	r.HandleFunc("/ws/payment", progressHandler.Handle)

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		zapLog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLog.Warn("http shutdown incomplete", zap.Error(err))
		}
		if err := subSvc.Shutdown(shutdownCtx); err != nil {
			zapLog.Warn("payment flows still running at shutdown", zap.Error(err))
		}
	}()

	zapLog.Info("server listening", zap.String("addr", addr), zap.String("store", cfg.StoreBackend))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		zapLog.Fatal("server error", zap.Error(err))
	}
	<-shutdownDone
}

func newGateway(cfg *config.Config) (payment.Gateway, error) {
	if cfg.Gateway.Mode == config.GatewayMock {
		return payment.NewMockGateway(2), nil
	}
	return payment.NewRelworxClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
}
