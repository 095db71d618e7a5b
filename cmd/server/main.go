package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	payinapp "github.com/paysvc/backend/internal/application/payin"
	payoutapp "github.com/paysvc/backend/internal/application/payout"
	"github.com/paysvc/backend/internal/infrastructure/auth"
	"github.com/paysvc/backend/internal/infrastructure/cache"
	"github.com/paysvc/backend/internal/infrastructure/config"
	"github.com/paysvc/backend/internal/infrastructure/gateway"
	"github.com/paysvc/backend/internal/infrastructure/logger"
	"github.com/paysvc/backend/internal/infrastructure/persistence"
	"github.com/paysvc/backend/internal/infrastructure/scheduler"
	"github.com/paysvc/backend/internal/infrastructure/telemetry"
	"github.com/paysvc/backend/internal/interfaces/http/handler"
	"github.com/paysvc/backend/internal/interfaces/http/middleware"
	"github.com/paysvc/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting payment service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var paymentMetrics *telemetry.PaymentMetrics
	if meterProvider.IsEnabled() {
		paymentMetrics, err = telemetry.NewPaymentMetrics(meterProvider.Meter("payments"))
		if err != nil {
			log.Fatal("Failed to create payment metrics", zap.Error(err))
		}
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Idempotency store, redis with in-memory fallback outside production
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Gateway
	stripeConfig := &gateway.StripeConfig{
		SecretKey:       cfg.Stripe.SecretKey,
		WebhookSecret:   cfg.Stripe.WebhookSecret,
		IsTestMode:      cfg.Stripe.IsTestMode,
		PlatformCountry: cfg.Stripe.PlatformCountry,
	}
	stripeClient, err := gateway.NewStripeClient(stripeConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize Stripe client", zap.Error(err))
	}

	// Repositories
	transferRepo := persistence.NewGormTransferRepository(db.DB)
	stripeTransferRepo := persistence.NewGormStripeTransferRepository(db.DB)
	managedAccountTransferRepo := persistence.NewGormManagedAccountTransferRepository(db.DB)
	paymentAccountRepo := persistence.NewGormPaymentAccountRepository(db.DB)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)
	cartPaymentRepo := persistence.NewGormCartPaymentRepository(db.DB)

	// Application services
	submitService := payoutapp.NewSubmitTransferService(
		transferRepo,
		stripeTransferRepo,
		managedAccountTransferRepo,
		paymentAccountRepo,
		transactionRepo,
		stripeClient,
		idempotencyStore,
		payoutapp.SubmitConfig{
			DefaultStatementDescriptor: cfg.Payout.DefaultStatementDescriptor,
			LockTTL:                    cfg.Payout.SubmissionLockTTL,
		},
		log,
	)
	cartPaymentService := payinapp.NewCartPaymentService(
		cartPaymentRepo,
		stripeClient,
		payinapp.CartPaymentConfig{
			CaptureDelay:       cfg.CaptureSweep.CaptureDelay,
			StuckCaptureWindow: 30 * time.Minute,
		},
		log,
	)

	// Capture sweep
	sweepScheduler := scheduler.NewCaptureSweepScheduler(
		scheduler.CaptureSweepConfig{
			Enabled:              cfg.CaptureSweep.Enabled,
			Interval:             cfg.CaptureSweep.Interval,
			BatchSize:            cfg.CaptureSweep.BatchSize,
			ProblematicThreshold: cfg.CaptureSweep.ProblematicThreshold,
		},
		cartPaymentService,
		paymentMetrics,
		log,
	)
	if err := sweepScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start capture sweep scheduler", zap.Error(err))
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(meterProvider))
	engine.Use(middleware.JWTAuthMiddleware(jwtService))
	engine.Use(middleware.TraceAttributes())

	// Routes
	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(db.DB, sweepScheduler))
	r.Register(handler.NewTransferHandler(submitService, transferRepo, paymentMetrics))
	r.Register(handler.NewCartPaymentHandler(cartPaymentService, paymentMetrics))
	r.Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweepScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping capture sweep scheduler", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", zap.Error(err))
	}

	log.Info("Shutdown complete")
}
