// Package scheduler runs the background passes that keep delayed-capture
// payment intents moving.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	payinapp "github.com/paysvc/backend/internal/application/payin"
	"github.com/paysvc/backend/internal/infrastructure/telemetry"
)

// CaptureService is the slice of the cart payment service the sweep consumes
type CaptureService interface {
	CaptureDuePaymentIntents(ctx context.Context, batchSize int) (payinapp.SweepStats, error)
	RecoverStuckCaptures(ctx context.Context) (int, error)
	CountProblematicIntents(ctx context.Context, threshold time.Duration) (int64, error)
}

// CaptureSweepConfig holds configuration for the capture sweep scheduler
type CaptureSweepConfig struct {
	// Enabled indicates if the sweep runs at all
	Enabled bool
	// Interval between sweep runs
	Interval time.Duration
	// BatchSize is the page size of the capture walk
	BatchSize int
	// ProblematicThreshold is the age past which an uncaptured intent counts
	// as problematic in the health probe
	ProblematicThreshold time.Duration
}

// DefaultCaptureSweepConfig returns default sweep configuration
func DefaultCaptureSweepConfig() CaptureSweepConfig {
	return CaptureSweepConfig{
		Enabled:              true,
		Interval:             time.Minute,
		BatchSize:            100,
		ProblematicThreshold: 48 * time.Hour,
	}
}

// CaptureSweepScheduler periodically captures payment intents whose capture
// window elapsed, recovers intents stuck in capturing, and reports how many
// intents sit uncaptured past the problematic threshold.
type CaptureSweepScheduler struct {
	config  CaptureSweepConfig
	service CaptureService
	metrics *telemetry.PaymentMetrics
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt *time.Time
}

// NewCaptureSweepScheduler creates a new capture sweep scheduler
func NewCaptureSweepScheduler(
	config CaptureSweepConfig,
	service CaptureService,
	metrics *telemetry.PaymentMetrics,
	logger *zap.Logger,
) *CaptureSweepScheduler {
	if config.Interval == 0 {
		config.Interval = time.Minute
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &CaptureSweepScheduler{
		config:  config,
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Start starts the sweep loop. A disabled scheduler starts as a no-op.
func (s *CaptureSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("Capture sweep disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.logger.Info("Capture sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize))

	return nil
}

// Stop stops the sweep loop and waits for an in-flight pass to finish
func (s *CaptureSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Capture sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Capture sweep scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *CaptureSweepScheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs one full sweep pass: stale-capture recovery first so recovered
// intents are eligible for the capture walk that follows, then the health
// count.
func (s *CaptureSweepScheduler) RunOnce(ctx context.Context) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "capture_sweep.run")
	defer span.End()

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	recovered, err := s.service.RecoverStuckCaptures(ctx)
	if err != nil {
		s.logger.Error("Stale capture recovery failed", zap.Error(err))
	} else if recovered > 0 {
		s.metrics.RecordRecoveries(ctx, recovered)
	}

	stats, err := s.service.CaptureDuePaymentIntents(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Capture sweep failed", zap.Error(err))
	}
	for i := 0; i < stats.Captured; i++ {
		s.metrics.RecordCapture(ctx, "captured")
	}
	for i := 0; i < stats.Failed; i++ {
		s.metrics.RecordCapture(ctx, "failed")
	}

	problematic, err := s.service.CountProblematicIntents(ctx, s.config.ProblematicThreshold)
	if err != nil {
		s.logger.Error("Problematic intent count failed", zap.Error(err))
	} else {
		s.metrics.RecordProblematicIntents(ctx, problematic)
		if problematic > 0 {
			s.logger.Warn("Payment intents uncaptured past threshold",
				zap.Int64("count", problematic),
				zap.Duration("threshold", s.config.ProblematicThreshold))
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.captured", stats.Captured),
		attribute.Int("sweep.failed", stats.Failed),
		attribute.Int("sweep.recovered", recovered),
	)

	if stats.Captured > 0 || stats.Failed > 0 || recovered > 0 {
		s.logger.Info("Capture sweep pass finished",
			zap.Int("captured", stats.Captured),
			zap.Int("failed", stats.Failed),
			zap.Int("recovered", recovered))
	}
}

// GetLastRunAt returns when the last sweep pass started
func (s *CaptureSweepScheduler) GetLastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}
