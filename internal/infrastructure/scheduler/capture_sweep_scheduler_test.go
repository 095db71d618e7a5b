package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	payinapp "github.com/paysvc/backend/internal/application/payin"
)

type fakeCaptureService struct {
	mu            sync.Mutex
	calls         []string
	stats         payinapp.SweepStats
	recovered     int
	problematic   int64
	captureErr    error
	recoverErr    error
	problematicEr error
}

func (f *fakeCaptureService) CaptureDuePaymentIntents(ctx context.Context, batchSize int) (payinapp.SweepStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "capture")
	return f.stats, f.captureErr
}

func (f *fakeCaptureService) RecoverStuckCaptures(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "recover")
	return f.recovered, f.recoverErr
}

func (f *fakeCaptureService) CountProblematicIntents(ctx context.Context, threshold time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "count")
	return f.problematic, f.problematicEr
}

func (f *fakeCaptureService) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestCaptureSweepScheduler_RunOnceOrdering(t *testing.T) {
	service := &fakeCaptureService{
		stats:       payinapp.SweepStats{Captured: 2, Failed: 1},
		recovered:   1,
		problematic: 3,
	}
	scheduler := NewCaptureSweepScheduler(DefaultCaptureSweepConfig(), service, nil, zap.NewNop())

	scheduler.RunOnce(context.Background())

	assert.Equal(t, []string{"recover", "capture", "count"}, service.callOrder())
	require.NotNil(t, scheduler.GetLastRunAt())
}

func TestCaptureSweepScheduler_StartStop(t *testing.T) {
	service := &fakeCaptureService{}
	config := CaptureSweepConfig{
		Enabled:   true,
		Interval:  10 * time.Millisecond,
		BatchSize: 10,
	}
	scheduler := NewCaptureSweepScheduler(config, service, nil, zap.NewNop())

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(35 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))

	assert.NotEmpty(t, service.callOrder())
}

func TestCaptureSweepScheduler_DisabledIsNoOp(t *testing.T) {
	service := &fakeCaptureService{}
	config := DefaultCaptureSweepConfig()
	config.Enabled = false
	scheduler := NewCaptureSweepScheduler(config, service, nil, zap.NewNop())

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))

	assert.Empty(t, service.callOrder())
}

func TestCaptureSweepScheduler_StartTwiceIsIdempotent(t *testing.T) {
	service := &fakeCaptureService{}
	config := CaptureSweepConfig{Enabled: true, Interval: time.Hour, BatchSize: 10}
	scheduler := NewCaptureSweepScheduler(config, service, nil, zap.NewNop())

	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Stop(stopCtx))
}
