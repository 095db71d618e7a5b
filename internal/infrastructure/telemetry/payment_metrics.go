package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics groups the counters the payout and payin workflows emit
type PaymentMetrics struct {
	TransferSubmissions *Counter
	IntentCaptures      *Counter
	SweepRecoveries     *Counter
	Refunds             *Counter
	ProblematicIntents  *Gauge
}

// NewPaymentMetrics creates the payment metric instruments on the given meter
func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	submissions, err := NewCounter(meter,
		"payments.transfer.submissions",
		"Transfer payout submissions by result",
		"{submission}")
	if err != nil {
		return nil, fmt.Errorf("create payment metrics: %w", err)
	}
	captures, err := NewCounter(meter,
		"payments.intent.captures",
		"Payment intent captures by result",
		"{capture}")
	if err != nil {
		return nil, fmt.Errorf("create payment metrics: %w", err)
	}
	recoveries, err := NewCounter(meter,
		"payments.sweep.recoveries",
		"Payment intents recovered from a stale capturing state",
		"{intent}")
	if err != nil {
		return nil, fmt.Errorf("create payment metrics: %w", err)
	}
	refunds, err := NewCounter(meter,
		"payments.refunds",
		"Refund requests by result",
		"{refund}")
	if err != nil {
		return nil, fmt.Errorf("create payment metrics: %w", err)
	}
	problematic, err := NewGauge(meter,
		"payments.intent.problematic",
		"Non-terminal payment intents past the problematic age threshold",
		"{intent}")
	if err != nil {
		return nil, fmt.Errorf("create payment metrics: %w", err)
	}

	return &PaymentMetrics{
		TransferSubmissions: submissions,
		IntentCaptures:      captures,
		SweepRecoveries:     recoveries,
		Refunds:             refunds,
		ProblematicIntents:  problematic,
	}, nil
}

// RecordSubmission records one transfer submission outcome
func (m *PaymentMetrics) RecordSubmission(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.TransferSubmissions.Inc(ctx, AttrSubmitResult.String(result))
}

// RecordCapture records one capture outcome
func (m *PaymentMetrics) RecordCapture(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.IntentCaptures.Inc(ctx, AttrSweepOutcome.String(result))
}

// RecordRecoveries records intents returned from capturing to requires_capture
func (m *PaymentMetrics) RecordRecoveries(ctx context.Context, count int) {
	if m == nil || count == 0 {
		return
	}
	m.SweepRecoveries.Add(ctx, int64(count))
}

// RecordRefund records one refund outcome
func (m *PaymentMetrics) RecordRefund(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Refunds.Inc(ctx, AttrSubmitResult.String(result))
}

// RecordProblematicIntents records the current problematic intent count
func (m *PaymentMetrics) RecordProblematicIntents(ctx context.Context, count int64) {
	if m == nil {
		return
	}
	m.ProblematicIntents.Record(ctx, count)
}
