package payin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CartPaymentRepository defines persistence for cart payments, payment
// intent pairs, adjustment history and refunds. Status transitions go
// through the guarded update methods; the pair update runs inside one
// transactional scope.
type CartPaymentRepository interface {
	// InsertCartPayment inserts a cart payment
	InsertCartPayment(ctx context.Context, cartPayment *CartPayment) error

	// FindCartPaymentByID finds a cart payment by ID, nil when absent
	FindCartPaymentByID(ctx context.Context, id uuid.UUID) (*CartPayment, error)

	// UpdateCartPaymentAmount updates the running total of a cart payment
	UpdateCartPaymentAmount(ctx context.Context, id uuid.UUID, amountTotal int64) (*CartPayment, error)

	// InsertPaymentIntent inserts a payment intent
	InsertPaymentIntent(ctx context.Context, intent *PaymentIntent) error

	// InsertPgpPaymentIntent inserts the gateway-side mirror row
	InsertPgpPaymentIntent(ctx context.Context, pgpIntent *PgpPaymentIntent) error

	// FindPaymentIntentByID finds a payment intent by ID, nil when absent
	FindPaymentIntentByID(ctx context.Context, id uuid.UUID) (*PaymentIntent, error)

	// FindPaymentIntentByIdempotencyKey finds an intent by idempotency key,
	// nil when absent
	FindPaymentIntentByIdempotencyKey(ctx context.Context, idempotencyKey string) (*PaymentIntent, error)

	// FindPgpPaymentIntentsByPaymentIntentID lists the mirror rows for an
	// intent ordered by creation time
	FindPgpPaymentIntentsByPaymentIntentID(ctx context.Context, paymentIntentID uuid.UUID) ([]PgpPaymentIntent, error)

	// UpdatePaymentIntentStatus transitions an intent's status only when the
	// row still carries expectedPrevious; zero matched rows returns
	// ErrPaymentIntentCouldNotBeUpdated
	UpdatePaymentIntentStatus(ctx context.Context, id uuid.UUID, newStatus, expectedPrevious IntentStatus) (*PaymentIntent, error)

	// UpdatePaymentIntentCaptureState records a completed capture
	UpdatePaymentIntentCaptureState(ctx context.Context, id uuid.UUID, status IntentStatus, capturedAt time.Time) (*PaymentIntent, error)

	// UpdatePaymentIntentAmount sets a new amount on the intent
	UpdatePaymentIntentAmount(ctx context.Context, id uuid.UUID, amount int64) (*PaymentIntent, error)

	// UpdatePgpPaymentIntent records gateway truth on the mirror row
	UpdatePgpPaymentIntent(ctx context.Context, id uuid.UUID, update PgpPaymentIntentUpdate) (*PgpPaymentIntent, error)

	// UpdateIntentPairStatus updates the pgp row first and the platform row
	// second inside one transaction. Returns (nil, nil, nil) when the pgp row
	// did not match; returns ErrIntentPairDiverged when the pgp row matched
	// but the platform row did not.
	UpdateIntentPairStatus(ctx context.Context, paymentIntentID, pgpPaymentIntentID uuid.UUID, newStatus IntentStatus) (*PaymentIntent, *PgpPaymentIntent, error)

	// FindAdjustmentHistory returns the adjustment row for an intent and
	// idempotency key, nil when absent
	FindAdjustmentHistory(ctx context.Context, paymentIntentID uuid.UUID, idempotencyKey string) (*PaymentIntentAdjustmentHistory, error)

	// AdjustPaymentIntentAmount updates the intent amount and appends the
	// adjustment history row in one transaction
	AdjustPaymentIntentAmount(ctx context.Context, id uuid.UUID, amount int64, history *PaymentIntentAdjustmentHistory) (*PaymentIntent, error)

	// ListPaymentIntentsRequiringCapture streams intents with
	// status=requires_capture and capture_after <= cutoff, ordered by
	// creation time, in pages of batchSize. The walk is restartable: each
	// page resumes after the last yielded creation time.
	ListPaymentIntentsRequiringCapture(ctx context.Context, cutoff time.Time, batchSize int, fn func(PaymentIntent) error) error

	// CountPaymentIntentsInProblematicState counts non-terminal intents whose
	// capture_after is older than now minus threshold
	CountPaymentIntentsInProblematicState(ctx context.Context, threshold time.Duration) (int64, error)

	// ListPaymentIntentsStuckInCapturing lists intents left in capturing
	// since before olderThan
	ListPaymentIntentsStuckInCapturing(ctx context.Context, olderThan time.Time) ([]PaymentIntent, error)

	// InsertRefund inserts a refund row
	InsertRefund(ctx context.Context, refund *Refund) error

	// InsertPgpRefund inserts the gateway-side refund mirror row
	InsertPgpRefund(ctx context.Context, pgpRefund *PgpRefund) error

	// FindRefundByIdempotencyKey finds a refund by idempotency key, nil when absent
	FindRefundByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Refund, error)

	// FindPgpRefundByRefundID finds the mirror row for a refund, nil when absent
	FindPgpRefundByRefundID(ctx context.Context, refundID uuid.UUID) (*PgpRefund, error)

	// UpdateRefundStatus sets the status of a refund
	UpdateRefundStatus(ctx context.Context, id uuid.UUID, status RefundStatus) (*Refund, error)

	// UpdatePgpRefund records the gateway refund outcome on the mirror row
	UpdatePgpRefund(ctx context.Context, id uuid.UUID, status RefundStatus, pgpResourceID string) (*PgpRefund, error)
}

// PgpPaymentIntentUpdate is a partial update recording gateway truth on the
// pgp-side mirror row
type PgpPaymentIntentUpdate struct {
	Status           *IntentStatus
	ResourceID       *string
	ChargeResourceID *string
	AmountCapturable *int64
	AmountReceived   *int64
	CapturedAt       *time.Time
	CancelledAt      *time.Time
}
