package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payin"
)

// GormCartPaymentRepository implements CartPaymentRepository using GORM.
// Status transitions are plain conditional UPDATEs guarded by the expected
// previous status; concurrent writers race on the guard and exactly one wins.
type GormCartPaymentRepository struct {
	db *gorm.DB
}

// NewGormCartPaymentRepository creates a new GormCartPaymentRepository
func NewGormCartPaymentRepository(db *gorm.DB) *GormCartPaymentRepository {
	return &GormCartPaymentRepository{db: db}
}

// InsertCartPayment inserts a cart payment
func (r *GormCartPaymentRepository) InsertCartPayment(ctx context.Context, cartPayment *payin.CartPayment) error {
	if cartPayment.ID == uuid.Nil {
		cartPayment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(cartPayment).Error
}

// FindCartPaymentByID finds a cart payment by ID
func (r *GormCartPaymentRepository) FindCartPaymentByID(ctx context.Context, id uuid.UUID) (*payin.CartPayment, error) {
	var cp payin.CartPayment
	if err := r.db.WithContext(ctx).First(&cp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// UpdateCartPaymentAmount updates the running total of a cart payment
func (r *GormCartPaymentRepository) UpdateCartPaymentAmount(ctx context.Context, id uuid.UUID, amountTotal int64) (*payin.CartPayment, error) {
	if err := r.db.WithContext(ctx).
		Model(&payin.CartPayment{}).
		Where("id = ?", id).
		Update("amount_total", amountTotal).Error; err != nil {
		return nil, err
	}
	return r.FindCartPaymentByID(ctx, id)
}

// InsertPaymentIntent inserts a payment intent
func (r *GormCartPaymentRepository) InsertPaymentIntent(ctx context.Context, intent *payin.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

// InsertPgpPaymentIntent inserts the gateway-side mirror row
func (r *GormCartPaymentRepository) InsertPgpPaymentIntent(ctx context.Context, pgpIntent *payin.PgpPaymentIntent) error {
	if pgpIntent.ID == uuid.Nil {
		pgpIntent.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(pgpIntent).Error
}

// FindPaymentIntentByID finds a payment intent by ID
func (r *GormCartPaymentRepository) FindPaymentIntentByID(ctx context.Context, id uuid.UUID) (*payin.PaymentIntent, error) {
	var intent payin.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// FindPaymentIntentByIdempotencyKey finds an intent by idempotency key
func (r *GormCartPaymentRepository) FindPaymentIntentByIdempotencyKey(ctx context.Context, idempotencyKey string) (*payin.PaymentIntent, error) {
	var intent payin.PaymentIntent
	if err := r.db.WithContext(ctx).
		First(&intent, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// FindPgpPaymentIntentsByPaymentIntentID lists the mirror rows for an intent
func (r *GormCartPaymentRepository) FindPgpPaymentIntentsByPaymentIntentID(ctx context.Context, paymentIntentID uuid.UUID) ([]payin.PgpPaymentIntent, error) {
	var rows []payin.PgpPaymentIntent
	if err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdatePaymentIntentStatus transitions an intent's status only when the row
// still carries the expected previous status. Zero matched rows means another
// writer got there first.
func (r *GormCartPaymentRepository) UpdatePaymentIntentStatus(ctx context.Context, id uuid.UUID, newStatus, expectedPrevious payin.IntentStatus) (*payin.PaymentIntent, error) {
	result := r.db.WithContext(ctx).
		Model(&payin.PaymentIntent{}).
		Where("id = ? AND status = ?", id, expectedPrevious).
		Update("status", newStatus)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, payin.ErrPaymentIntentCouldNotBeUpdated
	}
	return r.FindPaymentIntentByID(ctx, id)
}

// UpdatePaymentIntentCaptureState records a completed capture
func (r *GormCartPaymentRepository) UpdatePaymentIntentCaptureState(ctx context.Context, id uuid.UUID, status payin.IntentStatus, capturedAt time.Time) (*payin.PaymentIntent, error) {
	if err := r.db.WithContext(ctx).
		Model(&payin.PaymentIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"captured_at": capturedAt,
		}).Error; err != nil {
		return nil, err
	}
	return r.FindPaymentIntentByID(ctx, id)
}

// UpdatePaymentIntentAmount sets a new amount on the intent
func (r *GormCartPaymentRepository) UpdatePaymentIntentAmount(ctx context.Context, id uuid.UUID, amount int64) (*payin.PaymentIntent, error) {
	if err := r.db.WithContext(ctx).
		Model(&payin.PaymentIntent{}).
		Where("id = ?", id).
		Update("amount", amount).Error; err != nil {
		return nil, err
	}
	return r.FindPaymentIntentByID(ctx, id)
}

// UpdatePgpPaymentIntent records gateway truth on the mirror row
func (r *GormCartPaymentRepository) UpdatePgpPaymentIntent(ctx context.Context, id uuid.UUID, update payin.PgpPaymentIntentUpdate) (*payin.PgpPaymentIntent, error) {
	values := map[string]any{}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.ResourceID != nil {
		values["resource_id"] = *update.ResourceID
	}
	if update.ChargeResourceID != nil {
		values["charge_resource_id"] = *update.ChargeResourceID
	}
	if update.AmountCapturable != nil {
		values["amount_capturable"] = *update.AmountCapturable
	}
	if update.AmountReceived != nil {
		values["amount_received"] = *update.AmountReceived
	}
	if update.CapturedAt != nil {
		values["captured_at"] = *update.CapturedAt
	}
	if update.CancelledAt != nil {
		values["cancelled_at"] = *update.CancelledAt
	}

	if len(values) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&payin.PgpPaymentIntent{}).
			Where("id = ?", id).
			Updates(values).Error; err != nil {
			return nil, err
		}
	}

	var row payin.PgpPaymentIntent
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateIntentPairStatus updates the pgp row first and the platform row second
// inside one transaction. The pgp update is guarded against replays (a row
// already at the target status does not match); a matched pgp row with a
// missing platform row rolls back and reports divergence.
func (r *GormCartPaymentRepository) UpdateIntentPairStatus(ctx context.Context, paymentIntentID, pgpPaymentIntentID uuid.UUID, newStatus payin.IntentStatus) (*payin.PaymentIntent, *payin.PgpPaymentIntent, error) {
	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&payin.PgpPaymentIntent{}).
			Where("id = ? AND status <> ?", pgpPaymentIntentID, newStatus).
			Update("status", newStatus)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		matched = true

		result = tx.Model(&payin.PaymentIntent{}).
			Where("id = ?", paymentIntentID).
			Update("status", newStatus)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return payin.ErrIntentPairDiverged
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !matched {
		return nil, nil, nil
	}

	intent, err := r.FindPaymentIntentByID(ctx, paymentIntentID)
	if err != nil {
		return nil, nil, err
	}
	var pgpIntent payin.PgpPaymentIntent
	if err := r.db.WithContext(ctx).First(&pgpIntent, "id = ?", pgpPaymentIntentID).Error; err != nil {
		return nil, nil, err
	}
	return intent, &pgpIntent, nil
}

// FindAdjustmentHistory returns the adjustment row for an intent and
// idempotency key
func (r *GormCartPaymentRepository) FindAdjustmentHistory(ctx context.Context, paymentIntentID uuid.UUID, idempotencyKey string) (*payin.PaymentIntentAdjustmentHistory, error) {
	var row payin.PaymentIntentAdjustmentHistory
	if err := r.db.WithContext(ctx).
		First(&row, "payment_intent_id = ? AND idempotency_key = ?", paymentIntentID, idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// AdjustPaymentIntentAmount updates the intent amount and appends the
// adjustment history row in one transaction
func (r *GormCartPaymentRepository) AdjustPaymentIntentAmount(ctx context.Context, id uuid.UUID, amount int64, history *payin.PaymentIntentAdjustmentHistory) (*payin.PaymentIntent, error) {
	if history.ID == uuid.Nil {
		history.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&payin.PaymentIntent{}).
			Where("id = ?", id).
			Update("amount", amount).Error; err != nil {
			return err
		}
		return tx.Create(history).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindPaymentIntentByID(ctx, id)
}

// ListPaymentIntentsRequiringCapture streams intents due for capture in pages
// ordered by creation time. Each page resumes strictly after the last yielded
// creation time, so a failed run can restart without revisiting processed rows.
func (r *GormCartPaymentRepository) ListPaymentIntentsRequiringCapture(ctx context.Context, cutoff time.Time, batchSize int, fn func(payin.PaymentIntent) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	var after *time.Time
	for {
		query := r.db.WithContext(ctx).
			Where("status = ? AND capture_after IS NOT NULL AND capture_after <= ?", payin.IntentStatusRequiresCapture, cutoff).
			Order("created_at ASC").
			Limit(batchSize)
		if after != nil {
			query = query.Where("created_at > ?", *after)
		}

		var page []payin.PaymentIntent
		if err := query.Find(&page).Error; err != nil {
			return err
		}
		for i := range page {
			if err := fn(page[i]); err != nil {
				return err
			}
		}
		if len(page) < batchSize {
			return nil
		}
		last := page[len(page)-1].CreatedAt
		after = &last
	}
}

// CountPaymentIntentsInProblematicState counts non-terminal intents whose
// capture window closed longer ago than the threshold
func (r *GormCartPaymentRepository) CountPaymentIntentsInProblematicState(ctx context.Context, threshold time.Duration) (int64, error) {
	terminal := []payin.IntentStatus{
		payin.IntentStatusSucceeded,
		payin.IntentStatusCancelled,
		payin.IntentStatusFailed,
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&payin.PaymentIntent{}).
		Where("status NOT IN ? AND capture_after IS NOT NULL AND capture_after < ?", terminal, time.Now().UTC().Add(-threshold)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListPaymentIntentsStuckInCapturing lists intents left in capturing since
// before olderThan
func (r *GormCartPaymentRepository) ListPaymentIntentsStuckInCapturing(ctx context.Context, olderThan time.Time) ([]payin.PaymentIntent, error) {
	var rows []payin.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", payin.IntentStatusCapturing, olderThan).
		Order("updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertRefund inserts a refund row
func (r *GormCartPaymentRepository) InsertRefund(ctx context.Context, refund *payin.Refund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(refund).Error
}

// InsertPgpRefund inserts the gateway-side refund mirror row
func (r *GormCartPaymentRepository) InsertPgpRefund(ctx context.Context, pgpRefund *payin.PgpRefund) error {
	if pgpRefund.ID == uuid.Nil {
		pgpRefund.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(pgpRefund).Error
}

// FindRefundByIdempotencyKey finds a refund by idempotency key
func (r *GormCartPaymentRepository) FindRefundByIdempotencyKey(ctx context.Context, idempotencyKey string) (*payin.Refund, error) {
	var refund payin.Refund
	if err := r.db.WithContext(ctx).
		First(&refund, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// FindPgpRefundByRefundID finds the mirror row for a refund
func (r *GormCartPaymentRepository) FindPgpRefundByRefundID(ctx context.Context, refundID uuid.UUID) (*payin.PgpRefund, error) {
	var row payin.PgpRefund
	if err := r.db.WithContext(ctx).
		First(&row, "refund_id = ?", refundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateRefundStatus sets the status of a refund
func (r *GormCartPaymentRepository) UpdateRefundStatus(ctx context.Context, id uuid.UUID, status payin.RefundStatus) (*payin.Refund, error) {
	if err := r.db.WithContext(ctx).
		Model(&payin.Refund{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return nil, err
	}
	var refund payin.Refund
	if err := r.db.WithContext(ctx).First(&refund, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// UpdatePgpRefund records the gateway refund outcome on the mirror row
func (r *GormCartPaymentRepository) UpdatePgpRefund(ctx context.Context, id uuid.UUID, status payin.RefundStatus, pgpResourceID string) (*payin.PgpRefund, error) {
	if err := r.db.WithContext(ctx).
		Model(&payin.PgpRefund{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"pgp_resource_id": pgpResourceID,
		}).Error; err != nil {
		return nil, err
	}
	var row payin.PgpRefund
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Ensure GormCartPaymentRepository implements the interface
var _ payin.CartPaymentRepository = (*GormCartPaymentRepository)(nil)
