package payin

import (
	"time"

	"github.com/google/uuid"
)

// CartPayment is the platform's view of one cart payment; each leg of its
// authorize-then-capture lifecycle is a PaymentIntent.
type CartPayment struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	PayerID           *uuid.UUID `gorm:"type:uuid;index"`
	AmountOriginal    int64     `gorm:"not null"`
	AmountTotal       int64     `gorm:"not null"`
	ReferenceID       string    `gorm:"type:varchar(64);not null;index"`
	ReferenceType     string    `gorm:"type:varchar(32);not null"`
	ClientDescription string    `gorm:"type:varchar(255)"`
	DelayCapture      bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartPayment) TableName() string {
	return "cart_payments"
}

// PaymentIntent is the platform record of an authorize-then-capture payment
// lifecycle leg. Status transitions are applied with a status guard: an
// update only takes effect when the row still carries the expected previous
// status.
type PaymentIntent struct {
	ID                  uuid.UUID    `gorm:"type:uuid;primary_key"`
	CartPaymentID       uuid.UUID    `gorm:"type:uuid;not null;index"`
	IdempotencyKey      string       `gorm:"type:varchar(255);not null;uniqueIndex"`
	AmountInitiated     int64        `gorm:"not null"`
	Amount              int64        `gorm:"not null"`
	Currency            string       `gorm:"type:varchar(3);not null"`
	Country             string       `gorm:"type:varchar(2);not null"`
	Status              IntentStatus `gorm:"type:varchar(20);not null;index"`
	StatementDescriptor string       `gorm:"type:varchar(64)"`
	CaptureMethod       string       `gorm:"type:varchar(16);not null"`
	CaptureAfter        *time.Time   `gorm:"index"`
	CapturedAt          *time.Time
	CancelledAt         *time.Time
	CreatedAt           time.Time `gorm:"not null;index"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// IsCaptureDue reports whether the intent is eligible for automatic capture
// at the given cutoff
func (p *PaymentIntent) IsCaptureDue(cutoff time.Time) bool {
	return p.Status == IntentStatusRequiresCapture &&
		p.CaptureAfter != nil && !p.CaptureAfter.After(cutoff)
}

// PgpPaymentIntent mirrors the gateway-side payment intent resource. It is
// created together with its PaymentIntent and the pair's statuses move
// atomically; the pgp row carries gateway truth and is updated first.
type PgpPaymentIntent struct {
	ID                      uuid.UUID    `gorm:"type:uuid;primary_key"`
	PaymentIntentID         uuid.UUID    `gorm:"type:uuid;not null;index"`
	IdempotencyKey          string       `gorm:"type:varchar(255);not null"`
	PgpCode                 PgpCode      `gorm:"type:varchar(16);not null"`
	ResourceID              string       `gorm:"type:varchar(64);index"`
	ChargeResourceID        string       `gorm:"type:varchar(64);index"`
	PaymentMethodResourceID string       `gorm:"type:varchar(64);not null"`
	CustomerResourceID      string       `gorm:"type:varchar(64)"`
	Currency                string       `gorm:"type:varchar(3);not null"`
	Amount                  int64        `gorm:"not null"`
	AmountCapturable        int64        `gorm:"not null;default:0"`
	AmountReceived          int64        `gorm:"not null;default:0"`
	Status                  IntentStatus `gorm:"type:varchar(20);not null"`
	CaptureMethod           string       `gorm:"type:varchar(16);not null"`
	CapturedAt              *time.Time
	CancelledAt             *time.Time
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PgpPaymentIntent) TableName() string {
	return "pgp_payment_intents"
}

// PaymentIntentAdjustmentHistory is the append-only audit row recording every
// amount change on a payment intent, keyed by idempotency key. Never updated.
type PaymentIntentAdjustmentHistory struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	PayerID         *uuid.UUID `gorm:"type:uuid"`
	PaymentIntentID uuid.UUID `gorm:"type:uuid;not null;index:idx_adjustment_intent_idem,priority:1"`
	Amount          int64     `gorm:"not null"`
	AmountOriginal  int64     `gorm:"not null"`
	AmountDelta     int64     `gorm:"not null"`
	Currency        string    `gorm:"type:varchar(3);not null"`
	IdempotencyKey  string    `gorm:"type:varchar(255);not null;index:idx_adjustment_intent_idem,priority:2"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentIntentAdjustmentHistory) TableName() string {
	return "payment_intents_adjustment_history"
}
