package payin

import (
	"time"

	"github.com/google/uuid"
)

// Refund is a partial or full refund request against a payment intent,
// matched by idempotency key so replays return the original request.
type Refund struct {
	ID              uuid.UUID    `gorm:"type:uuid;primary_key"`
	PaymentIntentID uuid.UUID    `gorm:"type:uuid;not null;index"`
	IdempotencyKey  string       `gorm:"type:varchar(255);not null;uniqueIndex"`
	Status          RefundStatus `gorm:"type:varchar(20);not null"`
	Amount          int64        `gorm:"not null"`
	Reason          string       `gorm:"type:varchar(255)"`
	CreatedAt       time.Time    `gorm:"not null"`
	UpdatedAt       time.Time    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Refund) TableName() string {
	return "refunds"
}

// PgpRefund mirrors the gateway-side refund resource for a Refund
type PgpRefund struct {
	ID             uuid.UUID    `gorm:"type:uuid;primary_key"`
	RefundID       uuid.UUID    `gorm:"type:uuid;not null;index"`
	IdempotencyKey string       `gorm:"type:varchar(255);not null"`
	Status         RefundStatus `gorm:"type:varchar(20);not null"`
	PgpCode        PgpCode      `gorm:"type:varchar(16);not null"`
	PgpResourceID  string       `gorm:"type:varchar(64)"`
	Amount         int64        `gorm:"not null"`
	Reason         string       `gorm:"type:varchar(255)"`
	CreatedAt      time.Time    `gorm:"not null"`
	UpdatedAt      time.Time    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PgpRefund) TableName() string {
	return "pgp_refunds"
}
