package payout

import (
	"time"

	"github.com/paysvc/backend/internal/domain/shared"
)

// ManagedAccountTransfer is the intra-platform settlement leg that tops up a
// merchant's gateway-managed balance before a payout. At most one row exists
// per transfer; its amount is adjusted rather than duplicated.
type ManagedAccountTransfer struct {
	ID               int64                        `gorm:"primaryKey;autoIncrement"`
	TransferID       int64                        `gorm:"not null;uniqueIndex"`
	PaymentAccountID int64                        `gorm:"not null;index"`
	Amount           int64                        `gorm:"not null"` // shortfall, always >= 0
	Currency         string                       `gorm:"type:varchar(3)"`
	StripeID         string                       `gorm:"type:varchar(64)"`
	StripeStatus     ManagedAccountTransferStatus `gorm:"type:varchar(20)"`
	SubmittedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ManagedAccountTransfer) TableName() string {
	return "managed_account_transfers"
}

// NewManagedAccountTransfer creates the settlement leg for a transfer
func NewManagedAccountTransfer(transferID, paymentAccountID, amount int64, currency string) (*ManagedAccountTransfer, error) {
	if amount < 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Managed account transfer amount cannot be negative")
	}
	return &ManagedAccountTransfer{
		TransferID:       transferID,
		PaymentAccountID: paymentAccountID,
		Amount:           amount,
		Currency:         currency,
	}, nil
}

// BelongsTo reports whether the settlement leg references the given account
func (m *ManagedAccountTransfer) BelongsTo(paymentAccountID int64) bool {
	return m.PaymentAccountID == paymentAccountID
}

// ManagedAccountTransferUpdate is a partial update applied to the settlement leg
type ManagedAccountTransferUpdate struct {
	Amount       *int64
	StripeID     *string
	StripeStatus *ManagedAccountTransferStatus
	SubmittedAt  *time.Time
}
