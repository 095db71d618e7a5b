package payout

import (
	"context"
	"time"
)

// TransferRepository defines persistence for transfers
type TransferRepository interface {
	// FindByID finds a transfer by ID, nil when absent
	FindByID(ctx context.Context, id int64) (*Transfer, error)

	// Create inserts a transfer and returns the stored row
	Create(ctx context.Context, transfer *Transfer) error

	// Update applies a partial update and returns the post-update row,
	// nil when the transfer does not exist
	Update(ctx context.Context, id int64, update TransferUpdate) (*Transfer, error)
}

// StripeTransferRepository defines persistence for gateway submission attempts
type StripeTransferRepository interface {
	// Create inserts a submission attempt
	Create(ctx context.Context, stripeTransfer *StripeTransfer) error

	// FindLatestByTransferID returns the most recent attempt for a transfer,
	// nil when none exists
	FindLatestByTransferID(ctx context.Context, transferID int64) (*StripeTransfer, error)

	// FindOngoingByTransferID returns attempts still in SUBMITTING state
	FindOngoingByTransferID(ctx context.Context, transferID int64) ([]StripeTransfer, error)

	// Update applies a partial update and returns the post-update row
	Update(ctx context.Context, id int64, update StripeTransferUpdate) (*StripeTransfer, error)
}

// ManagedAccountTransferRepository defines persistence for the settlement leg
type ManagedAccountTransferRepository interface {
	// Create inserts a settlement leg
	Create(ctx context.Context, mat *ManagedAccountTransfer) error

	// FindByTransferID returns the settlement leg for a transfer, nil when absent
	FindByTransferID(ctx context.Context, transferID int64) (*ManagedAccountTransfer, error)

	// Update applies a partial update and returns the post-update row
	Update(ctx context.Context, id int64, update ManagedAccountTransferUpdate) (*ManagedAccountTransfer, error)
}

// PaymentAccountRepository defines read access to payout destinations
type PaymentAccountRepository interface {
	// FindByID finds a payment account by ID, nil when absent
	FindByID(ctx context.Context, id int64) (*PaymentAccount, error)

	// FindStripeManagedAccountByID finds the linked gateway sub-account row,
	// nil when absent
	FindStripeManagedAccountByID(ctx context.Context, id int64) (*StripeManagedAccount, error)

	// Create inserts a payment account
	Create(ctx context.Context, account *PaymentAccount) error

	// CreateStripeManagedAccount inserts a gateway sub-account row
	CreateStripeManagedAccount(ctx context.Context, sma *StripeManagedAccount) error
}

// Transaction is a constituent transaction rolled up into a transfer
type Transaction struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	TransferID       *int64    `gorm:"index"`
	PaymentAccountID int64     `gorm:"not null;index"`
	Amount           int64     `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionSource lists the constituent transactions attached to a
// transfer so their sum can be reconciled against the transfer amount.
// Transfers with no attributed transactions skip reconciliation.
type TransactionSource interface {
	ListByTransferID(ctx context.Context, transferID int64) ([]Transaction, error)
}
