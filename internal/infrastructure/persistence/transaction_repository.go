package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payout"
)

// GormTransactionRepository implements TransactionSource using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// ListByTransferID lists the constituent transactions attached to a transfer
func (r *GormTransactionRepository) ListByTransferID(ctx context.Context, transferID int64) ([]payout.Transaction, error) {
	var txns []payout.Transaction
	if err := r.db.WithContext(ctx).
		Where("transfer_id = ?", transferID).
		Order("id ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// Ensure GormTransactionRepository implements the interface
var _ payout.TransactionSource = (*GormTransactionRepository)(nil)
