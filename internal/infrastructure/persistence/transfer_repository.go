package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payout"
)

// GormTransferRepository implements TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// FindByID finds a transfer by ID
func (r *GormTransferRepository) FindByID(ctx context.Context, id int64) (*payout.Transfer, error) {
	var t payout.Transfer
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a transfer
func (r *GormTransferRepository) Create(ctx context.Context, transfer *payout.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

// Update applies a partial update and returns the post-update row. Nil fields
// are left untouched; double-pointer fields clear the column when their inner
// pointer is nil.
func (r *GormTransferRepository) Update(ctx context.Context, id int64, update payout.TransferUpdate) (*payout.Transfer, error) {
	values := map[string]any{}
	if update.Status != nil {
		values["status"] = *update.Status
	}
	if update.StatusCode != nil {
		values["status_code"] = *update.StatusCode
	}
	if update.Currency != nil {
		values["currency"] = *update.Currency
	}
	if update.Method != nil {
		values["method"] = *update.Method
	}
	if update.SubmittedAt != nil {
		values["submitted_at"] = *update.SubmittedAt
	}
	if update.SubmittedByID != nil {
		values["submitted_by_id"] = *update.SubmittedByID
	}

	if len(values) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&payout.Transfer{}).
			Where("id = ?", id).
			Updates(values).Error; err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

// Ensure GormTransferRepository implements the interface
var _ payout.TransferRepository = (*GormTransferRepository)(nil)
