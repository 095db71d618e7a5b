package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payout"
)

// GormManagedAccountTransferRepository implements ManagedAccountTransferRepository using GORM
type GormManagedAccountTransferRepository struct {
	db *gorm.DB
}

// NewGormManagedAccountTransferRepository creates a new GormManagedAccountTransferRepository
func NewGormManagedAccountTransferRepository(db *gorm.DB) *GormManagedAccountTransferRepository {
	return &GormManagedAccountTransferRepository{db: db}
}

// Create inserts a settlement leg
func (r *GormManagedAccountTransferRepository) Create(ctx context.Context, mat *payout.ManagedAccountTransfer) error {
	return r.db.WithContext(ctx).Create(mat).Error
}

// FindByTransferID returns the settlement leg for a transfer
func (r *GormManagedAccountTransferRepository) FindByTransferID(ctx context.Context, transferID int64) (*payout.ManagedAccountTransfer, error) {
	var mat payout.ManagedAccountTransfer
	if err := r.db.WithContext(ctx).
		First(&mat, "transfer_id = ?", transferID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mat, nil
}

// Update applies a partial update and returns the post-update row
func (r *GormManagedAccountTransferRepository) Update(ctx context.Context, id int64, update payout.ManagedAccountTransferUpdate) (*payout.ManagedAccountTransfer, error) {
	values := map[string]any{}
	if update.Amount != nil {
		values["amount"] = *update.Amount
	}
	if update.StripeID != nil {
		values["stripe_id"] = *update.StripeID
	}
	if update.StripeStatus != nil {
		values["stripe_status"] = *update.StripeStatus
	}
	if update.SubmittedAt != nil {
		values["submitted_at"] = *update.SubmittedAt
	}

	if len(values) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&payout.ManagedAccountTransfer{}).
			Where("id = ?", id).
			Updates(values).Error; err != nil {
			return nil, err
		}
	}

	var mat payout.ManagedAccountTransfer
	if err := r.db.WithContext(ctx).First(&mat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mat, nil
}

// Ensure GormManagedAccountTransferRepository implements the interface
var _ payout.ManagedAccountTransferRepository = (*GormManagedAccountTransferRepository)(nil)
