package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payout"
)

// GormStripeTransferRepository implements StripeTransferRepository using GORM
type GormStripeTransferRepository struct {
	db *gorm.DB
}

// NewGormStripeTransferRepository creates a new GormStripeTransferRepository
func NewGormStripeTransferRepository(db *gorm.DB) *GormStripeTransferRepository {
	return &GormStripeTransferRepository{db: db}
}

// Create inserts a submission attempt
func (r *GormStripeTransferRepository) Create(ctx context.Context, stripeTransfer *payout.StripeTransfer) error {
	return r.db.WithContext(ctx).Create(stripeTransfer).Error
}

// FindLatestByTransferID returns the most recent attempt for a transfer
func (r *GormStripeTransferRepository) FindLatestByTransferID(ctx context.Context, transferID int64) (*payout.StripeTransfer, error) {
	var st payout.StripeTransfer
	if err := r.db.WithContext(ctx).
		Where("transfer_id = ?", transferID).
		Order("id DESC").
		First(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// FindOngoingByTransferID returns attempts still in SUBMITTING state
func (r *GormStripeTransferRepository) FindOngoingByTransferID(ctx context.Context, transferID int64) ([]payout.StripeTransfer, error) {
	var attempts []payout.StripeTransfer
	if err := r.db.WithContext(ctx).
		Where("transfer_id = ? AND submission_status = ?", transferID, payout.SubmissionStatusSubmitting).
		Order("id ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// Update applies a partial update and returns the post-update row
func (r *GormStripeTransferRepository) Update(ctx context.Context, id int64, update payout.StripeTransferUpdate) (*payout.StripeTransfer, error) {
	values := map[string]any{}
	if update.SubmissionStatus != nil {
		values["submission_status"] = *update.SubmissionStatus
	}
	if update.StripeID != nil {
		values["stripe_id"] = *update.StripeID
	}
	if update.StripeStatus != nil {
		values["stripe_status"] = *update.StripeStatus
	}
	if update.StripeRequestID != nil {
		values["stripe_request_id"] = *update.StripeRequestID
	}
	if update.StripeAccountID != nil {
		values["stripe_account_id"] = *update.StripeAccountID
	}
	if update.StripeAccountType != nil {
		values["stripe_account_type"] = *update.StripeAccountType
	}
	if update.CountryShortname != nil {
		values["country_shortname"] = *update.CountryShortname
	}
	if update.BankName != nil {
		values["bank_name"] = *update.BankName
	}
	if update.BankLastFour != nil {
		values["bank_last_four"] = *update.BankLastFour
	}
	if update.SubmissionErrorType != nil {
		values["submission_error_type"] = *update.SubmissionErrorType
	}
	if update.SubmissionErrorCode != nil {
		values["submission_error_code"] = *update.SubmissionErrorCode
	}
	if update.SubmittedAt != nil {
		values["submitted_at"] = *update.SubmittedAt
	}

	if len(values) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&payout.StripeTransfer{}).
			Where("id = ?", id).
			Updates(values).Error; err != nil {
			return nil, err
		}
	}

	var st payout.StripeTransfer
	if err := r.db.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// Ensure GormStripeTransferRepository implements the interface
var _ payout.StripeTransferRepository = (*GormStripeTransferRepository)(nil)
