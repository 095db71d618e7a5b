package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/paysvc/backend/internal/domain/payout"
)

// GormPaymentAccountRepository implements PaymentAccountRepository using GORM
type GormPaymentAccountRepository struct {
	db *gorm.DB
}

// NewGormPaymentAccountRepository creates a new GormPaymentAccountRepository
func NewGormPaymentAccountRepository(db *gorm.DB) *GormPaymentAccountRepository {
	return &GormPaymentAccountRepository{db: db}
}

// FindByID finds a payment account by ID
func (r *GormPaymentAccountRepository) FindByID(ctx context.Context, id int64) (*payout.PaymentAccount, error) {
	var account payout.PaymentAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// FindStripeManagedAccountByID finds the linked gateway sub-account row
func (r *GormPaymentAccountRepository) FindStripeManagedAccountByID(ctx context.Context, id int64) (*payout.StripeManagedAccount, error) {
	var sma payout.StripeManagedAccount
	if err := r.db.WithContext(ctx).First(&sma, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sma, nil
}

// Create inserts a payment account
func (r *GormPaymentAccountRepository) Create(ctx context.Context, account *payout.PaymentAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// CreateStripeManagedAccount inserts a gateway sub-account row
func (r *GormPaymentAccountRepository) CreateStripeManagedAccount(ctx context.Context, sma *payout.StripeManagedAccount) error {
	return r.db.WithContext(ctx).Create(sma).Error
}

// Ensure GormPaymentAccountRepository implements the interface
var _ payout.PaymentAccountRepository = (*GormPaymentAccountRepository)(nil)
