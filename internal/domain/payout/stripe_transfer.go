package payout

import (
	"time"
)

// StripeTransfer records one gateway submission attempt for a transfer.
// It is created in SUBMITTING state before the gateway is called so that a
// crash mid-submission still leaves evidence that an attempt was made.
type StripeTransfer struct {
	ID                  int64            `gorm:"primaryKey;autoIncrement"`
	TransferID          int64            `gorm:"not null;index"`
	SubmissionStatus    SubmissionStatus `gorm:"type:varchar(20);not null"`
	StripeID            string           `gorm:"type:varchar(64);index"`
	StripeStatus        string           `gorm:"type:varchar(32)"`
	StripeRequestID     string           `gorm:"type:varchar(64)"`
	StripeAccountID     string           `gorm:"type:varchar(64)"`
	StripeAccountType   AccountType      `gorm:"type:varchar(40)"`
	CountryShortname    string           `gorm:"type:varchar(2)"`
	BankName            string           `gorm:"type:varchar(100)"`
	BankLastFour        string           `gorm:"type:varchar(4)"`
	SubmissionErrorType string           `gorm:"type:varchar(40)"`
	SubmissionErrorCode string           `gorm:"type:varchar(64)"`
	SubmittedAt         *time.Time
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StripeTransfer) TableName() string {
	return "stripe_transfers"
}

// HasGatewayID returns true once the gateway assigned a payout id to this
// attempt; such an attempt must never be resubmitted.
func (s *StripeTransfer) HasGatewayID() bool {
	return s.StripeID != ""
}

// StripeTransferUpdate is a partial update applied to a submission attempt
type StripeTransferUpdate struct {
	SubmissionStatus    *SubmissionStatus
	StripeID            *string
	StripeStatus        *string
	StripeRequestID     *string
	StripeAccountID     *string
	StripeAccountType   *AccountType
	CountryShortname    *string
	BankName            *string
	BankLastFour        *string
	SubmissionErrorType *string
	SubmissionErrorCode *string
	SubmittedAt         *time.Time
}
