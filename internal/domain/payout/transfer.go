package payout

import (
	"time"
)

// Transfer records a platform obligation to pay out an amount to the bank
// account behind a payment account. Created by upstream invoicing and mutated
// exclusively by the submission workflow; never hard-deleted.
type Transfer struct {
	ID               int64               `gorm:"primaryKey;autoIncrement"`
	PaymentAccountID int64               `gorm:"not null;index"`
	Amount           int64               `gorm:"not null"` // currency minor units
	SubtotalAmount   int64               `gorm:"not null"`
	Currency         string              `gorm:"type:varchar(3)"`
	Status           TransferStatus      `gorm:"type:varchar(20);not null;default:'NEW';index"`
	StatusCode       *TransferStatusCode `gorm:"type:varchar(40)"`
	Method           TransferMethod      `gorm:"type:varchar(20);not null;default:'STRIPE'"`
	SubmittedAt      *time.Time
	SubmittedByID    *int64
	DeletedAt        *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Transfer) TableName() string {
	return "transfers"
}

// IsDeleted returns true if the transfer was soft deleted
func (t *Transfer) IsDeleted() bool {
	return t.DeletedAt != nil
}

// WasSubmitted returns true if a prior submission cycle completed
func (t *Transfer) WasSubmitted() bool {
	return t.SubmittedAt != nil
}

// TransferUpdate is a partial update applied to a transfer row.
// Nil fields are left untouched; SetStatusCode/SetSubmittedBy distinguish
// "clear the column" from "leave it alone".
type TransferUpdate struct {
	Status        *TransferStatus
	StatusCode    **TransferStatusCode
	Currency      *string
	Method        *TransferMethod
	SubmittedAt   *time.Time
	SubmittedByID **int64
}

// SetStatus sets the target status
func (u *TransferUpdate) SetStatus(s TransferStatus) *TransferUpdate {
	u.Status = &s
	return u
}

// SetStatusCode sets the status code column, nil clears it
func (u *TransferUpdate) SetStatusCode(c *TransferStatusCode) *TransferUpdate {
	u.StatusCode = &c
	return u
}

// SetCurrency sets the currency column
func (u *TransferUpdate) SetCurrency(currency string) *TransferUpdate {
	u.Currency = &currency
	return u
}

// SetMethod sets the method column
func (u *TransferUpdate) SetMethod(m TransferMethod) *TransferUpdate {
	u.Method = &m
	return u
}

// SetSubmittedAt sets the submission timestamp
func (u *TransferUpdate) SetSubmittedAt(at time.Time) *TransferUpdate {
	u.SubmittedAt = &at
	return u
}

// SetSubmittedBy sets the submitting user column, nil clears it
func (u *TransferUpdate) SetSubmittedBy(id *int64) *TransferUpdate {
	u.SubmittedByID = &id
	return u
}
