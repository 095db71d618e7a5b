package payout

import (
	"strings"
	"time"
)

// PaymentAccount is a merchant or dasher's payout destination. Read-mostly
// from the submission workflow's perspective.
type PaymentAccount struct {
	ID               int64         `gorm:"primaryKey;autoIncrement"`
	AccountType      AccountType   `gorm:"type:varchar(40);not null"`
	AccountID        *int64        `gorm:"index"` // reference to the gateway-managed sub-account row
	Entity           AccountEntity `gorm:"type:varchar(20);not null"`
	TransfersEnabled bool          `gorm:"not null;default:true"`
	StatementDescriptor string     `gorm:"type:varchar(64)"`
	CreatedAt        time.Time     `gorm:"not null"`
	UpdatedAt        time.Time     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentAccount) TableName() string {
	return "payment_accounts"
}

// HasManagedAccount returns true if a gateway sub-account reference is linked
func (a *PaymentAccount) HasManagedAccount() bool {
	return a.AccountID != nil
}

// IsDasher returns true for dasher-entity accounts, which hold no persistent
// gateway balance and therefore always need the full payout amount moved.
func (a *PaymentAccount) IsDasher() bool {
	return a.Entity == AccountEntityDasher
}

// StripeManagedAccount mirrors the gateway-hosted sub-account that receives
// internal transfers and originates payouts.
type StripeManagedAccount struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	StripeID         string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CountryShortname string    `gorm:"type:varchar(2);not null"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StripeManagedAccount) TableName() string {
	return "stripe_managed_accounts"
}

// countryCurrencies maps ISO country shortnames to payout currencies
var countryCurrencies = map[string]string{
	"US": "usd",
	"CA": "cad",
	"AU": "aud",
	"GB": "gbp",
	"DE": "eur",
	"NL": "eur",
	"JP": "jpy",
}

// CurrencyForCountry returns the payout currency for a country shortname,
// empty when the country is not supported.
func CurrencyForCountry(countryShortname string) string {
	return countryCurrencies[strings.ToUpper(countryShortname)]
}
