// Package pgp defines the contract this service consumes from the payment
// gateway provider. The provider itself is an opaque remote service; only
// the call surface and the structured error shape are modeled here.
package pgp

import (
	"context"
	"errors"
)

// Error is a structured gateway failure. Code and Type carry the gateway's
// own classification; RequestID is set when the gateway accepted the request
// before rejecting it, which matters for submission bookkeeping.
type Error struct {
	Type      string
	Code      string
	RequestID string
	Message   string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Code != "" {
		return "gateway: " + e.Code + ": " + e.Message
	}
	return "gateway: " + e.Message
}

// AsError unwraps a gateway error from err, nil when err is not one
func AsError(err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return nil
}

// BankAccount describes the destination bank account of a payout
type BankAccount struct {
	BankName string
	Last4    string
}

// Payout is the gateway resource created when funds move from a managed
// account to an external bank account
type Payout struct {
	ID          string
	Status      string
	BankAccount *BankAccount
}

// Transfer is the gateway resource created when funds move between the
// platform account and a managed sub-account
type Transfer struct {
	ID string
}

// CreatePayoutRequest asks the gateway to pay out from a managed account
type CreatePayoutRequest struct {
	Amount              int64
	Currency            string
	Country             string
	StripeAccountID     string
	StatementDescriptor string
	Metadata            map[string]string
}

// CreateTransferRequest asks the gateway to move funds platform -> managed account
type CreateTransferRequest struct {
	Amount      int64
	Currency    string
	Country     string
	Destination string
}

// PayoutClient is the gateway surface the transfer submission workflow uses
type PayoutClient interface {
	// CreatePayout creates a payout from the managed account to its bank account
	CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error)

	// CreateTransfer moves funds from the platform account to a managed account
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error)

	// GetAccountBalance returns the available balance of a managed account
	// for one currency, in minor units
	GetAccountBalance(ctx context.Context, stripeAccountID, currency string) (int64, error)
}

// PaymentIntent is the gateway-side view of a payment intent after an operation
type PaymentIntent struct {
	ResourceID       string
	ChargeResourceID string
	Status           string
	AmountCapturable int64
	AmountReceived   int64
}

// Refund is the gateway refund resource
type Refund struct {
	ID     string
	Status string
}

// PaymentClient is the gateway surface the cart payment workflow uses
type PaymentClient interface {
	// CapturePaymentIntent captures an authorized payment intent
	CapturePaymentIntent(ctx context.Context, resourceID string, amountToCapture int64) (*PaymentIntent, error)

	// CancelPaymentIntent cancels an authorized payment intent
	CancelPaymentIntent(ctx context.Context, resourceID string) (*PaymentIntent, error)

	// CreateRefund refunds all or part of a captured charge, keyed by the
	// caller's idempotency key
	CreateRefund(ctx context.Context, chargeResourceID string, amount int64, idempotencyKey string) (*Refund, error)
}
