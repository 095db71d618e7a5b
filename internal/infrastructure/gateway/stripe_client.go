package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/balance"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/payout"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/transfer"
	"go.uber.org/zap"

	"github.com/paysvc/backend/internal/domain/pgp"
)

// StripeClient implements the gateway contracts on top of Stripe. One client
// serves both the payout side (payouts, transfers, balances against managed
// accounts) and the payin side (payment intent capture/cancel, refunds).
type StripeClient struct {
	config *StripeConfig
	logger *zap.Logger
}

var (
	_ pgp.PayoutClient  = (*StripeClient)(nil)
	_ pgp.PaymentClient = (*StripeClient)(nil)
)

// NewStripeClient creates a new Stripe gateway client
func NewStripeClient(config *StripeConfig, logger *zap.Logger) (*StripeClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Initialize Stripe client
	config.InitStripeClient()

	return &StripeClient{
		config: config,
		logger: logger,
	}, nil
}

// CreatePayout creates a payout from a managed account to its external bank
// account. The call runs in the managed account's context.
func (c *StripeClient) CreatePayout(ctx context.Context, req pgp.CreatePayoutRequest) (*pgp.Payout, error) {
	c.logger.Debug("Creating Stripe payout",
		zap.String("stripe_account_id", req.StripeAccountID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency))

	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Method:   stripe.String("standard"),
	}
	if req.StatementDescriptor != "" {
		params.StatementDescriptor = stripe.String(req.StatementDescriptor)
	}
	params.SetStripeAccount(req.StripeAccountID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	po, err := payout.New(params)
	if err != nil {
		c.logger.Error("Failed to create Stripe payout",
			zap.String("stripe_account_id", req.StripeAccountID),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return nil, mapStripeError(err, "create payout")
	}

	c.logger.Info("Created Stripe payout",
		zap.String("stripe_account_id", req.StripeAccountID),
		zap.String("payout_id", po.ID),
		zap.String("status", string(po.Status)))

	out := &pgp.Payout{
		ID:     po.ID,
		Status: string(po.Status),
	}
	if po.Destination != nil && po.Destination.BankAccount != nil {
		out.BankAccount = &pgp.BankAccount{
			BankName: po.Destination.BankAccount.BankName,
			Last4:    po.Destination.BankAccount.Last4,
		}
	}
	return out, nil
}

// CreateTransfer moves funds from the platform account into a managed account
func (c *StripeClient) CreateTransfer(ctx context.Context, req pgp.CreateTransferRequest) (*pgp.Transfer, error) {
	c.logger.Debug("Creating Stripe transfer",
		zap.String("destination", req.Destination),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency))

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.Destination),
	}

	tr, err := transfer.New(params)
	if err != nil {
		c.logger.Error("Failed to create Stripe transfer",
			zap.String("destination", req.Destination),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return nil, mapStripeError(err, "create transfer")
	}

	c.logger.Info("Created Stripe transfer",
		zap.String("destination", req.Destination),
		zap.String("transfer_id", tr.ID))

	return &pgp.Transfer{ID: tr.ID}, nil
}

// GetAccountBalance returns the available balance of a managed account for
// one currency, in minor units. Currencies without an available entry
// report zero.
func (c *StripeClient) GetAccountBalance(ctx context.Context, stripeAccountID, currency string) (int64, error) {
	c.logger.Debug("Getting Stripe account balance",
		zap.String("stripe_account_id", stripeAccountID),
		zap.String("currency", currency))

	params := &stripe.BalanceParams{}
	params.SetStripeAccount(stripeAccountID)

	bal, err := balance.Get(params)
	if err != nil {
		c.logger.Error("Failed to get Stripe account balance",
			zap.String("stripe_account_id", stripeAccountID),
			zap.Error(err))
		return 0, mapStripeError(err, "get balance")
	}

	want := stripe.Currency(strings.ToLower(currency))
	for _, amount := range bal.Available {
		if amount.Currency == want {
			return amount.Amount, nil
		}
	}
	return 0, nil
}

// CapturePaymentIntent captures an authorized payment intent for the given
// amount
func (c *StripeClient) CapturePaymentIntent(ctx context.Context, resourceID string, amountToCapture int64) (*pgp.PaymentIntent, error) {
	c.logger.Debug("Capturing Stripe payment intent",
		zap.String("resource_id", resourceID),
		zap.Int64("amount_to_capture", amountToCapture))

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(amountToCapture),
	}

	pi, err := paymentintent.Capture(resourceID, params)
	if err != nil {
		c.logger.Error("Failed to capture Stripe payment intent",
			zap.String("resource_id", resourceID),
			zap.Error(err))
		return nil, mapStripeError(err, "capture payment intent")
	}

	c.logger.Info("Captured Stripe payment intent",
		zap.String("resource_id", pi.ID),
		zap.String("status", string(pi.Status)))

	return mapPaymentIntent(pi), nil
}

// CancelPaymentIntent cancels an authorized payment intent
func (c *StripeClient) CancelPaymentIntent(ctx context.Context, resourceID string) (*pgp.PaymentIntent, error) {
	c.logger.Debug("Canceling Stripe payment intent", zap.String("resource_id", resourceID))

	pi, err := paymentintent.Cancel(resourceID, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		c.logger.Error("Failed to cancel Stripe payment intent",
			zap.String("resource_id", resourceID),
			zap.Error(err))
		return nil, mapStripeError(err, "cancel payment intent")
	}

	c.logger.Info("Canceled Stripe payment intent",
		zap.String("resource_id", pi.ID),
		zap.String("status", string(pi.Status)))

	return mapPaymentIntent(pi), nil
}

// CreateRefund refunds all or part of a captured charge. The caller's
// idempotency key is forwarded so gateway-side replays return the original
// refund.
func (c *StripeClient) CreateRefund(ctx context.Context, chargeResourceID string, amount int64, idempotencyKey string) (*pgp.Refund, error) {
	c.logger.Debug("Creating Stripe refund",
		zap.String("charge_resource_id", chargeResourceID),
		zap.Int64("amount", amount))

	params := &stripe.RefundParams{
		Charge: stripe.String(chargeResourceID),
		Amount: stripe.Int64(amount),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	rf, err := refund.New(params)
	if err != nil {
		c.logger.Error("Failed to create Stripe refund",
			zap.String("charge_resource_id", chargeResourceID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, mapStripeError(err, "create refund")
	}

	c.logger.Info("Created Stripe refund",
		zap.String("charge_resource_id", chargeResourceID),
		zap.String("refund_id", rf.ID),
		zap.String("status", string(rf.Status)))

	return &pgp.Refund{
		ID:     rf.ID,
		Status: string(rf.Status),
	}, nil
}

func mapPaymentIntent(pi *stripe.PaymentIntent) *pgp.PaymentIntent {
	out := &pgp.PaymentIntent{
		ResourceID:       pi.ID,
		Status:           string(pi.Status),
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
	}
	if pi.LatestCharge != nil {
		out.ChargeResourceID = pi.LatestCharge.ID
	}
	return out
}

// mapStripeError converts a Stripe failure into the structured gateway error.
// Non-Stripe failures (network, context cancellation) are wrapped as-is so
// callers can still distinguish them from gateway rejections.
func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &pgp.Error{
			Type:      string(stripeErr.Type),
			Code:      string(stripeErr.Code),
			RequestID: stripeErr.RequestID,
			Message:   stripeErr.Msg,
		}
	}
	return fmt.Errorf("stripe: failed to %s: %w", op, err)
}
