package payin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paysvc/backend/internal/domain/payin"
	"github.com/paysvc/backend/internal/domain/pgp"
	"github.com/paysvc/backend/internal/domain/shared"
)

// CreateCartPaymentRequest carries the parameters for recording a cart
// payment whose authorization already happened at the gateway
type CreateCartPaymentRequest struct {
	PayerID                 *uuid.UUID
	ReferenceID             string
	ReferenceType           string
	ClientDescription       string
	Amount                  int64
	Currency                string
	Country                 string
	DelayCapture            bool
	IdempotencyKey          string
	StatementDescriptor     string
	PgpResourceID           string
	PaymentMethodResourceID string
	CustomerResourceID      string
}

// CreateCartPaymentResult is the recorded cart payment with its intent pair
type CreateCartPaymentResult struct {
	CartPayment      *payin.CartPayment
	PaymentIntent    *payin.PaymentIntent
	PgpPaymentIntent *payin.PgpPaymentIntent
	Replayed         bool
}

// AdjustPaymentIntentRequest changes the capturable amount of an intent by a
// signed delta, keyed by idempotency key
type AdjustPaymentIntentRequest struct {
	PaymentIntentID uuid.UUID
	Delta           int64
	IdempotencyKey  string
}

// CreateRefundRequest refunds all or part of a captured intent
type CreateRefundRequest struct {
	PaymentIntentID uuid.UUID
	Amount          int64
	Reason          string
	IdempotencyKey  string
}

// SweepStats summarizes one automatic capture pass
type SweepStats struct {
	Captured  int
	Failed    int
	Recovered int
}

// CartPaymentConfig holds cart payment tuning
type CartPaymentConfig struct {
	// CaptureDelay is how long a delayed-capture intent stays adjustable
	// before the sweep captures it
	CaptureDelay time.Duration
	// StuckCaptureWindow is how long an intent may sit in capturing before
	// the recovery pass returns it to requires_capture
	StuckCaptureWindow time.Duration
}

// CartPaymentService drives the authorize-then-capture lifecycle of cart
// payments: intent creation, guarded capture and cancellation, amount
// adjustment, refunds, and the automatic capture sweep.
type CartPaymentService struct {
	repo    payin.CartPaymentRepository
	gateway pgp.PaymentClient
	config  CartPaymentConfig
	logger  *zap.Logger
}

// NewCartPaymentService creates a new CartPaymentService
func NewCartPaymentService(
	repo payin.CartPaymentRepository,
	gateway pgp.PaymentClient,
	config CartPaymentConfig,
	logger *zap.Logger,
) *CartPaymentService {
	if config.CaptureDelay == 0 {
		config.CaptureDelay = 2 * time.Hour
	}
	if config.StuckCaptureWindow == 0 {
		config.StuckCaptureWindow = 30 * time.Minute
	}
	return &CartPaymentService{
		repo:    repo,
		gateway: gateway,
		config:  config,
		logger:  logger,
	}
}

// CreateCartPayment records a cart payment and its payment intent pair.
// Replays on the same idempotency key return the original rows.
func (s *CartPaymentService) CreateCartPayment(ctx context.Context, req CreateCartPaymentRequest) (*CreateCartPaymentResult, error) {
	if req.Amount <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Cart payment amount must be positive")
	}
	if req.IdempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY", "Cart payment creation requires an idempotency key")
	}

	existing, err := s.repo.FindPaymentIntentByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("create cart payment: check idempotency key: %w", err)
	}
	if existing != nil {
		return s.replayCartPayment(ctx, existing)
	}

	cartPayment := &payin.CartPayment{
		ID:                uuid.New(),
		PayerID:           req.PayerID,
		AmountOriginal:    req.Amount,
		AmountTotal:       req.Amount,
		ReferenceID:       req.ReferenceID,
		ReferenceType:     req.ReferenceType,
		ClientDescription: req.ClientDescription,
		DelayCapture:      req.DelayCapture,
	}
	if err := s.repo.InsertCartPayment(ctx, cartPayment); err != nil {
		return nil, fmt.Errorf("create cart payment: insert cart payment: %w", err)
	}

	captureAfter := time.Now().UTC()
	if req.DelayCapture {
		captureAfter = captureAfter.Add(s.config.CaptureDelay)
	}
	intent := &payin.PaymentIntent{
		ID:                  uuid.New(),
		CartPaymentID:       cartPayment.ID,
		IdempotencyKey:      req.IdempotencyKey,
		AmountInitiated:     req.Amount,
		Amount:              req.Amount,
		Currency:            req.Currency,
		Country:             req.Country,
		Status:              payin.IntentStatusRequiresCapture,
		StatementDescriptor: req.StatementDescriptor,
		CaptureMethod:       "manual",
		CaptureAfter:        &captureAfter,
	}
	if err := s.repo.InsertPaymentIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("create cart payment: insert payment intent: %w", err)
	}

	pgpIntent := &payin.PgpPaymentIntent{
		ID:                      uuid.New(),
		PaymentIntentID:         intent.ID,
		IdempotencyKey:          req.IdempotencyKey,
		PgpCode:                 payin.PgpCodeStripe,
		ResourceID:              req.PgpResourceID,
		PaymentMethodResourceID: req.PaymentMethodResourceID,
		CustomerResourceID:      req.CustomerResourceID,
		Currency:                req.Currency,
		Amount:                  req.Amount,
		AmountCapturable:        req.Amount,
		Status:                  payin.IntentStatusRequiresCapture,
		CaptureMethod:           "manual",
	}
	if err := s.repo.InsertPgpPaymentIntent(ctx, pgpIntent); err != nil {
		return nil, fmt.Errorf("create cart payment: insert pgp payment intent: %w", err)
	}

	s.logger.Info("Created cart payment",
		zap.String("cart_payment_id", cartPayment.ID.String()),
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount", req.Amount),
		zap.Bool("delay_capture", req.DelayCapture))

	return &CreateCartPaymentResult{
		CartPayment:      cartPayment,
		PaymentIntent:    intent,
		PgpPaymentIntent: pgpIntent,
	}, nil
}

func (s *CartPaymentService) replayCartPayment(ctx context.Context, intent *payin.PaymentIntent) (*CreateCartPaymentResult, error) {
	cartPayment, err := s.repo.FindCartPaymentByID(ctx, intent.CartPaymentID)
	if err != nil {
		return nil, fmt.Errorf("create cart payment: load replayed cart payment: %w", err)
	}
	pgpIntent, err := s.latestPgpIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	return &CreateCartPaymentResult{
		CartPayment:      cartPayment,
		PaymentIntent:    intent,
		PgpPaymentIntent: pgpIntent,
		Replayed:         true,
	}, nil
}

// CapturePaymentIntent captures an authorized intent for its current amount.
// The transition to capturing is status-guarded, so concurrent captures of
// the same intent collapse to one gateway call.
func (s *CartPaymentService) CapturePaymentIntent(ctx context.Context, intentID uuid.UUID) (*payin.PaymentIntent, error) {
	intent, err := s.repo.FindPaymentIntentByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("capture payment intent: load intent: %w", err)
	}
	if intent == nil {
		return nil, payin.ErrPaymentIntentNotFound
	}
	if intent.Status == payin.IntentStatusSucceeded {
		return intent, nil
	}

	capturing, err := s.repo.UpdatePaymentIntentStatus(ctx, intent.ID,
		payin.IntentStatusCapturing, payin.IntentStatusRequiresCapture)
	if err != nil {
		return nil, fmt.Errorf("capture payment intent %s: %w", intent.ID, err)
	}

	pgpIntent, err := s.latestPgpIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}

	gwIntent, err := s.gateway.CapturePaymentIntent(ctx, pgpIntent.ResourceID, capturing.Amount)
	if err != nil {
		// Return the intent to requires_capture so the sweep can retry it.
		// A crash between here and the guard reset is what the stale-capture
		// recovery pass exists for.
		if _, revertErr := s.repo.UpdatePaymentIntentStatus(ctx, intent.ID,
			payin.IntentStatusRequiresCapture, payin.IntentStatusCapturing); revertErr != nil {
			s.logger.Error("Failed to revert intent after gateway capture failure",
				zap.String("payment_intent_id", intent.ID.String()),
				zap.Error(revertErr))
		}
		return nil, fmt.Errorf("capture payment intent %s: gateway capture: %w", intent.ID, err)
	}

	now := time.Now().UTC()
	pgpUpdate := payin.PgpPaymentIntentUpdate{
		AmountCapturable: &gwIntent.AmountCapturable,
		AmountReceived:   &gwIntent.AmountReceived,
		CapturedAt:       &now,
	}
	if gwIntent.ChargeResourceID != "" {
		pgpUpdate.ChargeResourceID = &gwIntent.ChargeResourceID
	}
	if _, err := s.repo.UpdatePgpPaymentIntent(ctx, pgpIntent.ID, pgpUpdate); err != nil {
		return nil, fmt.Errorf("capture payment intent %s: record gateway capture: %w", intent.ID, err)
	}

	updated, _, err := s.repo.UpdateIntentPairStatus(ctx, intent.ID, pgpIntent.ID, payin.IntentStatusSucceeded)
	if err != nil {
		return nil, fmt.Errorf("capture payment intent %s: update intent pair: %w", intent.ID, err)
	}
	if updated == nil {
		// Another writer already moved the pair; re-read and hand back the row
		return s.repo.FindPaymentIntentByID(ctx, intent.ID)
	}

	if _, err := s.repo.UpdatePaymentIntentCaptureState(ctx, intent.ID, payin.IntentStatusSucceeded, now); err != nil {
		return nil, fmt.Errorf("capture payment intent %s: record capture time: %w", intent.ID, err)
	}

	s.logger.Info("Captured payment intent",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount", capturing.Amount),
		zap.Int64("amount_received", gwIntent.AmountReceived))

	return s.repo.FindPaymentIntentByID(ctx, intent.ID)
}

// CancelPaymentIntent cancels an intent that has not been captured. Cancelling
// an already-cancelled intent is a no-op replay; a captured intent must be
// refunded instead.
func (s *CartPaymentService) CancelPaymentIntent(ctx context.Context, intentID uuid.UUID) (*payin.PaymentIntent, error) {
	intent, err := s.repo.FindPaymentIntentByID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("cancel payment intent: load intent: %w", err)
	}
	if intent == nil {
		return nil, payin.ErrPaymentIntentNotFound
	}
	if intent.Status == payin.IntentStatusCancelled {
		return intent, nil
	}
	if intent.Status == payin.IntentStatusSucceeded {
		return nil, shared.NewDomainError("INTENT_ALREADY_CAPTURED",
			"A captured payment intent cannot be cancelled, refund it instead")
	}

	pgpIntent, err := s.latestPgpIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.gateway.CancelPaymentIntent(ctx, pgpIntent.ResourceID); err != nil {
		return nil, fmt.Errorf("cancel payment intent %s: gateway cancel: %w", intent.ID, err)
	}

	now := time.Now().UTC()
	if _, err := s.repo.UpdatePgpPaymentIntent(ctx, pgpIntent.ID, payin.PgpPaymentIntentUpdate{
		CancelledAt: &now,
	}); err != nil {
		return nil, fmt.Errorf("cancel payment intent %s: record gateway cancel: %w", intent.ID, err)
	}

	updated, _, err := s.repo.UpdateIntentPairStatus(ctx, intent.ID, pgpIntent.ID, payin.IntentStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel payment intent %s: update intent pair: %w", intent.ID, err)
	}
	if updated == nil {
		return s.repo.FindPaymentIntentByID(ctx, intent.ID)
	}

	s.logger.Info("Cancelled payment intent",
		zap.String("payment_intent_id", intent.ID.String()))

	return updated, nil
}

// AdjustPaymentIntentAmount changes the capturable amount by a signed delta.
// Replays on the same idempotency key return the intent unchanged; the
// amount update and the history row land in one transaction.
func (s *CartPaymentService) AdjustPaymentIntentAmount(ctx context.Context, req AdjustPaymentIntentRequest) (*payin.PaymentIntent, error) {
	if req.IdempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY", "Amount adjustment requires an idempotency key")
	}

	history, err := s.repo.FindAdjustmentHistory(ctx, req.PaymentIntentID, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("adjust payment intent: check adjustment history: %w", err)
	}
	if history != nil {
		return s.repo.FindPaymentIntentByID(ctx, req.PaymentIntentID)
	}

	intent, err := s.repo.FindPaymentIntentByID(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("adjust payment intent: load intent: %w", err)
	}
	if intent == nil {
		return nil, payin.ErrPaymentIntentNotFound
	}
	if intent.Status != payin.IntentStatusRequiresCapture && intent.Status != payin.IntentStatusInit {
		return nil, shared.NewDomainError("INTENT_NOT_ADJUSTABLE",
			fmt.Sprintf("Payment intent in status %q cannot be adjusted", intent.Status))
	}

	newAmount := intent.Amount + req.Delta
	if newAmount < 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Adjusted amount cannot be negative")
	}
	if newAmount > intent.AmountInitiated {
		return nil, shared.NewDomainError("AMOUNT_EXCEEDS_AUTHORIZATION",
			"Adjusted amount cannot exceed the authorized amount")
	}

	cartPayment, err := s.repo.FindCartPaymentByID(ctx, intent.CartPaymentID)
	if err != nil {
		return nil, fmt.Errorf("adjust payment intent: load cart payment: %w", err)
	}

	row := &payin.PaymentIntentAdjustmentHistory{
		ID:              uuid.New(),
		PaymentIntentID: intent.ID,
		Amount:          newAmount,
		AmountOriginal:  intent.Amount,
		AmountDelta:     req.Delta,
		Currency:        intent.Currency,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if cartPayment != nil {
		row.PayerID = cartPayment.PayerID
	}

	updated, err := s.repo.AdjustPaymentIntentAmount(ctx, intent.ID, newAmount, row)
	if err != nil {
		return nil, fmt.Errorf("adjust payment intent %s: %w", intent.ID, err)
	}

	if cartPayment != nil {
		if _, err := s.repo.UpdateCartPaymentAmount(ctx, cartPayment.ID, cartPayment.AmountTotal+req.Delta); err != nil {
			return nil, fmt.Errorf("adjust payment intent %s: update cart payment total: %w", intent.ID, err)
		}
	}

	s.logger.Info("Adjusted payment intent amount",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("delta", req.Delta),
		zap.Int64("amount", newAmount))

	return updated, nil
}

// CreateRefund refunds all or part of a captured intent. Replays on the same
// idempotency key return the original refund.
func (s *CartPaymentService) CreateRefund(ctx context.Context, req CreateRefundRequest) (*payin.Refund, error) {
	if req.IdempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY", "Refund creation requires an idempotency key")
	}

	existing, err := s.repo.FindRefundByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("create refund: check idempotency key: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	intent, err := s.repo.FindPaymentIntentByID(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("create refund: load intent: %w", err)
	}
	if intent == nil {
		return nil, payin.ErrPaymentIntentNotFound
	}
	if intent.Status != payin.IntentStatusSucceeded {
		return nil, shared.NewDomainError("INTENT_NOT_CAPTURED",
			"Only a captured payment intent can be refunded")
	}
	if req.Amount <= 0 || req.Amount > intent.Amount {
		return nil, shared.NewDomainError("INVALID_AMOUNT",
			"Refund amount must be positive and within the captured amount")
	}

	pgpIntent, err := s.latestPgpIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	if pgpIntent.ChargeResourceID == "" {
		return nil, shared.NewDomainError("MISSING_CHARGE",
			"Payment intent has no captured charge to refund")
	}

	refund := &payin.Refund{
		ID:              uuid.New(),
		PaymentIntentID: intent.ID,
		IdempotencyKey:  req.IdempotencyKey,
		Status:          payin.RefundStatusProcessing,
		Amount:          req.Amount,
		Reason:          req.Reason,
	}
	if err := s.repo.InsertRefund(ctx, refund); err != nil {
		return nil, fmt.Errorf("create refund: insert refund: %w", err)
	}
	pgpRefund := &payin.PgpRefund{
		ID:             uuid.New(),
		RefundID:       refund.ID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         payin.RefundStatusProcessing,
		PgpCode:        payin.PgpCodeStripe,
		Amount:         req.Amount,
		Reason:         req.Reason,
	}
	if err := s.repo.InsertPgpRefund(ctx, pgpRefund); err != nil {
		return nil, fmt.Errorf("create refund: insert pgp refund: %w", err)
	}

	gwRefund, err := s.gateway.CreateRefund(ctx, pgpIntent.ChargeResourceID, req.Amount, req.IdempotencyKey)
	if err != nil {
		if _, updErr := s.repo.UpdateRefundStatus(ctx, refund.ID, payin.RefundStatusFailed); updErr != nil {
			s.logger.Error("Failed to mark refund failed",
				zap.String("refund_id", refund.ID.String()),
				zap.Error(updErr))
		}
		if _, updErr := s.repo.UpdatePgpRefund(ctx, pgpRefund.ID, payin.RefundStatusFailed, ""); updErr != nil {
			s.logger.Error("Failed to mark pgp refund failed",
				zap.String("refund_id", refund.ID.String()),
				zap.Error(updErr))
		}
		return nil, fmt.Errorf("create refund %s: gateway refund: %w", refund.ID, err)
	}

	updated, err := s.repo.UpdateRefundStatus(ctx, refund.ID, payin.RefundStatusSucceeded)
	if err != nil {
		return nil, fmt.Errorf("create refund %s: record success: %w", refund.ID, err)
	}
	if _, err := s.repo.UpdatePgpRefund(ctx, pgpRefund.ID, payin.RefundStatusSucceeded, gwRefund.ID); err != nil {
		return nil, fmt.Errorf("create refund %s: record gateway refund: %w", refund.ID, err)
	}

	s.logger.Info("Created refund",
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount", req.Amount))

	return updated, nil
}

// CaptureDuePaymentIntents walks intents whose capture window elapsed and
// captures each one. A failing capture is logged and skipped so one bad
// intent cannot stall the sweep.
func (s *CartPaymentService) CaptureDuePaymentIntents(ctx context.Context, batchSize int) (SweepStats, error) {
	var stats SweepStats
	cutoff := time.Now().UTC()

	err := s.repo.ListPaymentIntentsRequiringCapture(ctx, cutoff, batchSize, func(intent payin.PaymentIntent) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.CapturePaymentIntent(ctx, intent.ID); err != nil {
			stats.Failed++
			s.logger.Warn("Sweep capture failed",
				zap.String("payment_intent_id", intent.ID.String()),
				zap.Error(err))
			return nil
		}
		stats.Captured++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("capture sweep: %w", err)
	}
	return stats, nil
}

// RecoverStuckCaptures returns intents stuck in capturing past the staleness
// window to requires_capture so the next sweep retries them
func (s *CartPaymentService) RecoverStuckCaptures(ctx context.Context) (int, error) {
	olderThan := time.Now().UTC().Add(-s.config.StuckCaptureWindow)
	stuck, err := s.repo.ListPaymentIntentsStuckInCapturing(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("recover stuck captures: %w", err)
	}

	recovered := 0
	for _, intent := range stuck {
		if _, err := s.repo.UpdatePaymentIntentStatus(ctx, intent.ID,
			payin.IntentStatusRequiresCapture, payin.IntentStatusCapturing); err != nil {
			s.logger.Warn("Failed to recover stuck capture",
				zap.String("payment_intent_id", intent.ID.String()),
				zap.Error(err))
			continue
		}
		recovered++
		s.logger.Info("Recovered intent stuck in capturing",
			zap.String("payment_intent_id", intent.ID.String()))
	}
	return recovered, nil
}

// CountProblematicIntents counts non-terminal intents whose capture window
// elapsed longer ago than the threshold. Exposed for sweep health reporting.
func (s *CartPaymentService) CountProblematicIntents(ctx context.Context, threshold time.Duration) (int64, error) {
	count, err := s.repo.CountPaymentIntentsInProblematicState(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("count problematic intents: %w", err)
	}
	return count, nil
}

// latestPgpIntent returns the most recent gateway mirror row for an intent
func (s *CartPaymentService) latestPgpIntent(ctx context.Context, intentID uuid.UUID) (*payin.PgpPaymentIntent, error) {
	rows, err := s.repo.FindPgpPaymentIntentsByPaymentIntentID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("load pgp payment intents for %s: %w", intentID, err)
	}
	if len(rows) == 0 {
		return nil, shared.NewDomainError("MISSING_PGP_INTENT",
			"Payment intent has no gateway-side record")
	}
	return &rows[len(rows)-1], nil
}
