package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/paysvc/backend/internal/domain/payin"
)

// CreateCartPaymentRequest is the request body for recording a cart payment
type CreateCartPaymentRequest struct {
	PayerID                 *uuid.UUID `json:"payer_id"`
	ReferenceID             string     `json:"reference_id" binding:"required,max=64"`
	ReferenceType           string     `json:"reference_type" binding:"required,max=32"`
	ClientDescription       string     `json:"client_description" binding:"omitempty,max=255"`
	Amount                  int64      `json:"amount" binding:"required,gt=0"`
	Currency                string     `json:"currency" binding:"required,len=3"`
	Country                 string     `json:"country" binding:"required,len=2"`
	DelayCapture            bool       `json:"delay_capture"`
	IdempotencyKey          string     `json:"idempotency_key" binding:"required,max=255"`
	StatementDescriptor     string     `json:"statement_descriptor" binding:"omitempty,max=64"`
	PgpResourceID           string     `json:"pgp_resource_id" binding:"omitempty,max=64"`
	PaymentMethodResourceID string     `json:"payment_method_resource_id" binding:"required,max=64"`
	CustomerResourceID      string     `json:"customer_resource_id" binding:"omitempty,max=64"`
}

// AdjustPaymentIntentRequest is the request body for an amount adjustment
type AdjustPaymentIntentRequest struct {
	Delta          int64  `json:"delta" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=255"`
}

// CreateRefundRequest is the request body for refunding a captured intent
type CreateRefundRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Reason         string `json:"reason" binding:"omitempty,max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=255"`
}

// CartPaymentResponse is the API view of a cart payment
type CartPaymentResponse struct {
	ID                uuid.UUID  `json:"id"`
	PayerID           *uuid.UUID `json:"payer_id,omitempty"`
	AmountOriginal    int64      `json:"amount_original"`
	AmountTotal       int64      `json:"amount_total"`
	ReferenceID       string     `json:"reference_id"`
	ReferenceType     string     `json:"reference_type"`
	ClientDescription string     `json:"client_description,omitempty"`
	DelayCapture      bool       `json:"delay_capture"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PaymentIntentResponse is the API view of a payment intent
type PaymentIntentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CartPaymentID       uuid.UUID  `json:"cart_payment_id"`
	AmountInitiated     int64      `json:"amount_initiated"`
	Amount              int64      `json:"amount"`
	Currency            string     `json:"currency"`
	Country             string     `json:"country"`
	Status              string     `json:"status"`
	StatementDescriptor string     `json:"statement_descriptor,omitempty"`
	CaptureMethod       string     `json:"capture_method"`
	CaptureAfter        *time.Time `json:"capture_after,omitempty"`
	CapturedAt          *time.Time `json:"captured_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RefundResponse is the API view of a refund
type RefundResponse struct {
	ID              uuid.UUID `json:"id"`
	PaymentIntentID uuid.UUID `json:"payment_intent_id"`
	Status          string    `json:"status"`
	Amount          int64     `json:"amount"`
	Reason          string    `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateCartPaymentResponse bundles the cart payment with its intent
type CreateCartPaymentResponse struct {
	CartPayment   CartPaymentResponse   `json:"cart_payment"`
	PaymentIntent PaymentIntentResponse `json:"payment_intent"`
	Replayed      bool                  `json:"replayed"`
}

// ToCartPaymentResponse converts a cart payment to its API view
func ToCartPaymentResponse(cp *payin.CartPayment) CartPaymentResponse {
	return CartPaymentResponse{
		ID:                cp.ID,
		PayerID:           cp.PayerID,
		AmountOriginal:    cp.AmountOriginal,
		AmountTotal:       cp.AmountTotal,
		ReferenceID:       cp.ReferenceID,
		ReferenceType:     cp.ReferenceType,
		ClientDescription: cp.ClientDescription,
		DelayCapture:      cp.DelayCapture,
		CreatedAt:         cp.CreatedAt,
		UpdatedAt:         cp.UpdatedAt,
	}
}

// ToPaymentIntentResponse converts a payment intent to its API view
func ToPaymentIntentResponse(pi *payin.PaymentIntent) PaymentIntentResponse {
	return PaymentIntentResponse{
		ID:                  pi.ID,
		CartPaymentID:       pi.CartPaymentID,
		AmountInitiated:     pi.AmountInitiated,
		Amount:              pi.Amount,
		Currency:            pi.Currency,
		Country:             pi.Country,
		Status:              string(pi.Status),
		StatementDescriptor: pi.StatementDescriptor,
		CaptureMethod:       pi.CaptureMethod,
		CaptureAfter:        pi.CaptureAfter,
		CapturedAt:          pi.CapturedAt,
		CancelledAt:         pi.CancelledAt,
		CreatedAt:           pi.CreatedAt,
		UpdatedAt:           pi.UpdatedAt,
	}
}

// ToRefundResponse converts a refund to its API view
func ToRefundResponse(r *payin.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		PaymentIntentID: r.PaymentIntentID,
		Status:          string(r.Status),
		Amount:          r.Amount,
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
