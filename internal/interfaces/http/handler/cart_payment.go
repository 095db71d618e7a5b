package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	payinapp "github.com/paysvc/backend/internal/application/payin"
	"github.com/paysvc/backend/internal/domain/payin"
	"github.com/paysvc/backend/internal/infrastructure/telemetry"
	"github.com/paysvc/backend/internal/interfaces/http/dto"
)

// CartPaymentApplication is the slice of the cart payment service the handler consumes
type CartPaymentApplication interface {
	CreateCartPayment(ctx context.Context, req payinapp.CreateCartPaymentRequest) (*payinapp.CreateCartPaymentResult, error)
	CapturePaymentIntent(ctx context.Context, intentID uuid.UUID) (*payin.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID uuid.UUID) (*payin.PaymentIntent, error)
	AdjustPaymentIntentAmount(ctx context.Context, req payinapp.AdjustPaymentIntentRequest) (*payin.PaymentIntent, error)
	CreateRefund(ctx context.Context, req payinapp.CreateRefundRequest) (*payin.Refund, error)
}

// CartPaymentHandler handles cart payment API endpoints
type CartPaymentHandler struct {
	BaseHandler
	service CartPaymentApplication
	metrics *telemetry.PaymentMetrics
}

// NewCartPaymentHandler creates a new CartPaymentHandler
func NewCartPaymentHandler(service CartPaymentApplication, metrics *telemetry.PaymentMetrics) *CartPaymentHandler {
	return &CartPaymentHandler{
		service: service,
		metrics: metrics,
	}
}

// RegisterRoutes registers cart payment routes
func (h *CartPaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/cart_payments", h.Create)

	intents := rg.Group("/payment_intents")
	{
		intents.POST("/:id/capture", h.Capture)
		intents.POST("/:id/cancel", h.Cancel)
		intents.POST("/:id/adjust", h.Adjust)
		intents.POST("/:id/refunds", h.Refund)
	}
}

// Create records a cart payment with its payment intent pair
func (h *CartPaymentHandler) Create(c *gin.Context) {
	var req dto.CreateCartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateCartPayment(c.Request.Context(), payinapp.CreateCartPaymentRequest{
		PayerID:                 req.PayerID,
		ReferenceID:             req.ReferenceID,
		ReferenceType:           req.ReferenceType,
		ClientDescription:       req.ClientDescription,
		Amount:                  req.Amount,
		Currency:                req.Currency,
		Country:                 req.Country,
		DelayCapture:            req.DelayCapture,
		IdempotencyKey:          req.IdempotencyKey,
		StatementDescriptor:     req.StatementDescriptor,
		PgpResourceID:           req.PgpResourceID,
		PaymentMethodResourceID: req.PaymentMethodResourceID,
		CustomerResourceID:      req.CustomerResourceID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.CreateCartPaymentResponse{
		CartPayment:   dto.ToCartPaymentResponse(result.CartPayment),
		PaymentIntent: dto.ToPaymentIntentResponse(result.PaymentIntent),
		Replayed:      result.Replayed,
	}
	if result.Replayed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Capture captures the authorized amount of a payment intent
func (h *CartPaymentHandler) Capture(c *gin.Context) {
	intentID, ok := h.intentID(c)
	if !ok {
		return
	}

	intent, err := h.service.CapturePaymentIntent(c.Request.Context(), intentID)
	if err != nil {
		h.metrics.RecordCapture(c.Request.Context(), "failed")
		h.HandleError(c, err)
		return
	}

	h.metrics.RecordCapture(c.Request.Context(), "captured")
	h.Success(c, dto.ToPaymentIntentResponse(intent))
}

// Cancel cancels an uncaptured payment intent
func (h *CartPaymentHandler) Cancel(c *gin.Context) {
	intentID, ok := h.intentID(c)
	if !ok {
		return
	}

	intent, err := h.service.CancelPaymentIntent(c.Request.Context(), intentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToPaymentIntentResponse(intent))
}

// Adjust changes the capturable amount of a payment intent by a signed delta
func (h *CartPaymentHandler) Adjust(c *gin.Context) {
	intentID, ok := h.intentID(c)
	if !ok {
		return
	}

	var req dto.AdjustPaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	intent, err := h.service.AdjustPaymentIntentAmount(c.Request.Context(), payinapp.AdjustPaymentIntentRequest{
		PaymentIntentID: intentID,
		Delta:           req.Delta,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToPaymentIntentResponse(intent))
}

// Refund refunds all or part of a captured payment intent
func (h *CartPaymentHandler) Refund(c *gin.Context) {
	intentID, ok := h.intentID(c)
	if !ok {
		return
	}

	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	refund, err := h.service.CreateRefund(c.Request.Context(), payinapp.CreateRefundRequest{
		PaymentIntentID: intentID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.metrics.RecordRefund(c.Request.Context(), "failed")
		h.HandleError(c, err)
		return
	}

	h.metrics.RecordRefund(c.Request.Context(), "succeeded")
	h.Created(c, dto.ToRefundResponse(refund))
}

func (h *CartPaymentHandler) intentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment intent ID")
		return uuid.Nil, false
	}
	return id, true
}
