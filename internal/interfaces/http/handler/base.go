// Package handler provides HTTP request handlers
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paysvc/backend/internal/domain/payin"
	"github.com/paysvc/backend/internal/domain/payout"
	"github.com/paysvc/backend/internal/domain/shared"
	"github.com/paysvc/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct{}

// Success sends a successful response with data
func (h *BaseHandler) Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response with data
func (h *BaseHandler) Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the mapped HTTP status
func (h *BaseHandler) Error(c *gin.Context, code, message string, retryable bool) {
	status := dto.GetHTTPStatus(code)
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, retryable, h.getRequestID(c)))
}

// ErrorWithStatus sends an error response with an explicit HTTP status
func (h *BaseHandler) ErrorWithStatus(c *gin.Context, status int, code, message string, retryable bool) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, retryable, h.getRequestID(c)))
}

// BadRequest sends a 400 validation error response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithStatus(c, http.StatusBadRequest, dto.ErrCodeValidation, message, false)
}

// NotFound sends a 404 error response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.ErrorWithStatus(c, http.StatusNotFound, dto.ErrCodeNotFound, message, false)
}

// InternalError sends a 500 error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.ErrorWithStatus(c, http.StatusInternalServerError, dto.ErrCodeInternal, message, true)
}

// HandleError maps application errors onto the response envelope. Payout
// errors carry their own HTTP status; domain errors go through the code
// mapping table; guarded-update conflicts come back retryable.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var payoutErr *payout.Error
	if errors.As(err, &payoutErr) {
		h.ErrorWithStatus(c, payoutErr.HTTPStatus, string(payoutErr.Code), payoutErr.Message, payoutErr.Retryable)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message, false)
		return
	}

	switch {
	case errors.Is(err, payin.ErrPaymentIntentNotFound):
		h.ErrorWithStatus(c, http.StatusNotFound, "PAYMENT_INTENT_NOT_FOUND", "Payment intent not found", false)
	case errors.Is(err, payin.ErrRefundNotFound):
		h.ErrorWithStatus(c, http.StatusNotFound, "REFUND_NOT_FOUND", "Refund not found", false)
	case errors.Is(err, payin.ErrPaymentIntentCouldNotBeUpdated):
		h.ErrorWithStatus(c, http.StatusConflict, "PAYMENT_INTENT_STATUS_CHANGED",
			"Payment intent was updated by another request", true)
	default:
		h.InternalError(c, "An internal error occurred")
	}
}

// getRequestID extracts the request ID from the context
func (h *BaseHandler) getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Request-ID")
}
