package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	payoutapp "github.com/paysvc/backend/internal/application/payout"
	"github.com/paysvc/backend/internal/domain/payout"
	"github.com/paysvc/backend/internal/infrastructure/telemetry"
	"github.com/paysvc/backend/internal/interfaces/http/dto"
)

// TransferSubmitter is the slice of the payout application the handler consumes
type TransferSubmitter interface {
	Submit(ctx context.Context, req payoutapp.SubmitTransferRequest) (*payoutapp.SubmitTransferResult, error)
}

// TransferHandler handles payout transfer API endpoints
type TransferHandler struct {
	BaseHandler
	submitter TransferSubmitter
	transfers payout.TransferRepository
	metrics   *telemetry.PaymentMetrics
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(submitter TransferSubmitter, transfers payout.TransferRepository, metrics *telemetry.PaymentMetrics) *TransferHandler {
	return &TransferHandler{
		submitter: submitter,
		transfers: transfers,
		metrics:   metrics,
	}
}

// RegisterRoutes registers transfer routes
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	transfers := rg.Group("/payouts/transfers")
	{
		transfers.GET("/:id", h.Get)
		transfers.POST("/:id/submit", h.Submit)
	}
}

// Get returns a transfer by id
func (h *TransferHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid transfer ID")
		return
	}

	transfer, err := h.transfers.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if transfer == nil {
		h.NotFound(c, "Transfer not found")
		return
	}

	h.Success(c, dto.ToTransferResponse(transfer))
}

// Submit submits a transfer for gateway payout
func (h *TransferHandler) Submit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.BadRequest(c, "Invalid transfer ID")
		return
	}

	var req dto.SubmitTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := payoutapp.SubmitTransferRequest{
		TransferID:          id,
		Retry:               req.Retry,
		StatementDescriptor: req.StatementDescriptor,
		SubmittedByID:       req.SubmittedByID,
		TargetID:            req.TargetID,
	}
	if req.Method != "" {
		method := payout.TransferMethod(req.Method)
		appReq.Method = &method
	}
	if req.TargetType != "" {
		targetType := payout.TargetType(req.TargetType)
		appReq.TargetType = &targetType
	}

	result, err := h.submitter.Submit(c.Request.Context(), appReq)
	if err != nil {
		h.metrics.RecordSubmission(c.Request.Context(), "rejected")
		h.HandleError(c, err)
		return
	}

	h.metrics.RecordSubmission(c.Request.Context(), "submitted")
	h.Success(c, dto.SubmitTransferResponse{
		Transfer:       dto.ToTransferResponse(result.Transfer),
		StripeTransfer: dto.ToStripeTransferResponse(result.StripeTransfer),
	})
}
