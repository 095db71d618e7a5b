package dto

import (
	"time"

	"github.com/paysvc/backend/internal/domain/payout"
)

// SubmitTransferRequest is the request body for submitting a transfer
type SubmitTransferRequest struct {
	StatementDescriptor string `json:"statement_descriptor" binding:"omitempty,max=64"`
	Method              string `json:"method" binding:"omitempty,max=20"`
	Retry               bool   `json:"retry"`
	SubmittedByID       *int64 `json:"submitted_by_id" binding:"omitempty,gt=0"`
	TargetID            *int64 `json:"target_id" binding:"omitempty,gt=0"`
	TargetType          string `json:"target_type" binding:"omitempty,max=20"`
}

// TransferResponse is the API view of a transfer
type TransferResponse struct {
	ID               int64      `json:"id"`
	PaymentAccountID int64      `json:"payment_account_id"`
	Amount           int64      `json:"amount"`
	SubtotalAmount   int64      `json:"subtotal_amount"`
	Currency         string     `json:"currency,omitempty"`
	Status           string     `json:"status"`
	StatusCode       *string    `json:"status_code,omitempty"`
	Method           string     `json:"method"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StripeTransferResponse is the API view of one gateway submission attempt
type StripeTransferResponse struct {
	ID                  int64      `json:"id"`
	TransferID          int64      `json:"transfer_id"`
	SubmissionStatus    string     `json:"submission_status"`
	StripeID            string     `json:"stripe_id,omitempty"`
	StripeStatus        string     `json:"stripe_status,omitempty"`
	StripeAccountID     string     `json:"stripe_account_id,omitempty"`
	CountryShortname    string     `json:"country_shortname,omitempty"`
	BankName            string     `json:"bank_name,omitempty"`
	BankLastFour        string     `json:"bank_last_four,omitempty"`
	SubmissionErrorType string     `json:"submission_error_type,omitempty"`
	SubmissionErrorCode string     `json:"submission_error_code,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// SubmitTransferResponse bundles the transfer with the submission attempt
type SubmitTransferResponse struct {
	Transfer       TransferResponse        `json:"transfer"`
	StripeTransfer *StripeTransferResponse `json:"stripe_transfer,omitempty"`
}

// ToTransferResponse converts a transfer to its API view
func ToTransferResponse(t *payout.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:               t.ID,
		PaymentAccountID: t.PaymentAccountID,
		Amount:           t.Amount,
		SubtotalAmount:   t.SubtotalAmount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		Method:           string(t.Method),
		SubmittedAt:      t.SubmittedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.StatusCode != nil {
		code := string(*t.StatusCode)
		resp.StatusCode = &code
	}
	return resp
}

// ToStripeTransferResponse converts a submission attempt to its API view
func ToStripeTransferResponse(st *payout.StripeTransfer) *StripeTransferResponse {
	if st == nil {
		return nil
	}
	return &StripeTransferResponse{
		ID:                  st.ID,
		TransferID:          st.TransferID,
		SubmissionStatus:    string(st.SubmissionStatus),
		StripeID:            st.StripeID,
		StripeStatus:        st.StripeStatus,
		StripeAccountID:     st.StripeAccountID,
		CountryShortname:    st.CountryShortname,
		BankName:            st.BankName,
		BankLastFour:        st.BankLastFour,
		SubmissionErrorType: st.SubmissionErrorType,
		SubmissionErrorCode: st.SubmissionErrorCode,
		SubmittedAt:         st.SubmittedAt,
		CreatedAt:           st.CreatedAt,
	}
}
