package payout

import (
	"net/http"
	"regexp"
)

// ErrorCode identifies why a payout operation was rejected or failed
type ErrorCode string

const (
	ErrCodeTransferNotFound           ErrorCode = "TRANSFER_NOT_FOUND"
	ErrCodeInvalidPaymentAccountID    ErrorCode = "INVALID_PAYMENT_ACCOUNT_ID"
	ErrCodeMismatchedTransferAmount   ErrorCode = "MISMATCHED_TRANSFER_AMOUNT"
	ErrCodeTransferInvalidState       ErrorCode = "TRANSFER_INVALID_STATE"
	ErrCodeTransferAlreadyDeleted     ErrorCode = "TRANSFER_ALREADY_DELETED"
	ErrCodeDuplicateTransfer          ErrorCode = "DUPLICATE_TRANSFER"
	ErrCodeTransferDisabled           ErrorCode = "TRANSFER_DISABLED_ERROR"
	ErrCodeInvalidTransferMethod      ErrorCode = "INVALID_TRANSFER_METHOD"
	ErrCodeTransferProcessing         ErrorCode = "TRANSFER_PROCESSING"
	ErrCodeInvalidStripeAccountID     ErrorCode = "INVALID_STRIPE_ACCOUNT_ID"
	ErrCodeInvalidStripeAccount       ErrorCode = "INVALID_STRIPE_ACCOUNT"
	ErrCodeMismatchedPaymentAccount   ErrorCode = "MISMATCHED_TRANSFER_PAYMENT_ACCOUNT"
	ErrCodeDummyTransferFailed        ErrorCode = "DUMMY_TRANSFER_CREATION_FAILED"
	ErrCodeDuplicateStripeTransfer    ErrorCode = "DUPLICATE_STRIPE_TRANSFER"
	ErrCodeUnsupportedCountry         ErrorCode = "UNSUPPORTED_COUNTRY"
	ErrCodeStripePayoutAccountMissing ErrorCode = "STRIPE_PAYOUT_ACCT_MISSING"
	ErrCodeStripePayoutDisallowed     ErrorCode = "STRIPE_PAYOUT_DISALLOWED"
	ErrCodeStripeInvalidRequest       ErrorCode = "STRIPE_INVALID_REQUEST_ERROR"
	ErrCodeStripeSubmission           ErrorCode = "STRIPE_SUBMISSION_ERROR"
	ErrCodeUnknown                    ErrorCode = "UNKNOWN_ERROR"
)

// failedSubmissionCodes are the classified gateway rejections that leave the
// transfer FAILED (actionable by the account holder) rather than ERROR.
var failedSubmissionCodes = map[ErrorCode]struct{}{
	ErrCodeStripePayoutAccountMissing: {},
	ErrCodeStripePayoutDisallowed:     {},
	ErrCodeStripeInvalidRequest:       {},
}

// IsFailedSubmissionCode reports whether the code maps to the FAILED
// transfer status category on submission errors
func IsFailedSubmissionCode(code ErrorCode) bool {
	_, ok := failedSubmissionCodes[code]
	return ok
}

// Error is a payout operation failure carrying the HTTP mapping the API
// surface returns. Retryable is false across all current paths: callers must
// resubmit explicitly with retry=true rather than rely on an automatic signal.
type Error struct {
	HTTPStatus int       `json:"http_status"`
	Code       ErrorCode `json:"error_code"`
	Retryable  bool      `json:"retryable"`
	Message    string    `json:"message"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

// NewError creates a non-retryable payout error with a 400 mapping
func NewError(code ErrorCode) *Error {
	return &Error{
		HTTPStatus: http.StatusBadRequest,
		Code:       code,
		Retryable:  false,
	}
}

// NewErrorWithMessage creates a non-retryable payout error with a message
func NewErrorWithMessage(code ErrorCode, message string) *Error {
	return &Error{
		HTTPStatus: http.StatusBadRequest,
		Code:       code,
		Retryable:  false,
		Message:    message,
	}
}

// Gateway error codes and types this workflow classifies on
const (
	GatewayCodeNoExternalAccountInCurrency = "no_external_account_in_currency"
	GatewayCodePayoutNotAllowed            = "payout_not_allowed"
	GatewayTypeInvalidRequestError         = "invalid_request_error"
)

var noExternalAccountPattern = regexp.MustCompile(
	`Sorry, you don't have any external accounts in that currency \((\w+)\)`)

// ExtractFailureCode recovers a coarse gateway failure code from an error
// message when the gateway did not return a structured code. Best-effort
// secondary classifier only; returns UNKNOWN_ERROR when nothing matches.
func ExtractFailureCode(message string) string {
	if message != "" && noExternalAccountPattern.MatchString(message) {
		return GatewayCodeNoExternalAccountInCurrency
	}
	return string(ErrCodeUnknown)
}
