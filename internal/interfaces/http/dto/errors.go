package dto

import "net/http"

// Generic error codes used by the API surface
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Payout submission
// codes carry their own status on the error value and bypass this table.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInternal:     http.StatusInternalServerError,

	// shared domain errors ("NOT_FOUND" and "UNAUTHORIZED" are already
	// covered by the constants above)
	"ALREADY_EXISTS":       http.StatusConflict,
	"INVALID_INPUT":        http.StatusBadRequest,
	"CONCURRENCY_CONFLICT": http.StatusConflict,
	"INVALID_STATE":        http.StatusConflict,

	// cart payment lifecycle
	"INVALID_AMOUNT":                http.StatusBadRequest,
	"MISSING_IDEMPOTENCY_KEY":       http.StatusBadRequest,
	"INTENT_ALREADY_CAPTURED":       http.StatusConflict,
	"INTENT_NOT_ADJUSTABLE":         http.StatusConflict,
	"INTENT_NOT_CAPTURED":           http.StatusConflict,
	"AMOUNT_EXCEEDS_AUTHORIZATION":  http.StatusBadRequest,
	"MISSING_CHARGE":                http.StatusUnprocessableEntity,
	"MISSING_PGP_INTENT":            http.StatusUnprocessableEntity,
	"PAYMENT_INTENT_NOT_FOUND":      http.StatusNotFound,
	"PAYMENT_INTENT_STATUS_CHANGED": http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code, 500 when unmapped
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
