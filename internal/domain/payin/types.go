package payin

// IntentStatus represents the lifecycle status of a payment intent.
// The pgp-side mirror row carries the same status set.
type IntentStatus string

const (
	IntentStatusInit            IntentStatus = "init"
	IntentStatusRequiresCapture IntentStatus = "requires_capture"
	IntentStatusCapturing       IntentStatus = "capturing"
	IntentStatusSucceeded       IntentStatus = "succeeded"
	IntentStatusCancelled       IntentStatus = "cancelled"
	IntentStatusFailed          IntentStatus = "failed"
)

// IsValid returns true if the intent status is valid
func (s IntentStatus) IsValid() bool {
	switch s {
	case IntentStatusInit, IntentStatusRequiresCapture, IntentStatusCapturing,
		IntentStatusSucceeded, IntentStatusCancelled, IntentStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses no sweep should revisit
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusCancelled
}

// String returns the string representation of IntentStatus
func (s IntentStatus) String() string {
	return string(s)
}

// RefundStatus represents the lifecycle status of a refund request
type RefundStatus string

const (
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusSucceeded  RefundStatus = "succeeded"
	RefundStatusFailed     RefundStatus = "failed"
)

// IsValid returns true if the refund status is valid
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusProcessing, RefundStatusSucceeded, RefundStatusFailed:
		return true
	default:
		return false
	}
}

// PgpCode identifies the payment gateway provider behind a pgp-side resource
type PgpCode string

const (
	// PgpCodeStripe is the only provider currently processed
	PgpCodeStripe PgpCode = "stripe"
)
