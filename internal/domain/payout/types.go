package payout

// TransferStatus represents the lifecycle status of a transfer
type TransferStatus string

const (
	TransferStatusNew       TransferStatus = "NEW"
	TransferStatusCreating  TransferStatus = "CREATING"
	TransferStatusPending   TransferStatus = "PENDING"
	TransferStatusPaid      TransferStatus = "PAID"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusError     TransferStatus = "ERROR"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// IsValid returns true if the transfer status is valid
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusNew, TransferStatusCreating, TransferStatusPending,
		TransferStatusPaid, TransferStatusFailed, TransferStatusError,
		TransferStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further submission can change the status
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusPaid || s == TransferStatusCancelled
}

// String returns the string representation of TransferStatus
func (s TransferStatus) String() string {
	return string(s)
}

// TransferStatusCode is the fine-grained failure reason recorded on a transfer
type TransferStatusCode string

const (
	StatusCodeAmountMismatch    TransferStatusCode = "ERROR_AMOUNT_MISMATCH"
	StatusCodeInvalidState      TransferStatusCode = "ERROR_INVALID_STATE"
	StatusCodeNoGatewayAccount  TransferStatusCode = "ERROR_NO_GATEWAY_ACCOUNT"
	StatusCodeAccountIDMismatch TransferStatusCode = "ERROR_ACCOUNT_ID_MISMATCH"
	StatusCodeSubmissionError   TransferStatusCode = "ERROR_SUBMISSION"
	StatusCodeUnknownError      TransferStatusCode = "UNKNOWN_ERROR"
)

// TransferMethod is how a transfer is paid out
type TransferMethod string

const (
	// TransferMethodStripe pays out through the gateway to a bank account
	TransferMethodStripe TransferMethod = "STRIPE"
	// TransferMethodDoorDashPay settles through platform-internal pay
	TransferMethodDoorDashPay TransferMethod = "DOORDASH_PAY"
	// TransferMethodCODInvoice settles out of band via invoicing
	TransferMethodCODInvoice TransferMethod = "COD_INVOICE"
)

// IsValid returns true if the method is one of the recognized transfer methods
func (m TransferMethod) IsValid() bool {
	switch m {
	case TransferMethodStripe, TransferMethodDoorDashPay, TransferMethodCODInvoice:
		return true
	default:
		return false
	}
}

// BypassesGateway reports whether the method settles without a gateway payout
func (m TransferMethod) BypassesGateway() bool {
	return m == TransferMethodDoorDashPay || m == TransferMethodCODInvoice
}

// String returns the string representation of TransferMethod
func (m TransferMethod) String() string {
	return string(m)
}

// SubmissionStatus tracks a single gateway submission attempt
type SubmissionStatus string

const (
	SubmissionStatusSubmitting     SubmissionStatus = "SUBMITTING"
	SubmissionStatusSubmitted      SubmissionStatus = "SUBMITTED"
	SubmissionStatusFailedToSubmit SubmissionStatus = "FAILED_TO_SUBMIT"
	SubmissionStatusUnknown        SubmissionStatus = "UNKNOWN"
)

// IsOngoing returns true while the attempt has not reached a final submission state
func (s SubmissionStatus) IsOngoing() bool {
	return s == SubmissionStatusSubmitting
}

// ManagedAccountTransferStatus tracks the intra-platform settlement leg
type ManagedAccountTransferStatus string

const (
	ManagedAccountTransferStatusPending ManagedAccountTransferStatus = "PENDING"
	ManagedAccountTransferStatusPaid    ManagedAccountTransferStatus = "PAID"
	ManagedAccountTransferStatusFailed  ManagedAccountTransferStatus = "FAILED"
)

// AccountEntity distinguishes the party behind a payment account
type AccountEntity string

const (
	AccountEntityMerchant AccountEntity = "merchant"
	AccountEntityDasher   AccountEntity = "dasher"
)

// AccountType identifies how the payout destination is managed
type AccountType string

const (
	// AccountTypeStripeManaged is a gateway-hosted managed sub-account
	AccountTypeStripeManaged AccountType = "stripe_managed_account"
)

// TargetType identifies what a payout is compensating
type TargetType string

const (
	TargetTypeStore  TargetType = "store"
	TargetTypeDasher TargetType = "dasher"
)

// StripeTransferFailedStatus is recorded as the gateway status of a failed attempt
const StripeTransferFailedStatus = "failed"
