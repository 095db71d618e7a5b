package payin

import "errors"

var (
	// ErrPaymentIntentCouldNotBeUpdated signals that a status-guarded update
	// matched zero rows: another writer transitioned the intent first. The
	// caller must re-read and decide whether to retry or abort.
	ErrPaymentIntentCouldNotBeUpdated = errors.New("payin: payment intent could not be updated, expected previous status did not match")

	// ErrIntentPairDiverged signals that the pgp-side row was updated but the
	// platform-side row was not. The pair must never diverge, so this is
	// raised as a data-integrity violation rather than swallowed.
	ErrIntentPairDiverged = errors.New("payin: payment intent missing for updated pgp payment intent")

	// ErrPaymentIntentNotFound signals a lookup by id found no intent
	ErrPaymentIntentNotFound = errors.New("payin: payment intent not found")

	// ErrRefundNotFound signals a lookup by id found no refund
	ErrRefundNotFound = errors.New("payin: refund not found")
)
