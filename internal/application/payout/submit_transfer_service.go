package payout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/paysvc/backend/internal/domain/payout"
	"github.com/paysvc/backend/internal/domain/pgp"
	"github.com/paysvc/backend/internal/domain/shared"
)

// SubmitTransferRequest carries the parameters of a transfer submission
type SubmitTransferRequest struct {
	TransferID          int64
	Retry               bool
	Method              *payout.TransferMethod
	StatementDescriptor string
	SubmittedByID       *int64
	TargetID            *int64
	TargetType          *payout.TargetType
}

// SubmitTransferResult is the post-submission state of the transfer and the
// attempt that was recorded for it. StripeTransfer is nil on paths that never
// reach the gateway.
type SubmitTransferResult struct {
	Transfer       *payout.Transfer
	StripeTransfer *payout.StripeTransfer
}

// SubmitConfig holds submission tuning
type SubmitConfig struct {
	// DefaultStatementDescriptor is used when neither the request nor the
	// payment account carries one
	DefaultStatementDescriptor string
	// LockTTL bounds how long a submission may hold the per-transfer lock
	LockTTL time.Duration
}

// SubmitTransferService drives a transfer through gateway submission: guard
// checks, constituent-transaction reconciliation, managed-account balance
// top-up, attempt bookkeeping, payout creation and status classification.
type SubmitTransferService struct {
	transfers    payout.TransferRepository
	attempts     payout.StripeTransferRepository
	settlements  payout.ManagedAccountTransferRepository
	accounts     payout.PaymentAccountRepository
	transactions payout.TransactionSource
	gateway      pgp.PayoutClient
	locks        shared.IdempotencyStore
	config       SubmitConfig
	logger       *zap.Logger
}

// NewSubmitTransferService creates a new SubmitTransferService
func NewSubmitTransferService(
	transfers payout.TransferRepository,
	attempts payout.StripeTransferRepository,
	settlements payout.ManagedAccountTransferRepository,
	accounts payout.PaymentAccountRepository,
	transactions payout.TransactionSource,
	gateway pgp.PayoutClient,
	locks shared.IdempotencyStore,
	config SubmitConfig,
	logger *zap.Logger,
) *SubmitTransferService {
	if config.LockTTL == 0 {
		config.LockTTL = 5 * time.Minute
	}
	return &SubmitTransferService{
		transfers:    transfers,
		attempts:     attempts,
		settlements:  settlements,
		accounts:     accounts,
		transactions: transactions,
		gateway:      gateway,
		locks:        locks,
		config:       config,
		logger:       logger,
	}
}

// Submit submits a transfer for payout. The caller must pass Retry to push a
// transfer that already went through a submission cycle; blind replays are
// rejected as duplicates.
func (s *SubmitTransferService) Submit(ctx context.Context, req SubmitTransferRequest) (*SubmitTransferResult, error) {
	transfer, err := s.transfers.FindByID(ctx, req.TransferID)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: load transfer: %w", err)
	}
	if transfer == nil {
		return nil, payout.NewError(payout.ErrCodeTransferNotFound)
	}
	if transfer.IsDeleted() {
		return nil, payout.NewError(payout.ErrCodeTransferAlreadyDeleted)
	}

	switch transfer.Status {
	case payout.TransferStatusPaid:
		return nil, payout.NewError(payout.ErrCodeDuplicateTransfer)
	case payout.TransferStatusCancelled:
		return nil, payout.NewError(payout.ErrCodeTransferInvalidState)
	case payout.TransferStatusPending, payout.TransferStatusCreating:
		if !req.Retry {
			return nil, payout.NewError(payout.ErrCodeDuplicateTransfer)
		}
	}
	// Any completed submission cycle, whatever status it left behind, needs an
	// explicit retry to run again
	if transfer.WasSubmitted() && !req.Retry {
		return nil, payout.NewError(payout.ErrCodeDuplicateTransfer)
	}

	account, err := s.accounts.FindByID(ctx, transfer.PaymentAccountID)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: load payment account: %w", err)
	}
	if account == nil {
		return nil, payout.NewError(payout.ErrCodeInvalidPaymentAccountID)
	}

	lockKey := "payout:submit:" + strconv.FormatInt(transfer.ID, 10)
	acquired, err := s.locks.MarkProcessed(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: acquire lock: %w", err)
	}
	if !acquired {
		return nil, payout.NewError(payout.ErrCodeTransferProcessing)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn("Failed to release submission lock",
				zap.Int64("transfer_id", transfer.ID),
				zap.Error(err))
		}
	}()

	ongoing, err := s.attempts.FindOngoingByTransferID(ctx, transfer.ID)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: check ongoing attempts: %w", err)
	}
	if len(ongoing) > 0 {
		return nil, payout.NewError(payout.ErrCodeTransferProcessing)
	}

	latest, err := s.attempts.FindLatestByTransferID(ctx, transfer.ID)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: load latest attempt: %w", err)
	}
	if latest != nil && latest.HasGatewayID() && !req.Retry {
		return nil, payout.NewError(payout.ErrCodeDuplicateStripeTransfer)
	}

	if err := s.reconcileTransactions(ctx, transfer); err != nil {
		return nil, err
	}

	method := transfer.Method
	if req.Method != nil {
		method = *req.Method
	}
	if !method.IsValid() {
		return nil, payout.NewErrorWithMessage(payout.ErrCodeInvalidTransferMethod,
			fmt.Sprintf("transfer method %q is not supported", method))
	}

	// Zero-amount and gateway-bypassing transfers complete without a payout
	if transfer.Amount == 0 || method.BypassesGateway() {
		return s.completeWithoutGateway(ctx, transfer, method, req.SubmittedByID)
	}
	if transfer.Amount < 0 {
		return nil, payout.NewErrorWithMessage(payout.ErrCodeMismatchedTransferAmount,
			"transfer amount cannot be negative")
	}

	// A disabled account blocks only retries of submissions that already
	// failed; a first submission proceeds and fails on its own terms
	if req.Retry && !account.TransfersEnabled &&
		(transfer.Status == payout.TransferStatusFailed || transfer.Status == payout.TransferStatusError) {
		return nil, payout.NewError(payout.ErrCodeTransferDisabled)
	}

	sma, failErr := s.resolveManagedAccount(ctx, transfer, account)
	if failErr != nil {
		return nil, failErr
	}

	currency := transfer.Currency
	if currency == "" {
		currency = payout.CurrencyForCountry(sma.CountryShortname)
	}
	if currency == "" {
		return nil, payout.NewErrorWithMessage(payout.ErrCodeUnsupportedCountry,
			fmt.Sprintf("no payout currency configured for country %q", sma.CountryShortname))
	}

	// A status code left over from an earlier cycle must not survive into
	// this one
	if transfer.StatusCode != nil {
		if _, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
			SetStatusCode(nil)); err != nil {
			return nil, fmt.Errorf("submit transfer: clear prior status code: %w", err)
		}
	}

	attempt := &payout.StripeTransfer{
		TransferID:        transfer.ID,
		SubmissionStatus:  payout.SubmissionStatusSubmitting,
		StripeAccountID:   sma.StripeID,
		StripeAccountType: account.AccountType,
		CountryShortname:  sma.CountryShortname,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("submit transfer: record attempt: %w", err)
	}

	if err := s.topUpManagedBalance(ctx, transfer, account, sma, currency); err != nil {
		return s.failSubmission(ctx, transfer, attempt, req.SubmittedByID, err)
	}

	descriptor := req.StatementDescriptor
	if descriptor == "" {
		descriptor = account.StatementDescriptor
	}
	if descriptor == "" {
		descriptor = s.config.DefaultStatementDescriptor
	}

	metadata := map[string]string{
		"transfer_id": strconv.FormatInt(transfer.ID, 10),
		"account_id":  strconv.FormatInt(account.ID, 10),
	}
	if req.TargetID != nil && req.TargetType != nil {
		metadata["target_id"] = strconv.FormatInt(*req.TargetID, 10)
		metadata["target_type"] = string(*req.TargetType)
	}

	gwPayout, err := s.gateway.CreatePayout(ctx, pgp.CreatePayoutRequest{
		Amount:              transfer.Amount,
		Currency:            currency,
		Country:             sma.CountryShortname,
		StripeAccountID:     sma.StripeID,
		StatementDescriptor: descriptor,
		Metadata:            metadata,
	})
	if err != nil {
		return s.failSubmission(ctx, transfer, attempt, req.SubmittedByID, err)
	}

	return s.completeSubmission(ctx, transfer, attempt, gwPayout, method, currency, req.SubmittedByID)
}

// reconcileTransactions verifies the transfer amount equals the sum of its
// attributed transactions. Transfers without attributed transactions skip
// reconciliation.
func (s *SubmitTransferService) reconcileTransactions(ctx context.Context, transfer *payout.Transfer) error {
	txns, err := s.transactions.ListByTransferID(ctx, transfer.ID)
	if err != nil {
		return fmt.Errorf("submit transfer: list transactions: %w", err)
	}
	if len(txns) == 0 {
		return nil
	}

	var sum int64
	for _, txn := range txns {
		sum += txn.Amount
	}
	if sum == transfer.Amount {
		return nil
	}

	s.logger.Error("Transfer amount does not match attributed transactions",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("transfer_amount", transfer.Amount),
		zap.Int64("transaction_sum", sum))

	code := payout.StatusCodeAmountMismatch
	if _, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
		SetStatus(payout.TransferStatusError).
		SetStatusCode(&code)); err != nil {
		return fmt.Errorf("submit transfer: record amount mismatch: %w", err)
	}
	return payout.NewErrorWithMessage(payout.ErrCodeMismatchedTransferAmount,
		fmt.Sprintf("transfer amount %d does not match transaction sum %d", transfer.Amount, sum))
}

// completeWithoutGateway marks a transfer paid without calling the gateway
func (s *SubmitTransferService) completeWithoutGateway(ctx context.Context, transfer *payout.Transfer, method payout.TransferMethod, submittedBy *int64) (*SubmitTransferResult, error) {
	now := time.Now().UTC()
	updated, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
		SetStatus(payout.TransferStatusPaid).
		SetStatusCode(nil).
		SetMethod(method).
		SetSubmittedAt(now).
		SetSubmittedBy(submittedBy))
	if err != nil {
		return nil, fmt.Errorf("submit transfer: mark paid: %w", err)
	}

	s.logger.Info("Transfer completed without gateway payout",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("amount", transfer.Amount),
		zap.String("method", method.String()))

	return &SubmitTransferResult{Transfer: updated}, nil
}

// resolveManagedAccount loads the gateway sub-account behind the payment
// account, marking the transfer FAILED when none is linked.
func (s *SubmitTransferService) resolveManagedAccount(ctx context.Context, transfer *payout.Transfer, account *payout.PaymentAccount) (*payout.StripeManagedAccount, error) {
	if account.AccountType != payout.AccountTypeStripeManaged || !account.HasManagedAccount() {
		if err := s.markNoGatewayAccount(ctx, transfer); err != nil {
			return nil, err
		}
		return nil, payout.NewError(payout.ErrCodeInvalidStripeAccountID)
	}

	sma, err := s.accounts.FindStripeManagedAccountByID(ctx, *account.AccountID)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: load managed account: %w", err)
	}
	if sma == nil {
		if err := s.markNoGatewayAccount(ctx, transfer); err != nil {
			return nil, err
		}
		return nil, payout.NewError(payout.ErrCodeInvalidStripeAccount)
	}
	return sma, nil
}

func (s *SubmitTransferService) markNoGatewayAccount(ctx context.Context, transfer *payout.Transfer) error {
	code := payout.StatusCodeNoGatewayAccount
	if _, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
		SetStatus(payout.TransferStatusFailed).
		SetStatusCode(&code)); err != nil {
		return fmt.Errorf("submit transfer: record missing gateway account: %w", err)
	}
	return nil
}

// topUpManagedBalance moves the shortfall between the managed account's
// available balance and the payout amount from the platform account. Dasher
// accounts hold no persistent balance, so the full amount always moves.
func (s *SubmitTransferService) topUpManagedBalance(ctx context.Context, transfer *payout.Transfer, account *payout.PaymentAccount, sma *payout.StripeManagedAccount, currency string) error {
	existing, err := s.settlements.FindByTransferID(ctx, transfer.ID)
	if err != nil {
		return fmt.Errorf("load settlement leg: %w", err)
	}
	if existing != nil && !existing.BelongsTo(transfer.PaymentAccountID) {
		code := payout.StatusCodeAccountIDMismatch
		if _, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
			SetStatus(payout.TransferStatusError).
			SetStatusCode(&code)); err != nil {
			return fmt.Errorf("record account mismatch: %w", err)
		}
		return payout.NewErrorWithMessage(payout.ErrCodeMismatchedPaymentAccount,
			"settlement leg references a different payment account")
	}

	needed := transfer.Amount
	if !account.IsDasher() {
		balance, err := s.gateway.GetAccountBalance(ctx, sma.StripeID, currency)
		if err != nil {
			return err
		}
		needed = transfer.Amount - balance
	}
	if needed <= 0 {
		// A leg left over from an earlier cycle no longer reflects any owed
		// shortfall
		if existing != nil && existing.Amount != 0 {
			var zero int64
			if _, err := s.settlements.Update(ctx, existing.ID, payout.ManagedAccountTransferUpdate{
				Amount: &zero,
			}); err != nil {
				return fmt.Errorf("zero settlement leg: %w", err)
			}
		}
		s.logger.Debug("Managed account balance covers payout, skipping top-up",
			zap.Int64("transfer_id", transfer.ID))
		return nil
	}

	if existing == nil {
		existing, err = payout.NewManagedAccountTransfer(transfer.ID, transfer.PaymentAccountID, needed, currency)
		if err != nil {
			return err
		}
		if err := s.settlements.Create(ctx, existing); err != nil {
			return fmt.Errorf("create settlement leg: %w", err)
		}
	} else if existing.Amount != needed {
		if _, err := s.settlements.Update(ctx, existing.ID, payout.ManagedAccountTransferUpdate{
			Amount: &needed,
		}); err != nil {
			return fmt.Errorf("update settlement leg: %w", err)
		}
	}

	gwTransfer, err := s.gateway.CreateTransfer(ctx, pgp.CreateTransferRequest{
		Amount:      needed,
		Currency:    currency,
		Country:     sma.CountryShortname,
		Destination: sma.StripeID,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	status := payout.ManagedAccountTransferStatusPaid
	if _, err := s.settlements.Update(ctx, existing.ID, payout.ManagedAccountTransferUpdate{
		StripeID:     &gwTransfer.ID,
		StripeStatus: &status,
		SubmittedAt:  &now,
	}); err != nil {
		return fmt.Errorf("record settlement leg submission: %w", err)
	}

	s.logger.Info("Topped up managed account balance",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("amount", needed),
		zap.String("gateway_transfer_id", gwTransfer.ID))
	return nil
}

// completeSubmission records a successful gateway payout on the attempt and
// the transfer
func (s *SubmitTransferService) completeSubmission(ctx context.Context, transfer *payout.Transfer, attempt *payout.StripeTransfer, gwPayout *pgp.Payout, method payout.TransferMethod, currency string, submittedBy *int64) (*SubmitTransferResult, error) {
	now := time.Now().UTC()

	status := payout.SubmissionStatusSubmitted
	attemptUpdate := payout.StripeTransferUpdate{
		SubmissionStatus: &status,
		StripeID:         &gwPayout.ID,
		StripeStatus:     &gwPayout.Status,
		SubmittedAt:      &now,
	}
	if gwPayout.BankAccount != nil {
		attemptUpdate.BankName = &gwPayout.BankAccount.BankName
		attemptUpdate.BankLastFour = &gwPayout.BankAccount.Last4
	}
	updatedAttempt, err := s.attempts.Update(ctx, attempt.ID, attemptUpdate)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: record submitted attempt: %w", err)
	}

	transferStatus := payout.TransferStatusPending
	if gwPayout.Status == "paid" {
		transferStatus = payout.TransferStatusPaid
	}
	updatedTransfer, err := s.transfers.Update(ctx, transfer.ID, *(&payout.TransferUpdate{}).
		SetStatus(transferStatus).
		SetStatusCode(nil).
		SetCurrency(currency).
		SetMethod(method).
		SetSubmittedAt(now).
		SetSubmittedBy(submittedBy))
	if err != nil {
		return nil, fmt.Errorf("submit transfer: record submission: %w", err)
	}

	s.logger.Info("Submitted transfer payout",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("amount", transfer.Amount),
		zap.String("currency", currency),
		zap.String("payout_id", gwPayout.ID),
		zap.String("payout_status", gwPayout.Status))

	return &SubmitTransferResult{
		Transfer:       updatedTransfer,
		StripeTransfer: updatedAttempt,
	}, nil
}

// failSubmission classifies a gateway failure, records it on the attempt and
// the transfer, and returns the classified payout error. Classified
// rejections leave the transfer FAILED (actionable by the account holder)
// with the classified code as its status code; gateway errors of any other
// shape leave it ERROR. A failure with no gateway error at all is absorbed:
// the transfer lands in ERROR with UNKNOWN_ERROR and the call reports
// success, since the submission outcome is unknown and a blind caller retry
// could pay out twice.
func (s *SubmitTransferService) failSubmission(ctx context.Context, transfer *payout.Transfer, attempt *payout.StripeTransfer, submittedBy *int64, cause error) (*SubmitTransferResult, error) {
	gwErr := pgp.AsError(cause)

	// A request id means the call reached the gateway, so the payout may
	// exist there despite the error
	submissionStatus := payout.SubmissionStatusFailedToSubmit
	if gwErr != nil && gwErr.RequestID != "" {
		submissionStatus = payout.SubmissionStatusSubmitted
	}
	stripeStatus := payout.StripeTransferFailedStatus
	attemptUpdate := payout.StripeTransferUpdate{
		SubmissionStatus: &submissionStatus,
		StripeStatus:     &stripeStatus,
	}
	message := cause.Error()
	if gwErr != nil {
		message = gwErr.Message
		attemptUpdate.SubmissionErrorType = &gwErr.Type
		errorCode := gwErr.Code
		if errorCode == "" {
			errorCode = payout.ExtractFailureCode(gwErr.Message)
		}
		attemptUpdate.SubmissionErrorCode = &errorCode
		if gwErr.RequestID != "" {
			attemptUpdate.StripeRequestID = &gwErr.RequestID
		}
	}
	updatedAttempt, err := s.attempts.Update(ctx, attempt.ID, attemptUpdate)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: record failed attempt: %w", err)
	}

	// Domain rejections raised mid-submission already recorded their own
	// transfer status, only the attempt needed closing out
	var pErr *payout.Error
	if gwErr == nil && errors.As(cause, &pErr) {
		return &SubmitTransferResult{Transfer: transfer, StripeTransfer: updatedAttempt}, pErr
	}

	code := classifyGatewayFailure(gwErr)
	now := time.Now().UTC()

	update := &payout.TransferUpdate{}
	switch {
	case gwErr == nil:
		statusCode := payout.StatusCodeUnknownError
		update.SetStatus(payout.TransferStatusError).SetStatusCode(&statusCode)
	case payout.IsFailedSubmissionCode(code):
		statusCode := payout.TransferStatusCode(code)
		update.SetStatus(payout.TransferStatusFailed).
			SetStatusCode(&statusCode).
			SetSubmittedAt(now).
			SetSubmittedBy(submittedBy)
	default:
		statusCode := payout.StatusCodeSubmissionError
		update.SetStatus(payout.TransferStatusError).SetStatusCode(&statusCode)
	}
	updatedTransfer, err := s.transfers.Update(ctx, transfer.ID, *update)
	if err != nil {
		return nil, fmt.Errorf("submit transfer: record failed submission: %w", err)
	}

	s.logger.Error("Transfer payout submission failed",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("error_code", string(code)),
		zap.String("transfer_status", updatedTransfer.Status.String()),
		zap.Error(cause))

	result := &SubmitTransferResult{
		Transfer:       updatedTransfer,
		StripeTransfer: updatedAttempt,
	}
	if gwErr == nil {
		return result, nil
	}
	return result, payout.NewErrorWithMessage(code, message)
}

// classifyGatewayFailure maps a gateway rejection to the payout error code
// the caller sees
func classifyGatewayFailure(gwErr *pgp.Error) payout.ErrorCode {
	if gwErr == nil {
		return payout.ErrCodeUnknown
	}

	code := gwErr.Code
	if code == "" {
		code = payout.ExtractFailureCode(gwErr.Message)
	}
	switch code {
	case payout.GatewayCodeNoExternalAccountInCurrency:
		return payout.ErrCodeStripePayoutAccountMissing
	case payout.GatewayCodePayoutNotAllowed:
		return payout.ErrCodeStripePayoutDisallowed
	}
	if gwErr.Type == payout.GatewayTypeInvalidRequestError {
		return payout.ErrCodeStripeInvalidRequest
	}
	return payout.ErrCodeStripeSubmission
}
