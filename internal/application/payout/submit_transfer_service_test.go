package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paysvc/backend/internal/domain/payout"
	"github.com/paysvc/backend/internal/domain/pgp"
)

// MockTransferRepository is a mock implementation of TransferRepository
type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) FindByID(ctx context.Context, id int64) (*payout.Transfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Transfer), args.Error(1)
}

func (m *MockTransferRepository) Create(ctx context.Context, transfer *payout.Transfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockTransferRepository) Update(ctx context.Context, id int64, update payout.TransferUpdate) (*payout.Transfer, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Transfer), args.Error(1)
}

// MockStripeTransferRepository is a mock implementation of StripeTransferRepository
type MockStripeTransferRepository struct {
	mock.Mock
}

func (m *MockStripeTransferRepository) Create(ctx context.Context, stripeTransfer *payout.StripeTransfer) error {
	args := m.Called(ctx, stripeTransfer)
	return args.Error(0)
}

func (m *MockStripeTransferRepository) FindLatestByTransferID(ctx context.Context, transferID int64) (*payout.StripeTransfer, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.StripeTransfer), args.Error(1)
}

func (m *MockStripeTransferRepository) FindOngoingByTransferID(ctx context.Context, transferID int64) ([]payout.StripeTransfer, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payout.StripeTransfer), args.Error(1)
}

func (m *MockStripeTransferRepository) Update(ctx context.Context, id int64, update payout.StripeTransferUpdate) (*payout.StripeTransfer, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.StripeTransfer), args.Error(1)
}

// MockManagedAccountTransferRepository is a mock implementation of ManagedAccountTransferRepository
type MockManagedAccountTransferRepository struct {
	mock.Mock
}

func (m *MockManagedAccountTransferRepository) Create(ctx context.Context, mat *payout.ManagedAccountTransfer) error {
	args := m.Called(ctx, mat)
	return args.Error(0)
}

func (m *MockManagedAccountTransferRepository) FindByTransferID(ctx context.Context, transferID int64) (*payout.ManagedAccountTransfer, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.ManagedAccountTransfer), args.Error(1)
}

func (m *MockManagedAccountTransferRepository) Update(ctx context.Context, id int64, update payout.ManagedAccountTransferUpdate) (*payout.ManagedAccountTransfer, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.ManagedAccountTransfer), args.Error(1)
}

// MockPaymentAccountRepository is a mock implementation of PaymentAccountRepository
type MockPaymentAccountRepository struct {
	mock.Mock
}

func (m *MockPaymentAccountRepository) FindByID(ctx context.Context, id int64) (*payout.PaymentAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.PaymentAccount), args.Error(1)
}

func (m *MockPaymentAccountRepository) FindStripeManagedAccountByID(ctx context.Context, id int64) (*payout.StripeManagedAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.StripeManagedAccount), args.Error(1)
}

func (m *MockPaymentAccountRepository) Create(ctx context.Context, account *payout.PaymentAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockPaymentAccountRepository) CreateStripeManagedAccount(ctx context.Context, sma *payout.StripeManagedAccount) error {
	args := m.Called(ctx, sma)
	return args.Error(0)
}

// MockTransactionSource is a mock implementation of TransactionSource
type MockTransactionSource struct {
	mock.Mock
}

func (m *MockTransactionSource) ListByTransferID(ctx context.Context, transferID int64) ([]payout.Transaction, error) {
	args := m.Called(ctx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payout.Transaction), args.Error(1)
}

// MockPayoutClient is a mock implementation of the gateway payout client
type MockPayoutClient struct {
	mock.Mock
}

func (m *MockPayoutClient) CreatePayout(ctx context.Context, req pgp.CreatePayoutRequest) (*pgp.Payout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pgp.Payout), args.Error(1)
}

func (m *MockPayoutClient) CreateTransfer(ctx context.Context, req pgp.CreateTransferRequest) (*pgp.Transfer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pgp.Transfer), args.Error(1)
}

func (m *MockPayoutClient) GetAccountBalance(ctx context.Context, stripeAccountID, currency string) (int64, error) {
	args := m.Called(ctx, stripeAccountID, currency)
	return args.Get(0).(int64), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type submitTestDeps struct {
	transfers    *MockTransferRepository
	attempts     *MockStripeTransferRepository
	settlements  *MockManagedAccountTransferRepository
	accounts     *MockPaymentAccountRepository
	transactions *MockTransactionSource
	gateway      *MockPayoutClient
	locks        *MockIdempotencyStore
	service      *SubmitTransferService
}

func newSubmitTestDeps() *submitTestDeps {
	d := &submitTestDeps{
		transfers:    new(MockTransferRepository),
		attempts:     new(MockStripeTransferRepository),
		settlements:  new(MockManagedAccountTransferRepository),
		accounts:     new(MockPaymentAccountRepository),
		transactions: new(MockTransactionSource),
		gateway:      new(MockPayoutClient),
		locks:        new(MockIdempotencyStore),
	}
	d.service = NewSubmitTransferService(
		d.transfers, d.attempts, d.settlements, d.accounts, d.transactions,
		d.gateway, d.locks,
		SubmitConfig{DefaultStatementDescriptor: "Payout", LockTTL: time.Minute},
		zap.NewNop(),
	)
	return d
}

func (d *submitTestDeps) allowLock() {
	d.locks.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	d.locks.On("Release", mock.Anything, mock.Anything).Return(nil)
}

func (d *submitTestDeps) noPriorAttempts(transferID int64) {
	d.attempts.On("FindOngoingByTransferID", mock.Anything, transferID).Return([]payout.StripeTransfer{}, nil)
	d.attempts.On("FindLatestByTransferID", mock.Anything, transferID).Return(nil, nil)
}

func (d *submitTestDeps) noTransactions(transferID int64) {
	d.transactions.On("ListByTransferID", mock.Anything, transferID).Return([]payout.Transaction{}, nil)
}

func newSubmittableTransfer(id int64, amount int64) *payout.Transfer {
	return &payout.Transfer{
		ID:               id,
		PaymentAccountID: 10,
		Amount:           amount,
		SubtotalAmount:   amount,
		Status:           payout.TransferStatusNew,
		Method:           payout.TransferMethodStripe,
	}
}

func newManagedPaymentAccount() *payout.PaymentAccount {
	smaID := int64(77)
	return &payout.PaymentAccount{
		ID:               10,
		AccountType:      payout.AccountTypeStripeManaged,
		AccountID:        &smaID,
		Entity:           payout.AccountEntityMerchant,
		TransfersEnabled: true,
	}
}

func payoutErrorCode(t *testing.T, err error) payout.ErrorCode {
	t.Helper()
	var pErr *payout.Error
	require.ErrorAs(t, err, &pErr)
	return pErr.Code
}

func TestSubmitTransfer_TransferNotFound(t *testing.T) {
	d := newSubmitTestDeps()
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(nil, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeTransferNotFound, payoutErrorCode(t, err))
}

func TestSubmitTransfer_DeletedTransfer(t *testing.T) {
	d := newSubmitTestDeps()
	deletedAt := time.Now().UTC()
	transfer := newSubmittableTransfer(1, 100)
	transfer.DeletedAt = &deletedAt
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeTransferAlreadyDeleted, payoutErrorCode(t, err))
}

func TestSubmitTransfer_DuplicateWithoutRetry(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	transfer.Status = payout.TransferStatusPending
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeDuplicateTransfer, payoutErrorCode(t, err))
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_PaidTransferIsAlwaysDuplicate(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	transfer.Status = payout.TransferStatusPaid
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1, Retry: true})

	assert.Equal(t, payout.ErrCodeDuplicateTransfer, payoutErrorCode(t, err))
}

func TestSubmitTransfer_LockContention(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.locks.On("MarkProcessed", mock.Anything, "payout:submit:1", time.Minute).Return(false, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeTransferProcessing, payoutErrorCode(t, err))
	d.locks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_OngoingAttemptBlocksSubmission(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.allowLock()
	d.attempts.On("FindOngoingByTransferID", mock.Anything, int64(1)).Return([]payout.StripeTransfer{
		{ID: 5, TransferID: 1, SubmissionStatus: payout.SubmissionStatusSubmitting},
	}, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeTransferProcessing, payoutErrorCode(t, err))
}

func TestSubmitTransfer_PriorGatewayAttemptWithoutRetry(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	transfer.Status = payout.TransferStatusFailed
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.allowLock()
	d.attempts.On("FindOngoingByTransferID", mock.Anything, int64(1)).Return([]payout.StripeTransfer{}, nil)
	d.attempts.On("FindLatestByTransferID", mock.Anything, int64(1)).Return(&payout.StripeTransfer{
		ID: 5, TransferID: 1, StripeID: "po_prior",
	}, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeDuplicateStripeTransfer, payoutErrorCode(t, err))
}

func TestSubmitTransfer_ZeroAmountCompletesWithoutGateway(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 0)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	paid := newSubmittableTransfer(1, 0)
	paid.Status = payout.TransferStatusPaid
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusPaid &&
			u.StatusCode != nil && *u.StatusCode == nil &&
			u.SubmittedAt != nil
	})).Return(paid, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	assert.Equal(t, payout.TransferStatusPaid, result.Transfer.Status)
	assert.Nil(t, result.StripeTransfer)
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
	d.gateway.AssertNotCalled(t, "GetAccountBalance", mock.Anything, mock.Anything, mock.Anything)
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_BypassingMethodCompletesWithoutGateway(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 500)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	method := payout.TransferMethodCODInvoice
	paid := newSubmittableTransfer(1, 500)
	paid.Status = payout.TransferStatusPaid
	paid.Method = method
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusPaid &&
			u.Method != nil && *u.Method == method
	})).Return(paid, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1, Method: &method})

	require.NoError(t, err)
	assert.Equal(t, payout.TransferStatusPaid, result.Transfer.Status)
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_AmountMismatchMarksError(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 900)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.transactions.On("ListByTransferID", mock.Anything, int64(1)).Return([]payout.Transaction{
		{ID: 1, PaymentAccountID: 10, Amount: 400},
		{ID: 2, PaymentAccountID: 10, Amount: 400},
	}, nil)

	errored := newSubmittableTransfer(1, 900)
	errored.Status = payout.TransferStatusError
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusError &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.StatusCodeAmountMismatch
	})).Return(errored, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeMismatchedTransferAmount, payoutErrorCode(t, err))
	d.transfers.AssertExpectations(t)
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_MissingManagedAccountLink(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	account := newManagedPaymentAccount()
	account.AccountID = nil
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(account, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	failed := newSubmittableTransfer(1, 100)
	failed.Status = payout.TransferStatusFailed
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusFailed &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.StatusCodeNoGatewayAccount
	})).Return(failed, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeInvalidStripeAccountID, payoutErrorCode(t, err))
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_MissingManagedAccountRow(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 100)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(nil, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	failed := newSubmittableTransfer(1, 100)
	failed.Status = payout.TransferStatusFailed
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(failed, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeInvalidStripeAccount, payoutErrorCode(t, err))
}

func TestSubmitTransfer_SufficientBalanceSkipsTopUp(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.MatchedBy(func(req pgp.CreatePayoutRequest) bool {
		return req.Amount == 1000 && req.Currency == "usd" && req.StripeAccountID == "acct_1"
	})).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)

	submitted := &payout.StripeTransfer{ID: 3, TransferID: 1, SubmissionStatus: payout.SubmissionStatusSubmitted, StripeID: "po_1"}
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(submitted, nil)

	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusPending &&
			u.Currency != nil && *u.Currency == "usd"
	})).Return(pending, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	assert.Equal(t, payout.TransferStatusPending, result.Transfer.Status)
	assert.Equal(t, "po_1", result.StripeTransfer.StripeID)
	d.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_InsufficientBalanceTopsUpShortfall(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(300), nil)

	d.settlements.On("Create", mock.Anything, mock.MatchedBy(func(mat *payout.ManagedAccountTransfer) bool {
		return mat.Amount == 700 && mat.TransferID == 1
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*payout.ManagedAccountTransfer).ID = 9
	}).Return(nil)
	d.gateway.On("CreateTransfer", mock.Anything, mock.MatchedBy(func(req pgp.CreateTransferRequest) bool {
		return req.Amount == 700 && req.Destination == "acct_1"
	})).Return(&pgp.Transfer{ID: "tr_1"}, nil)
	d.settlements.On("Update", mock.Anything, int64(9), mock.MatchedBy(func(u payout.ManagedAccountTransferUpdate) bool {
		return u.StripeID != nil && *u.StripeID == "tr_1" &&
			u.StripeStatus != nil && *u.StripeStatus == payout.ManagedAccountTransferStatusPaid
	})).Return(&payout.ManagedAccountTransfer{ID: 9}, nil)

	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	submitted := &payout.StripeTransfer{ID: 3, TransferID: 1, SubmissionStatus: payout.SubmissionStatusSubmitted, StripeID: "po_1"}
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(submitted, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	d.settlements.AssertExpectations(t)
	d.gateway.AssertExpectations(t)
}

func TestSubmitTransfer_DasherAlwaysMovesFullAmount(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	account := newManagedPaymentAccount()
	account.Entity = payout.AccountEntityDasher
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(account, nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)

	d.settlements.On("Create", mock.Anything, mock.MatchedBy(func(mat *payout.ManagedAccountTransfer) bool {
		return mat.Amount == 1000
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*payout.ManagedAccountTransfer).ID = 9
	}).Return(nil)
	d.gateway.On("CreateTransfer", mock.Anything, mock.MatchedBy(func(req pgp.CreateTransferRequest) bool {
		return req.Amount == 1000
	})).Return(&pgp.Transfer{ID: "tr_1"}, nil)
	d.settlements.On("Update", mock.Anything, int64(9), mock.Anything).Return(&payout.ManagedAccountTransfer{ID: 9}, nil)

	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	d.gateway.AssertNotCalled(t, "GetAccountBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitTransfer_NoExternalAccountMarksFailed(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(nil, &pgp.Error{
		Type:    "invalid_request_error",
		Message: "Sorry, you don't have any external accounts in that currency (usd)",
	})

	failedAttempt := &payout.StripeTransfer{ID: 3, SubmissionStatus: payout.SubmissionStatusFailedToSubmit}
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.MatchedBy(func(u payout.StripeTransferUpdate) bool {
		return u.SubmissionStatus != nil && *u.SubmissionStatus == payout.SubmissionStatusFailedToSubmit &&
			u.SubmissionErrorCode != nil && *u.SubmissionErrorCode == payout.GatewayCodeNoExternalAccountInCurrency
	})).Return(failedAttempt, nil)

	failed := newSubmittableTransfer(1, 1000)
	failed.Status = payout.TransferStatusFailed
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusFailed &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.TransferStatusCode(payout.ErrCodeStripePayoutAccountMissing) &&
			u.SubmittedAt != nil
	})).Return(failed, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeStripePayoutAccountMissing, payoutErrorCode(t, err))
	require.NotNil(t, result)
	assert.Equal(t, payout.TransferStatusFailed, result.Transfer.Status)
	d.attempts.AssertExpectations(t)
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_PayoutNotAllowedMarksFailed(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(nil, &pgp.Error{
		Type: "invalid_request_error",
		Code: payout.GatewayCodePayoutNotAllowed,
	})
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	failed := newSubmittableTransfer(1, 1000)
	failed.Status = payout.TransferStatusFailed
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusFailed &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.TransferStatusCode(payout.ErrCodeStripePayoutDisallowed) &&
			u.SubmittedAt != nil
	})).Return(failed, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeStripePayoutDisallowed, payoutErrorCode(t, err))
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_UnclassifiedFailureAbsorbedAsError(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.MatchedBy(func(u payout.StripeTransferUpdate) bool {
		return u.SubmissionStatus != nil && *u.SubmissionStatus == payout.SubmissionStatusFailedToSubmit
	})).Return(&payout.StripeTransfer{ID: 3}, nil)

	errored := newSubmittableTransfer(1, 1000)
	errored.Status = payout.TransferStatusError
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusError &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.StatusCodeUnknownError
	})).Return(errored, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	// The attempt record exists, so the failure is swallowed rather than
	// handed back for a blind retry that could pay out twice
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, payout.TransferStatusError, result.Transfer.Status)
	d.transfers.AssertExpectations(t)
	d.attempts.AssertExpectations(t)
}

func TestSubmitTransfer_SettlementAccountMismatch(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(&payout.ManagedAccountTransfer{
		ID: 9, TransferID: 1, PaymentAccountID: 999, Amount: 500,
	}, nil)

	errored := newSubmittableTransfer(1, 1000)
	errored.Status = payout.TransferStatusError
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.StatusCodeAccountIDMismatch
	})).Return(errored, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.MatchedBy(func(u payout.StripeTransferUpdate) bool {
		return u.SubmissionStatus != nil && *u.SubmissionStatus == payout.SubmissionStatusFailedToSubmit
	})).Return(&payout.StripeTransfer{ID: 3}, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeMismatchedPaymentAccount, payoutErrorCode(t, err))
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_UnsupportedCountry(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "XX",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeUnsupportedCountry, payoutErrorCode(t, err))
}

func TestSubmitTransfer_DisabledAccountBlocksRetryOfFailedTransfer(t *testing.T) {
	d := newSubmitTestDeps()
	submittedAt := time.Now().UTC().Add(-time.Hour)
	transfer := newSubmittableTransfer(1, 1000)
	transfer.Status = payout.TransferStatusFailed
	transfer.SubmittedAt = &submittedAt
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	account := newManagedPaymentAccount()
	account.TransfersEnabled = false
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(account, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1, Retry: true})

	assert.Equal(t, payout.ErrCodeTransferDisabled, payoutErrorCode(t, err))
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_DisabledAccountAllowsFirstSubmission(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	account := newManagedPaymentAccount()
	account.TransfersEnabled = false
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(account, nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3, StripeID: "po_1"}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	result, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	assert.Equal(t, payout.TransferStatusPending, result.Transfer.Status)
	d.gateway.AssertExpectations(t)
}

func TestSubmitTransfer_PreviouslySubmittedWithoutRetryIsDuplicate(t *testing.T) {
	d := newSubmitTestDeps()
	submittedAt := time.Now().UTC().Add(-time.Hour)
	transfer := newSubmittableTransfer(1, 1000)
	transfer.Status = payout.TransferStatusFailed
	transfer.SubmittedAt = &submittedAt
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeDuplicateTransfer, payoutErrorCode(t, err))
	d.gateway.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything)
	d.attempts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_GatewayFailureWithRequestIDMarksAttemptSubmitted(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(nil, &pgp.Error{
		Type:      "api_error",
		Code:      "rate_limit",
		RequestID: "req_123",
	})

	// The request carried a gateway request id, so the payout may exist on
	// the gateway side despite the error
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.MatchedBy(func(u payout.StripeTransferUpdate) bool {
		return u.SubmissionStatus != nil && *u.SubmissionStatus == payout.SubmissionStatusSubmitted &&
			u.StripeRequestID != nil && *u.StripeRequestID == "req_123"
	})).Return(&payout.StripeTransfer{ID: 3, SubmissionStatus: payout.SubmissionStatusSubmitted}, nil)

	errored := newSubmittableTransfer(1, 1000)
	errored.Status = payout.TransferStatusError
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusError &&
			u.StatusCode != nil && *u.StatusCode != nil &&
			**u.StatusCode == payout.StatusCodeSubmissionError
	})).Return(errored, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	assert.Equal(t, payout.ErrCodeStripeSubmission, payoutErrorCode(t, err))
	d.attempts.AssertExpectations(t)
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_PayoutMetadataCarriesAccountAndTarget(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.MatchedBy(func(req pgp.CreatePayoutRequest) bool {
		return req.Metadata["transfer_id"] == "1" &&
			req.Metadata["account_id"] == "10" &&
			req.Metadata["target_id"] == "55" &&
			req.Metadata["target_type"] == "store"
	})).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	targetID := int64(55)
	targetType := payout.TargetTypeStore
	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{
		TransferID: 1,
		TargetID:   &targetID,
		TargetType: &targetType,
	})

	require.NoError(t, err)
	d.gateway.AssertExpectations(t)
}

func TestSubmitTransfer_StaleSettlementLegZeroedWhenBalanceCovers(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(&payout.ManagedAccountTransfer{
		ID: 9, TransferID: 1, PaymentAccountID: 10, Amount: 700,
	}, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)

	d.settlements.On("Update", mock.Anything, int64(9), mock.MatchedBy(func(u payout.ManagedAccountTransferUpdate) bool {
		return u.Amount != nil && *u.Amount == 0
	})).Return(&payout.ManagedAccountTransfer{ID: 9}, nil)

	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	d.settlements.AssertExpectations(t)
	d.gateway.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
}

func TestSubmitTransfer_RetryClearsPriorStatusCode(t *testing.T) {
	d := newSubmitTestDeps()
	submittedAt := time.Now().UTC().Add(-time.Hour)
	priorCode := payout.StatusCodeSubmissionError
	transfer := newSubmittableTransfer(1, 1000)
	transfer.Status = payout.TransferStatusError
	transfer.StatusCode = &priorCode
	transfer.SubmittedAt = &submittedAt
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)

	cleared := newSubmittableTransfer(1, 1000)
	cleared.Status = payout.TransferStatusError
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status == nil && u.StatusCode != nil && *u.StatusCode == nil
	})).Return(cleared, nil).Once()

	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "usd").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(u payout.TransferUpdate) bool {
		return u.Status != nil && *u.Status == payout.TransferStatusPending
	})).Return(pending, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1, Retry: true})

	require.NoError(t, err)
	d.transfers.AssertExpectations(t)
}

func TestSubmitTransfer_ExistingCurrencyUsedForPayout(t *testing.T) {
	d := newSubmitTestDeps()
	transfer := newSubmittableTransfer(1, 1000)
	transfer.Currency = "cad"
	d.transfers.On("FindByID", mock.Anything, int64(1)).Return(transfer, nil)
	d.accounts.On("FindByID", mock.Anything, int64(10)).Return(newManagedPaymentAccount(), nil)
	d.accounts.On("FindStripeManagedAccountByID", mock.Anything, int64(77)).Return(&payout.StripeManagedAccount{
		ID: 77, StripeID: "acct_1", CountryShortname: "US",
	}, nil)
	d.allowLock()
	d.noPriorAttempts(1)
	d.noTransactions(1)
	d.attempts.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.settlements.On("FindByTransferID", mock.Anything, int64(1)).Return(nil, nil)
	d.gateway.On("GetAccountBalance", mock.Anything, "acct_1", "cad").Return(int64(5000), nil)
	d.gateway.On("CreatePayout", mock.Anything, mock.MatchedBy(func(req pgp.CreatePayoutRequest) bool {
		return req.Currency == "cad"
	})).Return(&pgp.Payout{ID: "po_1", Status: "pending"}, nil)
	d.attempts.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(&payout.StripeTransfer{ID: 3}, nil)
	pending := newSubmittableTransfer(1, 1000)
	pending.Status = payout.TransferStatusPending
	d.transfers.On("Update", mock.Anything, int64(1), mock.Anything).Return(pending, nil)

	_, err := d.service.Submit(context.Background(), SubmitTransferRequest{TransferID: 1})

	require.NoError(t, err)
	d.gateway.AssertExpectations(t)
}

func TestClassifyGatewayFailure(t *testing.T) {
	tests := []struct {
		name string
		err  *pgp.Error
		want payout.ErrorCode
	}{
		{"nil error", nil, payout.ErrCodeUnknown},
		{"no external account code", &pgp.Error{Code: payout.GatewayCodeNoExternalAccountInCurrency}, payout.ErrCodeStripePayoutAccountMissing},
		{"no external account via message", &pgp.Error{Message: "Sorry, you don't have any external accounts in that currency (cad)"}, payout.ErrCodeStripePayoutAccountMissing},
		{"payout not allowed", &pgp.Error{Code: payout.GatewayCodePayoutNotAllowed}, payout.ErrCodeStripePayoutDisallowed},
		{"invalid request", &pgp.Error{Type: payout.GatewayTypeInvalidRequestError, Code: "parameter_missing"}, payout.ErrCodeStripeInvalidRequest},
		{"other stripe error", &pgp.Error{Type: "api_error", Code: "rate_limit"}, payout.ErrCodeStripeSubmission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyGatewayFailure(tt.err))
		})
	}
}
