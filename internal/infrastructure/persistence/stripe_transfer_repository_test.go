package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysvc/backend/internal/domain/payout"
)

func TestGormStripeTransferRepository_FindLatestByTransferID(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewGormStripeTransferRepository(db)
	ctx := context.Background()

	first := &payout.StripeTransfer{
		TransferID:       1,
		SubmissionStatus: payout.SubmissionStatusFailedToSubmit,
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &payout.StripeTransfer{
		TransferID:       1,
		SubmissionStatus: payout.SubmissionStatusSubmitted,
		StripeID:         "po_123",
	}
	require.NoError(t, repo.Create(ctx, second))

	latest, err := repo.FindLatestByTransferID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "po_123", latest.StripeID)
	assert.True(t, latest.HasGatewayID())
}

func TestGormStripeTransferRepository_FindLatestReturnsNilWhenAbsent(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewGormStripeTransferRepository(db)

	latest, err := repo.FindLatestByTransferID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestGormStripeTransferRepository_FindOngoingByTransferID(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewGormStripeTransferRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &payout.StripeTransfer{
		TransferID:       5,
		SubmissionStatus: payout.SubmissionStatusSubmitting,
	}))
	require.NoError(t, repo.Create(ctx, &payout.StripeTransfer{
		TransferID:       5,
		SubmissionStatus: payout.SubmissionStatusSubmitted,
	}))
	require.NoError(t, repo.Create(ctx, &payout.StripeTransfer{
		TransferID:       6,
		SubmissionStatus: payout.SubmissionStatusSubmitting,
	}))

	ongoing, err := repo.FindOngoingByTransferID(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, payout.SubmissionStatusSubmitting, ongoing[0].SubmissionStatus)
}

func TestGormStripeTransferRepository_Update(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewGormStripeTransferRepository(db)
	ctx := context.Background()

	attempt := &payout.StripeTransfer{
		TransferID:       9,
		SubmissionStatus: payout.SubmissionStatusSubmitting,
	}
	require.NoError(t, repo.Create(ctx, attempt))

	status := payout.SubmissionStatusSubmitted
	stripeID := "po_456"
	stripeStatus := "pending"
	now := time.Now().UTC()
	updated, err := repo.Update(ctx, attempt.ID, payout.StripeTransferUpdate{
		SubmissionStatus: &status,
		StripeID:         &stripeID,
		StripeStatus:     &stripeStatus,
		SubmittedAt:      &now,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, payout.SubmissionStatusSubmitted, updated.SubmissionStatus)
	assert.Equal(t, "po_456", updated.StripeID)
	assert.Equal(t, "pending", updated.StripeStatus)
	require.NotNil(t, updated.SubmittedAt)
	// transfer linkage is immutable through updates
	assert.Equal(t, int64(9), updated.TransferID)
}
