package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/services"
)

func newMilestoneFixture(completedCount int64) (*services.MilestoneService, *mockCreditRepo) {
	bookings := newMockBookingRepo()
	bookings.completedCount = completedCount
	credits := &mockCreditRepo{}
	ledger := services.NewLedgerService(credits, &mockEventRepo{}, nil, zap.NewNop())
	return services.NewMilestoneService(bookings, ledger, zap.NewNop()), credits
}

func TestMilestoneCreditOnFifthLesson(t *testing.T) {
	svc, credits := newMilestoneFixture(5)
	studentID, bookingID := uuid.New(), uuid.New()

	require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), studentID, bookingID))

	issued := credits.byReason(models.CreditReasonMilestoneS5)
	require.Len(t, issued, 1)
	assert.Equal(t, int64(1000), issued[0].AmountCents)
	assert.Equal(t, studentID, issued[0].UserID)
	assert.Equal(t, bookingID, issued[0].SourceBookingID)
}

func TestMilestoneCreditOnEleventhLesson(t *testing.T) {
	svc, credits := newMilestoneFixture(11)

	require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), uuid.New(), uuid.New()))

	issued := credits.byReason(models.CreditReasonMilestoneS11)
	require.Len(t, issued, 1)
	assert.Equal(t, int64(2000), issued[0].AmountCents)
}

func TestNoMilestoneCreditBetweenThresholds(t *testing.T) {
	for _, count := range []int64{1, 4, 6, 10, 12, 30} {
		svc, credits := newMilestoneFixture(count)
		require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), uuid.New(), uuid.New()))
		assert.Empty(t, credits.credits, "count %d must not earn a credit", count)
	}
}

func TestMilestoneCreditIdempotentPerBooking(t *testing.T) {
	svc, credits := newMilestoneFixture(5)
	studentID, bookingID := uuid.New(), uuid.New()

	require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), studentID, bookingID))
	require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), studentID, bookingID))

	assert.Len(t, credits.byReason(models.CreditReasonMilestoneS5), 1)
}

func TestRevokeMilestoneCredit(t *testing.T) {
	svc, credits := newMilestoneFixture(5)
	studentID, bookingID := uuid.New(), uuid.New()

	require.NoError(t, svc.MaybeIssueMilestoneCredit(context.Background(), studentID, bookingID))

	revoked, err := svc.RevokeMilestoneCredit(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), revoked)

	issued := credits.byReason(models.CreditReasonMilestoneS5)
	require.Len(t, issued, 1)
	assert.False(t, issued[0].Available())

	// Revoking again finds nothing available.
	revoked, err = svc.RevokeMilestoneCredit(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), revoked)
}
