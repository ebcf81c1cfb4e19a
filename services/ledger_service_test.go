package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/services"
)

type fakeBalanceCache struct {
	values      map[uuid.UUID]int64
	sets        int
	invalidates int
}

func newFakeBalanceCache() *fakeBalanceCache {
	return &fakeBalanceCache{values: make(map[uuid.UUID]int64)}
}

func (c *fakeBalanceCache) Get(_ context.Context, userID uuid.UUID) (int64, bool) {
	v, ok := c.values[userID]
	return v, ok
}

func (c *fakeBalanceCache) Set(_ context.Context, userID uuid.UUID, cents int64) {
	c.values[userID] = cents
	c.sets++
}

func (c *fakeBalanceCache) Invalidate(_ context.Context, userID uuid.UUID) {
	delete(c.values, userID)
	c.invalidates++
}

func newLedger(credits *mockCreditRepo, events *mockEventRepo, cache services.BalanceCache) *services.LedgerService {
	return services.NewLedgerService(credits, events, cache, zap.NewNop())
}

func TestIssueCreditIdempotent(t *testing.T) {
	credits := &mockCreditRepo{}
	ledger := newLedger(credits, &mockEventRepo{}, nil)
	userID, bookingID := uuid.New(), uuid.New()

	first, err := ledger.IssueCredit(context.Background(), userID, bookingID, 10000,
		models.CreditReasonLessonPrice, "lesson price credit")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := ledger.IssueCredit(context.Background(), userID, bookingID, 10000,
		models.CreditReasonLessonPrice, "lesson price credit")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, credits.credits, 1)
}

func TestIssueCreditDifferentReasonsCoexist(t *testing.T) {
	credits := &mockCreditRepo{}
	ledger := newLedger(credits, &mockEventRepo{}, nil)
	userID, bookingID := uuid.New(), uuid.New()

	_, err := ledger.IssueCredit(context.Background(), userID, bookingID, 6000,
		models.CreditReasonSplit, "")
	require.NoError(t, err)
	_, err = ledger.IssueCredit(context.Background(), userID, bookingID, 1000,
		models.CreditReasonMilestoneS5, "")
	require.NoError(t, err)

	assert.Len(t, credits.credits, 2)
}

func TestRevokeCredit(t *testing.T) {
	credits := &mockCreditRepo{}
	ledger := newLedger(credits, &mockEventRepo{}, nil)
	userID, bookingID := uuid.New(), uuid.New()

	_, err := ledger.IssueCredit(context.Background(), userID, bookingID, 1000,
		models.CreditReasonMilestoneS5, "")
	require.NoError(t, err)

	revoked, err := ledger.RevokeCredit(context.Background(), bookingID, models.CreditReasonMilestoneS5)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), revoked)

	balance, err := ledger.AvailableBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestRevokeCreditAlreadySpent(t *testing.T) {
	credits := &mockCreditRepo{}
	ledger := newLedger(credits, &mockEventRepo{}, nil)
	bookingID := uuid.New()
	usedAt := time.Now().UTC()
	credits.credits = append(credits.credits, &models.PlatformCredit{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AmountCents:     1000,
		Reason:          models.CreditReasonMilestoneS5,
		SourceBookingID: bookingID,
		UsedAt:          &usedAt,
	})

	revoked, err := ledger.RevokeCredit(context.Background(), bookingID, models.CreditReasonMilestoneS5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), revoked, "spent credits are not clawed back")
}

func TestRevokeCreditMissing(t *testing.T) {
	ledger := newLedger(&mockCreditRepo{}, &mockEventRepo{}, nil)

	revoked, err := ledger.RevokeCredit(context.Background(), uuid.New(), models.CreditReasonMilestoneS11)
	require.NoError(t, err)
	assert.Equal(t, int64(0), revoked)
}

func TestReinstateUsedCredits(t *testing.T) {
	credits := &mockCreditRepo{}
	ledger := newLedger(credits, &mockEventRepo{}, nil)
	userID, refundedBookingID := uuid.New(), uuid.New()
	usedAt := time.Now().UTC()

	for _, amount := range []int64{1500, 2500} {
		credits.credits = append(credits.credits, &models.PlatformCredit{
			ID:              uuid.New(),
			UserID:          userID,
			AmountCents:     amount,
			Reason:          models.CreditReasonReferral,
			SourceBookingID: uuid.New(),
			UsedAt:          &usedAt,
			UsedOnBookingID: &refundedBookingID,
		})
	}

	total, err := ledger.ReinstateUsedCredits(context.Background(), refundedBookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), total)

	reinstated := credits.byReason(models.CreditReasonRefundReinstate)
	require.Len(t, reinstated, 1)
	assert.Equal(t, int64(4000), reinstated[0].AmountCents)
	assert.Equal(t, userID, reinstated[0].UserID)

	// Second invocation is a no-op.
	total, err = ledger.ReinstateUsedCredits(context.Background(), refundedBookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Len(t, credits.byReason(models.CreditReasonRefundReinstate), 1)
}

func TestReinstateUsedCreditsNothingConsumed(t *testing.T) {
	ledger := newLedger(&mockCreditRepo{}, &mockEventRepo{}, nil)

	total, err := ledger.ReinstateUsedCredits(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestAvailableBalanceCacheAside(t *testing.T) {
	credits := &mockCreditRepo{}
	cache := newFakeBalanceCache()
	ledger := newLedger(credits, &mockEventRepo{}, cache)
	userID := uuid.New()

	credits.credits = append(credits.credits, &models.PlatformCredit{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: 3000,
		Reason:      models.CreditReasonReferral,
	})

	balance, err := ledger.AvailableBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)
	assert.Equal(t, 1, cache.sets)

	// Second read comes from the cache.
	balance, err = ledger.AvailableBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balance)
	assert.Equal(t, 1, cache.sets)

	// Issuing a credit invalidates the cached balance.
	_, err = ledger.IssueCredit(context.Background(), userID, uuid.New(), 500,
		models.CreditReasonFeeRebate, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidates)

	balance, err = ledger.AvailableBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), balance)
}

func TestRecordPaymentEvent(t *testing.T) {
	events := &mockEventRepo{}
	ledger := newLedger(&mockCreditRepo{}, events, nil)
	bookingID := uuid.New()

	err := ledger.RecordPaymentEvent(context.Background(), bookingID, models.EventAuthImmediate, map[string]interface{}{
		"payment_intent_id": "pi_1",
	})
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, bookingID, events.events[0].BookingID)
	assert.Equal(t, models.EventAuthImmediate, events.events[0].EventType)
	assert.JSONEq(t, `{"payment_intent_id":"pi_1"}`, events.events[0].EventData)
}
