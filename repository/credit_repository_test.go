package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
)

func TestFindBySourceAndReason_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCreditRepository(gormDB)

	sourceID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "platform_credits"`)).
		WithArgs(sourceID, models.CreditReasonMilestoneS5, 1).
		WillReturnRows(sqlmock.NewRows([]string{}))

	c, err := repo.FindBySourceAndReason(context.Background(), sourceID, models.CreditReasonMilestoneS5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, c)
}

func TestFindAvailableByUser_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCreditRepository(gormDB)

	userID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "amount_cents", "reason", "source_booking_id", "created_at"}).
		AddRow(uuid.New(), userID, 1000, models.CreditReasonMilestoneS5, uuid.New(), now.Add(-time.Hour)).
		AddRow(uuid.New(), userID, 6000, models.CreditReasonSplit, uuid.New(), now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "platform_credits"`)).
		WithArgs(userID).
		WillReturnRows(rows)

	credits, err := repo.FindAvailableByUser(context.Background(), userID)
	assert.NoError(t, err)
	assert.Len(t, credits, 2)
	assert.Equal(t, int64(1000), credits[0].AmountCents)
}

func TestMarkUsed_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCreditRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "platform_credits"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bookingID := uuid.New()
	err := repo.MarkUsed(context.Background(), uuid.New(), &bookingID, time.Now().UTC())
	assert.NoError(t, err)
}

func TestSumAvailableByUser(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormCreditRepository(gormDB)

	userID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(amount_cents), 0) FROM "platform_credits"`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7000))

	total, err := repo.SumAvailableByUser(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(7000), total)
}
