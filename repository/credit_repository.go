package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
)

// CreditRepository defines data-access operations for platform credits.
type CreditRepository interface {
	Create(ctx context.Context, credit *models.PlatformCredit) error
	FindBySourceAndReason(ctx context.Context, sourceBookingID uuid.UUID, reason string) (*models.PlatformCredit, error)
	FindAvailableByUser(ctx context.Context, userID uuid.UUID) ([]models.PlatformCredit, error)
	FindUsedOnBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PlatformCredit, error)
	MarkUsed(ctx context.Context, creditID uuid.UUID, usedOnBookingID *uuid.UUID, usedAt time.Time) error
	SumAvailableByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PlatformCredit, error)
}

// GormCreditRepository implements CreditRepository using GORM.
type GormCreditRepository struct {
	db *gorm.DB
}

// NewGormCreditRepository creates a new GormCreditRepository.
func NewGormCreditRepository(db *gorm.DB) CreditRepository {
	return &GormCreditRepository{db: db}
}

func (r *GormCreditRepository) Create(ctx context.Context, credit *models.PlatformCredit) error {
	return r.db.WithContext(ctx).Create(credit).Error
}

func (r *GormCreditRepository) FindBySourceAndReason(ctx context.Context, sourceBookingID uuid.UUID, reason string) (*models.PlatformCredit, error) {
	var c models.PlatformCredit
	if err := r.db.WithContext(ctx).
		Where("source_booking_id = ? AND reason = ?", sourceBookingID, reason).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCreditRepository) FindAvailableByUser(ctx context.Context, userID uuid.UUID) ([]models.PlatformCredit, error) {
	var credits []models.PlatformCredit
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND used_at IS NULL", userID).
		Order("created_at ASC").
		Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}

func (r *GormCreditRepository) FindUsedOnBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PlatformCredit, error) {
	var credits []models.PlatformCredit
	if err := r.db.WithContext(ctx).
		Where("used_on_booking_id = ?", bookingID).
		Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}

func (r *GormCreditRepository) MarkUsed(ctx context.Context, creditID uuid.UUID, usedOnBookingID *uuid.UUID, usedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PlatformCredit{}).
		Where("id = ?", creditID).
		Updates(map[string]interface{}{
			"used_at":            usedAt,
			"used_on_booking_id": usedOnBookingID,
		}).Error
}

func (r *GormCreditRepository) SumAvailableByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.PlatformCredit{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

func (r *GormCreditRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PlatformCredit, error) {
	var credits []models.PlatformCredit
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}
