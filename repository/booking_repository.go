package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msaedi/instructly-sub005/models"
)

// BookingRepository defines data-access operations for bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// FindByIDForUpdate takes a row-level lock so that settlement runs under
	// SELECT ... FOR UPDATE. Must be called inside a transaction.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error)
	FindByStudentID(ctx context.Context, studentID uuid.UUID, page, limit int) ([]models.Booking, int64, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsTx applies updates through the transaction holding the row
	// lock taken by FindByIDForUpdate.
	UpdateFieldsTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	CountCompletedByStudent(ctx context.Context, studentID uuid.UUID) (int64, error)
}

// GormBookingRepository implements BookingRepository using GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) BookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) FindByStudentID(ctx context.Context, studentID uuid.UUID, page, limit int) ([]models.Booking, int64, error) {
	var bookings []models.Booking
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Booking{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("start_utc DESC").
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.WithContext(ctx).
		Where("payment_intent_id = ?", paymentIntentID).
		First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *GormBookingRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error
}

func (r *GormBookingRepository) UpdateFieldsTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	return tx.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id).Updates(updates).Error
}

func (r *GormBookingRepository) CountCompletedByStudent(ctx context.Context, studentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("student_id = ? AND status = ?", studentID, models.BookingStatusCompleted).
		Count(&count).Error
	return count, err
}
