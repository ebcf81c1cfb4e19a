package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
)

// PaymentEventRepository is append-only: events are created and listed, never
// updated or deleted.
type PaymentEventRepository interface {
	Create(ctx context.Context, event *models.PaymentEvent) error
	ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentEvent, error)
}

// GormPaymentEventRepository implements PaymentEventRepository using GORM.
type GormPaymentEventRepository struct {
	db *gorm.DB
}

// NewGormPaymentEventRepository creates a new GormPaymentEventRepository.
func NewGormPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &GormPaymentEventRepository{db: db}
}

func (r *GormPaymentEventRepository) Create(ctx context.Context, event *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormPaymentEventRepository) ListByBookingID(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
