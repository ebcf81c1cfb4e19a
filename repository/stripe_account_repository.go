package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
)

// StripeAccountRepository resolves platform users to their Stripe identifiers.
type StripeAccountRepository interface {
	FindConnectedAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.StripeConnectedAccount, error)
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.StripeCustomer, error)
}

// GormStripeAccountRepository implements StripeAccountRepository using GORM.
type GormStripeAccountRepository struct {
	db *gorm.DB
}

// NewGormStripeAccountRepository creates a new GormStripeAccountRepository.
func NewGormStripeAccountRepository(db *gorm.DB) StripeAccountRepository {
	return &GormStripeAccountRepository{db: db}
}

func (r *GormStripeAccountRepository) FindConnectedAccountByUserID(ctx context.Context, userID uuid.UUID) (*models.StripeConnectedAccount, error) {
	var a models.StripeConnectedAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormStripeAccountRepository) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.StripeCustomer, error) {
	var c models.StripeCustomer
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
