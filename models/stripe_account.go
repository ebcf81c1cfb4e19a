package models

import (
	"time"

	"github.com/google/uuid"
)

// StripeCustomer maps a platform user to their Stripe customer id.
type StripeCustomer struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	StripeCustomerID string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// StripeConnectedAccount maps an instructor to their Stripe connected account.
// Read-only input to the settlement executor.
type StripeConnectedAccount struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	StripeAccountID string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PayoutsEnabled  bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}
