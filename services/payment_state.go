package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/repository"
)

// PaymentState is the read-only snapshot the settlement executor needs before
// deciding which processor operations are valid.
type PaymentState struct {
	PaymentStatus      string
	PaymentIntentID    string
	ConnectedAccountID string
}

// PaymentStateReader inspects a booking's current payment status and resolves
// the instructor's connected account. It never mutates state.
type PaymentStateReader struct {
	bookings repository.BookingRepository
	accounts repository.StripeAccountRepository
}

// NewPaymentStateReader creates a new PaymentStateReader.
func NewPaymentStateReader(bookings repository.BookingRepository, accounts repository.StripeAccountRepository) *PaymentStateReader {
	return &PaymentStateReader{bookings: bookings, accounts: accounts}
}

// Read returns the payment state for a booking, or ErrBookingNotFound /
// ErrConnectedAccountNotFound when the underlying records are missing.
func (r *PaymentStateReader) Read(ctx context.Context, bookingID uuid.UUID) (*PaymentState, error) {
	booking, err := r.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	account, err := r.accounts.FindConnectedAccountByUserID(ctx, booking.InstructorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectedAccountNotFound
		}
		return nil, err
	}

	state := &PaymentState{
		PaymentStatus:      booking.PaymentStatus,
		ConnectedAccountID: account.StripeAccountID,
	}
	if booking.PaymentIntentID != nil {
		state.PaymentIntentID = *booking.PaymentIntentID
	}
	return state, nil
}
