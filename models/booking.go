package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking statuses.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusNoShow    = "NO_SHOW"
)

// Payment statuses. These follow a fixed forward path per settlement branch;
// payment_method_required and manual_review are retryable parking states.
const (
	PaymentStatusPendingMethod  = "pending_payment_method"
	PaymentStatusScheduled      = "scheduled"
	PaymentStatusAuthorized     = "authorized"
	PaymentStatusSettled        = "settled"
	// PaymentStatusNoCharge is terminal: the booking was cancelled with no
	// funds captured and none ever will be.
	PaymentStatusNoCharge       = "no_charge"
	PaymentStatusMethodRequired = "payment_method_required"
	PaymentStatusManualReview   = "manual_review"
)

// Booking is one scheduled lesson between a student and an instructor. It is
// the aggregate root for the lesson's financial lifecycle; PlatformCredit and
// PaymentEvent rows reference it by id but are persisted independently and
// outlive a cancelled booking for audit purposes.
type Booking struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StudentID           uuid.UUID `gorm:"type:uuid;not null;index"`
	InstructorID        uuid.UUID `gorm:"type:uuid;not null;index"`
	InstructorServiceID uuid.UUID `gorm:"type:uuid;not null"`

	BookingDate string `gorm:"type:date;not null"`
	StartTime   string `gorm:"type:varchar(5);not null"` // HH:MM, instructor-local
	EndTime     string `gorm:"type:varchar(5);not null"`
	StartUTC    time.Time
	EndUTC      time.Time
	Timezone    string `gorm:"type:varchar(64)"` // IANA zone snapshot at creation

	Status        string `gorm:"type:varchar(20);not null;default:'PENDING'"`
	PaymentStatus string `gorm:"type:varchar(30);not null;default:'pending_payment_method'"`

	PaymentIntentID *string `gorm:"uniqueIndex"`
	PaymentMethodID *string `gorm:"type:varchar(255)"`

	HourlyRateCents int64 `gorm:"not null"`
	DurationMinutes int   `gorm:"not null"`
	// TotalPriceCents is the lesson price plus the student service fee.
	TotalPriceCents    int64 `gorm:"not null"`
	CreditAppliedCents int64 `gorm:"not null;default:0"`

	// Settlement results, written once by the settlement executor.
	SettlementOutcome           *string `gorm:"type:varchar(50)"`
	StudentCreditAmountCents    int64   `gorm:"not null;default:0"`
	InstructorPayoutAmountCents int64   `gorm:"not null;default:0"`
	RefundedToCardAmountCents   int64   `gorm:"not null;default:0"`

	CompletedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string `gorm:"type:text"`

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// LessonPriceCents is the hourly rate prorated over the lesson duration,
// excluding any platform or student fees baked into TotalPriceCents.
func (b *Booking) LessonPriceCents() int64 {
	return b.HourlyRateCents * int64(b.DurationMinutes) / 60
}

// Cancellable reports whether the booking is in a status that still allows
// cancellation. Terminal states never revert.
func (b *Booking) Cancellable() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}
