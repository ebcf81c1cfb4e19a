package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment event types written by the settlement executor and booking flow.
const (
	EventAuthImmediate      = "auth_immediate"
	EventAuthScheduled      = "auth_scheduled"
	EventSetupIntentCreated = "setup_intent_created"

	// <12h student cancellation branch.
	EventCapturedLastMinuteCancel         = "captured_last_minute_cancel"
	EventTransferReversedLastMinuteCancel = "transfer_reversed_last_minute_cancel"
	EventPayoutCreatedLastMinuteCancel    = "payout_created_last_minute_cancel"
	EventCreditCreatedLastMinuteCancel    = "credit_created_last_minute_cancel"

	// 12-24h student cancellation branch.
	EventCapturedLateCancel         = "captured_late_cancel"
	EventTransferReversedLateCancel = "transfer_reversed_late_cancel"
	EventCreditCreatedLateCancel    = "credit_created_late_cancel"

	// No-charge / full-refund branches.
	EventAuthCancelledEarlyCancel      = "auth_cancelled_early_cancel"
	EventAuthCancelledInstructorCancel = "auth_cancelled_instructor_cancel"
	EventRefundIssuedInstructorCancel  = "refund_issued_instructor_cancel"
)

// PaymentEvent is an append-only audit trail of processor actions taken for a
// booking. Rows are never mutated or deleted; an event is written only after a
// processor call succeeds.
type PaymentEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType string    `gorm:"type:varchar(50);not null"`
	EventData string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
