package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit reasons. A given (source_booking_id, reason) pair is issued at most
// once; the unique index backs the check-then-insert in the ledger.
const (
	CreditReasonMilestoneS5     = "milestone_s5"
	CreditReasonMilestoneS11    = "milestone_s11"
	CreditReasonRefundReinstate = "refund_reinstate"
	CreditReasonLessonPrice     = "lesson_price_credit"
	CreditReasonSplit           = "split_credit"
	CreditReasonFeeRebate       = "fee_rebate"
	CreditReasonReferral        = "referral_credit"
)

// PlatformCredit is a store-credit ledger entry owned by a user. UsedAt stays
// nil while the credit is available; it is set when the credit is applied
// against a future booking, or when the credit is revoked without consumption.
type PlatformCredit struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	AmountCents     int64      `gorm:"not null"`
	Reason          string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_credit_source_reason,priority:2"`
	SourceBookingID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_credit_source_reason,priority:1"`
	Description     string     `gorm:"type:varchar(255)"`
	UsedAt          *time.Time `gorm:"index"`
	UsedOnBookingID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
}

// Available reports whether the credit can still be applied.
func (c *PlatformCredit) Available() bool {
	return c.UsedAt == nil
}
