package models

import "time"

// BookingEvent is the message published to Kafka/SNS when a booking changes
// state. Amounts are in cents.
type BookingEvent struct {
	Type              string    `json:"type"` // e.g. "booking_confirmed", "booking_cancelled"
	BookingID         string    `json:"booking_id"`
	StudentID         string    `json:"student_id"`
	InstructorID      string    `json:"instructor_id"`
	SettlementOutcome string    `json:"settlement_outcome,omitempty"`
	StudentCredit     int64     `json:"student_credit_cents,omitempty"`
	InstructorPayout  int64     `json:"instructor_payout_cents,omitempty"`
	RefundedToCard    int64     `json:"refunded_to_card_cents,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
