package services

import "time"

// Role identifies which party initiated a cancellation.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// Initiator is the authenticated party requesting the cancellation.
type Initiator struct {
	UserID string
	Role   Role
}

// Outcome names the cancellation policy branch applied to a booking. The tag
// is stored on booking.settlement_outcome for reporting and audit.
type Outcome string

const (
	// OutcomeInstructorCancelFullRefund: instructor cancelled, any time before
	// the lesson. Void or fully refund; zero payout, zero credit.
	OutcomeInstructorCancelFullRefund Outcome = "instructor_cancel_full_refund"

	// OutcomeStudentCancelGT24NoCharge: student cancelled 24h or more before
	// the lesson. The authorization is voided; nothing was ever charged.
	OutcomeStudentCancelGT24NoCharge Outcome = "student_cancel_gt24_no_charge"

	// OutcomeStudentCancel1224FullCredit: student cancelled between 12h and
	// 24h before the lesson. Capture, reverse the instructor transfer, credit
	// the student the lesson price only.
	OutcomeStudentCancel1224FullCredit Outcome = "student_cancel_12_24_full_credit"

	// OutcomeStudentCancelLT12Split5050: student cancelled under 12h before
	// the lesson. Capture, reverse the transfer, then split between a student
	// credit and a manual instructor payout.
	OutcomeStudentCancelLT12Split5050 Outcome = "student_cancel_lt12_split_50_50"
)

// ClassifyCancellation maps (now, lesson start, initiator role) to a policy
// outcome. Both times must be UTC.
//
// Boundary rules: exactly 24h before start falls in the no-charge bucket
// ("not yet under 24h"); exactly 12h falls in the 12-24h bucket.
func ClassifyCancellation(now, lessonStartUTC time.Time, role Role) Outcome {
	if role == RoleInstructor {
		return OutcomeInstructorCancelFullRefund
	}

	untilLesson := lessonStartUTC.Sub(now)
	switch {
	case untilLesson >= 24*time.Hour:
		return OutcomeStudentCancelGT24NoCharge
	case untilLesson >= 12*time.Hour:
		return OutcomeStudentCancel1224FullCredit
	default:
		return OutcomeStudentCancelLT12Split5050
	}
}
