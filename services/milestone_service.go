package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
)

// Milestone thresholds: crossing the 5th completed lesson earns 1000 cents,
// the 11th earns 2000.
const (
	milestoneS5Count  = 5
	milestoneS5Cents  = 1000
	milestoneS11Count = 11
	milestoneS11Cents = 2000
)

// MilestoneService issues one-time credits when a student's completed-lesson
// count crosses a threshold, and reverses them when the triggering booking is
// cancelled.
type MilestoneService struct {
	bookings repository.BookingRepository
	ledger   *LedgerService
	logger   *zap.Logger
}

// NewMilestoneService creates a new MilestoneService.
func NewMilestoneService(bookings repository.BookingRepository, ledger *LedgerService, logger *zap.Logger) *MilestoneService {
	return &MilestoneService{bookings: bookings, ledger: ledger, logger: logger}
}

// MaybeIssueMilestoneCredit checks the student's completed-lesson count and
// issues the matching milestone credit tagged to the booking that crossed the
// threshold. Re-invoking for the same booking is a no-op via the ledger's
// (source_booking_id, reason) idempotency.
func (s *MilestoneService) MaybeIssueMilestoneCredit(ctx context.Context, studentID, bookingID uuid.UUID) error {
	count, err := s.bookings.CountCompletedByStudent(ctx, studentID)
	if err != nil {
		return err
	}

	var reason string
	var amountCents int64
	switch count {
	case milestoneS5Count:
		reason, amountCents = models.CreditReasonMilestoneS5, milestoneS5Cents
	case milestoneS11Count:
		reason, amountCents = models.CreditReasonMilestoneS11, milestoneS11Cents
	default:
		return nil
	}

	if _, err := s.ledger.IssueCredit(ctx, studentID, bookingID, amountCents, reason,
		"milestone lesson credit"); err != nil {
		return err
	}

	s.logger.Info("milestone credit issued",
		zap.String("student_id", studentID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.Int64("completed_count", count),
	)
	return nil
}

// RevokeMilestoneCredit reverses any unused milestone credit sourced from the
// booking. Spent credits are intentionally left alone; the returned amount is
// 0 in that case.
func (s *MilestoneService) RevokeMilestoneCredit(ctx context.Context, sourceBookingID uuid.UUID) (int64, error) {
	var total int64
	for _, reason := range []string{models.CreditReasonMilestoneS5, models.CreditReasonMilestoneS11} {
		revoked, err := s.ledger.RevokeCredit(ctx, sourceBookingID, reason)
		if err != nil {
			return total, err
		}
		total += revoked
	}
	return total, nil
}
