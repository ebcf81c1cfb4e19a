package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
)

// TxRunner runs a function inside a database transaction. Settlement uses it
// to hold a row lock on the booking from classification through the final
// state write.
type TxRunner interface {
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GormTxRunner implements TxRunner over a live gorm connection.
type GormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner creates a new GormTxRunner.
func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// EventPublisher publishes booking lifecycle events. Publishing is
// best-effort; settlement never fails on a publish error.
type EventPublisher interface {
	Publish(ctx context.Context, event models.BookingEvent) error
}

// SettlementResult summarizes how a cancellation was settled. All amounts are
// integer cents.
type SettlementResult struct {
	BookingID             uuid.UUID `json:"booking_id"`
	Outcome               Outcome   `json:"settlement_outcome"`
	StudentCreditCents    int64     `json:"student_credit_cents"`
	InstructorPayoutCents int64     `json:"instructor_payout_cents"`
	RefundedToCardCents   int64     `json:"refunded_to_card_cents"`
	PaymentStatus         string    `json:"payment_status"`
}

// SettlementService decides how a cancelled booking's money is split among
// refund-to-card, platform credit and instructor payout, and drives the
// processor calls accordingly. One invocation handles one booking; the caller
// may safely retry after a failure because every invocation re-reads payment
// state under the row lock.
type SettlementService struct {
	tx         TxRunner
	bookings   repository.BookingRepository
	accounts   repository.StripeAccountRepository
	processor  PaymentProcessor
	ledger     *LedgerService
	milestones *MilestoneService
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementService. publisher may be nil.
func NewSettlementService(
	tx TxRunner,
	bookings repository.BookingRepository,
	accounts repository.StripeAccountRepository,
	processor PaymentProcessor,
	ledger *LedgerService,
	milestones *MilestoneService,
	publisher EventPublisher,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		tx:         tx,
		bookings:   bookings,
		accounts:   accounts,
		processor:  processor,
		ledger:     ledger,
		milestones: milestones,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Settle cancels the booking and applies the cancellation policy. The booking
// row is locked for the duration; a processor failure parks the booking in a
// retryable payment status and surfaces the error.
func (s *SettlementService) Settle(ctx context.Context, bookingID uuid.UUID, initiator Initiator, reason string) (*SettlementResult, error) {
	var result *SettlementResult
	var parkStatus string
	var replayed bool

	err := s.tx.InTransaction(ctx, func(tx *gorm.DB) error {
		booking, err := s.bookings.FindByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}

		outcome := ClassifyCancellation(s.now(), booking.StartUTC, initiator.Role)

		if booking.SettlementOutcome != nil {
			if *booking.SettlementOutcome != string(outcome) {
				return ErrInvariantViolation
			}
			// Same outcome already applied; report it without reprocessing.
			result = resultFromBooking(booking)
			replayed = true
			return nil
		}
		if !booking.Cancellable() {
			return ErrBookingNotCancellable
		}

		account, err := s.accounts.FindConnectedAccountByUserID(ctx, booking.InstructorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConnectedAccountNotFound
			}
			return err
		}

		result, parkStatus, err = s.execute(ctx, booking, outcome, account.StripeAccountID)
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":                         models.BookingStatusCancelled,
			"cancelled_at":                   now,
			"cancellation_reason":            reason,
			"payment_status":                 result.PaymentStatus,
			"settlement_outcome":             string(result.Outcome),
			"student_credit_amount_cents":    result.StudentCreditCents,
			"instructor_payout_amount_cents": result.InstructorPayoutCents,
			"refunded_to_card_amount_cents":  result.RefundedToCardCents,
		}
		return s.bookings.UpdateFieldsTx(ctx, tx, booking.ID, updates)
	})

	if err != nil {
		// Park the booking in a retryable payment status outside the rolled
		// back transaction, so a later retry resumes from a well-defined state.
		if parkStatus != "" {
			if parkErr := s.bookings.UpdateFields(ctx, bookingID, map[string]interface{}{
				"payment_status": parkStatus,
			}); parkErr != nil {
				s.logger.Error("failed to park booking after settlement failure",
					zap.String("booking_id", bookingID.String()), zap.Error(parkErr))
			}
		}
		return nil, err
	}

	// A replayed settlement moved no money, so the side effects (which already
	// ran on the first pass) are not repeated and no event is republished.
	if !replayed {
		s.afterSettlement(ctx, bookingID, result)
	}
	return result, nil
}

// execute runs the processor calls for the classified outcome and returns the
// settlement result. On a processor failure it returns the retryable payment
// status the booking should be parked in.
func (s *SettlementService) execute(ctx context.Context, booking *models.Booking, outcome Outcome, connectedAccountID string) (*SettlementResult, string, error) {
	result := &SettlementResult{BookingID: booking.ID, Outcome: outcome}

	switch outcome {
	case OutcomeInstructorCancelFullRefund:
		status, err := s.settleInstructorCancel(ctx, booking, result)
		return result, status, err
	case OutcomeStudentCancelGT24NoCharge:
		status, err := s.settleNoCharge(ctx, booking, result)
		return result, status, err
	case OutcomeStudentCancel1224FullCredit:
		status, err := s.settleFullCredit(ctx, booking, result)
		return result, status, err
	case OutcomeStudentCancelLT12Split5050:
		status, err := s.settleSplit(ctx, booking, result, connectedAccountID)
		return result, status, err
	default:
		return nil, "", errors.New("unknown settlement outcome")
	}
}

// settleInstructorCancel voids the authorization, or fully refunds with the
// transfer reversed if funds were already captured. The student never loses
// money to an instructor cancellation.
func (s *SettlementService) settleInstructorCancel(ctx context.Context, booking *models.Booking, result *SettlementResult) (string, error) {
	switch booking.PaymentStatus {
	case models.PaymentStatusSettled:
		if err := s.processor.RefundPayment(*booking.PaymentIntentID, true, true); err != nil {
			return models.PaymentStatusManualReview, &ProcessorError{Op: "refund", Err: err}
		}
		result.RefundedToCardCents = booking.TotalPriceCents
		s.recordEvent(ctx, booking.ID, models.EventRefundIssuedInstructorCancel, map[string]interface{}{
			"payment_intent_id":      *booking.PaymentIntentID,
			"refunded_cents":         booking.TotalPriceCents,
			"refund_application_fee": true,
		})
	case models.PaymentStatusAuthorized:
		if err := s.processor.CancelPaymentIntent(*booking.PaymentIntentID); err != nil {
			return models.PaymentStatusManualReview, &ProcessorError{Op: "cancel_authorization", Err: err}
		}
		s.recordEvent(ctx, booking.ID, models.EventAuthCancelledInstructorCancel, map[string]interface{}{
			"payment_intent_id": *booking.PaymentIntentID,
		})
	}
	// scheduled / pending_payment_method: no intent to void, nothing charged.

	result.PaymentStatus = models.PaymentStatusNoCharge
	if booking.PaymentStatus == models.PaymentStatusSettled {
		result.PaymentStatus = models.PaymentStatusSettled
	}
	return "", nil
}

// settleNoCharge handles student cancellations 24h or more out: the held
// authorization is voided and no capture ever happens.
func (s *SettlementService) settleNoCharge(ctx context.Context, booking *models.Booking, result *SettlementResult) (string, error) {
	if booking.PaymentStatus == models.PaymentStatusAuthorized && booking.PaymentIntentID != nil {
		if err := s.processor.CancelPaymentIntent(*booking.PaymentIntentID); err != nil {
			return models.PaymentStatusManualReview, &ProcessorError{Op: "cancel_authorization", Err: err}
		}
		s.recordEvent(ctx, booking.ID, models.EventAuthCancelledEarlyCancel, map[string]interface{}{
			"payment_intent_id": *booking.PaymentIntentID,
		})
	}
	result.PaymentStatus = models.PaymentStatusNoCharge
	return "", nil
}

// settleFullCredit handles the 12-24h window: capture, reverse the
// instructor-bound transfer in full, and credit the student the lesson price
// only (fees stay with the platform).
func (s *SettlementService) settleFullCredit(ctx context.Context, booking *models.Booking, result *SettlementResult) (string, error) {
	// No held authorization means nothing to capture or reverse: a booking
	// cancelled before it was ever confirmed settles with zero amounts.
	if booking.PaymentStatus != models.PaymentStatusAuthorized || booking.PaymentIntentID == nil {
		result.PaymentStatus = models.PaymentStatusNoCharge
		return "", nil
	}

	capture, err := s.processor.CapturePaymentIntent(*booking.PaymentIntentID)
	if err != nil {
		return models.PaymentStatusMethodRequired, &ProcessorError{Op: "capture", Err: err}
	}
	s.recordEvent(ctx, booking.ID, models.EventCapturedLateCancel, map[string]interface{}{
		"payment_intent_id":     *booking.PaymentIntentID,
		"amount_received_cents": capture.AmountReceivedCents,
		"transfer_amount_cents": capture.TransferAmountCents,
	})

	// Reverse the transfer amount the processor reported, not the amount
	// received: the difference is the platform fee, which was never
	// instructor-bound.
	if err := s.processor.ReverseTransfer(capture.TransferID, capture.TransferAmountCents); err != nil {
		return models.PaymentStatusManualReview, &ProcessorError{Op: "reverse_transfer", Err: err}
	}
	s.recordEvent(ctx, booking.ID, models.EventTransferReversedLateCancel, map[string]interface{}{
		"transfer_id":  capture.TransferID,
		"amount_cents": capture.TransferAmountCents,
	})

	creditCents := booking.LessonPriceCents()
	if _, err := s.ledger.IssueCredit(ctx, booking.StudentID, booking.ID, creditCents,
		models.CreditReasonLessonPrice, "lesson price credit after student cancellation"); err != nil {
		return models.PaymentStatusManualReview, err
	}
	s.recordEvent(ctx, booking.ID, models.EventCreditCreatedLateCancel, map[string]interface{}{
		"amount_cents": creditCents,
		"reason":       models.CreditReasonLessonPrice,
	})

	result.StudentCreditCents = creditCents
	result.PaymentStatus = models.PaymentStatusSettled
	return "", nil
}

// settleSplit handles cancellations under 12h: capture, reverse the full
// transfer, then split between a student credit (half the lesson price) and a
// manual instructor payout (half the instructor-bound transfer amount). Odd
// cents are floored on both sides; the platform keeps the remainder.
func (s *SettlementService) settleSplit(ctx context.Context, booking *models.Booking, result *SettlementResult, connectedAccountID string) (string, error) {
	if booking.PaymentStatus != models.PaymentStatusAuthorized || booking.PaymentIntentID == nil {
		result.PaymentStatus = models.PaymentStatusNoCharge
		return "", nil
	}

	capture, err := s.processor.CapturePaymentIntent(*booking.PaymentIntentID)
	if err != nil {
		return models.PaymentStatusMethodRequired, &ProcessorError{Op: "capture", Err: err}
	}
	s.recordEvent(ctx, booking.ID, models.EventCapturedLastMinuteCancel, map[string]interface{}{
		"payment_intent_id":     *booking.PaymentIntentID,
		"amount_received_cents": capture.AmountReceivedCents,
		"transfer_amount_cents": capture.TransferAmountCents,
	})

	if err := s.processor.ReverseTransfer(capture.TransferID, capture.TransferAmountCents); err != nil {
		return models.PaymentStatusManualReview, &ProcessorError{Op: "reverse_transfer", Err: err}
	}
	s.recordEvent(ctx, booking.ID, models.EventTransferReversedLastMinuteCancel, map[string]interface{}{
		"transfer_id":  capture.TransferID,
		"amount_cents": capture.TransferAmountCents,
	})

	payoutCents := capture.TransferAmountCents / 2
	payout, err := s.processor.CreateTransfer(connectedAccountID, payoutCents)
	if err != nil {
		return models.PaymentStatusManualReview, &ProcessorError{Op: "transfer", Err: err}
	}
	s.recordEvent(ctx, booking.ID, models.EventPayoutCreatedLastMinuteCancel, map[string]interface{}{
		"transfer_id":            payout.TransferID,
		"amount_cents":           payoutCents,
		"destination_account_id": connectedAccountID,
	})

	creditCents := booking.LessonPriceCents() / 2
	if _, err := s.ledger.IssueCredit(ctx, booking.StudentID, booking.ID, creditCents,
		models.CreditReasonSplit, "half lesson price credit after last-minute cancellation"); err != nil {
		return models.PaymentStatusManualReview, err
	}
	s.recordEvent(ctx, booking.ID, models.EventCreditCreatedLastMinuteCancel, map[string]interface{}{
		"amount_cents": creditCents,
		"reason":       models.CreditReasonSplit,
	})

	result.StudentCreditCents = creditCents
	result.InstructorPayoutCents = payoutCents
	result.PaymentStatus = models.PaymentStatusSettled
	return "", nil
}

// afterSettlement runs the side effects that do not need the row lock:
// milestone revocation, credit reinstatement and event publishing. All are
// idempotent or best-effort.
func (s *SettlementService) afterSettlement(ctx context.Context, bookingID uuid.UUID, result *SettlementResult) {
	if _, err := s.milestones.RevokeMilestoneCredit(ctx, bookingID); err != nil {
		s.logger.Warn("milestone revocation failed after settlement",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
	if _, err := s.ledger.ReinstateUsedCredits(ctx, bookingID); err != nil {
		s.logger.Warn("credit reinstatement failed after settlement",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}

	if s.publisher != nil {
		event := models.BookingEvent{
			Type:              "booking_cancelled",
			BookingID:         bookingID.String(),
			SettlementOutcome: string(result.Outcome),
			StudentCredit:     result.StudentCreditCents,
			InstructorPayout:  result.InstructorPayoutCents,
			RefundedToCard:    result.RefundedToCardCents,
			Timestamp:         s.now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish settlement event",
				zap.String("booking_id", bookingID.String()), zap.Error(err))
		}
	}
}

// recordEvent appends a payment event after a successful processor call.
// Failures are logged, never propagated: the audit trail must not undo a
// money movement that already happened.
func (s *SettlementService) recordEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]interface{}) {
	if err := s.ledger.RecordPaymentEvent(ctx, bookingID, eventType, payload); err != nil {
		s.logger.Error("failed to record payment event",
			zap.String("booking_id", bookingID.String()),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func resultFromBooking(b *models.Booking) *SettlementResult {
	return &SettlementResult{
		BookingID:             b.ID,
		Outcome:               Outcome(*b.SettlementOutcome),
		StudentCreditCents:    b.StudentCreditAmountCents,
		InstructorPayoutCents: b.InstructorPayoutAmountCents,
		RefundedToCardCents:   b.RefundedToCardAmountCents,
		PaymentStatus:         b.PaymentStatus,
	}
}
