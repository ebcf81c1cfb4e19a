package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
)

// LedgerService is the single entry point for creating platform credits and
// payment events. It enforces the (source_booking_id, reason) idempotency
// guarantee on top of the unique index.
type LedgerService struct {
	credits repository.CreditRepository
	events  repository.PaymentEventRepository
	cache   BalanceCache
	logger  *zap.Logger
}

// NewLedgerService creates a new LedgerService. cache may be nil when no
// Redis is configured.
func NewLedgerService(credits repository.CreditRepository, events repository.PaymentEventRepository, cache BalanceCache, logger *zap.Logger) *LedgerService {
	return &LedgerService{credits: credits, events: events, cache: cache, logger: logger}
}

// IssueCredit creates a platform credit for the user, keyed by
// (sourceBookingID, reason). If a credit for that pair already exists the
// existing row is returned and nothing is inserted.
func (s *LedgerService) IssueCredit(ctx context.Context, userID, sourceBookingID uuid.UUID, amountCents int64, reason, description string) (*models.PlatformCredit, error) {
	existing, err := s.credits.FindBySourceAndReason(ctx, sourceBookingID, reason)
	if err == nil {
		s.logger.Info("credit already issued, skipping",
			zap.String("source_booking_id", sourceBookingID.String()),
			zap.String("reason", reason),
		)
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	credit := &models.PlatformCredit{
		UserID:          userID,
		AmountCents:     amountCents,
		Reason:          reason,
		SourceBookingID: sourceBookingID,
		Description:     description,
	}
	if err := s.credits.Create(ctx, credit); err != nil {
		return nil, err
	}
	s.invalidateBalance(ctx, userID)

	s.logger.Info("platform credit issued",
		zap.String("user_id", userID.String()),
		zap.String("source_booking_id", sourceBookingID.String()),
		zap.String("reason", reason),
		zap.Int64("amount_cents", amountCents),
	)
	return credit, nil
}

// RevokeCredit marks matching unused credits as used without crediting
// anyone and returns the amount revoked. Credits that were already spent are
// left alone; revoking nothing returns 0 and no error.
func (s *LedgerService) RevokeCredit(ctx context.Context, sourceBookingID uuid.UUID, reason string) (int64, error) {
	credit, err := s.credits.FindBySourceAndReason(ctx, sourceBookingID, reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if !credit.Available() {
		// Spent credits are not clawed back.
		return 0, nil
	}

	if err := s.credits.MarkUsed(ctx, credit.ID, nil, time.Now().UTC()); err != nil {
		return 0, err
	}
	s.invalidateBalance(ctx, credit.UserID)

	s.logger.Info("platform credit revoked",
		zap.String("source_booking_id", sourceBookingID.String()),
		zap.String("reason", reason),
		zap.Int64("amount_cents", credit.AmountCents),
	)
	return credit.AmountCents, nil
}

// ReinstateUsedCredits finds credits that were consumed by a now-refunded
// booking and issues a single refund_reinstate credit of the same total.
// Idempotent per refunded booking; returns 0 the second time.
func (s *LedgerService) ReinstateUsedCredits(ctx context.Context, refundedBookingID uuid.UUID) (int64, error) {
	if _, err := s.credits.FindBySourceAndReason(ctx, refundedBookingID, models.CreditReasonRefundReinstate); err == nil {
		return 0, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	consumed, err := s.credits.FindUsedOnBooking(ctx, refundedBookingID)
	if err != nil {
		return 0, err
	}
	if len(consumed) == 0 {
		return 0, nil
	}

	var total int64
	for _, c := range consumed {
		total += c.AmountCents
	}
	userID := consumed[0].UserID

	if _, err := s.IssueCredit(ctx, userID, refundedBookingID, total, models.CreditReasonRefundReinstate,
		"credit reinstated after booking refund"); err != nil {
		return 0, err
	}
	return total, nil
}

// RecordPaymentEvent appends a payment event for the booking. payload is
// marshalled into the jsonb event_data column.
func (s *LedgerService) RecordPaymentEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.events.Create(ctx, &models.PaymentEvent{
		BookingID: bookingID,
		EventType: eventType,
		EventData: string(data),
	})
}

// AvailableBalance returns the user's available credit balance, cache-aside.
func (s *LedgerService) AvailableBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		if cents, ok := s.cache.Get(ctx, userID); ok {
			return cents, nil
		}
	}
	cents, err := s.credits.SumAvailableByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, userID, cents)
	}
	return cents, nil
}

func (s *LedgerService) invalidateBalance(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
}
