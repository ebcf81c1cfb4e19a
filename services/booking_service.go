package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
)

// studentFeePercent is the service fee added on top of the lesson price when
// the student is charged. The fee portion is never refunded as credit.
const studentFeePercent = 5

// platformFeePercent is the application fee withheld from the instructor's
// transfer on capture.
const platformFeePercent = 12

// scheduleAuthWindow: lessons further out than this get a deferred
// authorization instead of an immediate hold.
const scheduleAuthWindow = 7 * 24 * time.Hour

// IntentCreator is the subset of the Stripe wrapper the booking flow needs.
type IntentCreator interface {
	CreateSetupIntent(customerID string) (string, error)
	CreatePaymentIntent(amountCents, applicationFeeCents int64, customerID, paymentMethodID, destinationAccountID string) (string, error)
}

// CreateBookingRequest carries the validated input for a new booking.
type CreateBookingRequest struct {
	InstructorID        uuid.UUID `json:"instructor_id" binding:"required"`
	InstructorServiceID uuid.UUID `json:"instructor_service_id" binding:"required"`
	BookingDate         string    `json:"booking_date" binding:"required"` // YYYY-MM-DD
	StartTime           string    `json:"start_time" binding:"required"`   // HH:MM
	EndTime             string    `json:"end_time" binding:"required"`
	Timezone            string    `json:"timezone" binding:"required"`
	HourlyRateCents     int64     `json:"hourly_rate_cents" binding:"required,min=1"`
}

// BookingListResponse is a paginated booking listing.
type BookingListResponse struct {
	Bookings []models.Booking `json:"bookings"`
	Meta     MetaData         `json:"meta"`
}

// MetaData carries pagination info.
type MetaData struct {
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	TotalBookings int64 `json:"total_bookings"`
	TotalPages    int64 `json:"total_pages"`
	HasMore       bool  `json:"has_more"`
}

// BookingService owns the booking lifecycle: create with a deferred payment
// method, confirm with authorization, complete post-lesson, cancel through
// the settlement engine.
type BookingService struct {
	bookings   repository.BookingRepository
	credits    repository.CreditRepository
	accounts   repository.StripeAccountRepository
	intents    IntentCreator
	ledger     *LedgerService
	milestones *MilestoneService
	settlement *SettlementService
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings repository.BookingRepository,
	credits repository.CreditRepository,
	accounts repository.StripeAccountRepository,
	intents IntentCreator,
	ledger *LedgerService,
	milestones *MilestoneService,
	settlement *SettlementService,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:   bookings,
		credits:    credits,
		accounts:   accounts,
		intents:    intents,
		ledger:     ledger,
		milestones: milestones,
		settlement: settlement,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking validates the slot, snapshots pricing, applies any available
// platform credit and stores the booking with a deferred payment method.
func (s *BookingService) CreateBooking(ctx context.Context, studentID uuid.UUID, req *CreateBookingRequest) (*models.Booking, *ServiceError) {
	startUTC, endUTC, err := resolveLessonTimes(req.BookingDate, req.StartTime, req.EndTime, req.Timezone)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
	}
	if startUTC.Before(s.now()) {
		return nil, &ServiceError{StatusCode: 400, Message: "Lesson start must be in the future"}
	}

	durationMinutes := int(endUTC.Sub(startUTC) / time.Minute)
	lessonPriceCents := req.HourlyRateCents * int64(durationMinutes) / 60
	totalPriceCents := lessonPriceCents + lessonPriceCents*studentFeePercent/100

	booking := &models.Booking{
		ID:                  uuid.New(),
		StudentID:           studentID,
		InstructorID:        req.InstructorID,
		InstructorServiceID: req.InstructorServiceID,
		BookingDate:         req.BookingDate,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		StartUTC:            startUTC,
		EndUTC:              endUTC,
		Timezone:            req.Timezone,
		Status:              models.BookingStatusPending,
		PaymentStatus:       models.PaymentStatusPendingMethod,
		HourlyRateCents:     req.HourlyRateCents,
		DurationMinutes:     durationMinutes,
		TotalPriceCents:     totalPriceCents,
	}

	applied, svcErr := s.applyAvailableCredit(ctx, studentID, booking)
	if svcErr != nil {
		return nil, svcErr
	}
	booking.CreditAppliedCents = applied

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.logger.Error("Failed to persist booking", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to save booking"}
	}

	// Prepare a setup intent so the student can attach a card later.
	if customer, err := s.accounts.FindCustomerByUserID(ctx, studentID); err == nil {
		if secret, err := s.intents.CreateSetupIntent(customer.StripeCustomerID); err == nil {
			_ = s.ledger.RecordPaymentEvent(ctx, booking.ID, models.EventSetupIntentCreated, map[string]interface{}{
				"client_secret_prefix": secretPrefix(secret),
			})
		} else {
			s.logger.Warn("setup intent creation failed", zap.Error(err))
		}
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("student_id", studentID.String()),
		zap.Int64("total_price_cents", totalPriceCents),
		zap.Int64("credit_applied_cents", applied),
	)
	return booking, nil
}

// ConfirmBooking attaches a payment method and authorizes the charge. Lessons
// more than a week out are parked as scheduled; the authorization happens
// closer to the lesson.
func (s *BookingService) ConfirmBooking(ctx context.Context, studentID, bookingID uuid.UUID, paymentMethodID string) (*models.Booking, *ServiceError) {
	booking, svcErr := s.ownBooking(ctx, studentID, bookingID)
	if svcErr != nil {
		return nil, svcErr
	}
	if booking.Status != models.BookingStatusPending {
		return nil, &ServiceError{StatusCode: 409, Message: "Booking is not awaiting confirmation"}
	}

	customer, err := s.accounts.FindCustomerByUserID(ctx, studentID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "No payment profile for student"}
	}
	account, err := s.accounts.FindConnectedAccountByUserID(ctx, booking.InstructorID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Instructor has no connected account"}
	}

	chargeCents := booking.TotalPriceCents - booking.CreditAppliedCents
	updates := map[string]interface{}{
		"status":            models.BookingStatusConfirmed,
		"payment_method_id": paymentMethodID,
	}

	if booking.StartUTC.Sub(s.now()) > scheduleAuthWindow {
		updates["payment_status"] = models.PaymentStatusScheduled
		_ = s.ledger.RecordPaymentEvent(ctx, booking.ID, models.EventAuthScheduled, map[string]interface{}{
			"charge_cents": chargeCents,
			"start_utc":    booking.StartUTC,
		})
	} else {
		feeCents := booking.LessonPriceCents() * platformFeePercent / 100
		intentID, err := s.intents.CreatePaymentIntent(chargeCents, feeCents,
			customer.StripeCustomerID, paymentMethodID, account.StripeAccountID)
		if err != nil {
			s.logger.Error("payment authorization failed",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
			return nil, &ServiceError{StatusCode: 502, Message: "Payment authorization failed"}
		}
		updates["payment_status"] = models.PaymentStatusAuthorized
		updates["payment_intent_id"] = intentID
		_ = s.ledger.RecordPaymentEvent(ctx, booking.ID, models.EventAuthImmediate, map[string]interface{}{
			"payment_intent_id": intentID,
			"charge_cents":      chargeCents,
		})
	}

	if err := s.bookings.UpdateFields(ctx, bookingID, updates); err != nil {
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update booking"}
	}

	s.publish(ctx, booking, "booking_confirmed")
	return s.reload(ctx, bookingID)
}

// CompleteBooking marks a confirmed booking completed after the lesson and
// triggers the milestone credit check.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *ServiceError) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Booking not found"}
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, &ServiceError{StatusCode: 409, Message: "Only confirmed bookings can be completed"}
	}
	if s.now().Before(booking.EndUTC) {
		return nil, &ServiceError{StatusCode: 409, Message: "Lesson has not ended yet"}
	}

	now := s.now()
	if err := s.bookings.UpdateFields(ctx, bookingID, map[string]interface{}{
		"status":       models.BookingStatusCompleted,
		"completed_at": now,
	}); err != nil {
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update booking"}
	}

	if err := s.milestones.MaybeIssueMilestoneCredit(ctx, booking.StudentID, bookingID); err != nil {
		s.logger.Warn("milestone check failed on completion",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}

	s.publish(ctx, booking, "booking_completed")
	return s.reload(ctx, bookingID)
}

// CancelBooking validates the initiator and hands off to the settlement
// engine.
func (s *BookingService) CancelBooking(ctx context.Context, userID uuid.UUID, role Role, bookingID uuid.UUID, reason string) (*SettlementResult, *ServiceError) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Booking not found"}
		}
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to load booking"}
	}

	switch role {
	case RoleStudent:
		if booking.StudentID != userID {
			return nil, &ServiceError{StatusCode: 403, Message: "Not your booking"}
		}
	case RoleInstructor:
		if booking.InstructorID != userID {
			return nil, &ServiceError{StatusCode: 403, Message: "Not your booking"}
		}
	default:
		return nil, &ServiceError{StatusCode: 403, Message: "Unknown role"}
	}

	result, err := s.settlement.Settle(ctx, bookingID, Initiator{UserID: userID.String(), Role: role}, reason)
	if err != nil {
		return nil, mapSettlementError(err)
	}
	return result, nil
}

// GetBooking returns a booking visible to the requesting participant.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, *ServiceError) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Booking not found"}
	}
	if booking.StudentID != userID && booking.InstructorID != userID {
		return nil, &ServiceError{StatusCode: 403, Message: "Not your booking"}
	}
	return booking, nil
}

// GetStudentBookings retrieves paginated bookings for a student.
func (s *BookingService) GetStudentBookings(ctx context.Context, studentID uuid.UUID, page, limit int) (*BookingListResponse, *ServiceError) {
	bookings, total, err := s.bookings.FindByStudentID(ctx, studentID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch bookings", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch bookings"}
	}
	return &BookingListResponse{
		Bookings: bookings,
		Meta: MetaData{
			Page:          page,
			Limit:         limit,
			TotalBookings: total,
			TotalPages:    calculateTotalPages(total, limit),
			HasMore:       total > int64(page*limit),
		},
	}, nil
}

// applyAvailableCredit consumes the student's oldest available credits
// against the booking total, marking each consumed credit with the booking
// that used it.
func (s *BookingService) applyAvailableCredit(ctx context.Context, studentID uuid.UUID, booking *models.Booking) (int64, *ServiceError) {
	available, err := s.credits.FindAvailableByUser(ctx, studentID)
	if err != nil {
		return 0, &ServiceError{StatusCode: 500, Message: "Failed to load credits"}
	}

	var applied int64
	usedAt := s.now()
	for _, credit := range available {
		if applied >= booking.TotalPriceCents {
			break
		}
		// Credits are consumed whole. One that would overshoot the remaining
		// balance stays available instead of burning the overage.
		if applied+credit.AmountCents > booking.TotalPriceCents {
			continue
		}
		if err := s.credits.MarkUsed(ctx, credit.ID, &booking.ID, usedAt); err != nil {
			return 0, &ServiceError{StatusCode: 500, Message: "Failed to apply credit"}
		}
		applied += credit.AmountCents
	}
	return applied, nil
}

func (s *BookingService) ownBooking(ctx context.Context, studentID, bookingID uuid.UUID) (*models.Booking, *ServiceError) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Booking not found"}
	}
	if booking.StudentID != studentID {
		return nil, &ServiceError{StatusCode: 403, Message: "Not your booking"}
	}
	return booking, nil
}

func (s *BookingService) reload(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *ServiceError) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to reload booking"}
	}
	return booking, nil
}

func (s *BookingService) publish(ctx context.Context, booking *models.Booking, eventType string) {
	if s.publisher == nil {
		return
	}
	event := models.BookingEvent{
		Type:         eventType,
		BookingID:    booking.ID.String(),
		StudentID:    booking.StudentID.String(),
		InstructorID: booking.InstructorID.String(),
		Timestamp:    s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish booking event",
			zap.String("booking_id", booking.ID.String()),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

func mapSettlementError(err error) *ServiceError {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		return &ServiceError{StatusCode: 404, Message: "Booking not found"}
	case errors.Is(err, ErrConnectedAccountNotFound):
		return &ServiceError{StatusCode: 404, Message: "Instructor has no connected account"}
	case errors.Is(err, ErrBookingNotCancellable):
		return &ServiceError{StatusCode: 409, Message: "Booking is not cancellable"}
	case errors.Is(err, ErrInvariantViolation):
		return &ServiceError{StatusCode: 409, Message: "Booking was already settled with a different outcome"}
	default:
		var pe *ProcessorError
		if errors.As(err, &pe) {
			return &ServiceError{StatusCode: 502, Message: "Payment processor error, please retry: " + pe.Error()}
		}
		return &ServiceError{StatusCode: 500, Message: "Cancellation failed"}
	}
}

// resolveLessonTimes converts the instructor-local date/time strings into UTC
// instants and enforces start < end within the same booking date.
func resolveLessonTimes(bookingDate, startTime, endTime, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q", timezone)
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", bookingDate+" "+startTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid booking date or start time")
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", bookingDate+" "+endTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end time")
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start time must be before end time on the same day")
	}
	return start.UTC(), end.UTC(), nil
}

func secretPrefix(secret string) string {
	if len(secret) > 12 {
		return secret[:12]
	}
	return secret
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return pages
}
