package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/middleware"
	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/services"
)

// BookingOperations is the booking lifecycle surface the HTTP layer depends
// on. Implemented by services.BookingService.
type BookingOperations interface {
	CreateBooking(ctx context.Context, studentID uuid.UUID, req *services.CreateBookingRequest) (*models.Booking, *services.ServiceError)
	ConfirmBooking(ctx context.Context, studentID, bookingID uuid.UUID, paymentMethodID string) (*models.Booking, *services.ServiceError)
	CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*models.Booking, *services.ServiceError)
	CancelBooking(ctx context.Context, userID uuid.UUID, role services.Role, bookingID uuid.UUID, reason string) (*services.SettlementResult, *services.ServiceError)
	GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Booking, *services.ServiceError)
	GetStudentBookings(ctx context.Context, studentID uuid.UUID, page, limit int) (*services.BookingListResponse, *services.ServiceError)
}

// PaymentStateReader resolves the current payment snapshot for a booking.
// Implemented by services.PaymentStateReader.
type PaymentStateReader interface {
	Read(ctx context.Context, bookingID uuid.UUID) (*services.PaymentState, error)
}

// BookingController exposes the booking lifecycle over HTTP.
type BookingController struct {
	Bookings BookingOperations
	Payments PaymentStateReader
	Logger   *zap.Logger
}

// CreateBooking handles POST /bookings.
func (bc *BookingController) CreateBooking(c *gin.Context) {
	studentID, ok := bc.authedUUID(c)
	if !ok {
		return
	}

	var req services.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, svcErr := bc.Bookings.CreateBooking(c.Request.Context(), studentID, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GetBookings handles GET /bookings with pagination query params.
func (bc *BookingController) GetBookings(c *gin.Context) {
	studentID, ok := bc.authedUUID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	resp, svcErr := bc.Bookings.GetStudentBookings(c.Request.Context(), studentID, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetBooking handles GET /bookings/:id.
func (bc *BookingController) GetBooking(c *gin.Context) {
	userID, ok := bc.authedUUID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	booking, svcErr := bc.Bookings.GetBooking(c.Request.Context(), userID, bookingID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ConfirmBooking handles POST /bookings/:id/confirm.
func (bc *BookingController) ConfirmBooking(c *gin.Context) {
	studentID, ok := bc.authedUUID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	var req struct {
		PaymentMethodID string `json:"payment_method_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, svcErr := bc.Bookings.ConfirmBooking(c.Request.Context(), studentID, bookingID, req.PaymentMethodID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking handles POST /bookings/:id/cancel. The initiator role comes
// from the JWT, which decides the cancellation policy branch.
func (bc *BookingController) CancelBooking(c *gin.Context) {
	userID, ok := bc.authedUUID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	role := services.Role(middleware.GetUserRole(c))
	if role != services.RoleStudent && role != services.RoleInstructor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Role cannot cancel bookings"})
		return
	}

	result, svcErr := bc.Bookings.CancelBooking(c.Request.Context(), userID, role, bookingID, req.Reason)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	bc.Logger.Info("Booking cancelled",
		zap.String("booking_id", bookingID.String()),
		zap.String("outcome", string(result.Outcome)),
	)
	c.JSON(http.StatusOK, result)
}

// CompleteBooking handles POST /bookings/:id/complete (internal/admin use;
// normally driven by the post-lesson sweep).
func (bc *BookingController) CompleteBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	booking, svcErr := bc.Bookings.CompleteBooking(c.Request.Context(), bookingID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GetPaymentState handles GET /bookings/:id/payment: the booking's payment
// status, intent and the instructor's connected account, for support tooling.
func (bc *BookingController) GetPaymentState(c *gin.Context) {
	userID, ok := bc.authedUUID(c)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	// Participant check rides on the same visibility rule as GetBooking.
	if _, svcErr := bc.Bookings.GetBooking(c.Request.Context(), userID, bookingID); svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	state, err := bc.Payments.Read(c.Request.Context(), bookingID)
	if err != nil {
		if errors.Is(err, services.ErrConnectedAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Instructor has no connected account"})
			return
		}
		bc.Logger.Error("Failed to read payment state",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read payment state"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (bc *BookingController) authedUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id in token"})
		return uuid.Nil, false
	}
	return id, true
}
