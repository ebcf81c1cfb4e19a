package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/models"
	"github.com/msaedi/instructly-sub005/repository"
	"github.com/msaedi/instructly-sub005/services"
)

// WebhookController handles Stripe webhooks for payment status updates.
type WebhookController struct {
	Stripe   *services.StripeService
	Bookings repository.BookingRepository
	Ledger   *services.LedgerService
	Logger   *zap.Logger
}

// StripeWebhook handles POST /stripe/webhook.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	event, err := wc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		wc.handlePaymentStatus(c, event, models.PaymentStatusSettled)
	case "payment_intent.payment_failed":
		wc.handlePaymentStatus(c, event, models.PaymentStatusMethodRequired)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (wc *WebhookController) handlePaymentStatus(c *gin.Context, event stripe.Event, status string) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		wc.Logger.Warn("Failed to decode payment intent from webhook", zap.Error(err))
		return
	}

	booking, err := wc.Bookings.FindByPaymentIntentID(c.Request.Context(), pi.ID)
	if err != nil {
		return // not our intent
	}

	// Already terminal for this intent; webhooks may be delivered twice.
	if booking.PaymentStatus == status {
		return
	}

	if err := wc.Bookings.UpdateFields(c.Request.Context(), booking.ID, map[string]interface{}{
		"payment_status": status,
	}); err != nil {
		wc.Logger.Error("Failed to update payment status from webhook",
			zap.String("booking_id", booking.ID.String()), zap.Error(err))
		return
	}

	_ = wc.Ledger.RecordPaymentEvent(c.Request.Context(), booking.ID, "webhook_"+string(event.Type), map[string]interface{}{
		"payment_intent_id": pi.ID,
		"payment_status":    status,
	})

	wc.Logger.Info("Payment status updated from webhook",
		zap.String("booking_id", booking.ID.String()),
		zap.String("payment_status", status),
	)
}
