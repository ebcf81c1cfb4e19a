package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/msaedi/instructly-sub005/controllers"
	"github.com/msaedi/instructly-sub005/middleware"
)

// Register wires all HTTP routes.
func Register(r *gin.Engine, jwtSecret string, bc *controllers.BookingController, cc *controllers.CreditController, wc *controllers.WebhookController) {
	bookings := r.Group("/bookings")
	bookings.Use(middleware.AuthMiddleware(jwtSecret))
	bookings.POST("", bc.CreateBooking)
	bookings.GET("", bc.GetBookings)
	bookings.GET("/:id", bc.GetBooking)
	bookings.GET("/:id/payment", bc.GetPaymentState)
	bookings.POST("/:id/confirm", bc.ConfirmBooking)
	bookings.POST("/:id/cancel", bc.CancelBooking)
	bookings.POST("/:id/complete", bc.CompleteBooking)

	credits := r.Group("/credits")
	credits.Use(middleware.AuthMiddleware(jwtSecret))
	credits.GET("", cc.GetCredits)

	// Stripe webhook (no auth)
	r.POST("/stripe/webhook", wc.StripeWebhook)
}
