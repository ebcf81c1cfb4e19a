package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-sub005/middleware"
	"github.com/msaedi/instructly-sub005/repository"
	"github.com/msaedi/instructly-sub005/services"
)

// CreditController exposes the user's platform credit balance and history.
type CreditController struct {
	Ledger  *services.LedgerService
	Credits repository.CreditRepository
	Logger  *zap.Logger
}

// GetCredits handles GET /credits: available balance (cache-aside) plus the
// full ledger history.
func (cc *CreditController) GetCredits(c *gin.Context) {
	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id in token"})
		return
	}

	balance, err := cc.Ledger.AvailableBalance(c.Request.Context(), userID)
	if err != nil {
		cc.Logger.Error("Failed to compute credit balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credit balance"})
		return
	}

	entries, err := cc.Credits.ListByUser(c.Request.Context(), userID)
	if err != nil {
		cc.Logger.Error("Failed to list credits", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"available_balance_cents": balance,
		"credits":                 entries,
	})
}
