package controllers

import (
	"net/http"

	"cryptotracker/services/portfolio"

	"github.com/gin-gonic/gin"
)

// PortfolioController serves cost-basis valuations
type PortfolioController struct {
	portfolio *portfolio.Service
}

// NewPortfolioController creates a new portfolio controller
func NewPortfolioController(portfolioService *portfolio.Service) *PortfolioController {
	return &PortfolioController{portfolio: portfolioService}
}

// GetPortfolioValue returns the caller's portfolio valued at latest prices
// GET /api/v1/portfolio/value (requires auth)
func (pc *PortfolioController) GetPortfolioValue(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	valuation, err := pc.portfolio.Value(userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, valuation)
}
