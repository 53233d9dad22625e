package controllers

import (
	"net/http"

	"cryptotracker/models"
	"cryptotracker/services/cache"
	"cryptotracker/services/market"

	"github.com/gin-gonic/gin"
)

// Cache keys for the market read-through endpoints
const (
	cacheKeyTrending   = "market:trending"
	cacheKeyTopGainers = "market:top-gainers"
	cacheKeyTopLosers  = "market:top-losers"
)

// MarketController serves the trending and gainers/losers snapshots
type MarketController struct {
	market *market.Service
	cache  *cache.Cache
}

// NewMarketController creates a new market controller
func NewMarketController(marketService *market.Service, snapshotCache *cache.Cache) *MarketController {
	return &MarketController{
		market: marketService,
		cache:  snapshotCache,
	}
}

// GetTrending returns the trending coins snapshot
// GET /api/v1/market/trending
func (mc *MarketController) GetTrending(c *gin.Context) {
	var cached []models.TrendingCoin
	if mc.cache.GetJSON(c.Request.Context(), cacheKeyTrending, &cached) {
		c.JSON(http.StatusOK, gin.H{"coins": cached, "cached": true})
		return
	}

	coins, err := mc.market.Trending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	mc.cache.SetJSON(c.Request.Context(), cacheKeyTrending, coins)
	c.JSON(http.StatusOK, gin.H{"coins": coins})
}

// GetTopGainers returns the top gainers snapshot
// GET /api/v1/market/top-gainers
func (mc *MarketController) GetTopGainers(c *gin.Context) {
	mc.gainersLosers(c, cacheKeyTopGainers, mc.market.TopGainers)
}

// GetTopLosers returns the top losers snapshot
// GET /api/v1/market/top-losers
func (mc *MarketController) GetTopLosers(c *gin.Context) {
	mc.gainersLosers(c, cacheKeyTopLosers, mc.market.TopLosers)
}

func (mc *MarketController) gainersLosers(c *gin.Context, key string, load func() ([]models.TopGainerLoser, error)) {
	var cached []models.TopGainerLoser
	if mc.cache.GetJSON(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, gin.H{"coins": cached, "cached": true})
		return
	}

	coins, err := load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	mc.cache.SetJSON(c.Request.Context(), key, coins)
	c.JSON(http.StatusOK, gin.H{"coins": coins})
}
