package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"cryptotracker/services/fetcher"
	"cryptotracker/services/pricestore"
	"cryptotracker/services/registry"

	"github.com/gin-gonic/gin"
)

// PriceController serves the price query surface
type PriceController struct {
	store    *pricestore.Store
	registry *registry.Registry
	fetcher  *fetcher.Fetcher
}

// NewPriceController creates a new price controller
func NewPriceController(store *pricestore.Store, coinRegistry *registry.Registry, priceFetcher *fetcher.Fetcher) *PriceController {
	return &PriceController{
		store:    store,
		registry: coinRegistry,
		fetcher:  priceFetcher,
	}
}

// GetLatestPrices returns the latest price for each stored symbol
// GET /api/v1/prices
func (pc *PriceController) GetLatestPrices(c *gin.Context) {
	latest, err := pc.store.LatestPerSymbol(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(latest) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No prices found"})
		return
	}

	points := make([]any, 0, len(latest))
	for _, point := range latest {
		points = append(points, point)
	}
	c.JSON(http.StatusOK, gin.H{"prices": points, "count": len(points)})
}

// GetPriceHistory returns price history for a symbol, optionally
// averaged into hour or day buckets
// GET /api/v1/prices/:symbol?limit=100&group_by=hour|day
func (pc *PriceController) GetPriceHistory(c *gin.Context) {
	symbol := c.Param("symbol")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	if groupBy := c.Query("group_by"); groupBy != "" {
		buckets, err := pc.store.HistoryBucketed(symbol, groupBy, limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "group_by": groupBy, "prices": buckets})
		return
	}

	points, err := pc.store.History(symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No prices found for " + symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "prices": points})
}

// GetAvailableCoins returns the deduplicated coin catalogue
// GET /api/v1/coins
func (pc *PriceController) GetAvailableCoins(c *gin.Context) {
	coins, err := pc.registry.AvailableCoins()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": coins, "count": len(coins)})
}

// TriggerFetch runs a fetch cycle on demand
// POST /api/v1/fetch
func (pc *PriceController) TriggerFetch(c *gin.Context) {
	result, err := pc.fetcher.RunCycle(c.Request.Context())
	if err != nil {
		if errors.Is(err, fetcher.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "A fetch cycle is already running"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}
