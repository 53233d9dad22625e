package routes

import (
	"cryptotracker/config"
	"cryptotracker/controllers"
	"cryptotracker/middleware"
	"cryptotracker/services/cache"
	"cryptotracker/services/fetcher"
	"cryptotracker/services/market"
	"cryptotracker/services/portfolio"
	"cryptotracker/services/pricestore"
	"cryptotracker/services/registry"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	store *pricestore.Store,
	coinRegistry *registry.Registry,
	priceFetcher *fetcher.Fetcher,
	marketService *market.Service,
	portfolioService *portfolio.Service,
	snapshotCache *cache.Cache,
) {
	priceController := controllers.NewPriceController(store, coinRegistry, priceFetcher)
	marketController := controllers.NewMarketController(marketService, snapshotCache)
	portfolioController := controllers.NewPortfolioController(portfolioService)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Price routes
		prices := api.Group("/prices")
		{
			prices.GET("", priceController.GetLatestPrices)
			prices.GET("/:symbol", priceController.GetPriceHistory)
		}

		// Coin catalogue
		api.GET("/coins", priceController.GetAvailableCoins)

		// On-demand fetch trigger
		api.POST("/fetch", priceController.TriggerFetch)

		// Market snapshot routes
		marketRoutes := api.Group("/market")
		{
			marketRoutes.GET("/trending", marketController.GetTrending)
			marketRoutes.GET("/top-gainers", marketController.GetTopGainers)
			marketRoutes.GET("/top-losers", marketController.GetTopLosers)
		}

		// User-scoped routes
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			authorized.GET("/portfolio/value", portfolioController.GetPortfolioValue)
		}
	}
}
