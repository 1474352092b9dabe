package http

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		instruments := api.Group("/instruments")
		instruments.POST("", handler.CreateInstrument)
		instruments.POST("/real", handler.CreateRealInstrument)
		instruments.POST("/refresh", handler.RefreshInstruments)
		instruments.GET("", handler.ListInstruments)
		instruments.GET("/:symbol", handler.GetInstrument)
		instruments.PUT("/:symbol/price", handler.UpdatePrice)
		instruments.POST("/:symbol/refresh", handler.RefreshInstrument)

		markets := api.Group("/markets")
		markets.POST("", handler.CreateMarket)
		markets.POST("/union", handler.UnionMarkets)
		markets.GET("", handler.ListMarkets)
		markets.GET("/:name", handler.GetMarket)
		markets.GET("/:name/items/:index", handler.GetMarketItem)
		markets.POST("/:name/instruments", handler.RegisterInstrument)
		markets.GET("/:name/instruments/:symbol/price", handler.GetMarketPrice)
		markets.DELETE("/:name/instruments/:symbol", handler.RemoveInstrument)
		markets.POST("/:name/bankruptcies", handler.DeclareBankrupt)
		markets.POST("/:name/simulate", handler.SimulateMarket)
		markets.POST("/:name/merge", handler.MergeMarkets)
		markets.GET("/:name/equals/:other", handler.MarketsEqual)

		investors := api.Group("/investors")
		investors.POST("", handler.CreateInvestor)
		investors.GET("/:name", handler.GetInvestor)
		investors.POST("/:name/buy", handler.Buy)
		investors.POST("/:name/sell", handler.Sell)
		investors.POST("/:name/trades", handler.Trade)
		investors.GET("/:name/holdings", handler.GetHoldings)
		investors.GET("/:name/transactions", handler.GetTransactions)
		investors.GET("/:name/total-invested", handler.GetTotalInvested)
		investors.GET("/:name/recommendations", handler.GetRecommendations)
		investors.GET("/:name/equals/:other", handler.InvestorsEqual)

		api.GET("/export/:dataset", handler.Export)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
