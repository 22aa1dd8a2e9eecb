package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/feral-file/agent-ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Agent registry (public read access)
		v1.GET("/agents", handler.ListAgents)
		v1.GET("/agents/:id", handler.GetAgent)
		v1.GET("/agents/:id/balances/:account", handler.GetBalance)
		v1.GET("/agents/:id/listing", handler.GetListing)

		// Agent lifecycle (requires authentication)
		v1.POST("/agents", middleware.Auth(authCfg), handler.MintAgent)
		v1.PUT("/agents/:id/metadata", middleware.Auth(authCfg), handler.UpdateMetadata)
		v1.PUT("/agents/:id/config", middleware.Auth(authCfg), handler.UpdateToolConfig)
		v1.POST("/agents/:id/transfer", middleware.Auth(authCfg), handler.TransferAgent)

		// Rental and usage (requires authentication)
		v1.POST("/agents/:id/rentals", middleware.Auth(authCfg), handler.PurchaseRental)
		v1.POST("/agents/:id/uses", middleware.Auth(authCfg), handler.ConsumeUse)

		// Marketplace (requires authentication)
		v1.POST("/agents/:id/listing", middleware.Auth(authCfg), handler.CreateListing)
		v1.DELETE("/agents/:id/listing", middleware.Auth(authCfg), handler.DeleteListing)
		v1.POST("/agents/:id/purchase", middleware.Auth(authCfg), handler.PurchaseAgent)

		// Event journal (public read access)
		v1.GET("/events", handler.ListEvents)

		// Operator endpoints (requires API key authentication only)
		v1.GET("/fees", middleware.APIKeyAuth(authCfg), handler.GetFees)
		v1.POST("/fees/withdraw", middleware.APIKeyAuth(authCfg), handler.WithdrawFees)
		v1.POST("/accounts/:address/deposits", middleware.APIKeyAuth(authCfg), handler.Deposit)
	}
}
