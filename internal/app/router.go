package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"matatu/internal/handler"
	"matatu/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler    *handler.UserHandler
	RouteHandler   *handler.RouteHandler
	VehicleHandler *handler.VehicleHandler
	TripHandler    *handler.TripHandler
	PaymentHandler *handler.PaymentHandler
	RevenueHandler *handler.RevenueHandler
	WalletHandler  *handler.WalletHandler
	AlertHandler   *handler.AlertHandler
	Tokens         middleware.TokenParser
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Log            logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")

	// Public routes.
	v1.POST("/auth/register", middleware.OptionalAuth(deps.Tokens), deps.UserHandler.Register)
	v1.POST("/auth/login", deps.UserHandler.Login)
	v1.POST("/payments/callback", deps.PaymentHandler.Callback)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Tokens))
	authed.Use(middleware.TransactionAttributes())
	if deps.RedisClient != nil {
		authed.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}

	// Route and fare routes.
	routes := authed.Group("/routes")
	{
		routes.GET("", deps.RouteHandler.ListRoutes)
		routes.POST("", deps.RouteHandler.CreateRoute)
		routes.GET("/:id", deps.RouteHandler.GetRoute)
		routes.PUT("/:id/fares", deps.RouteHandler.SetFare)
	}

	// Vehicle routes.
	vehicles := authed.Group("/vehicles")
	{
		vehicles.GET("", deps.VehicleHandler.ListVehicles)
		vehicles.POST("", deps.VehicleHandler.CreateVehicle)
	}

	// Trip routes.
	trips := authed.Group("/trips")
	{
		trips.POST("", deps.TripHandler.CreateTrip)
		trips.GET("", deps.TripHandler.ListTrips)
		trips.GET("/:id", deps.TripHandler.GetTrip)
		trips.POST("/:id/confirm", deps.TripHandler.ConfirmTrip)
		trips.GET("/:id/payments", deps.PaymentHandler.ListTripPayments)
	}

	// Payment routes.
	payments := authed.Group("/payments")
	{
		payments.POST("", deps.PaymentHandler.InitiatePayment)
		payments.GET("/:id", deps.PaymentHandler.GetPayment)
	}

	// Revenue split routes.
	splits := authed.Group("/revenue-splits")
	{
		splits.GET("", deps.RevenueHandler.ListSplits)
		splits.GET("/:id", deps.RevenueHandler.GetSplit)
		splits.GET("/:id/verify", deps.RevenueHandler.VerifySplit)
	}

	// Revenue analytics.
	authed.GET("/analytics/revenue-split", deps.RevenueHandler.Summary)

	// Wallet and withdrawal routes.
	wallet := authed.Group("/wallet")
	{
		wallet.GET("/balance", deps.WalletHandler.Balance)
		wallet.POST("/withdrawals", deps.WalletHandler.RequestWithdrawal)
	}
	withdrawals := authed.Group("/withdrawals")
	{
		withdrawals.GET("", deps.WalletHandler.ListWithdrawals)
		withdrawals.POST("/:id/process", deps.WalletHandler.ProcessWithdrawal)
	}

	// Alert routes.
	alerts := authed.Group("/alerts")
	{
		alerts.GET("", deps.AlertHandler.ListAlerts)
		alerts.POST("/:id/read", deps.AlertHandler.MarkRead)
	}

	return router
}
