package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "github.com/billbridge/billbridge/internal/api/v1"
	"github.com/billbridge/billbridge/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Plan         *v1.PlanHandler
	Subscription *v1.SubscriptionHandler
	Refund       *v1.RefundHandler
	Webhook      *v1.WebhookHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", handlers.Health.Health)

	// Webhooks take the raw body and verify the provider signature, so they
	// stay outside the versioned group.
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
		webhooks.GET("/stripe/health", handlers.Webhook.Health)
	}

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Plan routes
	plans := router.Group("/plans")
	{
		plans.GET("", handlers.Plan.GetPlans)
		plans.POST("/sync", handlers.Plan.SyncPlans)
		plans.GET("/:id", handlers.Plan.GetPlan)
	}

	// Customer routes
	customers := router.Group("/customers")
	{
		customers.POST("", handlers.Subscription.CreateCustomer)
	}

	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.GET("", handlers.Subscription.GetSubscriptions)
		subscriptions.POST("/payment-session", handlers.Subscription.CreatePaymentSession)
		subscriptions.POST("/checkout-session", handlers.Subscription.CreateCheckoutSession)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PATCH("/:id/upgrade", handlers.Subscription.UpgradeSubscription)
		subscriptions.PATCH("/:id/downgrade", handlers.Subscription.DowngradeSubscription)
		subscriptions.PATCH("/:id/cancel", handlers.Subscription.CancelSubscription)
	}

	// Refund routes
	refunds := router.Group("/refunds")
	{
		refunds.GET("", handlers.Refund.GetRefunds)
		refunds.POST("", handlers.Refund.CreateRefund)
	}
}
