package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	_ "github.com/billbridge/billbridge/docs/swagger"
	"github.com/billbridge/billbridge/internal/api"
	v1 "github.com/billbridge/billbridge/internal/api/v1"
	"github.com/billbridge/billbridge/internal/config"
	"github.com/billbridge/billbridge/internal/domain/proration"
	"github.com/billbridge/billbridge/internal/email"
	"github.com/billbridge/billbridge/internal/httpclient"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/integration/stripe/webhook"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
	"github.com/billbridge/billbridge/internal/repository"
	"github.com/billbridge/billbridge/internal/service"
)

// @title BillBridge API
// @version 1.0
// @description Subscription billing service backed by Stripe
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Email
			provideEmailClient,
			email.NewService,

			// Stripe
			stripegw.NewClient,
			stripegw.NewGateway,

			// Proration
			proration.NewCalculator,

			// Repositories
			repository.NewPlanRepository,
			repository.NewSubscriptionRepository,
			repository.NewRefundRepository,
			repository.NewEventLogRepository,
		),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewPlanService,
			service.NewSubscriptionService,
			service.NewRefundService,
			service.NewEventLogService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			webhook.NewHandler,
			provideHandlers,
			api.NewRouter,
		),
		fx.Invoke(
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideEmailClient(cfg *config.Configuration) *email.EmailClient {
	return email.NewEmailClient(email.Config{
		Enabled:     cfg.Email.Enabled,
		APIKey:      cfg.Email.APIKey,
		FromAddress: cfg.Email.From,
	})
}

func provideHandlers(
	logger *logger.Logger,
	planService service.PlanService,
	subscriptionService service.SubscriptionService,
	refundService service.RefundService,
	stripeClient *stripegw.Client,
	webhookHandler *webhook.Handler,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Plan:         v1.NewPlanHandler(planService, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, logger),
		Refund:       v1.NewRefundHandler(refundService, logger),
		Webhook:      v1.NewWebhookHandler(stripeClient, webhookHandler, logger),
	}
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("Starting API server on %s", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
