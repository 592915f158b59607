package repository

import (
	"github.com/billbridge/billbridge/internal/domain/eventlog"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/refund"
	"github.com/billbridge/billbridge/internal/domain/subscription"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
	postgresRepo "github.com/billbridge/billbridge/internal/repository/postgres"
)

func NewPlanRepository(client postgres.IClient, logger *logger.Logger) plan.Repository {
	return postgresRepo.NewPlanRepository(client, logger)
}

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(client, logger)
}

func NewRefundRepository(client postgres.IClient, logger *logger.Logger) refund.Repository {
	return postgresRepo.NewRefundRepository(client, logger)
}

func NewEventLogRepository(client postgres.IClient, logger *logger.Logger) eventlog.Repository {
	return postgresRepo.NewEventLogRepository(client, logger)
}
