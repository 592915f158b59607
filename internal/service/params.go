package service

import (
	"github.com/billbridge/billbridge/internal/config"
	"github.com/billbridge/billbridge/internal/domain/eventlog"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/proration"
	"github.com/billbridge/billbridge/internal/domain/refund"
	"github.com/billbridge/billbridge/internal/domain/subscription"
	"github.com/billbridge/billbridge/internal/email"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
)

// ServiceParams bundles the dependencies shared by every service
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	PlanRepo     plan.Repository
	SubRepo      subscription.Repository
	RefundRepo   refund.Repository
	EventLogRepo eventlog.Repository

	// Collaborators
	Gateway       stripegw.Gateway
	EmailService  email.Service
	ProrationCalc proration.Calculator
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	planRepo plan.Repository,
	subRepo subscription.Repository,
	refundRepo refund.Repository,
	eventLogRepo eventlog.Repository,
	gateway stripegw.Gateway,
	emailService email.Service,
	prorationCalc proration.Calculator,
) ServiceParams {
	return ServiceParams{
		Logger:        logger,
		Config:        config,
		DB:            db,
		PlanRepo:      planRepo,
		SubRepo:       subRepo,
		RefundRepo:    refundRepo,
		EventLogRepo:  eventLogRepo,
		Gateway:       gateway,
		EmailService:  emailService,
		ProrationCalc: prorationCalc,
	}
}
