package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/billbridge/billbridge/internal/config"
	"github.com/billbridge/billbridge/internal/domain/eventlog"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/refund"
	"github.com/billbridge/billbridge/internal/domain/subscription"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/types"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	PlanRepo     plan.Repository
	SubRepo      subscription.Repository
	RefundRepo   refund.Repository
	EventLogRepo eventlog.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	stores  Stores
	gateway *FakeGateway
	email   *FakeEmailService
	logger  *logger.Logger
	config  *config.Configuration
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.WithValue(context.Background(), types.CtxRequestID, types.GenerateUUID())
	s.stores = Stores{
		PlanRepo:     NewInMemoryPlanStore(),
		SubRepo:      NewInMemorySubscriptionStore(),
		RefundRepo:   NewInMemoryRefundStore(),
		EventLogRepo: NewInMemoryEventLogStore(),
	}
	s.gateway = NewFakeGateway()
	s.email = NewFakeEmailService()
	s.now = time.Now().UTC()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the fake provider gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetEmail returns the recording email service
func (s *BaseServiceTestSuite) GetEmail() *FakeEmailService {
	return s.email
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
