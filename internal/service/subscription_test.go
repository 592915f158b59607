package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/billbridge/billbridge/internal/api/dto"
	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/proration"
	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/testutil"
	"github.com/billbridge/billbridge/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	subService SubscriptionService

	basicPlan   *plan.Plan
	premiumPlan *plan.Plan
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.subService = NewSubscriptionService(ServiceParams{
		Logger:        s.GetLogger(),
		Config:        s.GetConfig(),
		DB:            testutil.NewMockPostgresClient(s.GetLogger()),
		PlanRepo:      s.GetStores().PlanRepo,
		SubRepo:       s.GetStores().SubRepo,
		RefundRepo:    s.GetStores().RefundRepo,
		EventLogRepo:  s.GetStores().EventLogRepo,
		Gateway:       s.GetGateway(),
		EmailService:  s.GetEmail(),
		ProrationCalc: proration.NewCalculator(),
	})

	s.basicPlan = s.seedPlan("Basic", "price_basic", decimal.NewFromInt(10))
	s.premiumPlan = s.seedPlan("Premium", "price_premium", decimal.NewFromInt(25))
}

func (s *SubscriptionServiceSuite) seedPlan(name, priceID string, amount decimal.Decimal) *plan.Plan {
	p := &plan.Plan{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:            name,
		StripeProductID: "prod_" + priceID,
		StripePriceID:   priceID,
		Amount:          amount,
		Currency:        "usd",
		Interval:        "month",
		Active:          true,
		BaseModel:       types.GetDefaultBaseModel(),
	}
	s.Require().NoError(s.GetStores().PlanRepo.Create(s.GetContext(), p))
	return p
}

func (s *SubscriptionServiceSuite) snapshot(priceID, status string, periodEnd time.Time) *stripegw.SubscriptionSnapshot {
	return &stripegw.SubscriptionSnapshot{
		ID:                 "sub_remote_1",
		CustomerID:         "cus_1",
		Status:             status,
		PriceID:            priceID,
		CurrentPeriodStart: periodEnd.Add(-30 * 24 * time.Hour).Unix(),
		CurrentPeriodEnd:   periodEnd.Unix(),
	}
}

func (s *SubscriptionServiceSuite) storedSub() *dto.SubscriptionResponse {
	resp, err := s.subService.GetSubscription(s.GetContext(), "sub_remote_1")
	s.Require().NoError(err)
	return resp
}

func (s *SubscriptionServiceSuite) TestSyncFromProvider() {
	periodEnd := s.GetNow().Truncate(time.Second).Add(20 * 24 * time.Hour)

	s.Run("creates a local record from an unseen snapshot", func() {
		err := s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_basic", "active", periodEnd))
		s.NoError(err)

		sub := s.storedSub()
		s.Equal("active", sub.Status)
		s.Equal("cus_1", sub.StripeCustomerID)
		s.Equal(s.basicPlan.ID, sub.Plan.ID)
		s.Nil(sub.PendingPlan)
		s.Equal(periodEnd.UTC(), sub.CurrentPeriodEnd.UTC())
	})

	s.Run("re-applying the same snapshot leaves state unchanged", func() {
		before := s.storedSub()
		err := s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_basic", "active", periodEnd))
		s.NoError(err)

		after := s.storedSub()
		s.Equal(before.Plan.ID, after.Plan.ID)
		s.Nil(after.PendingPlan)
		s.Equal(before.Status, after.Status)
		s.Equal(before.CurrentPeriodEnd.UTC(), after.CurrentPeriodEnd.UTC())
	})

	s.Run("equal period end parks a different plan as pending", func() {
		err := s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_premium", "active", periodEnd))
		s.NoError(err)

		sub := s.storedSub()
		s.Equal(s.basicPlan.ID, sub.Plan.ID)
		s.Require().NotNil(sub.PendingPlan)
		s.Equal(s.premiumPlan.ID, sub.PendingPlan.ID)
	})

	s.Run("later period end promotes the pending plan and clears it", func() {
		nextEnd := periodEnd.Add(30 * 24 * time.Hour)
		err := s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_premium", "active", nextEnd))
		s.NoError(err)

		sub := s.storedSub()
		s.Equal(s.premiumPlan.ID, sub.Plan.ID)
		s.Nil(sub.PendingPlan)
		s.Equal(nextEnd.UTC(), sub.CurrentPeriodEnd.UTC())
	})

	s.Run("a stale snapshot never regresses the promoted plan", func() {
		err := s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_basic", "active", periodEnd))
		s.NoError(err)

		sub := s.storedSub()
		s.Equal(s.premiumPlan.ID, sub.Plan.ID)
		// the stale price may surface as pending but the effective plan holds
		s.Require().NotNil(sub.PendingPlan)
		s.Equal(s.basicPlan.ID, sub.PendingPlan.ID)
	})
}

func (s *SubscriptionServiceSuite) TestSyncFromProviderUnknownPrice() {
	snapshot := s.snapshot("price_unknown", "active", s.GetNow().Add(20*24*time.Hour))
	err := s.subService.SyncFromProvider(s.GetContext(), snapshot)
	s.NoError(err)

	_, err = s.subService.GetSubscription(s.GetContext(), "sub_remote_1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestSyncFromProviderActivationEmail() {
	periodEnd := s.GetNow().Add(30 * 24 * time.Hour)

	snapshot := s.snapshot("price_basic", "incomplete", periodEnd)
	s.GetGateway().Customers["cus_1"] = &stripegw.CustomerSnapshot{ID: "cus_1", Email: "jan@example.com", Name: "Jan"}

	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), snapshot))
	s.Empty(s.GetEmail().Sends())

	snapshot.Status = "active"
	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), snapshot))

	sends := s.GetEmail().Sends()
	s.Require().Len(sends, 1)
	s.Equal("Subscription Created", sends[0].Subject)
	s.Equal("jan@example.com", sends[0].ToAddress)

	// already active, no second notification
	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), snapshot))
	s.Len(s.GetEmail().Sends(), 1)
}

func (s *SubscriptionServiceSuite) TestUpgradeSubscription() {
	periodEnd := s.GetNow().Add(20 * 24 * time.Hour)
	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_basic", "active", periodEnd)))
	s.GetGateway().Subscriptions["sub_remote_1"] = s.snapshot("price_basic", "active", periodEnd)
	s.GetGateway().Customers["cus_1"] = &stripegw.CustomerSnapshot{ID: "cus_1", Email: "jan@example.com"}

	s.Run("rejects a target that is not strictly more expensive", func() {
		sub := s.storedSub()
		_, err := s.subService.UpgradeSubscription(s.GetContext(), sub.ID, s.basicPlan.ID)
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
		s.Empty(s.GetGateway().PriceChangeCalls)
	})

	s.Run("switches the plan immediately and settles the proration invoice", func() {
		s.GetGateway().OpenProrationInvoice = &stripegw.InvoiceSnapshot{
			ID:            "in_proration",
			Status:        "open",
			BillingReason: "subscription_update",
		}

		resp, err := s.subService.UpgradeSubscription(s.GetContext(), "sub_remote_1", s.premiumPlan.ID)
		s.NoError(err)
		s.Equal(s.premiumPlan.ID, resp.Plan.ID)

		s.Require().Len(s.GetGateway().PriceChangeCalls, 1)
		s.Equal("price_premium", s.GetGateway().PriceChangeCalls[0].NewPriceID)
		s.Equal([]string{"in_proration"}, s.GetGateway().FinalizedInvoices)

		sends := s.GetEmail().Sends()
		s.Require().NotEmpty(sends)
		s.Equal("Subscription Upgraded", sends[len(sends)-1].Subject)
	})

	s.Run("remote failure leaves local state untouched", func() {
		pricier := s.seedPlan("Ultra", "price_ultra", decimal.NewFromInt(50))
		s.GetGateway().Errors["ChangeSubscriptionPrice"] = ierr.NewError("stripe is down").
			Mark(ierr.ErrIntegration)

		before := s.storedSub()
		_, err := s.subService.UpgradeSubscription(s.GetContext(), "sub_remote_1", pricier.ID)
		s.Error(err)
		s.True(ierr.IsIntegration(err))

		after := s.storedSub()
		s.Equal(before.Plan.ID, after.Plan.ID)
	})

	s.Run("collection failure surfaces after the plan switch", func() {
		delete(s.GetGateway().Errors, "ChangeSubscriptionPrice")
		costliest := s.seedPlan("Max", "price_max", decimal.NewFromInt(60))
		s.GetGateway().OpenProrationInvoice = &stripegw.InvoiceSnapshot{
			ID:            "in_proration_2",
			Status:        "open",
			BillingReason: "subscription_update",
		}
		s.GetGateway().Errors["FinalizeAndPayInvoice"] = ierr.NewError("card declined").
			Mark(ierr.ErrIntegration)

		emailsBefore := len(s.GetEmail().Sends())
		_, err := s.subService.UpgradeSubscription(s.GetContext(), "sub_remote_1", costliest.ID)
		s.Error(err)
		s.True(ierr.IsIntegration(err))

		// the price switch itself is already committed, only collection failed
		s.Equal(costliest.ID, s.storedSub().Plan.ID)
		s.Len(s.GetEmail().Sends(), emailsBefore)
	})
}

func (s *SubscriptionServiceSuite) TestDowngradeSubscription() {
	periodEnd := s.GetNow().Add(20 * 24 * time.Hour)
	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_premium", "active", periodEnd)))
	s.GetGateway().Subscriptions["sub_remote_1"] = s.snapshot("price_premium", "active", periodEnd)
	s.GetGateway().Customers["cus_1"] = &stripegw.CustomerSnapshot{ID: "cus_1", Email: "jan@example.com"}

	resp, err := s.subService.DowngradeSubscription(s.GetContext(), "sub_remote_1", "price_basic")
	s.NoError(err)
	s.NotEmpty(resp.ScheduleID)

	// effective plan unchanged, target parked as pending
	s.Equal(s.premiumPlan.ID, resp.Subscription.Plan.ID)
	s.Require().NotNil(resp.Subscription.PendingPlan)
	s.Equal(s.basicPlan.ID, resp.Subscription.PendingPlan.ID)

	s.Require().Len(s.GetGateway().ScheduleCreateCalls, 1)
	s.Equal("price_basic", s.GetGateway().ScheduleCreateCalls[0].NewPriceID)

	sends := s.GetEmail().Sends()
	s.Require().NotEmpty(sends)
	s.Equal("Subscription Downgrade Scheduled", sends[len(sends)-1].Subject)

	// the next rollover promotes the pending plan
	nextEnd := periodEnd.Add(30 * 24 * time.Hour)
	s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_basic", "active", nextEnd)))

	sub := s.storedSub()
	s.Equal(s.basicPlan.ID, sub.Plan.ID)
	s.Nil(sub.PendingPlan)
}

func (s *SubscriptionServiceSuite) TestCancelSubscription() {
	// an hour off the day boundary keeps ceil-based day counting stable
	// regardless of how long the test itself takes
	start := s.GetNow().Add(-10*24*time.Hour + time.Hour)
	end := start.Add(30 * 24 * time.Hour)

	seed := func(scheduleID string) {
		s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), s.snapshot("price_premium", "active", end)))
		remote := s.snapshot("price_premium", "active", end)
		remote.CurrentPeriodStart = start.Unix()
		remote.ScheduleID = scheduleID
		remote.LatestInvoice = &stripegw.InvoiceSnapshot{
			ID:              "in_latest",
			Status:          "paid",
			AmountPaid:      3000,
			PaymentIntentID: "pi_1",
		}
		s.GetGateway().Subscriptions["sub_remote_1"] = remote
		s.GetGateway().Customers["cus_1"] = &stripegw.CustomerSnapshot{ID: "cus_1", Email: "jan@example.com"}
		s.GetGateway().PaymentIntentCustomers["pi_1"] = s.GetGateway().Customers["cus_1"]
	}

	s.Run("cancels, refunds the unused days and notifies", func() {
		seed("")

		resp, err := s.subService.CancelSubscription(s.GetContext(), "sub_remote_1")
		s.NoError(err)
		s.Equal(types.SubscriptionStatusCanceled, resp.Status)
		s.NotNil(resp.CanceledAt)

		// 10 of 30 days used, 20 unused: round(3000 * 20/30) = 2000 cents
		s.Require().Len(s.GetGateway().RefundCalls, 1)
		s.Require().NotNil(s.GetGateway().RefundCalls[0].AmountMinor)
		s.Equal(int64(2000), *s.GetGateway().RefundCalls[0].AmountMinor)
		s.Equal("pi_1", s.GetGateway().RefundCalls[0].PaymentIntentID)

		refunds, err := s.GetStores().RefundRepo.List(s.GetContext(), types.NewRefundFilter())
		s.NoError(err)
		s.Require().Len(refunds, 1)
		s.True(decimal.NewFromInt(20).Equal(refunds[0].Amount))

		sends := s.GetEmail().Sends()
		s.Require().NotEmpty(sends)
		s.Equal("Subscription Cancelled", sends[len(sends)-1].Subject)
	})

	s.Run("tolerates a schedule that is already canceled remotely", func() {
		seed("sub_sched_9")
		s.GetGateway().CanceledSchedules["sub_sched_9"] = true

		resp, err := s.subService.CancelSubscription(s.GetContext(), "sub_remote_1")
		s.NoError(err)
		s.Equal(types.SubscriptionStatusCanceled, resp.Status)
		s.Nil(resp.PendingPlan)
		s.Contains(s.GetGateway().ScheduleCancelCalls, "sub_sched_9")
	})

	s.Run("any other schedule-cancel error propagates", func() {
		seed("sub_sched_10")
		s.GetGateway().Errors["CancelSchedule"] = ierr.NewError("schedule locked").
			Mark(ierr.ErrIntegration)

		_, err := s.subService.CancelSubscription(s.GetContext(), "sub_remote_1")
		s.Error(err)
		s.True(ierr.IsIntegration(err))

		sub := s.storedSub()
		s.Equal("active", sub.Status)
	})

	s.Run("clears pending state left by a released schedule", func() {
		delete(s.GetGateway().Errors, "CancelSchedule")
		seed("")

		sub, err := s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_remote_1")
		s.Require().NoError(err)
		sub.PendingPlanID = &s.basicPlan.ID
		scheduleID := "sub_sched_gone"
		sub.ScheduleID = &scheduleID
		s.Require().NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

		resp, err := s.subService.CancelSubscription(s.GetContext(), "sub_remote_1")
		s.NoError(err)
		s.Equal(types.SubscriptionStatusCanceled, resp.Status)
		s.Nil(resp.PendingPlan)

		stored, err := s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_remote_1")
		s.Require().NoError(err)
		s.Nil(stored.PendingPlanID)
		s.Nil(stored.ScheduleID)
		s.NotContains(s.GetGateway().ScheduleCancelCalls, "sub_sched_gone")
	})
}

func (s *SubscriptionServiceSuite) TestCreatePaymentSession() {
	req := dto.CreatePaymentSessionRequest{
		Name:    "Jan",
		Email:   "jan@example.com",
		PriceID: "price_basic",
	}

	s.Run("creates an incomplete subscription for a new customer", func() {
		resp, err := s.subService.CreatePaymentSession(s.GetContext(), req)
		s.NoError(err)
		s.Equal("sub_fake_incomplete", resp.SubscriptionID)
		s.NotEmpty(resp.ClientSecret)
	})

	s.Run("rejects a customer with a live subscription", func() {
		customer, err := s.GetGateway().FindOrCreateCustomer(s.GetContext(), "Jan", "jan@example.com")
		s.Require().NoError(err)

		snapshot := s.snapshot("price_basic", "active", s.GetNow().Add(30*24*time.Hour))
		snapshot.CustomerID = customer.ID
		s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), snapshot))

		_, err = s.subService.CreatePaymentSession(s.GetContext(), req)
		s.Error(err)
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("a canceled subscription does not block a new session", func() {
		customer, err := s.GetGateway().FindOrCreateCustomer(s.GetContext(), "Jan", "jan@example.com")
		s.Require().NoError(err)

		subs, err := s.GetStores().SubRepo.ListByCustomer(s.GetContext(), customer.ID)
		s.Require().NoError(err)
		for _, sub := range subs {
			sub.Status = types.SubscriptionStatusCanceled
			s.Require().NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))
		}

		_, err = s.subService.CreatePaymentSession(s.GetContext(), req)
		s.NoError(err)
	})
}

func (s *SubscriptionServiceSuite) TestGetSubscriptions() {
	for i := 0; i < 3; i++ {
		snapshot := s.snapshot("price_basic", "active", s.GetNow().Add(30*24*time.Hour))
		snapshot.ID = types.GenerateUUID()
		snapshot.CustomerID = "cus_list"
		s.Require().NoError(s.subService.SyncFromProvider(s.GetContext(), snapshot))
	}

	filter := &types.SubscriptionFilter{
		PaginationFilter: &types.PaginationFilter{
			Page:  lo.ToPtr(1),
			Limit: lo.ToPtr(2),
		},
		CustomerID: "cus_list",
	}
	resp, err := s.subService.GetSubscriptions(s.GetContext(), filter)
	s.NoError(err)
	s.Equal(3, resp.Total)
	s.Equal(2, resp.TotalPages)
	s.Len(resp.Data, 2)
}
