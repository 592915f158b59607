package webhook

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"

	"github.com/billbridge/billbridge/internal/domain/plan"
	"github.com/billbridge/billbridge/internal/domain/proration"
	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/service"
	"github.com/billbridge/billbridge/internal/testutil"
	"github.com/billbridge/billbridge/internal/types"
)

type HandlerSuite struct {
	testutil.BaseServiceTestSuite
	handler *Handler
}

func TestHandler(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := service.NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		testutil.NewMockPostgresClient(s.GetLogger()),
		s.GetStores().PlanRepo,
		s.GetStores().SubRepo,
		s.GetStores().RefundRepo,
		s.GetStores().EventLogRepo,
		s.GetGateway(),
		s.GetEmail(),
		proration.NewCalculator(),
	)
	s.handler = NewHandler(
		service.NewPlanService(params),
		service.NewSubscriptionService(params),
		service.NewRefundService(params),
		service.NewEventLogService(params),
		s.GetGateway(),
		s.GetLogger(),
	)
}

func (s *HandlerSuite) event(eventType string, raw string) *stripe.Event {
	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func (s *HandlerSuite) seedPlan(priceID string) *plan.Plan {
	p := &plan.Plan{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:            "Basic",
		StripeProductID: "prod_basic",
		StripePriceID:   priceID,
		Amount:          decimal.NewFromInt(10),
		Currency:        "usd",
		Interval:        "month",
		Active:          true,
		BaseModel:       types.GetDefaultBaseModel(),
	}
	s.Require().NoError(s.GetStores().PlanRepo.Create(s.GetContext(), p))
	return p
}

func (s *HandlerSuite) TestHandleEvent() {
	s.Run("nil event is rejected", func() {
		err := s.handler.HandleEvent(s.GetContext(), nil)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("unknown event type is acknowledged without side effects", func() {
		err := s.handler.HandleEvent(s.GetContext(), s.event("customer.created", `{"id":"cus_1"}`))
		s.NoError(err)

		plans, err := s.GetStores().PlanRepo.List(s.GetContext(), types.NewNoLimitPlanFilter())
		s.NoError(err)
		s.Empty(plans)
	})

	s.Run("every event lands in the event log", func() {
		events, err := s.GetStores().EventLogRepo.List(s.GetContext(), 10)
		s.NoError(err)
		s.Require().Len(events, 1)
		s.Equal("customer.created", events[0].EventType)
	})
}

func (s *HandlerSuite) TestProductEvent() {
	s.GetGateway().Prices["prod_basic"] = []*stripegw.PriceSnapshot{
		{ID: "price_basic", ProductID: "prod_basic", UnitAmount: 1000, Currency: "usd", Interval: "month", Active: true, Recurring: true},
		{ID: "price_setup", ProductID: "prod_basic", UnitAmount: 500, Currency: "usd", Active: true, Recurring: false},
	}

	err := s.handler.HandleEvent(s.GetContext(), s.event("product.created",
		`{"id":"prod_basic","name":"Basic","active":true}`))
	s.NoError(err)

	plans, err := s.GetStores().PlanRepo.List(s.GetContext(), types.NewNoLimitPlanFilter())
	s.NoError(err)
	s.Require().Len(plans, 1)
	s.Equal("price_basic", plans[0].StripePriceID)
	s.Equal("Basic", plans[0].Name)
}

func (s *HandlerSuite) TestPriceEvent() {
	s.GetGateway().Products["prod_basic"] = &stripegw.ProductSnapshot{
		ID:     "prod_basic",
		Name:   "Basic",
		Active: true,
	}

	s.Run("recurring price is upserted", func() {
		err := s.handler.HandleEvent(s.GetContext(), s.event("price.created",
			`{"id":"price_basic","product":"prod_basic","unit_amount":1000,"currency":"usd","active":true,"recurring":{"interval":"month"}}`))
		s.NoError(err)

		p, err := s.GetStores().PlanRepo.GetByStripePriceID(s.GetContext(), "price_basic")
		s.NoError(err)
		s.True(decimal.NewFromInt(10).Equal(p.Amount))
	})

	s.Run("one-time price is ignored", func() {
		err := s.handler.HandleEvent(s.GetContext(), s.event("price.created",
			`{"id":"price_setup","product":"prod_basic","unit_amount":500,"currency":"usd","active":true}`))
		s.NoError(err)

		_, err = s.GetStores().PlanRepo.GetByStripePriceID(s.GetContext(), "price_setup")
		s.True(ierr.IsNotFound(err))
	})
}

func (s *HandlerSuite) TestSubscriptionEvent() {
	s.seedPlan("price_basic")

	raw := `{
		"id": "sub_1",
		"status": "active",
		"customer": "cus_1",
		"items": {"data": [{
			"id": "si_1",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"price": {"id": "price_basic"}
		}]}
	}`
	err := s.handler.HandleEvent(s.GetContext(), s.event("customer.subscription.created", raw))
	s.NoError(err)

	sub, err := s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_1")
	s.NoError(err)
	s.Equal("cus_1", sub.StripeCustomerID)
	s.Equal(types.SubscriptionStatusActive, sub.Status)
}

func (s *HandlerSuite) TestChargeRefunded() {
	raw := `{
		"id": "ch_1",
		"payment_intent": "pi_1",
		"refunds": {"data": [{
			"id": "re_1",
			"amount": 2600,
			"currency": "usd",
			"status": "succeeded"
		}]}
	}`
	err := s.handler.HandleEvent(s.GetContext(), s.event("charge.refunded", raw))
	s.NoError(err)

	r, err := s.GetStores().RefundRepo.GetByStripeRefundID(s.GetContext(), "re_1")
	s.NoError(err)
	s.Equal("pi_1", r.StripePaymentIntentID)
	s.True(decimal.NewFromInt(26).Equal(r.Amount))
}

func (s *HandlerSuite) TestRefundUpdated() {
	raw := `{"id":"re_1","payment_intent":"pi_1","amount":2600,"currency":"usd","status":"pending"}`
	s.Require().NoError(s.handler.HandleEvent(s.GetContext(), s.event("refund.updated", raw)))

	raw = `{"id":"re_1","payment_intent":"pi_1","amount":2600,"currency":"usd","status":"succeeded"}`
	s.Require().NoError(s.handler.HandleEvent(s.GetContext(), s.event("refund.updated", raw)))

	count, err := s.GetStores().RefundRepo.Count(s.GetContext(), types.NewRefundFilter())
	s.NoError(err)
	s.Equal(1, count)

	r, err := s.GetStores().RefundRepo.GetByStripeRefundID(s.GetContext(), "re_1")
	s.NoError(err)
	s.Equal("succeeded", r.Status)
}

func (s *HandlerSuite) TestCheckoutCompleted() {
	s.seedPlan("price_basic")
	s.GetGateway().Subscriptions["sub_hosted"] = &stripegw.SubscriptionSnapshot{
		ID:                 "sub_hosted",
		CustomerID:         "cus_1",
		PriceID:            "price_basic",
		Status:             string(types.SubscriptionStatusActive),
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
	}

	s.Run("payment mode session is skipped", func() {
		err := s.handler.HandleEvent(s.GetContext(), s.event("checkout.session.completed",
			`{"id":"cs_1","mode":"payment"}`))
		s.NoError(err)

		_, err = s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_hosted")
		s.True(ierr.IsNotFound(err))
	})

	s.Run("subscription mode session pulls the subscription", func() {
		err := s.handler.HandleEvent(s.GetContext(), s.event("checkout.session.completed",
			`{"id":"cs_2","mode":"subscription","subscription":"sub_hosted"}`))
		s.NoError(err)

		sub, err := s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_hosted")
		s.NoError(err)
		s.Equal("cus_1", sub.StripeCustomerID)
	})
}

func (s *HandlerSuite) TestInvoicePaid() {
	s.seedPlan("price_basic")
	s.GetGateway().Subscriptions["sub_inv"] = &stripegw.SubscriptionSnapshot{
		ID:                 "sub_inv",
		CustomerID:         "cus_1",
		PriceID:            "price_basic",
		Status:             string(types.SubscriptionStatusActive),
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
	}

	raw := `{"id":"in_1","parent":{"subscription_details":{"subscription":"sub_inv"}}}`
	err := s.handler.HandleEvent(s.GetContext(), s.event("invoice.payment_succeeded", raw))
	s.NoError(err)

	sub, err := s.GetStores().SubRepo.GetByStripeSubscriptionID(s.GetContext(), "sub_inv")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.Status)
}
