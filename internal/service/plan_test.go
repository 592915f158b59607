package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/testutil"
	"github.com/billbridge/billbridge/internal/types"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	planService PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.planService = NewPlanService(ServiceParams{
		Logger:        s.GetLogger(),
		Config:        s.GetConfig(),
		DB:            testutil.NewMockPostgresClient(s.GetLogger()),
		PlanRepo:      s.GetStores().PlanRepo,
		SubRepo:       s.GetStores().SubRepo,
		RefundRepo:    s.GetStores().RefundRepo,
		EventLogRepo:  s.GetStores().EventLogRepo,
		Gateway:       s.GetGateway(),
		EmailService:  s.GetEmail(),
		ProrationCalc: nil,
	})
}

func (s *PlanServiceSuite) product(id, name string, active bool) *stripegw.ProductSnapshot {
	return &stripegw.ProductSnapshot{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Active:      active,
	}
}

func (s *PlanServiceSuite) price(id, productID string, amount int64, active bool) *stripegw.PriceSnapshot {
	return &stripegw.PriceSnapshot{
		ID:         id,
		ProductID:  productID,
		UnitAmount: amount,
		Currency:   "usd",
		Interval:   "month",
		Active:     active,
		Recurring:  true,
	}
}

func (s *PlanServiceSuite) TestUpsertFromProvider() {
	s.Run("creates a plan for an unseen price", func() {
		resp, err := s.planService.UpsertFromProvider(s.GetContext(),
			s.product("prod_1", "Starter", true),
			s.price("price_1", "prod_1", 1000, true),
		)
		s.NoError(err)
		s.NotNil(resp)
		s.Equal("Starter", resp.Name)
		s.Equal("price_1", resp.StripePriceID)
		s.True(resp.Active)
		s.True(decimal.NewFromInt(10).Equal(resp.Amount))
	})

	s.Run("is idempotent for the same product and price", func() {
		product := s.product("prod_2", "Pro", true)
		price := s.price("price_2", "prod_2", 2500, true)

		before, err := s.GetStores().PlanRepo.Count(s.GetContext(), types.NewNoLimitPlanFilter())
		s.NoError(err)

		first, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)
		second, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)

		s.Equal(first.ID, second.ID)
		s.True(first.Amount.Equal(second.Amount))

		after, err := s.GetStores().PlanRepo.Count(s.GetContext(), types.NewNoLimitPlanFilter())
		s.NoError(err)
		s.Equal(before+1, after)
	})

	s.Run("updates mutable fields in place", func() {
		product := s.product("prod_3", "Basic", true)
		price := s.price("price_3", "prod_3", 500, true)
		_, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)

		product.Name = "Basic Renamed"
		price.UnitAmount = 700
		resp, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)
		s.Equal("Basic Renamed", resp.Name)
		s.True(decimal.NewFromInt(7).Equal(resp.Amount))
	})

	s.Run("plan is active only when product and price both are", func() {
		resp, err := s.planService.UpsertFromProvider(s.GetContext(),
			s.product("prod_4", "Legacy", true),
			s.price("price_4", "prod_4", 900, false),
		)
		s.NoError(err)
		s.False(resp.Active)

		resp, err = s.planService.UpsertFromProvider(s.GetContext(),
			s.product("prod_5", "Retired", false),
			s.price("price_5", "prod_5", 900, true),
		)
		s.NoError(err)
		s.False(resp.Active)
	})

	s.Run("deactivation is written on update", func() {
		product := s.product("prod_6", "Flip", true)
		price := s.price("price_6", "prod_6", 1200, true)
		_, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)

		product.Active = false
		resp, err := s.planService.UpsertFromProvider(s.GetContext(), product, price)
		s.NoError(err)
		s.False(resp.Active)
	})
}

func (s *PlanServiceSuite) TestSyncCatalog() {
	gw := s.GetGateway()
	gw.Products["prod_1"] = s.product("prod_1", "Starter", true)
	gw.Products["prod_2"] = s.product("prod_2", "Pro", true)
	gw.Prices["prod_1"] = []*stripegw.PriceSnapshot{
		s.price("price_1a", "prod_1", 1000, true),
		{ID: "price_1b", ProductID: "prod_1", UnitAmount: 9900, Currency: "usd", Active: true, Recurring: false},
	}
	gw.Prices["prod_2"] = []*stripegw.PriceSnapshot{
		s.price("price_2a", "prod_2", 2500, true),
	}

	count, err := s.planService.SyncCatalog(s.GetContext())
	s.NoError(err)
	// one-time prices are skipped
	s.Equal(2, count)

	stored, err := s.GetStores().PlanRepo.List(s.GetContext(), types.NewNoLimitPlanFilter())
	s.NoError(err)
	s.Len(stored, 2)
}

func (s *PlanServiceSuite) TestGetPlan() {
	resp, err := s.planService.UpsertFromProvider(s.GetContext(),
		s.product("prod_1", "Starter", true),
		s.price("price_1", "prod_1", 1000, true),
	)
	s.NoError(err)

	s.Run("resolves by internal id", func() {
		got, err := s.planService.GetPlan(s.GetContext(), resp.ID)
		s.NoError(err)
		s.Equal(resp.ID, got.ID)
	})

	s.Run("resolves by provider price id", func() {
		got, err := s.planService.GetPlan(s.GetContext(), "price_1")
		s.NoError(err)
		s.Equal(resp.ID, got.ID)
	})

	s.Run("unknown id returns not found", func() {
		_, err := s.planService.GetPlan(s.GetContext(), "price_missing")
		s.Error(err)
		s.True(ierr.IsNotFound(err))
	})
}

func (s *PlanServiceSuite) TestGetPlans() {
	names := []string{"Charlie", "Alpha", "Bravo", "Delta", "Echo"}
	for i, name := range names {
		_, err := s.planService.UpsertFromProvider(s.GetContext(),
			s.product("prod_"+name, name, true),
			s.price("price_"+name, "prod_"+name, int64(1000*(i+1)), true),
		)
		s.NoError(err)
	}

	s.Run("pages are ordered by name with a full envelope", func() {
		filter := &types.PlanFilter{
			PaginationFilter: &types.PaginationFilter{
				Page:  lo.ToPtr(1),
				Limit: lo.ToPtr(2),
			},
		}
		resp, err := s.planService.GetPlans(s.GetContext(), filter)
		s.NoError(err)
		s.Equal(5, resp.Total)
		s.Equal(1, resp.Page)
		s.Equal(2, resp.Limit)
		s.Equal(3, resp.TotalPages)
		s.Len(resp.Data, 2)
		s.Equal("Alpha", resp.Data[0].Name)
		s.Equal("Bravo", resp.Data[1].Name)
	})

	s.Run("last page is partial", func() {
		filter := &types.PlanFilter{
			PaginationFilter: &types.PaginationFilter{
				Page:  lo.ToPtr(3),
				Limit: lo.ToPtr(2),
			},
		}
		resp, err := s.planService.GetPlans(s.GetContext(), filter)
		s.NoError(err)
		s.Len(resp.Data, 1)
		s.Equal("Echo", resp.Data[0].Name)
	})

	s.Run("page past the end returns an empty data array", func() {
		filter := &types.PlanFilter{
			PaginationFilter: &types.PaginationFilter{
				Page:  lo.ToPtr(9),
				Limit: lo.ToPtr(2),
			},
		}
		resp, err := s.planService.GetPlans(s.GetContext(), filter)
		s.NoError(err)
		s.NotNil(resp.Data)
		s.Len(resp.Data, 0)
		s.Equal(5, resp.Total)
	})

	s.Run("rejects a zero page", func() {
		filter := &types.PlanFilter{
			PaginationFilter: &types.PaginationFilter{
				Page:  lo.ToPtr(0),
				Limit: lo.ToPtr(10),
			},
		}
		_, err := s.planService.GetPlans(s.GetContext(), filter)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}
