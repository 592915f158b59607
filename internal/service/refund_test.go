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

type RefundServiceSuite struct {
	testutil.BaseServiceTestSuite
	refundService RefundService
}

func TestRefundService(t *testing.T) {
	suite.Run(t, new(RefundServiceSuite))
}

func (s *RefundServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.refundService = NewRefundService(ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           testutil.NewMockPostgresClient(s.GetLogger()),
		PlanRepo:     s.GetStores().PlanRepo,
		SubRepo:      s.GetStores().SubRepo,
		RefundRepo:   s.GetStores().RefundRepo,
		EventLogRepo: s.GetStores().EventLogRepo,
		Gateway:      s.GetGateway(),
		EmailService: s.GetEmail(),
	})
}

func (s *RefundServiceSuite) TestCreateRefund() {
	s.GetGateway().PaymentIntentCustomers["pi_1"] = &stripegw.CustomerSnapshot{
		ID:    "cus_1",
		Email: "jan@example.com",
	}

	s.Run("partial amount is converted to minor units", func() {
		amount := decimal.NewFromFloat(12.34)
		resp, err := s.refundService.CreateRefund(s.GetContext(), "pi_1", &amount)
		s.NoError(err)
		s.True(amount.Equal(resp.Amount))

		s.Require().Len(s.GetGateway().RefundCalls, 1)
		s.Require().NotNil(s.GetGateway().RefundCalls[0].AmountMinor)
		s.Equal(int64(1234), *s.GetGateway().RefundCalls[0].AmountMinor)
	})

	s.Run("nil amount requests a full refund", func() {
		_, err := s.refundService.CreateRefund(s.GetContext(), "pi_1", nil)
		s.NoError(err)

		calls := s.GetGateway().RefundCalls
		s.Require().Len(calls, 2)
		s.Nil(calls[1].AmountMinor)
	})

	s.Run("sends a refund notification", func() {
		sends := s.GetEmail().Sends()
		s.Require().NotEmpty(sends)
		s.Equal("Refund Issued", sends[0].Subject)
		s.Equal("jan@example.com", sends[0].ToAddress)
	})

	s.Run("missing payment intent id is rejected", func() {
		_, err := s.refundService.CreateRefund(s.GetContext(), "", nil)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("negative amount is rejected", func() {
		amount := decimal.NewFromInt(-5)
		_, err := s.refundService.CreateRefund(s.GetContext(), "pi_1", &amount)
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})
}

func (s *RefundServiceSuite) TestSyncFromProvider() {
	s.Run("records an unseen refund", func() {
		err := s.refundService.SyncFromProvider(s.GetContext(), &stripegw.RefundSnapshot{
			ID:              "re_1",
			PaymentIntentID: "pi_1",
			Amount:          2600,
			Currency:        "usd",
			Status:          "pending",
		})
		s.NoError(err)

		stored, err := s.GetStores().RefundRepo.GetByStripeRefundID(s.GetContext(), "re_1")
		s.NoError(err)
		s.True(decimal.NewFromInt(26).Equal(stored.Amount))
		s.Equal("pending", stored.Status)
	})

	s.Run("duplicate delivery updates in place", func() {
		err := s.refundService.SyncFromProvider(s.GetContext(), &stripegw.RefundSnapshot{
			ID:              "re_1",
			PaymentIntentID: "pi_1",
			Amount:          2600,
			Currency:        "usd",
			Status:          "succeeded",
		})
		s.NoError(err)

		count, err := s.GetStores().RefundRepo.Count(s.GetContext(), types.NewRefundFilter())
		s.NoError(err)
		s.Equal(1, count)

		stored, err := s.GetStores().RefundRepo.GetByStripeRefundID(s.GetContext(), "re_1")
		s.NoError(err)
		s.Equal("succeeded", stored.Status)
	})

	s.Run("objects without a refund id prefix are ignored", func() {
		err := s.refundService.SyncFromProvider(s.GetContext(), &stripegw.RefundSnapshot{
			ID:              "ch_1",
			PaymentIntentID: "pi_1",
			Amount:          9999,
			Currency:        "usd",
			Status:          "succeeded",
		})
		s.NoError(err)

		count, err := s.GetStores().RefundRepo.Count(s.GetContext(), types.NewRefundFilter())
		s.NoError(err)
		s.Equal(1, count)
	})
}

func (s *RefundServiceSuite) TestGetRefunds() {
	for i, id := range []string{"re_a", "re_b", "re_c"} {
		pi := "pi_1"
		if i == 2 {
			pi = "pi_2"
		}
		s.Require().NoError(s.refundService.SyncFromProvider(s.GetContext(), &stripegw.RefundSnapshot{
			ID:              id,
			PaymentIntentID: pi,
			Amount:          1000,
			Currency:        "usd",
			Status:          "succeeded",
		}))
	}

	s.Run("returns the full envelope", func() {
		filter := &types.RefundFilter{
			PaginationFilter: &types.PaginationFilter{
				Page:  lo.ToPtr(1),
				Limit: lo.ToPtr(2),
			},
		}
		resp, err := s.refundService.GetRefunds(s.GetContext(), filter)
		s.NoError(err)
		s.Equal(3, resp.Total)
		s.Equal(2, resp.TotalPages)
		s.Len(resp.Data, 2)
	})

	s.Run("filters by payment intent", func() {
		filter := types.NewRefundFilter()
		filter.StripePaymentIntentID = "pi_2"
		resp, err := s.refundService.GetRefunds(s.GetContext(), filter)
		s.NoError(err)
		s.Equal(1, resp.Total)
		s.Require().Len(resp.Data, 1)
		s.Equal("re_c", resp.Data[0].StripeRefundID)
	})
}
