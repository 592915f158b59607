package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/api/dto"
	"github.com/billbridge/billbridge/internal/domain/plan"
	ierr "github.com/billbridge/billbridge/internal/errors"
	stripegw "github.com/billbridge/billbridge/internal/integration/stripe"
	"github.com/billbridge/billbridge/internal/types"
)

// PlanService keeps the local plan catalog in step with the provider catalog
type PlanService interface {
	UpsertFromProvider(ctx context.Context, product *stripegw.ProductSnapshot, price *stripegw.PriceSnapshot) (*dto.PlanResponse, error)
	SyncCatalog(ctx context.Context) (int, error)
	GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error)
	GetPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error)
}

type planService struct {
	ServiceParams
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{
		ServiceParams: params,
	}
}

// UpsertFromProvider creates or updates the plan keyed by the provider price
// id. A plan is active only while both its product and price are active.
func (s *planService) UpsertFromProvider(ctx context.Context, product *stripegw.ProductSnapshot, price *stripegw.PriceSnapshot) (*dto.PlanResponse, error) {
	if product == nil || price == nil {
		return nil, ierr.NewError("product and price are required").
			WithHint("Catalog sync needs both the product and the price").
			Mark(ierr.ErrValidation)
	}

	existing, err := s.PlanRepo.GetByStripePriceID(ctx, price.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	if existing == nil {
		p := &plan.Plan{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
			Name:            product.Name,
			Description:     product.Description,
			StripeProductID: product.ID,
			StripePriceID:   price.ID,
			Amount:          decimal.NewFromInt(price.UnitAmount).Div(decimal.NewFromInt(100)),
			Currency:        price.Currency,
			Interval:        price.Interval,
			Active:          product.Active && price.Active,
			BaseModel:       types.GetDefaultBaseModel(),
		}
		if err := s.PlanRepo.Create(ctx, p); err != nil {
			return nil, err
		}
		s.Logger.Infow("created plan from provider catalog",
			"plan_id", p.ID,
			"stripe_price_id", price.ID,
		)
		return dto.NewPlanResponse(p), nil
	}

	existing.Name = product.Name
	existing.Description = product.Description
	existing.StripeProductID = product.ID
	existing.Amount = decimal.NewFromInt(price.UnitAmount).Div(decimal.NewFromInt(100))
	existing.Currency = price.Currency
	existing.Interval = price.Interval
	existing.Active = product.Active && price.Active
	if err := s.PlanRepo.Update(ctx, existing); err != nil {
		return nil, err
	}
	s.Logger.Infow("updated plan from provider catalog",
		"plan_id", existing.ID,
		"stripe_price_id", price.ID,
	)
	return dto.NewPlanResponse(existing), nil
}

// SyncCatalog walks the provider's active products and upserts every
// recurring price in one transaction, so a partial sync never lands.
// Returns the number of plans touched.
func (s *planService) SyncCatalog(ctx context.Context) (int, error) {
	products, err := s.Gateway.ListActiveProducts(ctx)
	if err != nil {
		return 0, err
	}

	type pair struct {
		product *stripegw.ProductSnapshot
		price   *stripegw.PriceSnapshot
	}
	var pairs []pair
	for _, product := range products {
		prices, err := s.Gateway.ListProductPrices(ctx, product.ID)
		if err != nil {
			return 0, err
		}
		for _, price := range prices {
			if !price.Recurring {
				continue
			}
			pairs = append(pairs, pair{product: product, price: price})
		}
	}

	count := 0
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		for _, p := range pairs {
			if _, err := s.UpsertFromProvider(ctx, p.product, p.price); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Logger.Infow("provider catalog sync complete", "plans", count)
	return count, nil
}

// GetPlan resolves either an internal plan id or a provider price id
func (s *planService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	p, err := s.resolvePlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPlanResponse(p), nil
}

func (s *planService) GetPlans(ctx context.Context, filter *types.PlanFilter) (*dto.ListPlansResponse, error) {
	if filter == nil {
		filter = types.NewPlanFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	plans, err := s.PlanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PlanRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(plans, func(p *plan.Plan, _ int) *dto.PlanResponse {
		return dto.NewPlanResponse(p)
	})
	return dto.NewListResponse(items, total, filter.PaginationFilter), nil
}

func (s *planService) resolvePlan(ctx context.Context, id string) (*plan.Plan, error) {
	if strings.HasPrefix(id, types.UUID_PREFIX_PLAN+"_") {
		return s.PlanRepo.Get(ctx, id)
	}
	return s.PlanRepo.GetByStripePriceID(ctx, id)
}
