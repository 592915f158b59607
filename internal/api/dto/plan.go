package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/domain/plan"
)

// PlanResponse is the API representation of a plan
type PlanResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	StripeProductID string          `json:"stripe_product_id"`
	StripePriceID   string          `json:"stripe_price_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Interval        string          `json:"interval,omitempty"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPlanResponse converts a domain plan to its API representation
func NewPlanResponse(p *plan.Plan) *PlanResponse {
	if p == nil {
		return nil
	}
	return &PlanResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		StripeProductID: p.StripeProductID,
		StripePriceID:   p.StripePriceID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Interval:        p.Interval,
		Active:          p.Active,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// ListPlansResponse is the paginated plan listing
type ListPlansResponse = ListResponse[*PlanResponse]
