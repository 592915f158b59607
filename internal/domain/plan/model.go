package plan

import (
	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/types"
)

// Plan mirrors a Stripe recurring price together with its product metadata.
// Amount is in major currency units.
type Plan struct {
	ID              string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name            string          `gorm:"not null" json:"name"`
	Description     string          `json:"description,omitempty"`
	StripeProductID string          `gorm:"not null;index" json:"stripe_product_id"`
	StripePriceID   string          `gorm:"not null;uniqueIndex" json:"stripe_price_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	Currency        string          `gorm:"not null" json:"currency"`
	Interval        string          `json:"interval,omitempty"`
	Active          bool            `gorm:"default:true" json:"active"`
	types.BaseModel
}

// TableName overrides the gorm default pluralisation
func (Plan) TableName() string {
	return "plans"
}
