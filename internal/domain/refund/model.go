package refund

import (
	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/types"
)

// Refund records a provider refund against a payment intent.
// Amount is in major currency units.
type Refund struct {
	ID                    string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StripeRefundID        string          `gorm:"not null;uniqueIndex" json:"stripe_refund_id"`
	StripePaymentIntentID string          `gorm:"not null;index" json:"stripe_payment_intent_id"`
	Amount                decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	Currency              string          `gorm:"not null" json:"currency"`
	Status                string          `gorm:"not null" json:"status"`
	types.BaseModel
}

func (Refund) TableName() string {
	return "refunds"
}
