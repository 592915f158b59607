package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/billbridge/billbridge/internal/domain/refund"
)

// RefundResponse is the API representation of a refund
type RefundResponse struct {
	ID                    string          `json:"id"`
	StripeRefundID        string          `json:"stripe_refund_id"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NewRefundResponse converts a domain refund to its API representation
func NewRefundResponse(r *refund.Refund) *RefundResponse {
	if r == nil {
		return nil
	}
	return &RefundResponse{
		ID:                    r.ID,
		StripeRefundID:        r.StripeRefundID,
		StripePaymentIntentID: r.StripePaymentIntentID,
		Amount:                r.Amount,
		Currency:              r.Currency,
		Status:                r.Status,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// ListRefundsResponse is the paginated refund listing
type ListRefundsResponse = ListResponse[*RefundResponse]
