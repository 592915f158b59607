package types

// RefundFilter represents the filter options for refunds
type RefundFilter struct {
	*PaginationFilter

	StripePaymentIntentID string `json:"stripe_payment_intent_id,omitempty" form:"stripe_payment_intent_id"`
}

// NewRefundFilter creates a new refund filter with default pagination
func NewRefundFilter() *RefundFilter {
	return &RefundFilter{
		PaginationFilter: NewDefaultPaginationFilter(),
	}
}

func (f *RefundFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.PaginationFilter.Validate()
}
