package types

// SubscriptionFilter represents the filter options for subscriptions
type SubscriptionFilter struct {
	*PaginationFilter

	CustomerID string `json:"customer_id,omitempty" form:"customer_id"`
	Statuses   []string `json:"statuses,omitempty" form:"statuses"`
}

// NewSubscriptionFilter creates a new subscription filter with default pagination
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		PaginationFilter: NewDefaultPaginationFilter(),
	}
}

func (f *SubscriptionFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.PaginationFilter.Validate()
}
