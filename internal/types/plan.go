package types

// PlanFilter represents the filter options for plans
type PlanFilter struct {
	*PaginationFilter

	// ActiveOnly restricts the listing to plans still purchasable
	ActiveOnly bool `json:"active_only,omitempty" form:"active_only"`
}

// NewPlanFilter creates a new plan filter with default pagination
func NewPlanFilter() *PlanFilter {
	return &PlanFilter{
		PaginationFilter: NewDefaultPaginationFilter(),
	}
}

// NewNoLimitPlanFilter creates a new plan filter without pagination
func NewNoLimitPlanFilter() *PlanFilter {
	return &PlanFilter{
		PaginationFilter: NewNoLimitPaginationFilter(),
	}
}

func (f *PlanFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.PaginationFilter.Validate()
}
