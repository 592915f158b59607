package types

import (
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_PAGE  = 1
	FILTER_DEFAULT_LIMIT = 10
)

// PaginationFilter represents a page/limit query filter with optional fields
type PaginationFilter struct {
	Page  *int `json:"page,omitempty" form:"page" validate:"omitempty,min=1"`
	Limit *int `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=1000"`
}

// NewDefaultPaginationFilter defines default values for pagination filters
func NewDefaultPaginationFilter() *PaginationFilter {
	return &PaginationFilter{
		Page:  lo.ToPtr(FILTER_DEFAULT_PAGE),
		Limit: lo.ToPtr(FILTER_DEFAULT_LIMIT),
	}
}

// NewNoLimitPaginationFilter returns a filter with no pagination limits
func NewNoLimitPaginationFilter() *PaginationFilter {
	return &PaginationFilter{}
}

// IsUnlimited returns true if this is an unlimited query
func (f *PaginationFilter) IsUnlimited() bool {
	return f == nil || f.Limit == nil
}

// GetPage returns the page value or default if not set
func (f *PaginationFilter) GetPage() int {
	if f == nil || f.Page == nil {
		return FILTER_DEFAULT_PAGE
	}
	return *f.Page
}

// GetLimit returns the limit value or default if not set
func (f *PaginationFilter) GetLimit() int {
	if f == nil || f.Limit == nil {
		return FILTER_DEFAULT_LIMIT
	}
	return *f.Limit
}

// GetOffset returns the row offset implied by page and limit
func (f *PaginationFilter) GetOffset() int {
	return (f.GetPage() - 1) * f.GetLimit()
}

func (f *PaginationFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Page != nil && *f.Page < 1 {
		return ierr.NewError("page must be at least 1").
			WithHint("Page numbers start at 1").
			Mark(ierr.ErrValidation)
	}
	if f.Limit != nil && *f.Limit < 1 {
		return ierr.NewError("limit must be at least 1").
			WithHint("Limit must be a positive number").
			Mark(ierr.ErrValidation)
	}
	return nil
}
