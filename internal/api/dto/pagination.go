package dto

import (
	"github.com/billbridge/billbridge/internal/types"
)

// ListResponse is the standard paginated envelope for collection endpoints
type ListResponse[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewListResponse builds the envelope from a page of items and a total count
func NewListResponse[T any](data []T, total int, filter *types.PaginationFilter) *ListResponse[T] {
	limit := filter.GetLimit()
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	if data == nil {
		data = []T{}
	}
	return &ListResponse[T]{
		Data:       data,
		Total:      total,
		Page:       filter.GetPage(),
		Limit:      limit,
		TotalPages: totalPages,
	}
}
