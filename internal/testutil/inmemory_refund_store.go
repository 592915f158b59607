package testutil

import (
	"context"

	"github.com/billbridge/billbridge/internal/domain/refund"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/types"
)

// InMemoryRefundStore implements refund.Repository
type InMemoryRefundStore struct {
	*InMemoryStore[*refund.Refund]
}

// NewInMemoryRefundStore creates a new in-memory refund store
func NewInMemoryRefundStore() *InMemoryRefundStore {
	return &InMemoryRefundStore{
		InMemoryStore: NewInMemoryStore[*refund.Refund](),
	}
}

// refundFilterFn implements filtering logic for refunds
func refundFilterFn(_ context.Context, r *refund.Refund, filter interface{}) bool {
	if r == nil {
		return false
	}

	f, ok := filter.(*types.RefundFilter)
	if !ok {
		return true
	}

	if f.StripePaymentIntentID != "" && r.StripePaymentIntentID != f.StripePaymentIntentID {
		return false
	}

	return true
}

// refundSortFn orders newest first, matching the repository
func refundSortFn(i, j *refund.Refund) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryRefundStore) Create(ctx context.Context, r *refund.Refund) error {
	if r == nil {
		return ierr.NewError("refund cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if existing, _ := s.GetByStripeRefundID(ctx, r.StripeRefundID); existing != nil {
		return ierr.NewError("refund already exists").
			WithHint("A refund with this provider id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, r.ID, r)
}

func (s *InMemoryRefundStore) Get(ctx context.Context, id string) (*refund.Refund, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryRefundStore) GetByStripeRefundID(ctx context.Context, stripeRefundID string) (*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.items {
		if r.StripeRefundID == stripeRefundID {
			return r, nil
		}
	}
	return nil, ierr.NewError("refund not found").
		WithHint("No refund exists for this provider id").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryRefundStore) List(ctx context.Context, filter *types.RefundFilter) ([]*refund.Refund, error) {
	return s.InMemoryStore.List(ctx, filter, refundFilterFn, refundSortFn)
}

func (s *InMemoryRefundStore) Count(ctx context.Context, filter *types.RefundFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, refundFilterFn)
}

func (s *InMemoryRefundStore) Update(ctx context.Context, r *refund.Refund) error {
	if r == nil {
		return ierr.NewError("refund cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, r.ID, r)
}
