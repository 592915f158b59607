package testutil

import (
	"context"

	"github.com/billbridge/billbridge/internal/domain/subscription"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

// subscriptionFilterFn implements filtering logic for subscriptions
func subscriptionFilterFn(_ context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok {
		return true
	}

	if f.CustomerID != "" && sub.StripeCustomerID != f.CustomerID {
		return false
	}
	if len(f.Statuses) > 0 {
		matched := false
		for _, status := range f.Statuses {
			if sub.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// subscriptionSortFn orders newest first, matching the repository
func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if existing, _ := s.GetByStripeSubscriptionID(ctx, sub.StripeSubscriptionID); existing != nil {
		return ierr.NewError("subscription already exists").
			WithHint("A subscription with this provider id already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.items {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			return sub, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHint("No subscription exists for this provider id").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) ListByCustomer(ctx context.Context, stripeCustomerID string) ([]*subscription.Subscription, error) {
	filter := &types.SubscriptionFilter{
		PaginationFilter: types.NewNoLimitPaginationFilter(),
		CustomerID:       stripeCustomerID,
	}
	return s.List(ctx, filter)
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	return s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}
