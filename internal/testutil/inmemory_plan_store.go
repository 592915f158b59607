package testutil

import (
	"context"
	"sort"

	"github.com/billbridge/billbridge/internal/domain/plan"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

// NewInMemoryPlanStore creates a new in-memory plan store
func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
	}
}

// planFilterFn implements filtering logic for plans
func planFilterFn(_ context.Context, p *plan.Plan, filter interface{}) bool {
	if p == nil {
		return false
	}

	f, ok := filter.(*types.PlanFilter)
	if !ok {
		return true
	}

	if f.ActiveOnly && !p.Active {
		return false
	}

	return true
}

// planSortFn keeps listings ordered by name, matching the repository
func planSortFn(i, j *plan.Plan) bool {
	if i == nil || j == nil {
		return false
	}
	return i.Name < j.Name
}

func (s *InMemoryPlanStore) Create(ctx context.Context, p *plan.Plan) error {
	if p == nil {
		return ierr.NewError("plan cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if s.findByStripePriceID(p.StripePriceID) != nil {
		return ierr.NewError("plan already exists").
			WithHint("A plan with this price already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPlanStore) GetByStripePriceID(ctx context.Context, stripePriceID string) (*plan.Plan, error) {
	if p := s.findByStripePriceID(stripePriceID); p != nil {
		return p, nil
	}
	return nil, ierr.NewError("plan not found").
		WithHint("No plan exists for this price").
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPlanStore) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	return s.InMemoryStore.List(ctx, filter, planFilterFn, planSortFn)
}

func (s *InMemoryPlanStore) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, planFilterFn)
}

func (s *InMemoryPlanStore) Update(ctx context.Context, p *plan.Plan) error {
	if p == nil {
		return ierr.NewError("plan cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryPlanStore) findByStripePriceID(stripePriceID string) *plan.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*plan.Plan
	for _, p := range s.items {
		if p.StripePriceID == stripePriceID {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches[0]
}
