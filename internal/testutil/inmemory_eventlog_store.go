package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/billbridge/billbridge/internal/domain/eventlog"
	ierr "github.com/billbridge/billbridge/internal/errors"
)

// InMemoryEventLogStore implements eventlog.Repository
type InMemoryEventLogStore struct {
	mu     sync.RWMutex
	events []*eventlog.EventLog
}

// NewInMemoryEventLogStore creates a new in-memory event log store
func NewInMemoryEventLogStore() *InMemoryEventLogStore {
	return &InMemoryEventLogStore{}
}

func (s *InMemoryEventLogStore) Create(ctx context.Context, event *eventlog.EventLog) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryEventLogStore) List(ctx context.Context, limit int) ([]*eventlog.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*eventlog.EventLog, len(s.events))
	copy(result, s.events)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Events returns everything recorded, oldest first
func (s *InMemoryEventLogStore) Events() []*eventlog.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*eventlog.EventLog, len(s.events))
	copy(result, s.events)
	return result
}

// Clear removes all recorded events
func (s *InMemoryEventLogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
