package service

import (
	"context"
	"encoding/json"

	"github.com/billbridge/billbridge/internal/domain/eventlog"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/types"
)

// EventLogService records every received provider event before it is
// dispatched, so deliveries can be audited and replayed.
type EventLogService interface {
	RecordEvent(ctx context.Context, eventType string, payload json.RawMessage) error
	GetRecentEvents(ctx context.Context, limit int) ([]*eventlog.EventLog, error)
}

type eventLogService struct {
	ServiceParams
}

func NewEventLogService(params ServiceParams) EventLogService {
	return &eventLogService{
		ServiceParams: params,
	}
}

func (s *eventLogService) RecordEvent(ctx context.Context, eventType string, payload json.RawMessage) error {
	if eventType == "" {
		return ierr.NewError("event type is required").
			WithHint("Cannot record an event without a type").
			Mark(ierr.ErrValidation)
	}

	entry := &eventlog.EventLog{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT_LOG),
		EventType: eventType,
		Data:      payload,
		BaseModel: types.GetDefaultBaseModel(),
	}
	return s.EventLogRepo.Create(ctx, entry)
}

func (s *eventLogService) GetRecentEvents(ctx context.Context, limit int) ([]*eventlog.EventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.EventLogRepo.List(ctx, limit)
}
