package eventlog

import (
	"context"
)

// Repository defines the interface for event log persistence
type Repository interface {
	Create(ctx context.Context, event *EventLog) error
	List(ctx context.Context, limit int) ([]*EventLog, error)
}
