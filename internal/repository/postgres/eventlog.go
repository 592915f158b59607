package postgres

import (
	"context"

	domainEventLog "github.com/billbridge/billbridge/internal/domain/eventlog"
	ierr "github.com/billbridge/billbridge/internal/errors"
	"github.com/billbridge/billbridge/internal/logger"
	"github.com/billbridge/billbridge/internal/postgres"
)

type eventLogRepository struct {
	client postgres.IClient
	log    *logger.Logger
}

func NewEventLogRepository(client postgres.IClient, log *logger.Logger) domainEventLog.Repository {
	return &eventLogRepository{
		client: client,
		log:    log,
	}
}

func (r *eventLogRepository) Create(ctx context.Context, event *domainEventLog.EventLog) error {
	r.log.Debugw("recording event",
		"event_log_id", event.ID,
		"event_type", event.EventType,
	)

	if err := r.client.Querier(ctx).Create(event).Error; err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *eventLogRepository) List(ctx context.Context, limit int) ([]*domainEventLog.EventLog, error) {
	var events []*domainEventLog.EventLog
	query := r.client.Querier(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list events").
			Mark(ierr.ErrDatabase)
	}
	return events, nil
}
