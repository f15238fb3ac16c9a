package events

import (
	"context"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/logger"
	"github.com/medflow/timesheet-service/pkg/messaging"
)

// Sink accepts typed event payloads. *messaging.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// TimesheetEventPublisher publishes timesheet domain events. Publishing
// happens after commit; failures are logged and never undo the write.
type TimesheetEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

// NewTimesheetEventPublisher declares the timesheet exchange and returns a publisher on it.
func NewTimesheetEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*TimesheetEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTimesheetEvents, config.ServiceName, log)
	if err != nil {
		return nil, err
	}
	return NewWithSink(publisher, log), nil
}

// NewWithSink builds a publisher over any sink.
func NewWithSink(sink Sink, log *logger.Logger) *TimesheetEventPublisher {
	return &TimesheetEventPublisher{sink: sink, logger: log.WithComponent("timesheet_events")}
}

func entryEvent(ts *domain.Timesheet, e domain.TimeEntry) messaging.EntryEvent {
	return messaging.EntryEvent{
		EntryID:     e.ID,
		TimesheetID: ts.ID,
		EmployeeID:  ts.EmployeeID,
		WeekStart:   ts.WeekStart.Format(domain.DateLayout),
		FromTime:    e.FromTime,
		ToTime:      e.ToTime,
		Hours:       e.Hours,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		TotalHours:  ts.TotalHours,
	}
}

// EntryCreated publishes timesheet.entry.created
func (p *TimesheetEventPublisher) EntryCreated(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.publish(ctx, messaging.EventEntryCreated, ts, entryEvent(ts, e))
}

// EntryUpdated publishes timesheet.entry.updated
func (p *TimesheetEventPublisher) EntryUpdated(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.publish(ctx, messaging.EventEntryUpdated, ts, entryEvent(ts, e))
}

// EntryDeleted publishes timesheet.entry.deleted
func (p *TimesheetEventPublisher) EntryDeleted(ctx context.Context, ts *domain.Timesheet, e domain.TimeEntry) {
	p.publish(ctx, messaging.EventEntryDeleted, ts, entryEvent(ts, e))
}

// TimesheetDeleted publishes timesheet.deleted
func (p *TimesheetEventPublisher) TimesheetDeleted(ctx context.Context, ts *domain.Timesheet) {
	p.publish(ctx, messaging.EventTimesheetDeleted, ts, messaging.TimesheetDeletedEvent{
		TimesheetID: ts.ID,
		EmployeeID:  ts.EmployeeID,
		WeekStart:   ts.WeekStart.Format(domain.DateLayout),
	})
}

func (p *TimesheetEventPublisher) publish(ctx context.Context, eventType string, ts *domain.Timesheet, data interface{}) {
	if err := p.sink.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("timesheet_id", ts.ID).
			Msg("failed to publish timesheet event")
	}
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) EntryCreated(context.Context, *domain.Timesheet, domain.TimeEntry) {}
func (Noop) EntryUpdated(context.Context, *domain.Timesheet, domain.TimeEntry) {}
func (Noop) EntryDeleted(context.Context, *domain.Timesheet, domain.TimeEntry) {}
func (Noop) TimesheetDeleted(context.Context, *domain.Timesheet)               {}
