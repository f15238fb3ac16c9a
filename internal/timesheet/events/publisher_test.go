package events

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/medflow/timesheet-service/internal/timesheet/domain"
	"github.com/medflow/timesheet-service/pkg/logger"
	"github.com/medflow/timesheet-service/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	eventType string
	data      interface{}
}

type recordingSink struct {
	events []published
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, eventType string, data interface{}) error {
	s.events = append(s.events, published{eventType, data})
	return s.err
}

func sampleTimesheet(t *testing.T) (*domain.Timesheet, domain.TimeEntry) {
	t.Helper()
	monday := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ts := domain.NewTimesheet("EMP-1", "Acme", monday)
	e, err := ts.AddEntry(domain.TimeEntry{
		FromTime:  monday.Add(9 * time.Hour),
		ToTime:    monday.Add(10*time.Hour + 30*time.Minute),
		ProjectID: "PROJ-1",
	})
	require.NoError(t, err)
	return ts, e
}

func TestPublisher_EntryEvents(t *testing.T) {
	sink := &recordingSink{}
	p := NewWithSink(sink, logger.Nop())
	ts, e := sampleTimesheet(t)
	ctx := context.Background()

	p.EntryCreated(ctx, ts, e)
	p.EntryUpdated(ctx, ts, e)
	p.EntryDeleted(ctx, ts, e)
	p.TimesheetDeleted(ctx, ts)

	require.Len(t, sink.events, 4)
	assert.Equal(t, messaging.EventEntryCreated, sink.events[0].eventType)
	assert.Equal(t, messaging.EventEntryUpdated, sink.events[1].eventType)
	assert.Equal(t, messaging.EventEntryDeleted, sink.events[2].eventType)
	assert.Equal(t, messaging.EventTimesheetDeleted, sink.events[3].eventType)

	payload, ok := sink.events[0].data.(messaging.EntryEvent)
	require.True(t, ok)
	assert.Equal(t, e.ID, payload.EntryID)
	assert.Equal(t, "2024-01-15", payload.WeekStart)
	assert.Equal(t, 1.5, payload.Hours)
	assert.Equal(t, 1.5, payload.TotalHours)
	assert.Equal(t, "PROJ-1", payload.ProjectID)

	deleted, ok := sink.events[3].data.(messaging.TimesheetDeletedEvent)
	require.True(t, ok)
	assert.Equal(t, ts.ID, deleted.TimesheetID)
}

func TestPublisher_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{err: stderrors.New("channel closed")}
	p := NewWithSink(sink, logger.NewWithWriter("timesheet-service", &buf))
	ts, e := sampleTimesheet(t)

	p.EntryCreated(context.Background(), ts, e)

	assert.Len(t, sink.events, 1)
	assert.Contains(t, buf.String(), "failed to publish timesheet event")
	assert.Contains(t, buf.String(), "channel closed")
}
