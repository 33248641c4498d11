package persistence

import (
	"context"

	"github.com/petrijr/flowstate/pkg/api"
)

// EventRecord is one entry in an instance's append-only event log.
// Counter is the counter value of the run state the event produced, so
// the log replays in counter order.
type EventRecord struct {
	ID              string
	Instance        api.WorkflowInstance
	Event           api.Event
	Counter         int64
	TimestampMillis int64
}

// EventStore is the append-only history of processed events, sufficient
// to rebuild any instance's run state by replay.
type EventStore interface {
	Append(ctx context.Context, rec EventRecord) error
	// ListEvents returns the instance's records in ascending counter order.
	ListEvents(ctx context.Context, wi api.WorkflowInstance) ([]EventRecord, error)
}

// NoopEventStore discards all events. Replay is unavailable with it.
type NoopEventStore struct{}

func (NoopEventStore) Append(context.Context, EventRecord) error { return nil }
func (NoopEventStore) ListEvents(context.Context, api.WorkflowInstance) ([]EventRecord, error) {
	return nil, nil
}
