package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/flowstate/pkg/api"
)

// ErrInstanceClosed is returned when an event addresses an instance that
// has reached a terminal state or is no longer tracked.
var ErrInstanceClosed = errors.New("workflow instance is closed")

// StaleEventError is returned when a caller posts an event guarded by an
// expected counter that no longer matches the instance's counter. The
// caller may drop the event or re-read and retry.
type StaleEventError struct {
	Instance api.WorkflowInstance
	Expected int64
	Actual   int64
}

func (e *StaleEventError) Error() string {
	return fmt.Sprintf("stale event for %s: expected counter %d, at %d", e.Instance, e.Expected, e.Actual)
}

// EventReceiver is the narrow boundary output handlers use to post
// events back into the state manager. The expected counter makes the
// post optimistic: if the instance has since moved on, the post is
// silently dropped.
type EventReceiver interface {
	ReceiveIgnoreClosed(ctx context.Context, ev api.Event, expectedCounter int64) error
}

// StateManager hosts run states: it serializes transitions per instance,
// persists each successor value, and fans it out to output handlers.
type StateManager interface {
	EventReceiver

	// Trigger creates a fresh instance and applies the triggerExecution
	// event for the given trigger.
	Trigger(ctx context.Context, wi api.WorkflowInstance, t api.Trigger, params api.TriggerParameters) (RunState, error)

	// Receive applies an event against the instance's current counter.
	Receive(ctx context.Context, ev api.Event) (RunState, error)

	// ReceiveExpecting applies an event only if the instance's counter
	// still equals expectedCounter; otherwise it returns a StaleEventError.
	ReceiveExpecting(ctx context.Context, ev api.Event, expectedCounter int64) (RunState, error)

	// RunStateOf returns the current run state of an instance.
	RunStateOf(ctx context.Context, wi api.WorkflowInstance) (RunState, error)

	// ListActive returns the run states of all non-terminal instances.
	ListActive(ctx context.Context) ([]RunState, error)

	// Restore folds the instance's persisted event log into a RunState.
	Restore(ctx context.Context, wi api.WorkflowInstance) (RunState, error)
}
