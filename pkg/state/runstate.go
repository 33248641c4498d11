package state

import (
	"fmt"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
)

// Clock supplies the current time. Both the transducer and the timeout
// machinery take one explicitly so behavior is deterministic under test.
type Clock func() time.Time

// State is a position in the run lifecycle.
type State string

const (
	StateNew        State = "NEW"
	StateQueued     State = "QUEUED"
	StatePrepare    State = "PREPARE"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StateRunning    State = "RUNNING"
	StateTerminated State = "TERMINATED"
	StateFailed     State = "FAILED"
	StateError      State = "ERROR"
	StateDone       State = "DONE"
)

// Terminal reports whether no further transitions are legal from s.
func (s State) Terminal() bool {
	return s == StateError || s == StateDone
}

// States returns every state in lifecycle order.
func States() []State {
	return []State{
		StateNew, StateQueued, StatePrepare, StateSubmitting, StateSubmitted,
		StateRunning, StateTerminated, StateFailed, StateError, StateDone,
	}
}

// Exit codes with externally visible meaning. They are stable wire
// constants; persisted logs depend on them.
const (
	SuccessExitCode              = 0
	MissingDepsExitCode          = 20
	UnrecoverableFailureExitCode = 50
	UnknownErrorExitCode         = 1
)

const (
	failureCost     = 1.0
	missingDepsCost = 0.1
)

// NoEventsProcessed is the counter sentinel of a freshly created run
// state. The first successful transition moves the counter to 0.
const NoEventsProcessed int64 = -1

// RunState is the immutable value driving one workflow instance through
// its lifecycle. Transition derives a successor value; a RunState itself
// is never modified once built.
//
// The counter is the serialization witness used by the surrounding
// system for optimistic concurrency: it increases by exactly one on
// every successful transition.
type RunState struct {
	Instance  api.WorkflowInstance
	State     State
	Timestamp int64 // millis since epoch when this state was entered
	Data      StateData
	Counter   int64
}

// Fresh creates a new instance in NEW with zeroed data.
func Fresh(wi api.WorkflowInstance, clock Clock) RunState {
	return RunState{
		Instance:  wi,
		State:     StateNew,
		Timestamp: clock().UnixMilli(),
		Data:      ZeroData(),
		Counter:   NoEventsProcessed,
	}
}

// Create restores a RunState from persistence.
func Create(wi api.WorkflowInstance, s State, data StateData, timestamp time.Time, counter int64) RunState {
	return RunState{
		Instance:  wi,
		State:     s,
		Timestamp: timestamp.UnixMilli(),
		Data:      data,
		Counter:   counter,
	}
}

// IllegalTransitionError reports an event that the current state does not
// admit. It signals a bug in the caller (usually a stale event), never an
// application failure; those are modeled as runError events.
type IllegalTransitionError struct {
	Instance api.WorkflowInstance
	State    State
	Event    api.EventType
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s received %s while in %s", e.Instance, e.Event, e.State)
}

// Transition applies one event and returns the successor RunState, with
// the clock's time as the new timestamp and the counter advanced by one.
// It returns an IllegalTransitionError when the current state does not
// admit the event; terminal states admit none.
func (r RunState) Transition(ev api.Event, clock Clock) (RunState, error) {
	next, data, err := r.apply(ev)
	if err != nil {
		return RunState{}, err
	}
	return RunState{
		Instance:  r.Instance,
		State:     next,
		Timestamp: clock().UnixMilli(),
		Data:      data,
		Counter:   r.Counter + 1,
	}, nil
}

// apply encodes the transition relation: (state, event) -> (state', data').
func (r RunState) apply(ev api.Event) (State, StateData, error) {
	if r.State.Terminal() {
		return "", StateData{}, r.illegal(ev)
	}

	switch ev.Type {
	case api.EventTriggerExecution:
		if r.State != StateNew || ev.Trigger == nil {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			Trigger(*ev.Trigger).
			TriggerID(ev.Trigger.TriggerID()).
			TriggerParameters(ev.TriggerParameters).
			Build()
		return StateQueued, data, nil

	case api.EventTimeTrigger:
		// Legacy: jumps straight to SUBMITTED with an unknown trigger.
		if r.State != StateNew {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			Trigger(api.UnknownTrigger("UNKNOWN")).
			TriggerID("UNKNOWN").
			Build()
		return StateSubmitted, data, nil

	case api.EventInfo:
		if r.State != StateQueued || ev.Message == nil {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().Message(*ev.Message).Build()
		return StateQueued, data, nil

	case api.EventDequeue:
		if r.State != StateQueued {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			ClearRetryDelay().
			ResourceIDs(ev.ResourceIDs).
			Build()
		return StatePrepare, data, nil

	case api.EventSubmit:
		if (r.State != StateQueued && r.State != StatePrepare) || ev.Description == nil {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			ExecutionDescription(*ev.Description).
			ExecutionID(ev.ExecutionID).
			Build()
		return StateSubmitting, data, nil

	case api.EventSubmitted:
		if r.State != StateSubmitting {
			return "", StateData{}, r.illegal(ev)
		}
		// Keep an execution ID recorded at submit time over the one the
		// runner reports; old logs only carry the latter.
		executionID := ev.ExecutionID
		if r.Data.ExecutionID != nil {
			executionID = *r.Data.ExecutionID
		}
		data := r.Data.Builder().
			Tries(r.Data.Tries + 1).
			ExecutionID(executionID).
			RunnerID(ev.RunnerID).
			Build()
		return StateSubmitted, data, nil

	case api.EventCreated:
		// Legacy form of submitted, from before SUBMITTING existed.
		if r.State != StatePrepare && r.State != StateQueued {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			ExecutionID(ev.ExecutionID).
			ExecutionDescription(api.ForImage(ev.DockerImage)).
			Tries(r.Data.Tries + 1).
			Build()
		return StateSubmitted, data, nil

	case api.EventStarted:
		if r.State != StateSubmitted && r.State != StatePrepare {
			return "", StateData{}, r.illegal(ev)
		}
		return StateRunning, r.Data, nil

	case api.EventTerminate:
		if r.State != StateRunning {
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			RetryCost(r.Data.RetryCost + exitCost(ev.ExitCode)).
			LastExit(ev.ExitCode).
			ConsecutiveFailures(nextConsecutiveFailures(r.Data, ev.ExitCode)).
			Message(api.Message{
				Level: messageLevel(ev.ExitCode),
				Line:  "Exit code: " + formatExitCode(ev.ExitCode),
			}).
			Build()
		return StateTerminated, data, nil

	case api.EventRunError:
		switch r.State {
		case StateQueued, StatePrepare, StateSubmitting, StateSubmitted, StateRunning:
		default:
			return "", StateData{}, r.illegal(ev)
		}
		line := ""
		if ev.Message != nil {
			line = ev.Message.Line
		}
		data := r.Data.Builder().
			RetryCost(r.Data.RetryCost + failureCost).
			LastExit(nil).
			ConsecutiveFailures(r.Data.ConsecutiveFailures + 1).
			Message(api.ErrorMessage(line)).
			Build()
		return StateFailed, data, nil

	case api.EventSuccess:
		if r.State != StateTerminated {
			return "", StateData{}, r.illegal(ev)
		}
		return StateDone, r.Data, nil

	case api.EventRetryAfter:
		switch r.State {
		case StateTerminated, StateFailed, StateQueued:
		default:
			return "", StateData{}, r.illegal(ev)
		}
		data := r.Data.Builder().
			RetryDelayMillis(ev.DelayMillis).
			ClearExecutionID().
			ClearExecutionDescription().
			ClearResourceIDs().
			Build()
		return StateQueued, data, nil

	case api.EventRetry:
		// Legacy: unlike retryAfter it deliberately leaves executionId and
		// resourceIds in place; historical logs rely on that.
		switch r.State {
		case StateTerminated, StateFailed, StateQueued:
		default:
			return "", StateData{}, r.illegal(ev)
		}
		return StatePrepare, r.Data, nil

	case api.EventStop:
		if r.State != StateTerminated && r.State != StateFailed {
			return "", StateData{}, r.illegal(ev)
		}
		return StateError, r.Data, nil

	case api.EventTimeout:
		// Admin-level: legal from any non-terminal state.
		return StateFailed, r.Data, nil

	case api.EventHalt:
		// Admin-level: legal from any non-terminal state.
		return StateError, r.Data, nil

	default:
		return "", StateData{}, r.illegal(ev)
	}
}

func (r RunState) illegal(ev api.Event) error {
	return &IllegalTransitionError{Instance: r.Instance, State: r.State, Event: ev.Type}
}

func exitCost(exitCode *int) float64 {
	if exitCode == nil {
		return failureCost
	}
	switch *exitCode {
	case SuccessExitCode:
		return 0.0
	case MissingDepsExitCode:
		return missingDepsCost
	default:
		return failureCost
	}
}

func nextConsecutiveFailures(data StateData, exitCode *int) int {
	if exitCode == nil {
		return data.ConsecutiveFailures + 1
	}
	switch *exitCode {
	case SuccessExitCode, MissingDepsExitCode:
		return 0
	default:
		return data.ConsecutiveFailures + 1
	}
}

func messageLevel(exitCode *int) api.MessageLevel {
	if exitCode == nil {
		return api.MessageError
	}
	switch *exitCode {
	case SuccessExitCode:
		return api.MessageInfo
	case MissingDepsExitCode:
		return api.MessageWarning
	default:
		return api.MessageError
	}
}

func formatExitCode(exitCode *int) string {
	if exitCode == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *exitCode)
}
