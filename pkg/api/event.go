package api

import "fmt"

// EventType identifies an event variant.
type EventType string

const (
	EventTriggerExecution EventType = "triggerExecution"
	EventInfo             EventType = "info"
	EventDequeue          EventType = "dequeue"
	EventSubmit           EventType = "submit"
	EventSubmitted        EventType = "submitted"
	EventStarted          EventType = "started"
	EventTerminate        EventType = "terminate"
	EventRunError         EventType = "runError"
	EventSuccess          EventType = "success"
	EventRetryAfter       EventType = "retryAfter"
	EventStop             EventType = "stop"
	EventTimeout          EventType = "timeout"
	EventHalt             EventType = "halt"

	// Legacy variants, accepted only so historical event logs replay.
	// New code should emit triggerExecution, submitted and retryAfter.
	EventTimeTrigger EventType = "timeTrigger"
	EventCreated     EventType = "created"
	EventRetry       EventType = "retry"
)

// Event is a tagged variant carrying the workflow instance it addresses
// plus the payload fields of its variant. Only the fields relevant to
// Type are set; the rest stay zero.
type Event struct {
	Type     EventType
	Instance WorkflowInstance

	// triggerExecution
	Trigger           *Trigger
	TriggerParameters TriggerParameters

	// dequeue
	ResourceIDs []string

	// submit, created
	Description *ExecutionDescription
	ExecutionID string
	DockerImage string

	// submitted
	RunnerID string

	// terminate; nil means the exit code was never observed
	ExitCode *int

	// info, runError
	Message *Message

	// retryAfter
	DelayMillis int64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Type, e.Instance)
}

// TriggerExecution starts a fresh instance with the given trigger.
func TriggerExecution(wi WorkflowInstance, t Trigger, params TriggerParameters) Event {
	return Event{Type: EventTriggerExecution, Instance: wi, Trigger: &t, TriggerParameters: params}
}

// Info attaches a message to a queued instance without moving it.
func Info(wi WorkflowInstance, m Message) Event {
	return Event{Type: EventInfo, Instance: wi, Message: &m}
}

// Dequeue marks the instance as picked up for execution, holding the
// given named resources.
func Dequeue(wi WorkflowInstance, resourceIDs []string) Event {
	return Event{Type: EventDequeue, Instance: wi, ResourceIDs: resourceIDs}
}

// Submit records that a submission to the executor is underway.
func Submit(wi WorkflowInstance, desc ExecutionDescription, executionID string) Event {
	return Event{Type: EventSubmit, Instance: wi, Description: &desc, ExecutionID: executionID}
}

// Submitted records that the executor accepted the submission.
func Submitted(wi WorkflowInstance, executionID, runnerID string) Event {
	return Event{Type: EventSubmitted, Instance: wi, ExecutionID: executionID, RunnerID: runnerID}
}

// Started records that the execution began running.
func Started(wi WorkflowInstance) Event {
	return Event{Type: EventStarted, Instance: wi}
}

// Terminate records that the execution finished with the given exit code.
// Pass nil when the exit code could not be observed.
func Terminate(wi WorkflowInstance, exitCode *int) Event {
	return Event{Type: EventTerminate, Instance: wi, ExitCode: exitCode}
}

// TerminateWithCode is Terminate with a known exit code.
func TerminateWithCode(wi WorkflowInstance, exitCode int) Event {
	return Terminate(wi, &exitCode)
}

// RunError records an application failure reported by the executor.
func RunError(wi WorkflowInstance, message string) Event {
	m := ErrorMessage(message)
	return Event{Type: EventRunError, Instance: wi, Message: &m}
}

// Success closes a terminated instance as done.
func Success(wi WorkflowInstance) Event {
	return Event{Type: EventSuccess, Instance: wi}
}

// RetryAfter requeues the instance, eligible for dequeue again after the
// given delay.
func RetryAfter(wi WorkflowInstance, delayMillis int64) Event {
	return Event{Type: EventRetryAfter, Instance: wi, DelayMillis: delayMillis}
}

// Stop closes a failed or terminated instance as an error.
func Stop(wi WorkflowInstance) Event {
	return Event{Type: EventStop, Instance: wi}
}

// Timeout fails an instance that dwelt in its state too long.
func Timeout(wi WorkflowInstance) Event {
	return Event{Type: EventTimeout, Instance: wi}
}

// Halt is an administrative intervention closing the instance as an error.
func Halt(wi WorkflowInstance) Event {
	return Event{Type: EventHalt, Instance: wi}
}

// TimeTrigger is the legacy trigger form found in historical event logs.
func TimeTrigger(wi WorkflowInstance) Event {
	return Event{Type: EventTimeTrigger, Instance: wi}
}

// Created is the legacy submission form found in historical event logs.
func Created(wi WorkflowInstance, executionID, dockerImage string) Event {
	return Event{Type: EventCreated, Instance: wi, ExecutionID: executionID, DockerImage: dockerImage}
}

// Retry is the legacy immediate-retry form found in historical event logs.
func Retry(wi WorkflowInstance) Event {
	return Event{Type: EventRetry, Instance: wi}
}
