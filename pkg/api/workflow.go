package api

import "time"

// WorkflowID identifies a workflow definition.
type WorkflowID string

// WorkflowInstance identifies one concrete parameterized invocation of a
// workflow, e.g. the run of a daily workflow for a particular date.
// The run-state machine treats it as an opaque identity and never
// interprets the parameter.
type WorkflowInstance struct {
	WorkflowID WorkflowID
	Parameter  string
}

// Key returns a stable string form usable as a storage key.
func (wi WorkflowInstance) Key() string {
	return string(wi.WorkflowID) + "#" + wi.Parameter
}

func (wi WorkflowInstance) String() string {
	return wi.Key()
}

// WorkflowConfiguration carries the per-workflow settings consulted by the
// run-state core. RunningTimeout, when set, overrides the configured TTL
// for the RUNNING state.
type WorkflowConfiguration struct {
	Schedule       string
	RunningTimeout *time.Duration
}

// Workflow is a registered workflow definition.
type Workflow struct {
	ID            WorkflowID
	Configuration WorkflowConfiguration
}
