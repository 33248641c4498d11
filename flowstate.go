package flowstate

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/flowstate/internal/manager"
	"github.com/petrijr/flowstate/internal/persistence"
	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// Re-export key types so users don't need to dig into the sub-packages.

type (
	WorkflowID            = api.WorkflowID
	WorkflowInstance      = api.WorkflowInstance
	Workflow              = api.Workflow
	WorkflowConfiguration = api.WorkflowConfiguration
	Trigger               = api.Trigger
	TriggerParameters     = api.TriggerParameters
	ExecutionDescription  = api.ExecutionDescription
	Event                 = api.Event
	EventType             = api.EventType
	Message               = api.Message
	MessageLevel          = api.MessageLevel

	RunState               = state.RunState
	StateData              = state.StateData
	State                  = state.State
	Clock                  = state.Clock
	OutputHandler          = state.OutputHandler
	StateManager           = state.StateManager
	TimeoutConfig          = state.TimeoutConfig
	TimeoutHandler         = state.TimeoutHandler
	WorkflowLookup         = state.WorkflowLookup
	IllegalTransitionError = state.IllegalTransitionError
	StaleEventError        = state.StaleEventError
)

// Re-export the state values.

const (
	StateNew        = state.StateNew
	StateQueued     = state.StateQueued
	StatePrepare    = state.StatePrepare
	StateSubmitting = state.StateSubmitting
	StateSubmitted  = state.StateSubmitted
	StateRunning    = state.StateRunning
	StateTerminated = state.StateTerminated
	StateFailed     = state.StateFailed
	StateError      = state.StateError
	StateDone       = state.StateDone
)

// Re-export the event constructors and common helpers.

var (
	TriggerExecution  = api.TriggerExecution
	Dequeue           = api.Dequeue
	Submit            = api.Submit
	Submitted         = api.Submitted
	Started           = api.Started
	Terminate         = api.Terminate
	TerminateWithCode = api.TerminateWithCode
	RunError          = api.RunError
	Success           = api.Success
	RetryAfter        = api.RetryAfter
	Stop              = api.Stop
	Timeout           = api.Timeout
	Halt              = api.Halt
	Info              = api.Info

	NaturalTrigger  = api.NaturalTrigger
	BackfillTrigger = api.BackfillTrigger
	AdhocTrigger    = api.AdhocTrigger

	Fresh                 = state.Fresh
	NewTimeoutConfig      = state.NewTimeoutConfig
	TimeoutConfigFromYAML = state.TimeoutConfigFromYAML
	NewTimeoutHandler     = state.NewTimeoutHandler
	NewLoggingHandler     = state.NewLoggingHandler
	NewPrometheusHandler  = state.NewPrometheusHandler
	FanOutput             = state.FanOutput
)

// Manager constructors
// These wrap the internal packages so external callers never need to
// import them.

// NewInMemoryManager returns a StateManager backed entirely by memory.
// Suitable for tests and single-process schedulers; nothing survives a
// restart.
func NewInMemoryManager(handlers ...OutputHandler) StateManager {
	mem := persistence.NewInMemoryStore()
	return manager.New(manager.Config{
		Store:    mem,
		Events:   mem,
		Handlers: handlers,
	})
}

// NewSQLiteManager returns a StateManager persisting run states and the
// event log in SQLite. The caller imports a SQLite driver, e.g.
// "modernc.org/sqlite", and opens the *sql.DB.
func NewSQLiteManager(db *sql.DB, handlers ...OutputHandler) (StateManager, error) {
	store, err := persistence.NewSQLiteRunStateStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return manager.New(manager.Config{
		Store:    store,
		Events:   events,
		Handlers: handlers,
	}), nil
}

// NewRedisManager returns a StateManager persisting run states in Redis
// under the given key prefix. The event log stays in memory; pair with
// an external log shipper if replay must survive restarts.
func NewRedisManager(client *redis.Client, prefix string, handlers ...OutputHandler) StateManager {
	store := persistence.NewRedisRunStateStore(client, prefix)
	return manager.New(manager.Config{
		Store:    store,
		Events:   persistence.NewInMemoryStore(),
		Handlers: handlers,
	})
}
