package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// ErrInstanceNotFound is returned when no run state is stored for an
// instance.
var ErrInstanceNotFound = errors.New("run state not found")

// Filter selects run states from the store. Zero values mean "no filter".
type Filter struct {
	WorkflowID api.WorkflowID
	State      state.State
}

// RunStateStore persists the current run state of each instance.
// Save is an upsert keyed on the workflow instance; every successful
// transition overwrites the previous snapshot.
type RunStateStore interface {
	Save(ctx context.Context, r state.RunState) error
	Get(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error)
	List(ctx context.Context, f Filter) ([]state.RunState, error)
}
