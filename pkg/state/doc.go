// Package state implements the run-state machine that drives each
// workflow instance through its lifecycle.
//
// RunState is a finite-state transducer encoded as an immutable value:
// feeding it an event either yields a successor value, with updated
// bookkeeping in StateData, or fails with an IllegalTransitionError.
// The transducer performs no I/O and reads the clock only through the
// injected Clock, so a given event sequence always produces the same
// final value.
//
// The package also defines the surfaces the transducer meets the rest
// of a scheduler through: the StateManager contract that hosts run
// states, the OutputHandler contract invoked after every transition,
// and the TimeoutHandler/TimeoutConfig pair that injects timeout events
// for instances that dwell in a state too long.
package state
