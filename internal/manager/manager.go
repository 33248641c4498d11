// Package manager hosts run states: it applies events through the
// transducer one at a time per instance, persists every successor value,
// and fans it out to the registered output handlers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/flowstate/internal/persistence"
	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// ErrAlreadyActive is returned by Trigger when the instance already has
// a non-terminal run state.
var ErrAlreadyActive = errors.New("workflow instance is already active")

// Config describes how to construct a Manager. Zero fields get
// defaults: an in-memory store, a discarding event store, time.Now, and
// slog.Default.
type Config struct {
	Store    persistence.RunStateStore
	Events   persistence.EventStore
	Handlers []state.OutputHandler
	Clock    state.Clock
	Logger   *slog.Logger
}

// Manager is the hosting state manager. It guarantees a single writer
// per instance (per-instance mutexes), so events for one instance are
// observed in a total order witnessed by the counter; no ordering holds
// across instances.
type Manager struct {
	store  persistence.RunStateStore
	events persistence.EventStore
	clock  state.Clock
	logger *slog.Logger

	handlerMu sync.RWMutex
	handler   state.OutputHandler

	mu    sync.Mutex
	locks map[string]*instanceLock
}

// instanceLock serializes transitions for one instance. Entries are
// refcounted so the lock map stays bounded by in-flight operations
// instead of growing with every instance ever seen.
type instanceLock struct {
	mu   sync.Mutex
	refs int
}

var _ state.StateManager = (*Manager)(nil)

// New creates a Manager from the given configuration.
func New(cfg Config) *Manager {
	store := cfg.Store
	if store == nil {
		store = persistence.NewInMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		events:  events,
		clock:   clock,
		logger:  logger,
		handler: state.FanOutput(cfg.Handlers...),
		locks:   make(map[string]*instanceLock),
	}
}

// AddOutputHandler registers an additional output handler. Intended for
// wiring before events start flowing; safe to call at any time.
func (m *Manager) AddOutputHandler(h state.OutputHandler) {
	if h == nil {
		return
	}
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handler = state.FanOutput(m.handler, h)
}

func (m *Manager) lockInstance(wi api.WorkflowInstance) *instanceLock {
	key := wi.Key()
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &instanceLock{}
		m.locks[key] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockInstance releases the lock and drops the map entry once no
// other operation holds a reference. Anyone arriving later creates a
// fresh entry, which is safe because a reference is always taken
// before the mutex is acquired.
func (m *Manager) unlockInstance(wi api.WorkflowInstance, lock *instanceLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, wi.Key())
	}
	m.mu.Unlock()
}

// Trigger creates a fresh instance and applies triggerExecution in one
// step. It fails with ErrAlreadyActive if a non-terminal run state
// exists for the instance; a closed instance is recreated.
func (m *Manager) Trigger(ctx context.Context, wi api.WorkflowInstance, t api.Trigger, params api.TriggerParameters) (state.RunState, error) {
	next, err := m.triggerLocked(ctx, wi, t, params)
	if err != nil {
		return state.RunState{}, err
	}
	m.fanOut(next)
	return next, nil
}

func (m *Manager) triggerLocked(ctx context.Context, wi api.WorkflowInstance, t api.Trigger, params api.TriggerParameters) (state.RunState, error) {
	lock := m.lockInstance(wi)
	defer m.unlockInstance(wi, lock)

	current, err := m.store.Get(ctx, wi)
	switch {
	case err == nil && !current.State.Terminal():
		return state.RunState{}, fmt.Errorf("%w: %s in %s", ErrAlreadyActive, wi, current.State)
	case err != nil && !errors.Is(err, persistence.ErrInstanceNotFound):
		return state.RunState{}, err
	}

	fresh := state.Fresh(wi, m.clock)
	return m.apply(ctx, fresh, api.TriggerExecution(wi, t, params))
}

// Receive applies an event against the instance's current counter.
func (m *Manager) Receive(ctx context.Context, ev api.Event) (state.RunState, error) {
	return m.receive(ctx, ev, state.NoEventsProcessed-1)
}

// ReceiveExpecting applies an event only if the instance's counter still
// equals expectedCounter. Mismatches return a StaleEventError.
func (m *Manager) ReceiveExpecting(ctx context.Context, ev api.Event, expectedCounter int64) (state.RunState, error) {
	return m.receive(ctx, ev, expectedCounter)
}

// ReceiveIgnoreClosed posts an event guarded by an expected counter and
// swallows the outcomes that mean "the instance moved on": a stale
// counter, a missing instance, or an illegal transition out of a
// terminal state. Used by the timeout supervisor, which races with
// other event producers by design.
func (m *Manager) ReceiveIgnoreClosed(ctx context.Context, ev api.Event, expectedCounter int64) error {
	_, err := m.receive(ctx, ev, expectedCounter)
	if err == nil {
		return nil
	}
	var stale *state.StaleEventError
	if errors.As(err, &stale) {
		m.logger.Debug("dropping stale event", slog.String("event", ev.String()))
		return nil
	}
	if errors.Is(err, persistence.ErrInstanceNotFound) || errors.Is(err, state.ErrInstanceClosed) {
		m.logger.Debug("dropping event for closed instance", slog.String("event", ev.String()))
		return nil
	}
	return err
}

// receive is the single entry point for transitions. A sentinel below
// NoEventsProcessed means "no expectation". Handlers are invoked after
// the instance lock is released, so a handler may post follow-up events
// synchronously without deadlocking.
func (m *Manager) receive(ctx context.Context, ev api.Event, expectedCounter int64) (state.RunState, error) {
	next, err := m.receiveLocked(ctx, ev, expectedCounter)
	if err != nil {
		return state.RunState{}, err
	}
	m.fanOut(next)
	return next, nil
}

func (m *Manager) receiveLocked(ctx context.Context, ev api.Event, expectedCounter int64) (state.RunState, error) {
	lock := m.lockInstance(ev.Instance)
	defer m.unlockInstance(ev.Instance, lock)

	current, err := m.store.Get(ctx, ev.Instance)
	if err != nil {
		return state.RunState{}, err
	}

	if expectedCounter >= state.NoEventsProcessed && current.Counter != expectedCounter {
		return state.RunState{}, &state.StaleEventError{
			Instance: ev.Instance,
			Expected: expectedCounter,
			Actual:   current.Counter,
		}
	}

	if current.State.Terminal() {
		return state.RunState{}, fmt.Errorf("%w: %s in %s", state.ErrInstanceClosed, ev.Instance, current.State)
	}

	return m.apply(ctx, current, ev)
}

// apply transitions, persists, records the event, and fans out. Callers
// hold the instance lock.
func (m *Manager) apply(ctx context.Context, current state.RunState, ev api.Event) (state.RunState, error) {
	next, err := current.Transition(ev, m.clock)
	if err != nil {
		return state.RunState{}, err
	}

	if err := m.store.Save(ctx, next); err != nil {
		return state.RunState{}, fmt.Errorf("persist run state: %w", err)
	}
	rec := persistence.EventRecord{
		ID:              uuid.NewString(),
		Instance:        ev.Instance,
		Event:           ev,
		Counter:         next.Counter,
		TimestampMillis: next.Timestamp,
	}
	if err := m.events.Append(ctx, rec); err != nil {
		return state.RunState{}, fmt.Errorf("append event: %w", err)
	}

	if next.State.Terminal() {
		m.logger.Info("instance closed",
			slog.String("instance", next.Instance.String()),
			slog.String("state", string(next.State)),
		)
	}
	return next, nil
}

func (m *Manager) fanOut(r state.RunState) {
	m.handlerMu.RLock()
	handler := m.handler
	m.handlerMu.RUnlock()
	handler.TransitionInto(r)
}

// RunStateOf returns the current run state of an instance.
func (m *Manager) RunStateOf(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error) {
	return m.store.Get(ctx, wi)
}

// ListActive returns the run states of all non-terminal instances.
func (m *Manager) ListActive(ctx context.Context) ([]state.RunState, error) {
	all, err := m.store.List(ctx, persistence.Filter{})
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, r := range all {
		if !r.State.Terminal() {
			active = append(active, r)
		}
	}
	return active, nil
}

// Restore folds the instance's persisted event log into a RunState,
// replaying each event with its recorded timestamp. The result is
// bit-identical to the snapshot the log produced.
func (m *Manager) Restore(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error) {
	records, err := m.events.ListEvents(ctx, wi)
	if err != nil {
		return state.RunState{}, err
	}
	if len(records) == 0 {
		return state.RunState{}, fmt.Errorf("no events recorded for %s: %w", wi, persistence.ErrInstanceNotFound)
	}

	at := records[0].TimestampMillis
	r := state.Fresh(wi, func() time.Time { return time.UnixMilli(at) })
	for _, rec := range records {
		at = rec.TimestampMillis
		next, err := r.Transition(rec.Event, func() time.Time { return time.UnixMilli(at) })
		if err != nil {
			return state.RunState{}, fmt.Errorf("replay %s at counter %d: %w", rec.Event, rec.Counter, err)
		}
		r = next
	}
	return r, nil
}
