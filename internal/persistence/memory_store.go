package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// InMemoryStore is a goroutine-safe RunStateStore and EventStore backed
// by maps. Non-durable; intended for tests and single-process setups.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]state.RunState
	events map[string][]EventRecord
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states: make(map[string]state.RunState),
		events: make(map[string][]EventRecord),
	}
}

var (
	_ RunStateStore = (*InMemoryStore)(nil)
	_ EventStore    = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) Save(ctx context.Context, r state.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[r.Instance.Key()] = r
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.states[wi.Key()]
	if !ok {
		return state.RunState{}, ErrInstanceNotFound
	}
	return r, nil
}

func (s *InMemoryStore) List(ctx context.Context, f Filter) ([]state.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []state.RunState
	for _, r := range s.states {
		if f.WorkflowID != "" && r.Instance.WorkflowID != f.WorkflowID {
			continue
		}
		if f.State != "" && r.State != f.State {
			continue
		}
		result = append(result, r)
	}
	// Map iteration order is random; keep listings stable.
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instance.Key() < result[j].Instance.Key()
	})
	return result, nil
}

func (s *InMemoryStore) Append(ctx context.Context, rec EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Instance.Key()
	s.events[key] = append(s.events[key], rec)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, wi api.WorkflowInstance) ([]EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.events[wi.Key()]
	out := append([]EventRecord(nil), records...)
	sort.Slice(out, func(i, j int) bool { return out[i].Counter < out[j].Counter })
	return out, nil
}
