package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// JSON payloads for stored values. StateData and Event use pointer
// fields for their optionals; JSON encodes a nil pointer as null and a
// pointer to zero as the zero value, so absent-vs-zero survives the
// round trip. Gob would not: it drops any field whose flattened value
// is zero, turning a recorded exit code 0 into an absent one.

type runStatePayload struct {
	WorkflowID string
	Parameter  string
	State      string
	Timestamp  int64
	Counter    int64
	Data       state.StateData
}

// EncodeRunState serializes a full run state snapshot.
func EncodeRunState(r state.RunState) ([]byte, error) {
	payload := runStatePayload{
		WorkflowID: string(r.Instance.WorkflowID),
		Parameter:  r.Instance.Parameter,
		State:      string(r.State),
		Timestamp:  r.Timestamp,
		Counter:    r.Counter,
		Data:       r.Data,
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode run state: %w", err)
	}
	return out, nil
}

// DecodeRunState is the inverse of EncodeRunState.
func DecodeRunState(data []byte) (state.RunState, error) {
	var payload runStatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return state.RunState{}, fmt.Errorf("decode run state: %w", err)
	}
	wi := api.WorkflowInstance{
		WorkflowID: api.WorkflowID(payload.WorkflowID),
		Parameter:  payload.Parameter,
	}
	return state.Create(wi, state.State(payload.State), payload.Data,
		time.UnixMilli(payload.Timestamp), payload.Counter), nil
}

// EncodeStateData serializes just the bookkeeping record; used where the
// run-state fields live in their own columns.
func EncodeStateData(d state.StateData) ([]byte, error) {
	out, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode state data: %w", err)
	}
	return out, nil
}

// DecodeStateData is the inverse of EncodeStateData.
func DecodeStateData(data []byte) (state.StateData, error) {
	var d state.StateData
	if err := json.Unmarshal(data, &d); err != nil {
		return state.StateData{}, fmt.Errorf("decode state data: %w", err)
	}
	return d, nil
}

// EncodeEvent serializes an event for the event log.
func EncodeEvent(ev api.Event) ([]byte, error) {
	out, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return out, nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(data []byte) (api.Event, error) {
	var ev api.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return api.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
