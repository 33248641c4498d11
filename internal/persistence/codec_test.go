package persistence

import (
	"reflect"
	"testing"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

var codecInstance = api.WorkflowInstance{WorkflowID: "reports.daily", Parameter: "2026-08-25"}

func TestRunStateRoundTrip(t *testing.T) {
	data := state.ZeroData().Builder().
		Trigger(api.BackfillTrigger("bf-1")).
		TriggerID("bf-1").
		TriggerParameters(api.TriggerParameters{Env: map[string]string{"K": "v"}}).
		ExecutionID("e1").
		ExecutionDescription(api.ExecutionDescription{Image: "img", Args: []string{"a", "b"}, Commit: "abc"}).
		RunnerID("rA").
		ResourceIDs([]string{"r1", "r2"}).
		RetryDelayMillis(60000).
		Tries(2).
		ConsecutiveFailures(1).
		RetryCost(1.1).
		Message(api.WarningMessage("w")).
		Build()
	r := state.Create(codecInstance, state.StateQueued, data, time.UnixMilli(12345), 7)

	blob, err := EncodeRunState(r)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeRunState(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, r) {
		t.Fatalf("round trip diverged:\n%+v\n%+v", decoded, r)
	}
}

func TestStateDataRoundTripKeepsAbsentOptionals(t *testing.T) {
	d := state.ZeroData()

	blob, err := EncodeStateData(d)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeStateData(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.ExecutionID != nil || decoded.RunnerID != nil ||
		decoded.RetryDelayMillis != nil || decoded.LastExit != nil ||
		decoded.Trigger != nil || decoded.ExecutionDescription != nil {
		t.Fatalf("absent optionals must stay absent: %+v", decoded)
	}
}

func TestStateDataRoundTripKeepsPresentZeroes(t *testing.T) {
	zero := 0
	d := state.ZeroData().Builder().
		LastExit(&zero).
		RetryDelayMillis(0).
		Build()

	blob, err := EncodeStateData(d)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeStateData(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.LastExit == nil || *decoded.LastExit != 0 {
		t.Fatalf("present zero exit code must survive, got %v", decoded.LastExit)
	}
	if decoded.RetryDelayMillis == nil || *decoded.RetryDelayMillis != 0 {
		t.Fatalf("present zero delay must survive, got %v", decoded.RetryDelayMillis)
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []api.Event{
		api.TriggerExecution(codecInstance, api.NaturalTrigger(), api.TriggerParameters{Env: map[string]string{"A": "1"}}),
		api.Dequeue(codecInstance, []string{"r1"}),
		api.Submit(codecInstance, api.ExecutionDescription{Image: "img"}, "e1"),
		api.Terminate(codecInstance, nil),
		api.TerminateWithCode(codecInstance, 0),
		api.RunError(codecInstance, "boom"),
		api.RetryAfter(codecInstance, 500),
	}

	for _, ev := range events {
		blob, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", ev.Type, err)
		}
		decoded, err := DecodeEvent(blob)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", ev.Type, err)
		}
		if !reflect.DeepEqual(decoded, ev) {
			t.Fatalf("%s: round trip diverged:\n%+v\n%+v", ev.Type, decoded, ev)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeRunState([]byte("not json")); err == nil {
		t.Fatalf("expected run state decode error")
	}
	if _, err := DecodeStateData([]byte("not json")); err == nil {
		t.Fatalf("expected state data decode error")
	}
	if _, err := DecodeEvent([]byte("not json")); err == nil {
		t.Fatalf("expected event decode error")
	}
}
