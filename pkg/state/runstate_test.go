package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
)

var testInstance = api.WorkflowInstance{WorkflowID: "reports.daily", Parameter: "2026-08-25"}

func clockAt(millis int64) Clock {
	return func() time.Time { return time.UnixMilli(millis) }
}

// mustTransition applies ev and fails the test on an illegal transition.
func mustTransition(t *testing.T, r RunState, ev api.Event, clock Clock) RunState {
	t.Helper()
	next, err := r.Transition(ev, clock)
	if err != nil {
		t.Fatalf("Transition(%s) from %s failed: %v", ev.Type, r.State, err)
	}
	return next
}

func TestFreshStartsAtNewWithSentinelCounter(t *testing.T) {
	r := Fresh(testInstance, clockAt(1000))

	if r.State != StateNew {
		t.Fatalf("expected state NEW, got %s", r.State)
	}
	if r.Counter != NoEventsProcessed {
		t.Fatalf("expected counter %d, got %d", NoEventsProcessed, r.Counter)
	}
	if r.Timestamp != 1000 {
		t.Fatalf("expected timestamp 1000, got %d", r.Timestamp)
	}
	if !reflect.DeepEqual(r.Data, ZeroData()) {
		t.Fatalf("expected zero data, got %+v", r.Data)
	}
}

func TestHappyPathToDone(t *testing.T) {
	now := int64(1000)
	clock := func() time.Time { now += 10; return time.UnixMilli(now) }

	r := Fresh(testInstance, clock)
	r = mustTransition(t, r, api.TriggerExecution(testInstance, api.NaturalTrigger(), api.TriggerParameters{}), clock)
	if r.State != StateQueued {
		t.Fatalf("expected QUEUED, got %s", r.State)
	}
	if r.Data.TriggerID != "natural" {
		t.Fatalf("expected triggerId natural, got %q", r.Data.TriggerID)
	}

	r = mustTransition(t, r, api.Dequeue(testInstance, []string{"r1"}), clock)
	if r.State != StatePrepare {
		t.Fatalf("expected PREPARE, got %s", r.State)
	}
	if !reflect.DeepEqual(r.Data.ResourceIDs, []string{"r1"}) {
		t.Fatalf("expected resource hold r1, got %v", r.Data.ResourceIDs)
	}

	desc := api.ExecutionDescription{Image: "busybox:1.36", Args: []string{"true"}}
	r = mustTransition(t, r, api.Submit(testInstance, desc, "exec-1"), clock)
	if r.State != StateSubmitting {
		t.Fatalf("expected SUBMITTING, got %s", r.State)
	}

	r = mustTransition(t, r, api.Submitted(testInstance, "exec-1", "runner-A"), clock)
	if r.State != StateSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", r.State)
	}
	if r.Data.Tries != 1 {
		t.Fatalf("expected tries 1, got %d", r.Data.Tries)
	}
	if r.Data.RunnerID == nil || *r.Data.RunnerID != "runner-A" {
		t.Fatalf("expected runner-A, got %v", r.Data.RunnerID)
	}

	r = mustTransition(t, r, api.Started(testInstance), clock)
	if r.State != StateRunning {
		t.Fatalf("expected RUNNING, got %s", r.State)
	}

	r = mustTransition(t, r, api.TerminateWithCode(testInstance, SuccessExitCode), clock)
	if r.State != StateTerminated {
		t.Fatalf("expected TERMINATED, got %s", r.State)
	}

	r = mustTransition(t, r, api.Success(testInstance), clock)
	if r.State != StateDone {
		t.Fatalf("expected DONE, got %s", r.State)
	}
	if !r.State.Terminal() {
		t.Fatalf("expected DONE to be terminal")
	}

	if r.Counter != 6 {
		t.Fatalf("expected counter 6 after seven events from sentinel, got %d", r.Counter)
	}
	if r.Data.ConsecutiveFailures != 0 {
		t.Fatalf("expected zero consecutive failures, got %d", r.Data.ConsecutiveFailures)
	}
	if r.Data.RetryCost != 0.0 {
		t.Fatalf("expected retry cost 0.0, got %f", r.Data.RetryCost)
	}
	if r.Data.LastExit == nil || *r.Data.LastExit != 0 {
		t.Fatalf("expected last exit 0, got %v", r.Data.LastExit)
	}
	last := r.Data.Messages[len(r.Data.Messages)-1]
	if last.Level != api.MessageInfo || last.Line != "Exit code: 0" {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestMissingDepsThenRetryAfter(t *testing.T) {
	clock := clockAt(5000)

	r := queuedState(t, clock)
	r = mustTransition(t, r, api.Dequeue(testInstance, nil), clock)
	r = mustTransition(t, r, api.Submit(testInstance, api.ForImage("img"), "e1"), clock)
	r = mustTransition(t, r, api.Submitted(testInstance, "e1", "rA"), clock)
	r = mustTransition(t, r, api.Started(testInstance), clock)
	r = mustTransition(t, r, api.TerminateWithCode(testInstance, MissingDepsExitCode), clock)

	if r.Data.ConsecutiveFailures != 0 {
		t.Fatalf("missing deps must reset the streak, got %d", r.Data.ConsecutiveFailures)
	}
	if r.Data.RetryCost != 0.1 {
		t.Fatalf("expected retry cost 0.1, got %f", r.Data.RetryCost)
	}
	last := r.Data.Messages[len(r.Data.Messages)-1]
	if last.Level != api.MessageWarning || last.Line != "Exit code: 20" {
		t.Fatalf("unexpected message for missing deps: %+v", last)
	}

	r = mustTransition(t, r, api.RetryAfter(testInstance, 30000), clock)
	if r.State != StateQueued {
		t.Fatalf("expected QUEUED after retryAfter, got %s", r.State)
	}
	if r.Data.RetryDelayMillis == nil || *r.Data.RetryDelayMillis != 30000 {
		t.Fatalf("expected retry delay 30000, got %v", r.Data.RetryDelayMillis)
	}
	if r.Data.ExecutionID != nil {
		t.Fatalf("retryAfter must clear executionId, got %v", *r.Data.ExecutionID)
	}
	if r.Data.ExecutionDescription != nil {
		t.Fatalf("retryAfter must clear executionDescription")
	}
	if r.Data.ResourceIDs != nil {
		t.Fatalf("retryAfter must release resource holds, got %v", r.Data.ResourceIDs)
	}
}

func TestFailureStreakAccumulatesCostAndFailures(t *testing.T) {
	clock := clockAt(5000)
	r := queuedState(t, clock)

	cycle := func(r RunState) RunState {
		r = mustTransition(t, r, api.Dequeue(testInstance, nil), clock)
		r = mustTransition(t, r, api.Submit(testInstance, api.ForImage("img"), "e"), clock)
		r = mustTransition(t, r, api.Submitted(testInstance, "e", "rA"), clock)
		r = mustTransition(t, r, api.Started(testInstance), clock)
		r = mustTransition(t, r, api.TerminateWithCode(testInstance, UnknownErrorExitCode), clock)
		return mustTransition(t, r, api.RetryAfter(testInstance, 1000), clock)
	}

	r = cycle(r)
	r = cycle(r)

	if r.Data.ConsecutiveFailures != 2 {
		t.Fatalf("expected streak of 2, got %d", r.Data.ConsecutiveFailures)
	}
	if r.Data.RetryCost != 2.0 {
		t.Fatalf("expected retry cost 2.0, got %f", r.Data.RetryCost)
	}
	if r.Data.Tries != 2 {
		t.Fatalf("expected 2 tries, got %d", r.Data.Tries)
	}
}

func TestRunErrorMidFlight(t *testing.T) {
	clock := clockAt(5000)
	r := queuedState(t, clock)
	r = mustTransition(t, r, api.Dequeue(testInstance, nil), clock)
	r = mustTransition(t, r, api.Submit(testInstance, api.ForImage("img"), "e1"), clock)
	r = mustTransition(t, r, api.Submitted(testInstance, "e1", "rA"), clock)

	r = mustTransition(t, r, api.RunError(testInstance, "boom"), clock)
	if r.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", r.State)
	}
	if r.Data.ConsecutiveFailures != 1 {
		t.Fatalf("expected streak of 1, got %d", r.Data.ConsecutiveFailures)
	}
	if r.Data.RetryCost != 1.0 {
		t.Fatalf("expected retry cost 1.0, got %f", r.Data.RetryCost)
	}
	if r.Data.LastExit != nil {
		t.Fatalf("runError must clear lastExit, got %v", *r.Data.LastExit)
	}
	last := r.Data.Messages[len(r.Data.Messages)-1]
	if last.Level != api.MessageError || last.Line != "boom" {
		t.Fatalf("unexpected message: %+v", last)
	}
}

func TestTerminateExitCodeSemantics(t *testing.T) {
	code := func(c int) *int { return &c }

	tests := []struct {
		name         string
		exitCode     *int
		wantCost     float64
		wantFailures int
		wantLevel    api.MessageLevel
		wantLine     string
	}{
		{"success", code(0), 0.0, 0, api.MessageInfo, "Exit code: 0"},
		{"missing deps", code(20), 0.1, 0, api.MessageWarning, "Exit code: 20"},
		{"unrecoverable", code(50), 1.0, 3, api.MessageError, "Exit code: 50"},
		{"unknown error", code(1), 1.0, 3, api.MessageError, "Exit code: 1"},
		{"other", code(137), 1.0, 3, api.MessageError, "Exit code: 137"},
		{"absent", nil, 1.0, 3, api.MessageError, "Exit code: -"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockAt(5000)
			data := ZeroData().Builder().ConsecutiveFailures(2).RetryCost(1.5).Build()
			r := Create(testInstance, StateRunning, data, time.UnixMilli(4000), 4)

			next := mustTransition(t, r, api.Terminate(testInstance, tt.exitCode), clock)

			if next.State != StateTerminated {
				t.Fatalf("expected TERMINATED, got %s", next.State)
			}
			if want := 1.5 + tt.wantCost; next.Data.RetryCost != want {
				t.Fatalf("expected retry cost %f, got %f", want, next.Data.RetryCost)
			}
			if next.Data.ConsecutiveFailures != tt.wantFailures {
				t.Fatalf("expected %d consecutive failures, got %d", tt.wantFailures, next.Data.ConsecutiveFailures)
			}
			if tt.exitCode == nil {
				if next.Data.LastExit != nil {
					t.Fatalf("expected absent lastExit, got %v", *next.Data.LastExit)
				}
			} else if next.Data.LastExit == nil || *next.Data.LastExit != *tt.exitCode {
				t.Fatalf("expected lastExit %d, got %v", *tt.exitCode, next.Data.LastExit)
			}
			last := next.Data.Messages[len(next.Data.Messages)-1]
			if last.Level != tt.wantLevel || last.Line != tt.wantLine {
				t.Fatalf("expected message (%s, %q), got %+v", tt.wantLevel, tt.wantLine, last)
			}
		})
	}
}

func TestHaltClosesFromAnyNonTerminalState(t *testing.T) {
	clock := clockAt(5000)

	for _, s := range States() {
		if s.Terminal() {
			continue
		}
		r := Create(testInstance, s, ZeroData(), time.UnixMilli(4000), 3)
		next := mustTransition(t, r, api.Halt(testInstance), clock)
		if next.State != StateError {
			t.Fatalf("halt from %s: expected ERROR, got %s", s, next.State)
		}

		if _, err := next.Transition(api.Success(testInstance), clock); err == nil {
			t.Fatalf("success after halt from %s must be illegal", s)
		}
	}
}

func TestTimeoutFailsFromAnyNonTerminalState(t *testing.T) {
	clock := clockAt(5000)

	for _, s := range States() {
		if s.Terminal() {
			continue
		}
		r := Create(testInstance, s, ZeroData(), time.UnixMilli(4000), 3)
		next := mustTransition(t, r, api.Timeout(testInstance), clock)
		if next.State != StateFailed {
			t.Fatalf("timeout from %s: expected FAILED, got %s", s, next.State)
		}
	}
}

func TestTerminalStatesRejectEveryEvent(t *testing.T) {
	clock := clockAt(5000)
	events := []api.Event{
		api.TriggerExecution(testInstance, api.NaturalTrigger(), api.TriggerParameters{}),
		api.TimeTrigger(testInstance),
		api.Info(testInstance, api.InfoMessage("hello")),
		api.Dequeue(testInstance, nil),
		api.Submit(testInstance, api.ForImage("img"), "e"),
		api.Submitted(testInstance, "e", "r"),
		api.Created(testInstance, "e", "img"),
		api.Started(testInstance),
		api.TerminateWithCode(testInstance, 0),
		api.RunError(testInstance, "x"),
		api.Success(testInstance),
		api.RetryAfter(testInstance, 100),
		api.Retry(testInstance),
		api.Stop(testInstance),
		api.Timeout(testInstance),
		api.Halt(testInstance),
	}

	for _, s := range []State{StateDone, StateError} {
		r := Create(testInstance, s, ZeroData(), time.UnixMilli(4000), 9)
		for _, ev := range events {
			_, err := r.Transition(ev, clock)
			var illegal *IllegalTransitionError
			if !errors.As(err, &illegal) {
				t.Fatalf("%s from terminal %s: expected IllegalTransitionError, got %v", ev.Type, s, err)
			}
			if illegal.State != s || illegal.Event != ev.Type || illegal.Instance != testInstance {
				t.Fatalf("error carries wrong context: %+v", illegal)
			}
		}
	}
}

func TestIllegalTransitionsAreRejected(t *testing.T) {
	clock := clockAt(5000)
	tests := []struct {
		from State
		ev   api.Event
	}{
		{StateNew, api.Started(testInstance)},
		{StateNew, api.Success(testInstance)},
		{StateQueued, api.TriggerExecution(testInstance, api.NaturalTrigger(), api.TriggerParameters{})},
		{StateQueued, api.Started(testInstance)},
		{StateQueued, api.TerminateWithCode(testInstance, 0)},
		{StatePrepare, api.Dequeue(testInstance, nil)},
		{StatePrepare, api.Info(testInstance, api.InfoMessage("x"))},
		{StateSubmitting, api.Submit(testInstance, api.ForImage("img"), "e")},
		{StateSubmitted, api.Submitted(testInstance, "e", "r")},
		{StateRunning, api.Dequeue(testInstance, nil)},
		{StateRunning, api.Success(testInstance)},
		{StateTerminated, api.TerminateWithCode(testInstance, 0)},
		{StateFailed, api.Success(testInstance)},
	}

	for _, tt := range tests {
		r := Create(testInstance, tt.from, ZeroData(), time.UnixMilli(4000), 1)
		if _, err := r.Transition(tt.ev, clock); err == nil {
			t.Fatalf("%s from %s: expected illegal transition", tt.ev.Type, tt.from)
		}
	}
}

func TestCounterAndTimestampAdvanceOnEveryTransition(t *testing.T) {
	r := Fresh(testInstance, clockAt(1000))

	next := mustTransition(t, r,
		api.TriggerExecution(testInstance, api.AdhocTrigger("ad-hoc-1"), api.TriggerParameters{}), clockAt(2000))

	if next.Counter != r.Counter+1 {
		t.Fatalf("expected counter %d, got %d", r.Counter+1, next.Counter)
	}
	if next.Timestamp != 2000 {
		t.Fatalf("expected timestamp from the transition clock, got %d", next.Timestamp)
	}
	if next.Instance != r.Instance {
		t.Fatalf("instance identity must be preserved")
	}
	// The original value is untouched.
	if r.State != StateNew || r.Counter != NoEventsProcessed {
		t.Fatalf("transition mutated the original value: %+v", r)
	}
}

func TestInfoAppendsMessageAndStaysQueued(t *testing.T) {
	clock := clockAt(5000)
	r := queuedState(t, clock)

	next := mustTransition(t, r, api.Info(testInstance, api.InfoMessage("waiting for quota")), clock)
	if next.State != StateQueued {
		t.Fatalf("expected QUEUED, got %s", next.State)
	}
	if len(next.Data.Messages) != len(r.Data.Messages)+1 {
		t.Fatalf("expected one appended message")
	}
}

func TestSubmittedPrefersExecutionIDFromSubmit(t *testing.T) {
	clock := clockAt(5000)
	r := queuedState(t, clock)
	r = mustTransition(t, r, api.Submit(testInstance, api.ForImage("img"), "exec-submit"), clock)

	next := mustTransition(t, r, api.Submitted(testInstance, "exec-runner", "rA"), clock)
	if next.Data.ExecutionID == nil || *next.Data.ExecutionID != "exec-submit" {
		t.Fatalf("expected submit-time execution ID to win, got %v", next.Data.ExecutionID)
	}
}

func TestLegacyTimeTrigger(t *testing.T) {
	clock := clockAt(5000)
	r := Fresh(testInstance, clock)

	next := mustTransition(t, r, api.TimeTrigger(testInstance), clock)
	if next.State != StateSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", next.State)
	}
	if next.Data.Trigger == nil || next.Data.Trigger.Type != api.TriggerUnknown {
		t.Fatalf("expected unknown trigger, got %+v", next.Data.Trigger)
	}
	if next.Data.TriggerID != "UNKNOWN" {
		t.Fatalf("expected triggerId UNKNOWN, got %q", next.Data.TriggerID)
	}
}

func TestLegacyCreated(t *testing.T) {
	clock := clockAt(5000)
	r := queuedState(t, clock)

	next := mustTransition(t, r, api.Created(testInstance, "e-legacy", "busybox:1"), clock)
	if next.State != StateSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", next.State)
	}
	if next.Data.Tries != 1 {
		t.Fatalf("expected tries 1, got %d", next.Data.Tries)
	}
	if next.Data.ExecutionDescription == nil || next.Data.ExecutionDescription.Image != "busybox:1" {
		t.Fatalf("expected forImage description, got %+v", next.Data.ExecutionDescription)
	}
}

// Legacy retry keeps executionId and resourceIds in place, unlike
// retryAfter. Historical logs depend on this asymmetry.
func TestLegacyRetryKeepsExecutionData(t *testing.T) {
	clock := clockAt(5000)
	data := ZeroData().Builder().
		ExecutionID("e1").
		ResourceIDs([]string{"r1"}).
		Build()
	r := Create(testInstance, StateFailed, data, time.UnixMilli(4000), 5)

	next := mustTransition(t, r, api.Retry(testInstance), clock)
	if next.State != StatePrepare {
		t.Fatalf("expected PREPARE, got %s", next.State)
	}
	if next.Data.ExecutionID == nil || *next.Data.ExecutionID != "e1" {
		t.Fatalf("legacy retry must keep executionId")
	}
	if !reflect.DeepEqual(next.Data.ResourceIDs, []string{"r1"}) {
		t.Fatalf("legacy retry must keep resourceIds")
	}
}

func TestStopClosesAsError(t *testing.T) {
	clock := clockAt(5000)
	for _, s := range []State{StateTerminated, StateFailed} {
		r := Create(testInstance, s, ZeroData(), time.UnixMilli(4000), 2)
		next := mustTransition(t, r, api.Stop(testInstance), clock)
		if next.State != StateError {
			t.Fatalf("stop from %s: expected ERROR, got %s", s, next.State)
		}
	}
}

func TestDeterministicReplay(t *testing.T) {
	events := []api.Event{
		api.TriggerExecution(testInstance, api.BackfillTrigger("bf-7"), api.TriggerParameters{Env: map[string]string{"K": "v"}}),
		api.Dequeue(testInstance, []string{"q1", "q2"}),
		api.Submit(testInstance, api.ExecutionDescription{Image: "img", Args: []string{"a"}}, "e1"),
		api.Submitted(testInstance, "e1", "rA"),
		api.Started(testInstance),
		api.TerminateWithCode(testInstance, 1),
		api.RetryAfter(testInstance, 60000),
	}
	clocks := []int64{100, 200, 300, 400, 500, 600, 700}

	run := func() RunState {
		r := Fresh(testInstance, clockAt(50))
		for i, ev := range events {
			r = mustTransition(t, r, ev, clockAt(clocks[i]))
		}
		return r
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replay diverged:\n%+v\n%+v", first, second)
	}
}

func TestCreateRoundTripsAllFields(t *testing.T) {
	data := ZeroData().Builder().
		Trigger(api.AdhocTrigger("a1")).
		TriggerID("a1").
		ExecutionID("e1").
		Tries(3).
		RetryCost(2.1).
		Message(api.ErrorMessage("x")).
		Build()

	r := Create(testInstance, StateQueued, data, time.UnixMilli(12345), 7)

	if r.Instance != testInstance || r.State != StateQueued || r.Timestamp != 12345 || r.Counter != 7 {
		t.Fatalf("create lost fields: %+v", r)
	}
	if !reflect.DeepEqual(r.Data, data) {
		t.Fatalf("create lost data: %+v", r.Data)
	}
}

// queuedState returns a RunState in QUEUED with a natural trigger.
func queuedState(t *testing.T, clock Clock) RunState {
	t.Helper()
	r := Fresh(testInstance, clock)
	return mustTransition(t, r, api.TriggerExecution(testInstance, api.NaturalTrigger(), api.TriggerParameters{}), clock)
}
