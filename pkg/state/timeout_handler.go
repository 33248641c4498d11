package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
)

// WorkflowLookup resolves a workflow definition by ID. It returns false
// when the workflow is unknown, in which case only the TTL table applies.
type WorkflowLookup func(api.WorkflowID) (*api.Workflow, bool)

// TimeoutHandler is the one in-core output handler: it watches how long
// each instance has dwelt in its state and posts a timeout event once
// the state's TTL is exceeded. The post carries the observed counter, so
// the state manager drops it if the instance has since moved on.
type TimeoutHandler struct {
	ttls      TimeoutConfig
	clock     Clock
	receiver  EventReceiver
	workflows WorkflowLookup
	logger    *slog.Logger
}

// NewTimeoutHandler creates a TimeoutHandler. A nil clock defaults to
// time.Now, a nil logger to slog.Default, and a nil lookup to one that
// knows no workflows.
func NewTimeoutHandler(ttls TimeoutConfig, receiver EventReceiver, workflows WorkflowLookup, clock Clock, logger *slog.Logger) *TimeoutHandler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if workflows == nil {
		workflows = func(api.WorkflowID) (*api.Workflow, bool) { return nil, false }
	}
	return &TimeoutHandler{
		ttls:      ttls,
		clock:     clock,
		receiver:  receiver,
		workflows: workflows,
		logger:    logger,
	}
}

var _ OutputHandler = (*TimeoutHandler)(nil)

func (h *TimeoutHandler) TransitionInto(r RunState) {
	if r.State.Terminal() {
		return
	}
	wf, _ := h.workflows(r.Instance.WorkflowID)
	ttl := h.ttls.TTLOf(r.State, wf)
	if !HasTimedOut(r, h.clock(), ttl) {
		return
	}

	h.logger.Info("issuing timeout for stale state",
		slog.String("workflow", string(r.Instance.WorkflowID)),
		slog.String("parameter", r.Instance.Parameter),
		slog.String("state", string(r.State)),
		slog.Time("since", time.UnixMilli(r.Timestamp)),
	)
	err := h.receiver.ReceiveIgnoreClosed(context.Background(), api.Timeout(r.Instance), r.Counter)
	if err != nil {
		h.logger.Error("failed to post timeout",
			slog.String("instance", r.Instance.String()),
			slog.Any("error", err),
		)
	}
}
