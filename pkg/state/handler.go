package state

import (
	"context"
	"log/slog"
)

// OutputHandler receives every run state produced by a successful
// transition. Implementations should be fast and non-blocking; heavy
// work belongs on a goroutine so it does not delay event processing.
type OutputHandler interface {
	TransitionInto(r RunState)
}

// NoopHandler ignores all transitions.
type NoopHandler struct{}

func (NoopHandler) TransitionInto(RunState) {}

type compositeHandler struct {
	handlers []OutputHandler
}

// FanOutput combines handlers into one that forwards each transition to
// every non-nil handler in order.
func FanOutput(handlers ...OutputHandler) OutputHandler {
	filtered := make([]OutputHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return NoopHandler{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &compositeHandler{handlers: filtered}
}

func (c *compositeHandler) TransitionInto(r RunState) {
	for _, h := range c.handlers {
		h.TransitionInto(r)
	}
}

// LoggingHandler writes a structured log line for every transition.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a handler logging transitions with the given
// slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) TransitionInto(r RunState) {
	level := slog.LevelInfo
	switch r.State {
	case StateFailed:
		level = slog.LevelWarn
	case StateError:
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "transition",
		slog.String("workflow", string(r.Instance.WorkflowID)),
		slog.String("parameter", r.Instance.Parameter),
		slog.String("state", string(r.State)),
		slog.Int64("counter", r.Counter),
		slog.Int("tries", r.Data.Tries),
		slog.Int("consecutive_failures", r.Data.ConsecutiveFailures),
	)
}
