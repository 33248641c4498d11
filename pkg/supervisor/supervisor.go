// Package supervisor runs the periodic sweep that feeds every active
// run state through a set of output handlers. Its main tenant is the
// timeout handler, which needs to observe dwell time even when no new
// events arrive for an instance.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/flowstate/pkg/state"
)

// StateLister is the slice of the state manager the supervisor needs.
type StateLister interface {
	ListActive(ctx context.Context) ([]state.RunState, error)
}

// Supervisor periodically lists active run states and hands each
// snapshot to its handler. Snapshots are read without locks; handlers
// that post events back guard them with the snapshot's counter.
type Supervisor struct {
	manager  StateLister
	handler  state.OutputHandler
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Supervisor sweeping at the given interval. An interval
// of zero defaults to one minute; a nil logger to slog.Default.
func New(manager StateLister, handler state.OutputHandler, interval time.Duration, logger *slog.Logger) *Supervisor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = state.NoopHandler{}
	}
	return &Supervisor{
		manager:  manager,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is cancelled. It always returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce performs a single sweep and returns the number of run
// states handled.
func (s *Supervisor) SweepOnce(ctx context.Context) (int, error) {
	active, err := s.manager.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range active {
		s.handler.TransitionInto(r)
	}
	return len(active), nil
}
