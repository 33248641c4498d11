package flowstate

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/petrijr/flowstate/internal/manager"
	"github.com/petrijr/flowstate/internal/persistence"
	"github.com/petrijr/flowstate/pkg/state"
	"github.com/petrijr/flowstate/pkg/supervisor"
)

// SchedulerBundle wires together a durable StateManager and the timeout
// supervisor that sweeps it, sharing one SQLite database.
type SchedulerBundle struct {
	Manager    StateManager
	Supervisor *supervisor.Supervisor
}

// BundleConfig configures NewSQLiteBundle. Zero fields get defaults.
type BundleConfig struct {
	// TTLs governs per-state dwell time; required.
	TTLs TimeoutConfig
	// Workflows resolves running-timeout overrides; nil means none.
	Workflows WorkflowLookup
	// SweepInterval is how often the supervisor sweeps; default 1m.
	SweepInterval time.Duration
	// Handlers are extra output handlers beyond the timeout handler.
	Handlers []OutputHandler
	// Clock defaults to time.Now; inject a fake in tests.
	Clock Clock
	Logger *slog.Logger
}

// NewSQLiteBundle constructs a durable manager plus a supervisor over
// the provided *sql.DB. Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:scheduler.db?_journal=WAL")
//	bundle, err := flowstate.NewSQLiteBundle(db, flowstate.BundleConfig{TTLs: ttls})
//	go bundle.Supervisor.Run(ctx)
func NewSQLiteBundle(db *sql.DB, cfg BundleConfig) (*SchedulerBundle, error) {
	store, err := persistence.NewSQLiteRunStateStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}

	mgr := manager.New(manager.Config{
		Store:    store,
		Events:   events,
		Handlers: cfg.Handlers,
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
	})

	timeouts := state.NewTimeoutHandler(cfg.TTLs, mgr, cfg.Workflows, cfg.Clock, cfg.Logger)
	mgr.AddOutputHandler(timeouts)

	return &SchedulerBundle{
		Manager:    mgr,
		Supervisor: supervisor.New(mgr, timeouts, cfg.SweepInterval, cfg.Logger),
	}, nil
}
