// Package flowstate provides the run-state core of a workflow
// scheduler: a per-instance state machine driven by discrete events,
// plus the hosting machinery that persists and supervises it.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. RunState
//  2. Event
//  3. StateManager
//  4. OutputHandler
//  5. TimeoutHandler and the Supervisor
//
// # RunState
//
// RunState is an immutable value describing where one workflow instance
// (a workflow ID plus a parameter) stands in its lifecycle, together
// with accumulated bookkeeping: tries, consecutive failures, retry
// cost, held resources, and the message log. Feeding it an event either
// derives the successor value or fails with an illegal-transition
// error. The transducer performs no I/O; clocks are injected, so replay
// of a recorded event sequence is deterministic.
//
// # StateManager
//
// The StateManager hosts run states. It serializes transitions per
// instance, persists every successor, appends each event to a replayable
// log, and fans the new state out to output handlers. The counter on
// each RunState is the optimistic-concurrency witness: posts guarded by
// a counter are dropped once the instance has moved on.
//
// Managers can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Redis
//
// # Timeouts
//
// A TimeoutConfig assigns each state a maximum dwell time, with a
// per-workflow override for RUNNING. The TimeoutHandler compares dwell
// time against the TTL and posts a timeout event guarded by the
// observed counter; the Supervisor sweeps all active instances through
// it periodically.
package flowstate
