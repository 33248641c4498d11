package flowstate

import (
	"time"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// RetryPolicy computes the delay a scheduler should attach to a
// retryAfter event, based on the instance's consecutive-failure streak.
// The streak resets on success and missing-dependency exits, so the
// backoff stays short for runs that are merely waiting on upstream data.
type RetryPolicy struct {
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// Multiplier grows the delay per additional consecutive failure.
	// Values <= 1 give a constant delay.
	Multiplier float64
	// MaxDelay caps the delay; <= 0 means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy doubles from one minute up to a day.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: time.Minute,
		Multiplier:   2.0,
		MaxDelay:     24 * time.Hour,
	}
}

// DelayFor returns the backoff delay for the given consecutive-failure
// count. Zero failures (success or missing deps) yield no delay.
func (p RetryPolicy) DelayFor(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	delay := p.InitialDelay
	multiplier := p.Multiplier
	if multiplier <= 1 {
		multiplier = 1
	}
	for i := 1; i < consecutiveFailures; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// RetryAfterEvent builds the retryAfter event for a terminated or failed
// run state, with the delay derived from its failure streak.
func (p RetryPolicy) RetryAfterEvent(r state.RunState) api.Event {
	delay := p.DelayFor(r.Data.ConsecutiveFailures)
	return api.RetryAfter(r.Instance, delay.Milliseconds())
}
