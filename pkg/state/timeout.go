package state

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/flowstate/pkg/api"
)

// TimeoutConfig maps each state to the maximum time an instance may
// dwell in it before the timeout supervisor steps in. States without an
// explicit TTL fall back to the default.
type TimeoutConfig struct {
	ttls       map[State]time.Duration
	defaultTTL time.Duration
}

// NewTimeoutConfig builds a TimeoutConfig from a default TTL and
// per-state overrides. The map is copied.
func NewTimeoutConfig(defaultTTL time.Duration, ttls map[State]time.Duration) TimeoutConfig {
	copied := make(map[State]time.Duration, len(ttls))
	for s, ttl := range ttls {
		copied[s] = ttl
	}
	return TimeoutConfig{ttls: copied, defaultTTL: defaultTTL}
}

// TTLOf returns the TTL for the given state. For RUNNING, a workflow
// with a configured running timeout overrides the table.
func (c TimeoutConfig) TTLOf(s State, wf *api.Workflow) time.Duration {
	if s == StateRunning && wf != nil && wf.Configuration.RunningTimeout != nil {
		return *wf.Configuration.RunningTimeout
	}
	if ttl, ok := c.ttls[s]; ok {
		return ttl
	}
	return c.defaultTTL
}

// HasTimedOut reports whether r has dwelt in its state for at least ttl
// as of now.
func HasTimedOut(r RunState, now time.Time, ttl time.Duration) bool {
	deadline := time.UnixMilli(r.Timestamp).Add(ttl)
	return !now.Before(deadline)
}

type timeoutConfigFile struct {
	Default string            `yaml:"default"`
	TTLs    map[string]string `yaml:"ttls"`
}

// TimeoutConfigFromYAML parses a TimeoutConfig from YAML of the form:
//
//	default: 24h
//	ttls:
//	  RUNNING: 12h
//	  SUBMITTED: 10m
//
// Durations use Go syntax. Unknown state names are rejected.
func TimeoutConfigFromYAML(data []byte) (TimeoutConfig, error) {
	var file timeoutConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return TimeoutConfig{}, fmt.Errorf("parse timeout config: %w", err)
	}
	if file.Default == "" {
		return TimeoutConfig{}, fmt.Errorf("timeout config: default TTL is required")
	}
	defaultTTL, err := time.ParseDuration(file.Default)
	if err != nil {
		return TimeoutConfig{}, fmt.Errorf("timeout config: default TTL: %w", err)
	}

	known := make(map[State]bool, len(States()))
	for _, s := range States() {
		known[s] = true
	}

	ttls := make(map[State]time.Duration, len(file.TTLs))
	for name, raw := range file.TTLs {
		s := State(name)
		if !known[s] {
			return TimeoutConfig{}, fmt.Errorf("timeout config: unknown state %q", name)
		}
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return TimeoutConfig{}, fmt.Errorf("timeout config: state %s: %w", name, err)
		}
		ttls[s] = ttl
	}
	return TimeoutConfig{ttls: ttls, defaultTTL: defaultTTL}, nil
}
