package state

import "github.com/petrijr/flowstate/pkg/api"

// StateData is the accumulated bookkeeping of a workflow instance. It is
// treated as an immutable value: transitions never modify a StateData in
// place, they derive a new one through Builder.
//
// Pointer fields are true optionals; nil means the value was never set,
// which is distinct from a set zero. Stores must preserve that
// distinction when round-tripping.
type StateData struct {
	Trigger              *api.Trigger
	TriggerID            string
	TriggerParameters    api.TriggerParameters
	ExecutionID          *string
	ExecutionDescription *api.ExecutionDescription
	RunnerID             *string
	ResourceIDs          []string
	RetryDelayMillis     *int64
	Tries                int
	ConsecutiveFailures  int
	RetryCost            float64
	LastExit             *int
	Messages             []api.Message
}

// ZeroData is the initial StateData: all optionals absent, counters zero.
func ZeroData() StateData {
	return StateData{}
}

func (d StateData) clone() StateData {
	out := d
	if d.ResourceIDs != nil {
		out.ResourceIDs = append([]string(nil), d.ResourceIDs...)
	}
	if d.Messages != nil {
		out.Messages = append([]api.Message(nil), d.Messages...)
	}
	if d.TriggerParameters.Env != nil {
		env := make(map[string]string, len(d.TriggerParameters.Env))
		for k, v := range d.TriggerParameters.Env {
			env[k] = v
		}
		out.TriggerParameters.Env = env
	}
	return out
}

// Builder starts a derivation of this StateData. The receiver is deep
// copied first, so the builder never aliases the original's slices.
func (d StateData) Builder() *DataBuilder {
	return &DataBuilder{d: d.clone()}
}

// DataBuilder produces a derived StateData with selected fields replaced.
type DataBuilder struct {
	d StateData
}

func (b *DataBuilder) Trigger(t api.Trigger) *DataBuilder {
	b.d.Trigger = &t
	return b
}

func (b *DataBuilder) TriggerID(id string) *DataBuilder {
	b.d.TriggerID = id
	return b
}

func (b *DataBuilder) TriggerParameters(p api.TriggerParameters) *DataBuilder {
	b.d.TriggerParameters = p
	return b
}

func (b *DataBuilder) ExecutionID(id string) *DataBuilder {
	b.d.ExecutionID = &id
	return b
}

func (b *DataBuilder) ClearExecutionID() *DataBuilder {
	b.d.ExecutionID = nil
	return b
}

func (b *DataBuilder) ExecutionDescription(desc api.ExecutionDescription) *DataBuilder {
	b.d.ExecutionDescription = &desc
	return b
}

func (b *DataBuilder) ClearExecutionDescription() *DataBuilder {
	b.d.ExecutionDescription = nil
	return b
}

func (b *DataBuilder) RunnerID(id string) *DataBuilder {
	b.d.RunnerID = &id
	return b
}

func (b *DataBuilder) ResourceIDs(ids []string) *DataBuilder {
	b.d.ResourceIDs = append([]string(nil), ids...)
	return b
}

func (b *DataBuilder) ClearResourceIDs() *DataBuilder {
	b.d.ResourceIDs = nil
	return b
}

func (b *DataBuilder) RetryDelayMillis(millis int64) *DataBuilder {
	b.d.RetryDelayMillis = &millis
	return b
}

func (b *DataBuilder) ClearRetryDelay() *DataBuilder {
	b.d.RetryDelayMillis = nil
	return b
}

func (b *DataBuilder) Tries(n int) *DataBuilder {
	b.d.Tries = n
	return b
}

func (b *DataBuilder) ConsecutiveFailures(n int) *DataBuilder {
	b.d.ConsecutiveFailures = n
	return b
}

func (b *DataBuilder) RetryCost(cost float64) *DataBuilder {
	b.d.RetryCost = cost
	return b
}

func (b *DataBuilder) LastExit(exitCode *int) *DataBuilder {
	if exitCode == nil {
		b.d.LastExit = nil
		return b
	}
	code := *exitCode
	b.d.LastExit = &code
	return b
}

// Message appends a message record; the log is append-only.
func (b *DataBuilder) Message(m api.Message) *DataBuilder {
	b.d.Messages = append(b.d.Messages, m)
	return b
}

func (b *DataBuilder) Build() StateData {
	return b.d
}
