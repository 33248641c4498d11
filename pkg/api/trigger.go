package api

// TriggerType distinguishes what caused a workflow instance to run.
type TriggerType string

const (
	TriggerNatural  TriggerType = "natural"
	TriggerBackfill TriggerType = "backfill"
	TriggerAdhoc    TriggerType = "adhoc"
	TriggerUnknown  TriggerType = "unknown"
)

// Trigger is a tagged variant identifying the cause of a run. Natural
// triggers carry no ID of their own; the other variants carry the ID
// assigned when the trigger was issued.
type Trigger struct {
	Type TriggerType
	ID   string
}

// NaturalTrigger is a trigger fired by the workflow's own schedule.
func NaturalTrigger() Trigger {
	return Trigger{Type: TriggerNatural}
}

// BackfillTrigger is a trigger issued by a backfill with the given ID.
func BackfillTrigger(id string) Trigger {
	return Trigger{Type: TriggerBackfill, ID: id}
}

// AdhocTrigger is a trigger issued manually with the given ID.
func AdhocTrigger(id string) Trigger {
	return Trigger{Type: TriggerAdhoc, ID: id}
}

// UnknownTrigger represents a trigger whose origin was not recorded.
// It is mainly used when replaying legacy event logs.
func UnknownTrigger(id string) Trigger {
	return Trigger{Type: TriggerUnknown, ID: id}
}

// TriggerID returns the flat string form of the trigger, retained for
// backward compatibility with consumers that predate the tagged variant.
// Natural triggers flatten to "natural"; all others flatten to their ID.
func (t Trigger) TriggerID() string {
	if t.Type == TriggerNatural {
		return "natural"
	}
	return t.ID
}

// TriggerParameters is the opaque parameter bag supplied with a trigger.
type TriggerParameters struct {
	Env map[string]string
}
