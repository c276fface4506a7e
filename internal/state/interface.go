package state

// RunStore handles run persistence.
type RunStore interface {
	CreateRun(r *Run) error
	UpdateRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
}

// EventStore handles orchestrator call persistence.
type EventStore interface {
	RecordEvent(e *Event) error
	ListEvents(runID string) ([]Event, error)
}

// Compile-time verification that DB implements all interfaces.
var (
	_ RunStore   = (*DB)(nil)
	_ EventStore = (*DB)(nil)
)
