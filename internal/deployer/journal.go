package deployer

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/orlo-deployer/internal/logging"
	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
	"github.com/ShayCichocki/orlo-deployer/internal/state"
)

// JournalStore is the part of the state journal a Recorder writes to.
type JournalStore interface {
	state.RunStore
	state.EventStore
}

// Recorder writes one journal run per deployment and one event per
// orchestrator call. Journal failures are logged and never fail the
// deployment; after the first failed write the recorder stops writing.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	store JournalStore
	log   *zap.SugaredLogger
	now   func() time.Time

	run      *state.Run
	disabled bool
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store JournalStore, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = logging.Nop()
	}
	return &Recorder{store: store, log: log.Named("journal"), now: time.Now}
}

// RunID returns the id of the run being recorded, or "".
func (r *Recorder) RunID() string {
	if r == nil || r.run == nil {
		return ""
	}
	return r.run.ID
}

// Begin creates the run row.
func (r *Recorder) Begin(orchestratorURL string, rollback bool) {
	if r == nil || r.disabled {
		return
	}
	r.run = &state.Run{
		ID:              uuid.New().String(),
		Mode:            Standalone{}.Name(),
		OrchestratorURL: orchestratorURL,
		Rollback:        rollback,
		Status:          state.RunRunning,
		StartedAt:       r.now(),
	}
	if orchestratorURL != "" {
		r.run.Mode = Tracked{}.Name()
	}
	if err := r.store.CreateRun(r.run); err != nil {
		r.fail("create run", err)
		return
	}
	r.log.Debugw("run started", "run", r.run.ID)
}

// Observe records an orchestrator call against the current run. It is
// registered as an orlo.Observer.
func (r *Recorder) Observe(call orlo.Call) {
	if r == nil || r.disabled || r.run == nil {
		return
	}
	event := &state.Event{
		RunID:      r.run.ID,
		Method:     call.Method,
		Path:       call.Path,
		StatusCode: call.StatusCode,
		Duration:   call.Duration,
		CreatedAt:  r.now(),
	}
	if call.Err != nil {
		event.Error = call.Err.Error()
	}
	if err := r.store.RecordEvent(event); err != nil {
		r.fail("record event", err)
	}
}

// End marks the run finished with the resolved mode, the number of
// deployables processed and the run's error, if any.
func (r *Recorder) End(mode Mode, packages int, runErr error) {
	if r == nil || r.disabled || r.run == nil {
		return
	}
	finished := r.now()
	if mode != nil {
		r.run.Mode = mode.Name()
		r.run.ReleaseID = ReleaseID(mode).String()
	}
	r.run.Packages = packages
	r.run.FinishedAt = &finished
	r.run.Status = state.RunSucceeded
	if runErr != nil {
		r.run.Status = state.RunFailed
		r.run.Error = runErr.Error()
	}
	if err := r.store.UpdateRun(r.run); err != nil {
		r.fail("update run", err)
		return
	}
	r.log.Debugw("run finished", "run", r.run.ID, "status", r.run.Status)
}

func (r *Recorder) fail(op string, err error) {
	r.disabled = true
	r.log.Warnw("journal write failed, disabling journal", "op", op, "error", err)
}
