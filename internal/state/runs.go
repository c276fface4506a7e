package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the outcome of a deployer run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one deployer invocation.
type Run struct {
	ID              string     `json:"id"`
	Mode            string     `json:"mode"`
	ReleaseID       string     `json:"release_id"`
	OrchestratorURL string     `json:"orchestrator_url"`
	Packages        int        `json:"packages"`
	Rollback        bool       `json:"rollback"`
	Status          RunStatus  `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	Error           string     `json:"error"`
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Event is one orchestrator call made during a run.
type Event struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Run CRUD operations

// CreateRun inserts a new run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, mode, release_id, orchestrator_url, packages, rollback, status, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Mode, r.ReleaseID, r.OrchestratorURL, r.Packages, r.Rollback, string(r.Status), formatTime(r.StartedAt), r.Error)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun updates the mutable fields of a run.
func (db *DB) UpdateRun(r *Run) error {
	var finishedAt *string
	if r.FinishedAt != nil {
		s := formatTime(*r.FinishedAt)
		finishedAt = &s
	}

	_, err := db.Exec(`
		UPDATE runs SET mode = ?, release_id = ?, packages = ?, status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`, r.Mode, r.ReleaseID, r.Packages, string(r.Status), finishedAt, r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, mode, release_id, orchestrator_url, packages, rollback, status, started_at, finished_at, error
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, mode, release_id, orchestrator_url, packages, rollback, status, started_at, finished_at, error
		FROM runs ORDER BY started_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var r Run
	var releaseID, url, errMsg, finishedAt sql.NullString
	var startedAt string
	if err := s.Scan(&r.ID, &r.Mode, &releaseID, &url, &r.Packages, &r.Rollback, &r.Status, &startedAt, &finishedAt, &errMsg); err != nil {
		return nil, err
	}
	r.ReleaseID = releaseID.String
	r.OrchestratorURL = url.String
	r.Error = errMsg.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// Event operations

// RecordEvent appends an orchestrator call to a run.
func (db *DB) RecordEvent(e *Event) error {
	var errMsg *string
	if e.Error != "" {
		errMsg = &e.Error
	}
	result, err := db.Exec(`
		INSERT INTO events (run_id, method, path, status_code, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Method, e.Path, e.StatusCode, e.Duration.Milliseconds(), errMsg, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListEvents returns the events of a run in the order they were made.
func (db *DB) ListEvents(runID string) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, run_id, method, path, status_code, duration_ms, error, created_at
		FROM events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var durationMS int64
		var errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Method, &e.Path, &e.StatusCode, &durationMS, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Error = errMsg.String
		e.CreatedAt, _ = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
