// Package journal keeps the per-project history of push runs in SQLite.
// It is pure observability: a push never reads the journal to decide what
// to transfer, that stays with rsync.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pushbox/pushbox/internal/db"
	"github.com/pushbox/pushbox/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS push_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL, -- RFC3339
    duration_ms INTEGER NOT NULL,
    status TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    files_transferred INTEGER NOT NULL,
    files_total INTEGER NOT NULL,
    bytes_sent INTEGER NOT NULL,
    total_size INTEGER NOT NULL,
    command TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_push_runs_started_at ON push_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_push_runs_status ON push_runs(status);
`

// Status is the recorded outcome of one push run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDryRun    Status = "dry-run"
)

// Run is one journal entry: a single push attempt and its outcome.
type Run struct {
	ID               string
	StartedAt        time.Time
	Duration         time.Duration
	Status           Status
	ExitCode         int
	Source           string
	Target           string
	FilesTransferred int64
	FilesTotal       int64
	BytesSent        int64
	TotalSize        int64
	Command          string
}

// dbRun is the database shape, where times are stored as TEXT.
type dbRun struct {
	ID               string `db:"id"`
	StartedAt        string `db:"started_at"`
	DurationMs       int64  `db:"duration_ms"`
	Status           string `db:"status"`
	ExitCode         int    `db:"exit_code"`
	Source           string `db:"source"`
	Target           string `db:"target"`
	FilesTransferred int64  `db:"files_transferred"`
	FilesTotal       int64  `db:"files_total"`
	BytesSent        int64  `db:"bytes_sent"`
	TotalSize        int64  `db:"total_size"`
	Command          string `db:"command"`
}

func (d *dbRun) toRun() (*Run, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, d.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored timestamp for run %s: %w", d.ID, err)
	}
	return &Run{
		ID:               d.ID,
		StartedAt:        startedAt,
		Duration:         time.Duration(d.DurationMs) * time.Millisecond,
		Status:           Status(d.Status),
		ExitCode:         d.ExitCode,
		Source:           d.Source,
		Target:           d.Target,
		FilesTransferred: d.FilesTransferred,
		FilesTotal:       d.FilesTotal,
		BytesSent:        d.BytesSent,
		TotalSize:        d.TotalSize,
		Command:          d.Command,
	}, nil
}

// Journal manages the persistent run history using SQLite.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// NewJournal creates a Journal backed by an SQLite database at dbPath.
func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

// Open the journal and the underlying database.
func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	dbDir := filepath.Dir(j.dbPath)
	if err := utils.EnsureDir(dbDir); err != nil {
		return fmt.Errorf("failed to create journal directory %s: %w", dbDir, err)
	}

	database, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	j.db = database
	return nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	if err := j.db.Close(); err != nil {
		slog.Error("failed to close journal database", "error", err)
		return err
	}
	j.db = nil
	slog.Debug("journal closed")
	return nil
}

// Record inserts one run. An empty ID is assigned a fresh UUID.
func (j *Journal) Record(run *Run) error {
	if run == nil {
		return fmt.Errorf("cannot record nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	data := dbRun{
		ID:               run.ID,
		StartedAt:        run.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:       run.Duration.Milliseconds(),
		Status:           string(run.Status),
		ExitCode:         run.ExitCode,
		Source:           run.Source,
		Target:           run.Target,
		FilesTransferred: run.FilesTransferred,
		FilesTotal:       run.FilesTotal,
		BytesSent:        run.BytesSent,
		TotalSize:        run.TotalSize,
		Command:          run.Command,
	}

	query := `INSERT INTO push_runs (id, started_at, duration_ms, status, exit_code, source, target,
	                                 files_transferred, files_total, bytes_sent, total_size, command)
	          VALUES (:id, :started_at, :duration_ms, :status, :exit_code, :source, :target,
	                  :files_transferred, :files_total, :bytes_sent, :total_size, :command)`
	if _, err := j.db.NamedExec(query, data); err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	slog.Debug("journal record", "run", run.ID, "status", run.Status, "exit_code", run.ExitCode)
	return nil
}

// Get retrieves one run by ID. Returns nil when the run is unknown.
func (j *Journal) Get(id string) (*Run, error) {
	var data dbRun
	err := j.db.Get(&data, "SELECT * FROM push_runs WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return data.toRun()
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []dbRun
	err := j.db.Select(&rows, "SELECT * FROM push_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.toRun()
		if err != nil {
			slog.Error("skipping journal row", "run", row.ID, "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Last returns the most recent run, or nil when the journal is empty.
func (j *Journal) Last() (*Run, error) {
	runs, err := j.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// Count returns the number of recorded runs.
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM push_runs"); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
