// Package runlog records training runs and their epochs
// in a SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    start_epoch INTEGER NOT NULL,
    config_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS epochs (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    epoch INTEGER NOT NULL,
    loss REAL NOT NULL,
    learning_rate REAL NOT NULL,
    encoder_path TEXT NOT NULL,
    decoder_path TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    finished_at TEXT NOT NULL,
    PRIMARY KEY (run_id, epoch)
);
`

// A Run is one invocation of the trainer.
type Run struct {
	ID         string
	StartedAt  time.Time
	StartEpoch int
	ConfigJSON string
}

// An Epoch is a completed training epoch.
type Epoch struct {
	RunID        string
	Epoch        int
	Loss         float64
	LearningRate float64
	EncoderPath  string
	DecoderPath  string
	Duration     time.Duration
	FinishedAt   time.Time
}

// Log is a handle to a run history database.
type Log struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Log{db: db, path: path}, nil
}

// Path returns the database file path.
func (l *Log) Path() string {
	return l.path
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// StartRun records a new run and returns its id.
//
// The config is stored as JSON.
func (l *Log) StartRun(ctx context.Context, startEpoch int, config interface{}) (string, error) {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	id := uuid.NewString()
	_, err = l.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, started_at, start_epoch, config_json) VALUES (?, ?, ?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339Nano),
		startEpoch,
		string(configJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordEpoch stores a completed epoch.
// Recording the same epoch of a run twice replaces the
// first record.
func (l *Log) RecordEpoch(ctx context.Context, e *Epoch) error {
	finished := e.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := l.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO epochs (
            run_id, epoch, loss, learning_rate, encoder_path, decoder_path,
            duration_ms, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID,
		e.Epoch,
		e.Loss,
		e.LearningRate,
		e.EncoderPath,
		e.DecoderPath,
		e.Duration.Milliseconds(),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert epoch: %w", err)
	}
	return nil
}

// Runs lists all runs, most recent first.
func (l *Log) Runs(ctx context.Context) ([]*Run, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT id, started_at, start_epoch, config_json FROM runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var res []*Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.StartEpoch, &r.ConfigJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		res = append(res, &r)
	}
	return res, rows.Err()
}

// Epochs lists the epochs of a run in order.
func (l *Log) Epochs(ctx context.Context, runID string) ([]*Epoch, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT run_id, epoch, loss, learning_rate, encoder_path, decoder_path,
            duration_ms, finished_at
        FROM epochs WHERE run_id = ? ORDER BY epoch`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query epochs: %w", err)
	}
	defer rows.Close()

	var res []*Epoch
	for rows.Next() {
		var e Epoch
		var durationMS int64
		var finished string
		err := rows.Scan(&e.RunID, &e.Epoch, &e.Loss, &e.LearningRate, &e.EncoderPath,
			&e.DecoderPath, &durationMS, &finished)
		if err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.FinishedAt = parseTime(finished)
		res = append(res, &e)
	}
	return res, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
