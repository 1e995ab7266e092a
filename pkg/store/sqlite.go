package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kpujjigit/productpulse/pkg/simulation"
)

// Store persists finished simulation runs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the database and prepares the schema. WAL mode keeps
// concurrent status reads cheap while a run is being recorded.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the runs table if it doesn't exist. Aggregate fields
// are columns for querying; the error histogram stays a JSON blob.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		session_count INTEGER NOT NULL,
		completed_sessions INTEGER NOT NULL,
		failed_sessions INTEGER NOT NULL,
		total_requests INTEGER NOT NULL,
		successful_requests INTEGER NOT NULL,
		failed_requests INTEGER NOT NULL,
		avg_response_time_ms REAL NOT NULL,
		error_counts JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	return nil
}

// RecordRun saves one finished run. It satisfies simulation.Recorder.
func (s *Store) RecordRun(ctx context.Context, run simulation.RunRecord) error {
	counts, err := json.Marshal(run.Statistics.ErrorCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal error counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at, ended_at, session_count,
			completed_sessions, failed_sessions,
			total_requests, successful_requests, failed_requests,
			avg_response_time_ms, error_counts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.EndedAt, run.SessionCount,
		run.Progress.Completed, run.Progress.Failed,
		run.Statistics.TotalRequests, run.Statistics.SuccessfulRequests, run.Statistics.FailedRequests,
		run.Statistics.AvgResponseTimeMs, string(counts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]simulation.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, ended_at, session_count,
		       completed_sessions, failed_sessions,
		       total_requests, successful_requests, failed_requests,
		       avg_response_time_ms, error_counts
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []simulation.RunRecord
	for rows.Next() {
		var run simulation.RunRecord
		var countsJSON string
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.EndedAt, &run.SessionCount,
			&run.Progress.Completed, &run.Progress.Failed,
			&run.Statistics.TotalRequests, &run.Statistics.SuccessfulRequests, &run.Statistics.FailedRequests,
			&run.Statistics.AvgResponseTimeMs, &countsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Progress.Total = run.SessionCount
		if err := json.Unmarshal([]byte(countsJSON), &run.Statistics.ErrorCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error counts: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
