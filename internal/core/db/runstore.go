// internal/core/db/runstore.go
package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/duekeeper/duekeeper/internal/report"
	"github.com/duekeeper/duekeeper/internal/types"
)

/*
 * Run-history store.
 *
 * Persists the completeness summary of every reconciliation run for
 * audit: which entity was reported, how many records resolved, which
 * entity chains failed, how many report fields were missing. The engine
 * never reads this data back during a run; it exists for operators
 * answering "when did entity X last produce a clean report".
 */

// RunStatus values persisted with each run record.
const (
	RunStatusCompleted = "completed"
	RunStatusDegraded  = "degraded" // completed with failed entity chains
)

// RunRecord is one persisted run summary row.
type RunRecord struct {
	RunID             string    `db:"run_id"`
	Entity            string    `db:"entity"`
	Status            string    `db:"status"`
	TotalRecords      int       `db:"total_records"`
	UnresolvedRecords int       `db:"unresolved_records"`
	FailedEntities    int       `db:"failed_entities"`
	MissingFields     int       `db:"missing_fields"`
	StartedAt         time.Time `db:"started_at"`
	DurationMs        int64     `db:"duration_ms"`
}

// RunStore persists and queries run summaries.
type RunStore struct {
	queries *Queries
}

// NewRunStore creates a store over an open, migrated database.
func NewRunStore(db *sqlx.DB) (*RunStore, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &RunStore{queries: queries}, nil
}

// SaveRun persists one run summary.
func (s *RunStore) SaveRun(rec RunRecord) error {
	if _, err := types.ParseRunID(rec.RunID); err != nil {
		return fmt.Errorf("invalid run ID %q: %w", rec.RunID, err)
	}
	_, err := s.queries.Exec("insert-run",
		rec.RunID, rec.Entity, rec.Status,
		rec.TotalRecords, rec.UnresolvedRecords,
		rec.FailedEntities, rec.MissingFields,
		rec.StartedAt.UTC(), rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs for an entity, newest first.
func (s *RunStore) ListRuns(entity string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []RunRecord
	if err := s.queries.Select("list-runs", &out, entity, limit); err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", entity, err)
	}
	return out, nil
}

// PruneRuns deletes run summaries started before the cutoff and returns
// how many were removed. Backs the log_retention_days setting.
func (s *RunStore) PruneRuns(before time.Time) (int64, error) {
	res, err := s.queries.Exec("prune-runs", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs before %s: %w", before.UTC().Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}

// GetRun returns a single run summary by ID.
func (s *RunStore) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	if err := s.queries.Get("get-run", &rec, runID); err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// SummaryRecord builds a RunRecord from an assembled report summary.
func SummaryRecord(runID types.RunID, entity string, sum report.Summary, startedAt time.Time, duration time.Duration) RunRecord {
	status := RunStatusCompleted
	if len(sum.FailedEntities) > 0 {
		status = RunStatusDegraded
	}
	return RunRecord{
		RunID:             string(runID),
		Entity:            entity,
		Status:            status,
		TotalRecords:      sum.TotalRecords,
		UnresolvedRecords: sum.UnresolvedRecords,
		FailedEntities:    len(sum.FailedEntities),
		MissingFields:     len(sum.MissingFields),
		StartedAt:         startedAt,
		DurationMs:        duration.Milliseconds(),
	}
}
