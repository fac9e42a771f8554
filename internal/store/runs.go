package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun creates a SyncRunLog row with status=running and returns its id.
func (db *DB) StartRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := db.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, started_at, status)
		VALUES ($1, $2, $3)
	`, id, time.Now().UTC(), RunRunning)
	if err != nil {
		return "", fmt.Errorf("store: starting run: %w", err)
	}
	return id, nil
}

// CompleteRun finalizes a run as completed with the given counters.
func (db *DB) CompleteRun(ctx context.Context, runID string, c RunCounters) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE sync_runs
		SET completed_at = $1, status = $2, tasks_processed = $3, tasks_created = $4,
		    tasks_updated = $5, history_entries_processed = $6, errors_count = $7
		WHERE id = $8
	`, time.Now().UTC(), RunCompleted, c.TasksProcessed, c.TasksCreated,
		c.TasksUpdated, c.HistoryEntriesProcessed, c.ErrorsCount, runID)
	if err != nil {
		return fmt.Errorf("store: completing run %s: %w", runID, err)
	}
	return nil
}

// FailRun finalizes a run as failed with the given reason and partial
// counters (the best-effort tally gathered before the run aborted).
func (db *DB) FailRun(ctx context.Context, runID string, reason string, c RunCounters) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE sync_runs
		SET completed_at = $1, status = $2, error_message = $3, tasks_processed = $4,
		    tasks_created = $5, tasks_updated = $6, history_entries_processed = $7, errors_count = $8
		WHERE id = $9
	`, time.Now().UTC(), RunFailed, reason, c.TasksProcessed, c.TasksCreated,
		c.TasksUpdated, c.HistoryEntriesProcessed, c.ErrorsCount, runID)
	if err != nil {
		return fmt.Errorf("store: failing run %s: %w", runID, err)
	}
	return nil
}

// SweepOrphanedRuns marks status=running rows older than maxAge as failed
// with error_message="orphaned". A crashed process otherwise leaves a
// permanently-dangling log row that reads as in-progress forever.
func (db *DB) SweepOrphanedRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	tag, err := db.pool.Exec(ctx, `
		UPDATE sync_runs
		SET status = $1, error_message = 'orphaned', completed_at = $2
		WHERE status = $3 AND started_at < $4
	`, RunFailed, time.Now().UTC(), RunRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: sweeping orphaned runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
