package store

import (
	"context"
	"fmt"
	"time"
)

// ReplaceHistory deletes all existing history rows for taskID and inserts
// entries, in one transaction. This is the only sanctioned mutation path for
// history: changelog replay is authoritative, so partial append is not
// supported (spec.md §4.2).
func (db *DB) ReplaceHistory(ctx context.Context, taskID int64, naturalID string, entries []StatusHistoryEntry) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: beginning history transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM task_history WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("store: deleting existing history for task %d: %w", taskID, err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_history (task_id, natural_id, status, status_display, start_date, end_date)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, taskID, naturalID, e.Status, e.StatusDisplay, e.StartDate, e.EndDate); err != nil {
			return fmt.Errorf("store: inserting history entry for task %d: %w", taskID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: committing history transaction: %w", err)
	}
	return nil
}

// CleanupDuplicateHistory removes rows that are exact duplicates on
// (task_id, status, start_date), keeping the oldest by id (insertion order).
// Implemented as a single statement using a window function so it runs in
// O(N) rows, per spec.md §4.2 and the dedup invariant in §8.2.
func (db *DB) CleanupDuplicateHistory(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, `
		WITH ranked AS (
			SELECT id,
			       row_number() OVER (
			           PARTITION BY task_id, status, start_date
			           ORDER BY id ASC
			       ) AS rn
			FROM task_history
		)
		DELETE FROM task_history
		WHERE id IN (SELECT id FROM ranked WHERE rn > 1)
	`)
	if err != nil {
		return 0, fmt.Errorf("store: deduplicating history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HistoryForTask returns the full history for one task, sorted by start
// date.
func (db *DB) HistoryForTask(ctx context.Context, taskID int64) ([]StatusHistoryEntry, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, task_id, natural_id, status, status_display, start_date, end_date
		FROM task_history
		WHERE task_id = $1
		ORDER BY start_date
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("store: querying history for task %d: %w", taskID, err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// HistoriesForKeys loads history for every task in keys with a single
// batched join, for the metrics engine's batching discipline (spec.md
// §4.5). The result map is keyed by the task's human key.
func (db *DB) HistoriesForKeys(ctx context.Context, keys []string) (map[string][]StatusHistoryEntry, error) {
	out := make(map[string][]StatusHistoryEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT t.key, h.id, h.task_id, h.natural_id, h.status, h.status_display, h.start_date, h.end_date
		FROM task_history h
		JOIN tasks t ON t.id = h.task_id
		WHERE t.key = ANY($1)
		ORDER BY t.key, h.start_date
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("store: batch-querying histories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var e StatusHistoryEntry
		if err := rows.Scan(&key, &e.ID, &e.TaskID, &e.NaturalID, &e.Status, &e.StatusDisplay, &e.StartDate, &e.EndDate); err != nil {
			return nil, fmt.Errorf("store: scanning batched history row: %w", err)
		}
		out[key] = append(out[key], e)
	}
	return out, rows.Err()
}

func scanHistoryRows(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]StatusHistoryEntry, error) {
	var out []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.NaturalID, &e.Status, &e.StatusDisplay, &e.StartDate, &e.EndDate); err != nil {
			return nil, fmt.Errorf("store: scanning history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TouchLastSyncAt updates the task's last_sync_at column, the final step of the
// per-task write sequence in spec.md §4.3.
func (db *DB) TouchLastSyncAt(ctx context.Context, taskID int64, when time.Time) error {
	_, err := db.pool.Exec(ctx, `UPDATE tasks SET last_sync_at = $1 WHERE id = $2`, when, taskID)
	if err != nil {
		return fmt.Errorf("store: updating last_sync_at for task %d: %w", taskID, err)
	}
	return nil
}
