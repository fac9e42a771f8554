package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertTask inserts or updates a task row keyed on natural_id. It reports
// whether the row was newly created, per spec.md §4.2's "reports whether the
// row was newly created" contract.
func (db *DB) UpsertTask(ctx context.Context, t *Task) (created bool, err error) {
	linksJSON, err := json.Marshal(decodeLinksOrEmpty(t.Links))
	if err != nil {
		return false, fmt.Errorf("store: marshaling links: %w", err)
	}
	t.Links = linksJSON
	t.LastSyncAt = time.Now().UTC()

	var existing Task
	lookup := db.gdb.WithContext(ctx).Where("natural_id = ?", t.NaturalID).Take(&existing)
	switch {
	case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
		created = true
	case lookup.Error != nil:
		return false, fmt.Errorf("store: checking existing task %s: %w", t.NaturalID, lookup.Error)
	}

	result := db.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "natural_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"key", "summary", "description", "status", "status_display",
			"author", "assignee", "team", "business_client", "product_team",
			"profit_forecast", "links", "updated_at", "last_sync_at",
		}),
	}).Create(t)
	if result.Error != nil {
		return false, fmt.Errorf("store: upserting task %s: %w", t.NaturalID, result.Error)
	}
	return created, nil
}

func decodeLinksOrEmpty(raw []byte) []Link {
	if len(raw) == 0 {
		return []Link{}
	}
	var links []Link
	if err := json.Unmarshal(raw, &links); err != nil {
		return []Link{}
	}
	return links
}

// TaskRow is the projection the metrics engine reads: a Task joined with
// nothing else, scoped to the fields a report needs.
type TaskRow struct {
	Key            string
	Summary        string
	Author         string
	Team           string
	NaturalID      string
	CreatedAt      time.Time
}

// TasksInPeriod returns tasks created in [start, end), for the metrics
// engine's scan scope. Anchor-date filtering for a specific metric (TTD vs
// TTM) happens after histories are loaded, since the anchor is a function of
// history, not of the task row alone.
func (db *DB) TasksInPeriod(ctx context.Context, start, end time.Time) ([]TaskRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT key, summary, author, team, natural_id, created_at
		FROM tasks
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: querying tasks in period: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.Key, &r.Summary, &r.Author, &r.Team, &r.NaturalID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning task row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TasksInQueue returns tasks whose key starts with queue+"-", for the
// status-time report, optionally filtered to those created on or after
// createdSince.
func (db *DB) TasksInQueue(ctx context.Context, queue string, createdSince *time.Time) ([]TaskRow, error) {
	query := `
		SELECT key, summary, author, team, natural_id, created_at
		FROM tasks
		WHERE key LIKE $1
	`
	args := []interface{}{queue + "-%"}
	if createdSince != nil {
		query += " AND created_at >= $2"
		args = append(args, *createdSince)
	}
	query += " ORDER BY key"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying tasks in queue: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.Key, &r.Summary, &r.Author, &r.Team, &r.NaturalID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning task row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllTasks returns every task row, for reports that scope to the whole
// tasks table rather than a creation-date window.
func (db *DB) AllTasks(ctx context.Context) ([]TaskRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT key, summary, author, team, natural_id, created_at
		FROM tasks
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("store: querying all tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.Key, &r.Summary, &r.Author, &r.Team, &r.NaturalID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning task row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TasksByKeyPrefix returns tasks whose key starts with prefix+"-", optionally
// filtered to those created on or after createdSince — used to enumerate
// hierarchy roots for the fullstack-subepic-returns report.
func (db *DB) TasksByKeyPrefix(ctx context.Context, prefix string, createdSince *time.Time) ([]TaskRow, error) {
	query := `
		SELECT key, summary, author, team, natural_id, created_at
		FROM tasks
		WHERE key LIKE $1
	`
	args := []interface{}{prefix + "-%"}
	if createdSince != nil {
		query += " AND created_at >= $2"
		args = append(args, *createdSince)
	}
	query += " ORDER BY key"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying tasks by key prefix: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var r TaskRow
		if err := rows.Scan(&r.Key, &r.Summary, &r.Author, &r.Team, &r.NaturalID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning task row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TaskIDByKey resolves a task's internal id from its human key, needed to
// scope history writes/queries to the right foreign key.
func (db *DB) TaskIDByKey(ctx context.Context, key string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `SELECT id FROM tasks WHERE key = $1`, key).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: resolving task id for %s: %w", key, err)
	}
	return id, nil
}
