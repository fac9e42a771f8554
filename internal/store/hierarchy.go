package store

import (
	"context"
	"fmt"
)

// DefaultMaxDepth bounds the recursive walk so cycles in the link graph
// cannot cause non-termination (spec.md §4.6).
const DefaultMaxDepth = 10

// HierarchyDownstream returns the transitive closure of tasks reachable from
// rootKey by following links of linkTypeID in direction, constrained to keys
// with the given queue prefix. The root is included if it matches the
// prefix. Implemented as one recursive SQL walk over the links jsonb column
// so the round-trip count stays O(1) in the number of downstream tasks —
// the naive "load all candidates, filter in the client" shape is explicitly
// the defect this design replaces.
func (db *DB) HierarchyDownstream(ctx context.Context, rootKey, queuePrefix, linkTypeID, direction string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	rows, err := db.pool.Query(ctx, `
		WITH RECURSIVE walk(key, depth) AS (
			SELECT $1::text, 0
			UNION ALL
			SELECT link.target_key, walk.depth + 1
			FROM walk
			JOIN tasks t ON t.key = walk.key
			CROSS JOIN LATERAL jsonb_to_recordset(COALESCE(t.links, '[]')) AS link(type_id text, direction text, target_key text)
			WHERE link.type_id = $2
			  AND link.direction = $3
			  AND walk.depth < $4
		)
		SELECT DISTINCT key FROM walk WHERE key LIKE $5
	`, rootKey, linkTypeID, direction, maxDepth, queuePrefix+"-%")
	if err != nil {
		return nil, fmt.Errorf("store: walking hierarchy from %s: %w", rootKey, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("store: scanning hierarchy row: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// HierarchyDownstreamBatch resolves the downstream closure for every root in
// rootKeys in a single CTE invocation, for callers that need cross-root
// batching (spec.md §4.6 notes the resolver has no caching layer; callers
// needing reuse across roots should batch). Returns a map keyed by root.
func (db *DB) HierarchyDownstreamBatch(ctx context.Context, rootKeys []string, queuePrefix, linkTypeID, direction string, maxDepth int) (map[string][]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	out := make(map[string][]string, len(rootKeys))
	if len(rootKeys) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx, `
		WITH RECURSIVE walk(root, key, depth) AS (
			SELECT r, r, 0
			FROM unnest($1::text[]) AS r
			UNION ALL
			SELECT walk.root, link.target_key, walk.depth + 1
			FROM walk
			JOIN tasks t ON t.key = walk.key
			CROSS JOIN LATERAL jsonb_to_recordset(COALESCE(t.links, '[]')) AS link(type_id text, direction text, target_key text)
			WHERE link.type_id = $2
			  AND link.direction = $3
			  AND walk.depth < $4
		)
		SELECT DISTINCT root, key FROM walk WHERE key LIKE $5
	`, rootKeys, linkTypeID, direction, maxDepth, queuePrefix+"-%")
	if err != nil {
		return nil, fmt.Errorf("store: batch-walking hierarchy: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var root, key string
		if err := rows.Scan(&root, &key); err != nil {
			return nil, fmt.Errorf("store: scanning batched hierarchy row: %w", err)
		}
		out[root] = append(out[root], key)
	}
	return out, rows.Err()
}
