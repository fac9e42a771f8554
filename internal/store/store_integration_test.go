//go:build integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testDB opens a store against TRACKER_TEST_DSN, skipping the test suite
// when it isn't set, mirroring the teacher's container-gated integration
// tests but against a pre-provisioned database (kept light on dependencies:
// see DESIGN.md for why this repo doesn't also pull in testcontainers-go).
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TRACKER_TEST_DSN")
	if dsn == "" {
		t.Skip("TRACKER_TEST_DSN not set, skipping integration test")
	}
	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestDedupInvariant(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.UpsertTask(ctx, &Task{NaturalID: "dedup-1", Key: "DEDUP-1", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	require.NoError(t, err)
	taskID, err := db.TaskIDByKey(ctx, "DEDUP-1")
	require.NoError(t, err)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []StatusHistoryEntry{
		{Status: "open", StartDate: start},
		{Status: "open", StartDate: start},
	}
	require.NoError(t, db.ReplaceHistory(ctx, taskID, "dedup-1", entries))

	affected, err := db.CleanupDuplicateHistory(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	remaining, err := db.HistoryForTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestHierarchyDownstreamBoundedRoundTrips(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUpsert := func(naturalID, key string, links []Link) int64 {
		linksJSON := []byte("[]")
		if len(links) > 0 {
			var err error
			linksJSON, err = json.Marshal(links)
			require.NoError(t, err)
		}
		_, err := db.UpsertTask(ctx, &Task{
			NaturalID: naturalID, Key: key, CreatedAt: time.Now(), UpdatedAt: time.Now(), Links: linksJSON,
		})
		require.NoError(t, err)
		id, err := db.TaskIDByKey(ctx, key)
		require.NoError(t, err)
		return id
	}

	mustUpsert("down-2", "DOWN-2", nil)
	mustUpsert("down-1", "DOWN-1", []Link{{TypeID: "subtask", Direction: "inward", TargetKey: "DOWN-2"}})
	mustUpsert("up-1", "UP-1", []Link{{TypeID: "subtask", Direction: "inward", TargetKey: "DOWN-1"}})

	keys, err := db.HierarchyDownstream(ctx, "UP-1", "DOWN", "subtask", "inward", DefaultMaxDepth)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"DOWN-1", "DOWN-2"}, keys)
}
