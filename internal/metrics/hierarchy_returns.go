package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/store"
)

// HierarchyConfig names the link semantics the downstream walk follows,
// per spec.md §4.6.
type HierarchyConfig struct {
	QueuePrefix string
	LinkTypeID  string
	Direction   string
	MaxDepth    int
}

// HierarchyReturns computes testing_returns and external_test_returns for
// rootKey by walking its downstream closure in one recursive SQL round-trip
// and batch-loading all of those tasks' histories in one query — the
// O(1)-round-trips property required by spec.md §8.7.
func HierarchyReturns(ctx context.Context, db *store.DB, rootKey string, hc HierarchyConfig, mapping *config.StatusMapping, bounceWindow time.Duration, asOf *time.Time) (testingReturns, externalTestReturns int, err error) {
	downstream, err := db.HierarchyDownstream(ctx, rootKey, hc.QueuePrefix, hc.LinkTypeID, hc.Direction, hc.MaxDepth)
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: resolving hierarchy for %s: %w", rootKey, err)
	}
	if len(downstream) == 0 {
		return 0, 0, nil
	}

	histories, err := db.HistoriesForKeys(ctx, downstream)
	if err != nil {
		return 0, 0, fmt.Errorf("metrics: batch-loading hierarchy histories: %w", err)
	}

	cutoff := asOfOrNow(asOf)
	for _, hist := range histories {
		testingReturns += countTransitionsInto(hist, statusIs(mapping.TestingStatus), bounceWindow, cutoff)
		externalTestReturns += countTransitionsInto(hist, mapping.IsExternalTest, bounceWindow, cutoff)
	}
	return testingReturns, externalTestReturns, nil
}

// HierarchyReturnsBatch computes testing_returns and external_test_returns
// for every root in rootKeys using one batched hierarchy walk and one
// batched history load across the full union of downstream keys, satisfying
// the "one query per run, not per root" batching discipline of spec.md §4.5
// for the fullstack-subepic-returns report.
func HierarchyReturnsBatch(ctx context.Context, db *store.DB, rootKeys []string, hc HierarchyConfig, mapping *config.StatusMapping, bounceWindow time.Duration, asOf *time.Time) (map[string]struct{ TestingReturns, ExternalTestReturns int }, error) {
	result := make(map[string]struct{ TestingReturns, ExternalTestReturns int }, len(rootKeys))
	if len(rootKeys) == 0 {
		return result, nil
	}

	downstreamByRoot, err := db.HierarchyDownstreamBatch(ctx, rootKeys, hc.QueuePrefix, hc.LinkTypeID, hc.Direction, hc.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("metrics: batch-resolving hierarchy: %w", err)
	}

	union := map[string]struct{}{}
	for _, keys := range downstreamByRoot {
		for _, k := range keys {
			union[k] = struct{}{}
		}
	}
	allKeys := make([]string, 0, len(union))
	for k := range union {
		allKeys = append(allKeys, k)
	}

	histories, err := db.HistoriesForKeys(ctx, allKeys)
	if err != nil {
		return nil, fmt.Errorf("metrics: batch-loading hierarchy histories: %w", err)
	}

	cutoff := asOfOrNow(asOf)
	for _, root := range rootKeys {
		var agg struct{ TestingReturns, ExternalTestReturns int }
		for _, key := range downstreamByRoot[root] {
			hist := histories[key]
			agg.TestingReturns += countTransitionsInto(hist, statusIs(mapping.TestingStatus), bounceWindow, cutoff)
			agg.ExternalTestReturns += countTransitionsInto(hist, mapping.IsExternalTest, bounceWindow, cutoff)
		}
		result[root] = agg
	}
	return result, nil
}

// asOfOrNow mirrors Compute's own as-of default: when no as-of is given,
// fall back to the real wall clock, otherwise every bounce-filter decision
// below must use the same cutoff a fixed --as-of run promises to reproduce.
func asOfOrNow(asOf *time.Time) time.Time {
	if asOf != nil {
		return *asOf
	}
	return time.Now().UTC()
}

// countTransitionsInto counts the number of distinct intervals whose status
// matches, after the bounce filter removes accidental blips — each
// surviving interval represents one real transition into that status. The
// task's very first recorded status is excluded: a task created directly
// into the matched status never "transitioned into" it, it started there.
func countTransitionsInto(hist []store.StatusHistoryEntry, match func(string) bool, bounceWindow time.Duration, asOf time.Time) int {
	sorted := sortedByStart(hist)
	if len(sorted) == 0 {
		return 0
	}
	firstStart := sorted[0].StartDate

	filtered := FilterBounces(hist, bounceWindow, asOf)
	count := 0
	for _, e := range filtered {
		if e.StartDate.Equal(firstStart) {
			continue
		}
		if match(e.Status) {
			count++
		}
	}
	return count
}
