// Package history turns a task's changelog into the non-overlapping status
// intervals stored in task_history. The transformation is pure: given the
// same changelog and creation metadata, it always produces the same set of
// intervals (spec.md §4.4).
package history

import (
	"sort"
	"time"

	"github.com/evalgo/tracker-sync/internal/applog"
	"github.com/evalgo/tracker-sync/internal/store"
	"github.com/evalgo/tracker-sync/internal/trackerapi"
)

// Interval is one reconstructed status interval, before it is written to
// the store (no task_id/natural_id assigned yet).
type Interval struct {
	Status        string
	StatusDisplay string
	Start         time.Time
	End           *time.Time
}

// Result carries the reconstructed intervals plus a count of malformed
// events skipped along the way.
type Result struct {
	Intervals    []Interval
	SkippedCount int
}

// Reconstruct builds the interval sequence for one task from its changelog,
// per the rules in spec.md §4.4: events are visited in order, each status
// diff closes the open interval and opens a new one; the initial interval
// starts at createdAt with the first status (the first event's from_status,
// or currentStatus if there are no status-change events). Malformed events
// (missing timestamp or to_status) are skipped with a counter, not fatal.
func Reconstruct(events []trackerapi.ChangelogEvent, createdAt time.Time, currentStatus, currentStatusDisplay string) Result {
	sorted := make([]trackerapi.ChangelogEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var result Result
	initialStatus, initialDisplay := currentStatus, currentStatusDisplay
	for _, ev := range sorted {
		if diff, ok := ev.StatusDiff(); ok && diff.FromStatus != "" {
			initialStatus, initialDisplay = diff.FromStatus, diff.FromDisplay
			break
		}
	}

	open := Interval{Status: initialStatus, StatusDisplay: initialDisplay, Start: createdAt}

	for _, ev := range sorted {
		diff, ok := ev.StatusDiff()
		if !ok {
			continue
		}
		if ev.Timestamp.IsZero() || diff.ToStatus == "" {
			result.SkippedCount++
			applog.With(nil).WithField("event_time", ev.Timestamp).Warn("history: skipping malformed changelog event")
			continue
		}

		ts := ev.Timestamp
		closed := open
		closed.End = &ts
		result.Intervals = append(result.Intervals, closed)

		open = Interval{Status: diff.ToStatus, StatusDisplay: diff.ToDisplay, Start: ts}
	}

	result.Intervals = append(result.Intervals, open)
	return result
}

// ToStore converts reconstructed intervals into store.StatusHistoryEntry
// values ready for ReplaceHistory.
func ToStore(intervals []Interval) []store.StatusHistoryEntry {
	out := make([]store.StatusHistoryEntry, len(intervals))
	for i, iv := range intervals {
		out[i] = store.StatusHistoryEntry{
			Status:        iv.Status,
			StatusDisplay: iv.StatusDisplay,
			StartDate:     iv.Start,
			EndDate:       iv.End,
		}
	}
	return out
}
