package metrics

import (
	"time"

	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/store"
)

// dayHours is the divisor used to express durations as whole days.
const dayHours = 24 * time.Hour

// toDays converts a duration to whole days, clamped to zero for negative
// results per spec.md §4.5.
func toDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / dayHours)
}

// openLastInterval reports whether hist's last (latest-starting) interval
// is open and matches statuses — used to decide whether an as-of cutoff
// should still produce a provisional metric when the task hasn't reached
// its target status yet.
func openLastInterval(hist []store.StatusHistoryEntry, statuses func(string) bool) bool {
	sorted := sortedByStart(hist)
	if len(sorted) == 0 {
		return false
	}
	last := sorted[len(sorted)-1]
	return last.EndDate == nil && statuses(last.Status)
}

// resolveAnchorEnd finds the end boundary for a metric whose target is
// "first entry into one of statuses," substituting asOf for an open
// interval found at that target, and — when the target was never reached —
// falling back to asOf if the task is presently sitting in a status
// matched by inProgress (e.g. still inside external-test when looking for
// the Tail metric's done-entry target).
func resolveAnchorEnd(hist []store.StatusHistoryEntry, target func(string) bool, inProgress func(string) bool, asOf *time.Time) (time.Time, bool) {
	entry := FirstEntryInto(hist, target)
	if entry.Found {
		return entry.ResolveEnd(asOf)
	}
	if asOf != nil && inProgress != nil && openLastInterval(hist, inProgress) {
		return *asOf, true
	}
	return time.Time{}, false
}

func statusIs(name string) func(string) bool {
	return func(s string) bool { return s == name }
}

// TaskMetrics is the full set of computed fields for one task, mirroring
// the ttm-details CSV column set in spec.md §6.
type TaskMetrics struct {
	Key                  string
	Summary              string
	Author               string
	Team                 string
	GroupKey             string
	QuarterTTD           string
	QuarterTTM           string
	TTD                  *int
	TTM                  *int
	DevLT                *int
	Tail                 *int
	Pause                *int
	TTDPause             *int
	DiscoveryBacklogDays int
	ReadyForDevDays      int
	TestingReturns       int
	ExternalTestReturns  int
}

// Inputs bundles the data Compute needs for one task.
type Inputs struct {
	Key           string
	Summary       string
	Author        string
	Team          string
	GroupBy       string // "author" or "team"
	CreatedAt     time.Time
	RawHistory    []store.StatusHistoryEntry
	Mapping       *config.StatusMapping
	Quarters      *config.QuarterSet
	AsOf          *time.Time
	BounceWindow  time.Duration
}

// Compute derives all per-task scalar metrics for one task from its raw
// (unfiltered) history, applying the bounce filter first per spec.md §4.5.
func Compute(in Inputs) TaskMetrics {
	asOfOrNow := time.Now().UTC()
	if in.AsOf != nil {
		asOfOrNow = *in.AsOf
	}
	hist := FilterBounces(in.RawHistory, in.BounceWindow, asOfOrNow)

	m := TaskMetrics{
		Key:     in.Key,
		Summary: in.Summary,
		Author:  in.Author,
		Team:    in.Team,
	}
	if in.GroupBy == "team" {
		m.GroupKey = in.Team
	} else {
		m.GroupKey = in.Author
	}

	readyForDev := statusIs(in.Mapping.ReadyForDevStatus)
	inWork := statusIs(in.Mapping.InWorkStatus)

	// TTD: created_at -> first entry into ready-for-dev.
	if end, ok := resolveAnchorEnd(hist, readyForDev, nil, in.AsOf); ok {
		d := end.Sub(in.CreatedAt) - PauseUpTo(hist, in.Mapping, end)
		days := toDays(d)
		m.TTD = &days
		m.QuarterTTD = quarterName(in.Quarters, end)

		pauseDays := toDays(PauseUpTo(hist, in.Mapping, end))
		m.TTDPause = &pauseDays
	}

	// TTM: created_at -> first entry into any done status.
	if end, ok := resolveAnchorEnd(hist, in.Mapping.IsDone, nil, in.AsOf); ok {
		d := end.Sub(in.CreatedAt) - PauseUpTo(hist, in.Mapping, end)
		days := toDays(d)
		m.TTM = &days
		m.QuarterTTM = quarterName(in.Quarters, end)

		pauseDays := toDays(PauseUpTo(hist, in.Mapping, end))
		m.Pause = &pauseDays
	} else if in.AsOf != nil {
		// Done was never reached, but the Pause anchor is first_done_or_as_of
		// (spec.md §4.5): with as_of given, Pause is still reportable even
		// though TTM itself is not.
		pauseDays := toDays(PauseUpTo(hist, in.Mapping, *in.AsOf))
		m.Pause = &pauseDays
	}

	// DevLT: first entry into in-work -> first entry into external-test.
	startAnchor := FirstEntryInto(hist, inWork)
	if startAnchor.Found {
		if end, ok := resolveAnchorEnd(hist, in.Mapping.IsExternalTest, nil, in.AsOf); ok {
			d := end.Sub(startAnchor.Time) - PauseUpTo(hist, in.Mapping, end)
			days := toDays(d)
			m.DevLT = &days
		}
	}

	// Tail: first exit from external-test -> first entry into done.
	tailStart := FirstExitFrom(hist, in.Mapping.IsExternalTest)
	if tailStart.Found {
		if end, ok := resolveAnchorEnd(hist, in.Mapping.IsDone, in.Mapping.IsExternalTest, in.AsOf); ok {
			d := end.Sub(tailStart.Time) - PauseUpTo(hist, in.Mapping, end)
			days := toDays(d)
			m.Tail = &days
		}
	}

	m.DiscoveryBacklogDays = toDays(sumDurations(hist, in.Mapping.IsDiscovery, asOfOrNow))
	m.ReadyForDevDays = toDays(sumDurations(hist, readyForDev, asOfOrNow))

	return m
}

func sumDurations(hist []store.StatusHistoryEntry, match func(string) bool, asOf time.Time) time.Duration {
	var total time.Duration
	for _, e := range hist {
		if match(e.Status) {
			total += e.Duration(asOf)
		}
	}
	return total
}

func quarterName(qs *config.QuarterSet, anchor time.Time) string {
	if qs == nil {
		return ""
	}
	if q, ok := qs.Containing(anchor); ok {
		return q.Name
	}
	return ""
}
