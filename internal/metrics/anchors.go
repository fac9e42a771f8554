package metrics

import (
	"sort"
	"time"

	"github.com/evalgo/tracker-sync/internal/store"
)

// sortedByStart returns hist sorted by start date; history loaded from the
// store is already ordered but callers (tests, filtered copies) should not
// rely on that.
func sortedByStart(hist []store.StatusHistoryEntry) []store.StatusHistoryEntry {
	out := make([]store.StatusHistoryEntry, len(hist))
	copy(out, hist)
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// Anchor is a resolved point in time for a metric's start/end boundary,
// along with whether it was still open (and therefore substituted with
// asOf) at evaluation time.
type Anchor struct {
	Time   time.Time
	Open   bool
	Found  bool
}

// FirstEntryInto returns the start of the first interval whose status is in
// statuses, sorted by start date. If that interval is open (EndDate nil),
// the anchor still reports the entry time (the moment of entry) per the
// TTD/TTM formula — open-ness is surfaced via Open so callers needing the
// *end* of an open interval know to use asOf (see ResolveEnd).
func FirstEntryInto(hist []store.StatusHistoryEntry, statuses func(string) bool) Anchor {
	for _, e := range sortedByStart(hist) {
		if statuses(e.Status) {
			return Anchor{Time: e.StartDate, Open: e.EndDate == nil, Found: true}
		}
	}
	return Anchor{}
}

// FirstExitFrom returns the end of the first interval whose status is in
// statuses (i.e. the moment the task left that status for the first time).
// If no such interval has closed, Found is false.
func FirstExitFrom(hist []store.StatusHistoryEntry, statuses func(string) bool) Anchor {
	for _, e := range sortedByStart(hist) {
		if statuses(e.Status) && e.EndDate != nil {
			return Anchor{Time: *e.EndDate, Found: true}
		}
	}
	return Anchor{}
}

// ResolveEnd returns the timestamp to use as a metric's "end" anchor given
// an open-interval entry point, substituting asOf when provided and the
// interval is open, per the "as-of-date" rules in spec.md §4.5.
func (a Anchor) ResolveEnd(asOf *time.Time) (time.Time, bool) {
	if !a.Found {
		return time.Time{}, false
	}
	if a.Open && asOf != nil {
		return *asOf, true
	}
	return a.Time, true
}
