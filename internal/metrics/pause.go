package metrics

import (
	"time"

	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/store"
)

// PauseUpTo returns the total time the task spent in any pause status in
// intervals that start before d. For an interval crossing d, only the
// portion before d is counted (spec.md §4.5).
func PauseUpTo(hist []store.StatusHistoryEntry, mapping *config.StatusMapping, d time.Time) time.Duration {
	return PauseBetween(hist, mapping, time.Time{}, d)
}

// PauseBetween returns total pause time restricted to [a, b]. a may be the
// zero time to mean "no lower bound."
func PauseBetween(hist []store.StatusHistoryEntry, mapping *config.StatusMapping, a, b time.Time) time.Duration {
	var total time.Duration
	for _, e := range hist {
		if !mapping.IsPause(e.Status) {
			continue
		}
		if !e.StartDate.Before(b) {
			continue
		}
		start := e.StartDate
		if !a.IsZero() && start.Before(a) {
			start = a
		}
		end := b
		if e.EndDate != nil && e.EndDate.Before(b) {
			end = *e.EndDate
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return total
}
