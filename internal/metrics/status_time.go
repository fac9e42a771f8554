package metrics

import (
	"time"

	"github.com/evalgo/tracker-sync/internal/store"
)

// StatusTimeForTask sums bounce-filtered durations per status for one
// task's history, for the status-time report (spec.md §12 supplement: the
// report named in §6 but not detailed in §4/§8).
func StatusTimeForTask(hist []store.StatusHistoryEntry, bounceWindow time.Duration, asOf time.Time) map[string]int {
	filtered := FilterBounces(hist, bounceWindow, asOf)
	totals := make(map[string]time.Duration)
	for _, e := range filtered {
		totals[e.Status] += e.Duration(asOf)
	}
	out := make(map[string]int, len(totals))
	for status, d := range totals {
		out[status] = toDays(d)
	}
	return out
}
