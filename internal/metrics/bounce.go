// Package metrics derives per-task delivery-lifecycle metrics (TTD, TTM,
// DevLT, Tail, Pause, TTD-Pause, discovery-backlog days, ready-for-dev days,
// testing returns, external-test returns) from reconstructed status
// history, following the formulas in spec.md §4.5.
package metrics

import (
	"time"

	"github.com/evalgo/tracker-sync/internal/store"
)

// DefaultBounceThreshold is the default minimum interval duration below
// which a transition is considered a "bounce" (accidental click or
// near-instant state flip) rather than a real status change.
const DefaultBounceThreshold = 5 * time.Minute

// FilterBounces returns a copy of history with intervals shorter than
// threshold removed. This is metric-side only: storage keeps the full
// history faithfully (spec.md §4.5). It is a pure function — it never
// introduces a status the raw history did not contain (§8.6).
func FilterBounces(hist []store.StatusHistoryEntry, threshold time.Duration, asOf time.Time) []store.StatusHistoryEntry {
	out := make([]store.StatusHistoryEntry, 0, len(hist))
	for _, e := range hist {
		if e.Duration(asOf) < threshold {
			continue
		}
		out = append(out, e)
	}
	return out
}
