package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evalgo/tracker-sync/internal/store"
)

func TestCountTransitionsIntoExcludesCreationStatus(t *testing.T) {
	isTesting := statusIs("testing")
	asOf := d(2025, 2, 1)

	// DOWN-2: created directly in "testing", never revisits it — zero real
	// transitions, even though the opening interval's status matches.
	createdInTarget := []store.StatusHistoryEntry{
		{Status: "testing", StartDate: d(2025, 1, 1), EndDate: ptr(d(2025, 1, 10))},
		{Status: "in-review", StartDate: d(2025, 1, 10)},
	}
	assert.Equal(t, 0, countTransitionsInto(createdInTarget, isTesting, DefaultBounceThreshold, asOf))

	// DOWN-2 per S5: two real transitions into "testing" after leaving an
	// initial non-matching status.
	twoTransitions := []store.StatusHistoryEntry{
		{Status: "open", StartDate: d(2025, 1, 1), EndDate: ptr(d(2025, 1, 5))},
		{Status: "testing", StartDate: d(2025, 1, 5), EndDate: ptr(d(2025, 1, 8))},
		{Status: "in-review", StartDate: d(2025, 1, 8), EndDate: ptr(d(2025, 1, 10))},
		{Status: "testing", StartDate: d(2025, 1, 10), EndDate: ptr(d(2025, 1, 12))},
		{Status: "done", StartDate: d(2025, 1, 12)},
	}
	assert.Equal(t, 2, countTransitionsInto(twoTransitions, isTesting, DefaultBounceThreshold, asOf))
}
