package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/store"
)

func d(y, m, dd int) time.Time { return time.Date(y, time.Month(m), dd, 0, 0, 0, 0, time.UTC) }

func ptr(t time.Time) *time.Time { return &t }

func baseMapping() *config.StatusMapping {
	return &config.StatusMapping{
		DiscoveryStatuses:    []string{"discovery"},
		DoneStatuses:         []string{"done"},
		PauseStatuses:        []string{"paused"},
		ExternalTestStatuses: []string{"external-test"},
		ReadyForDevStatus:    "ready-for-dev",
		InWorkStatus:         "in-work",
		TestingStatus:        "testing",
	}
}

// S1 — TTD basic.
func TestTTDBasic(t *testing.T) {
	hist := []store.StatusHistoryEntry{
		{Status: "open", StartDate: d(2025, 1, 1), EndDate: ptr(d(2025, 1, 5))},
		{Status: "discovery", StartDate: d(2025, 1, 5), EndDate: ptr(d(2025, 1, 15))},
		{Status: "ready-for-dev", StartDate: d(2025, 1, 15)},
	}
	m := Compute(Inputs{
		Key: "Q-1", CreatedAt: d(2025, 1, 1), RawHistory: hist,
		Mapping: baseMapping(), BounceWindow: DefaultBounceThreshold,
	})
	require.NotNil(t, m.TTD)
	assert.Equal(t, 14, *m.TTD)
}

// S2 — Pause deduction.
func TestTTDWithPause(t *testing.T) {
	hist := []store.StatusHistoryEntry{
		{Status: "open", StartDate: d(2025, 1, 1), EndDate: ptr(d(2025, 1, 5))},
		{Status: "discovery", StartDate: d(2025, 1, 5), EndDate: ptr(d(2025, 1, 8))},
		{Status: "paused", StartDate: d(2025, 1, 8), EndDate: ptr(d(2025, 1, 10))},
		{Status: "discovery", StartDate: d(2025, 1, 10), EndDate: ptr(d(2025, 1, 15))},
		{Status: "ready-for-dev", StartDate: d(2025, 1, 15)},
	}
	m := Compute(Inputs{
		Key: "Q-2", CreatedAt: d(2025, 1, 1), RawHistory: hist,
		Mapping: baseMapping(), BounceWindow: DefaultBounceThreshold,
	})
	require.NotNil(t, m.TTD)
	assert.Equal(t, 12, *m.TTD)
}

// S3 — Bounce filter: a short blip into ready-for-dev before the real entry
// must not move TTD.
func TestTTDBounceFilterIgnoresBlip(t *testing.T) {
	blipStart := d(2025, 1, 6)
	blipEnd := blipStart.Add(2 * time.Minute)
	hist := []store.StatusHistoryEntry{
		{Status: "open", StartDate: d(2025, 1, 1), EndDate: ptr(d(2025, 1, 5))},
		{Status: "discovery", StartDate: d(2025, 1, 5), EndDate: ptr(blipStart)},
		{Status: "ready-for-dev", StartDate: blipStart, EndDate: ptr(blipEnd)},
		{Status: "discovery", StartDate: blipEnd, EndDate: ptr(d(2025, 1, 15))},
		{Status: "ready-for-dev", StartDate: d(2025, 1, 15)},
	}
	m := Compute(Inputs{
		Key: "Q-3", CreatedAt: d(2025, 1, 1), RawHistory: hist,
		Mapping: baseMapping(), BounceWindow: DefaultBounceThreshold,
	})
	require.NotNil(t, m.TTD)
	assert.Equal(t, 14, *m.TTD)
}

// S4 — As-of-date for an open interval; re-running with a later as_of must
// produce a strictly larger TTD.
func TestTTDAsOfMonotonicity(t *testing.T) {
	hist := []store.StatusHistoryEntry{
		{Status: "ready-for-dev", StartDate: d(2025, 12, 1)},
	}
	created := d(2025, 12, 1)

	asOf1 := d(2026, 1, 18)
	m1 := Compute(Inputs{
		Key: "Q-4", CreatedAt: created, RawHistory: hist,
		Mapping: baseMapping(), BounceWindow: DefaultBounceThreshold, AsOf: &asOf1,
	})
	require.NotNil(t, m1.TTD)
	assert.Equal(t, 48, *m1.TTD)

	asOf2 := d(2026, 2, 6)
	m2 := Compute(Inputs{
		Key: "Q-4", CreatedAt: created, RawHistory: hist,
		Mapping: baseMapping(), BounceWindow: DefaultBounceThreshold, AsOf: &asOf2,
	})
	require.NotNil(t, m2.TTD)
	assert.Greater(t, *m2.TTD, *m1.TTD)
}

func TestPauseConsistencyMatchesDeductedAmount(t *testing.T) {
	hist := []store.StatusHistoryEntry{
		{Status: "discovery", StartDate: d(2025, 1, 5), EndDate: ptr(d(2025, 1, 8))},
		{Status: "paused", StartDate: d(2025, 1, 8), EndDate: ptr(d(2025, 1, 10))},
		{Status: "ready-for-dev", StartDate: d(2025, 1, 10)},
	}
	mapping := baseMapping()
	end := d(2025, 1, 10)
	pauseFromHelper := PauseUpTo(hist, mapping, end)

	m := Compute(Inputs{
		Key: "Q-5", CreatedAt: d(2025, 1, 1), RawHistory: hist,
		Mapping: mapping, BounceWindow: DefaultBounceThreshold,
	})
	require.NotNil(t, m.TTDPause)
	assert.Equal(t, toDays(pauseFromHelper), *m.TTDPause)
}

// S4 — a task still sitting in ready-for-dev (never reaches done) must
// still report Pause as pause_up_to(hist, as_of), not leave it blank.
func TestPauseFallsBackToAsOfWhenDoneNeverReached(t *testing.T) {
	hist := []store.StatusHistoryEntry{
		{Status: "discovery", StartDate: d(2026, 1, 1), EndDate: ptr(d(2026, 1, 10))},
		{Status: "paused", StartDate: d(2026, 1, 10), EndDate: ptr(d(2026, 1, 12))},
		{Status: "ready-for-dev", StartDate: d(2026, 1, 12)},
	}
	mapping := baseMapping()
	asOf := d(2026, 1, 18)
	expected := toDays(PauseUpTo(hist, mapping, asOf))

	m := Compute(Inputs{
		Key: "Q-S4", CreatedAt: d(2026, 1, 1), RawHistory: hist,
		Mapping: mapping, BounceWindow: DefaultBounceThreshold, AsOf: &asOf,
	})
	require.Nil(t, m.TTM)
	require.NotNil(t, m.Pause)
	assert.Equal(t, expected, *m.Pause)
}

func TestBounceFilterNeverInventsStatus(t *testing.T) {
	blip := d(2025, 1, 1).Add(time.Second)
	hist := []store.StatusHistoryEntry{
		{Status: "open", StartDate: d(2025, 1, 1), EndDate: ptr(blip)},
		{Status: "discovery", StartDate: blip, EndDate: ptr(d(2025, 1, 10))},
	}
	filtered := FilterBounces(hist, DefaultBounceThreshold, d(2025, 1, 10))
	seen := map[string]bool{}
	for _, e := range hist {
		seen[e.Status] = true
	}
	for _, e := range filtered {
		assert.True(t, seen[e.Status])
	}
}

func TestSummarizeNearestRankP85(t *testing.T) {
	agg := Summarize([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.Equal(t, 10, agg.Count)
	assert.Equal(t, 5.5, agg.Mean)
	assert.Equal(t, float64(9), agg.P85)
}
