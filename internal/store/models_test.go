package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusHistoryEntryDurationOpenInterval(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := StatusHistoryEntry{StartDate: start, EndDate: nil}

	asOf := start.Add(48 * time.Hour)
	assert.Equal(t, 48*time.Hour, e.Duration(asOf))
}

func TestStatusHistoryEntryDurationClosedInterval(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)
	e := StatusHistoryEntry{StartDate: start, EndDate: &end}

	assert.Equal(t, 10*time.Hour, e.Duration(start.Add(1000*time.Hour)))
}

func TestStatusHistoryEntryDurationNeverNegative(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := StatusHistoryEntry{StartDate: start, EndDate: nil}

	assert.Equal(t, time.Duration(0), e.Duration(start.Add(-time.Hour)))
}
