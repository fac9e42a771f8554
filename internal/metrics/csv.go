package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// writeAtomic writes rows (header first) to a CSV file at path by first
// writing to a temp file in the same directory, then renaming it into
// place, so a reader polling the reports directory never observes a
// half-written file.
func writeAtomic(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("metrics: creating temp report file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: writing CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("metrics: writing CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: flushing CSV writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: closing temp report file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("metrics: publishing report file: %w", err)
	}
	return nil
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// ttmDetailsHeader is the exact column order spec.md §6 mandates.
var ttmDetailsHeader = []string{
	"key", "summary", "author", "team", "group_key", "quarter_ttd", "quarter_ttm",
	"ttd", "ttm", "devlt", "tail", "pause", "ttd_pause", "discovery_backlog_days",
	"ready_for_dev_days", "testing_returns", "external_test_returns",
}

// WriteTTMDetails writes the per-task ttm-details CSV.
func WriteTTMDetails(path string, rows []TaskMetrics) error {
	out := make([][]string, 0, len(rows))
	for _, m := range rows {
		out = append(out, []string{
			m.Key, m.Summary, m.Author, m.Team, m.GroupKey,
			m.QuarterTTD, m.QuarterTTM,
			intOrEmpty(m.TTD), intOrEmpty(m.TTM), intOrEmpty(m.DevLT), intOrEmpty(m.Tail),
			intOrEmpty(m.Pause), intOrEmpty(m.TTDPause),
			strconv.Itoa(m.DiscoveryBacklogDays), strconv.Itoa(m.ReadyForDevDays),
			strconv.Itoa(m.TestingReturns), strconv.Itoa(m.ExternalTestReturns),
		})
	}
	return writeAtomic(path, ttmDetailsHeader, out)
}

// SubepicReturnRow is one row of the fullstack-subepic-returns report.
type SubepicReturnRow struct {
	RootKey             string
	TestingReturns      int
	ExternalTestReturns int
}

var subepicReturnsHeader = []string{"root_key", "testing_returns", "external_test_returns"}

// WriteSubepicReturns writes the per-root downstream-return-counts CSV.
func WriteSubepicReturns(path string, rows []SubepicReturnRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.RootKey, strconv.Itoa(r.TestingReturns), strconv.Itoa(r.ExternalTestReturns)})
	}
	return writeAtomic(path, subepicReturnsHeader, out)
}

// StatusTimeRow is one row of the status-time report: one task's total
// bounce-filtered days spent in one status.
type StatusTimeRow struct {
	Key    string
	Status string
	Days   int
}

var statusTimeHeader = []string{"key", "status", "days"}

// WriteStatusTime writes the per-task time-in-status CSV.
func WriteStatusTime(path string, rows []StatusTimeRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Key, r.Status, strconv.Itoa(r.Days)})
	}
	return writeAtomic(path, statusTimeHeader, out)
}
