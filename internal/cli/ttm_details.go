package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evalgo/tracker-sync/internal/applog"
	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/metrics"
)

var (
	ttmDetailsOutput string
	ttmDetailsAsOf   string
)

var ttmDetailsCmd = &cobra.Command{
	Use:   "ttm-details",
	Short: "Write the per-task ttm-details CSV report",
	RunE:  runTTMDetails,
}

func init() {
	ttmDetailsCmd.Flags().StringVar(&ttmDetailsOutput, "output", "", "output CSV path (required)")
	ttmDetailsCmd.Flags().StringVar(&ttmDetailsAsOf, "as-of", "", "treat open intervals as ending on this date (YYYY-MM-DD)")
	_ = ttmDetailsCmd.MarkFlagRequired("output")
}

func parseAsOf(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("cli: parsing date %q: %w", s, err)
	}
	return &t, nil
}

func runTTMDetails(cmd *cobra.Command, args []string) error {
	setupLogging()
	log := applog.With(nil)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	asOf, err := parseAsOf(ttmDetailsAsOf)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	started := time.Now()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	mapping, err := config.LoadStatusMapping(cfg.StatusMapFile)
	if err != nil {
		return err
	}
	quarters, err := config.LoadQuarters(cfg.QuartersFile)
	if err != nil {
		return err
	}

	tasks, err := db.AllTasks(ctx)
	if err != nil {
		return fmt.Errorf("cli: loading tasks: %w", err)
	}

	keys := make([]string, len(tasks))
	for i, t := range tasks {
		keys[i] = t.Key
	}
	histories, err := db.HistoriesForKeys(ctx, keys)
	if err != nil {
		return fmt.Errorf("cli: batch-loading histories: %w", err)
	}

	hc := metrics.HierarchyConfig{
		QueuePrefix: cfg.HierarchyQueuePrefix,
		LinkTypeID:  cfg.HierarchyLinkTypeID,
		Direction:   cfg.HierarchyLinkDirection,
		MaxDepth:    cfg.HierarchyMaxDepth,
	}
	returns, err := metrics.HierarchyReturnsBatch(ctx, db, keys, hc, mapping, cfg.BounceWindow, asOf)
	if err != nil {
		return fmt.Errorf("cli: computing hierarchy returns: %w", err)
	}

	rows := make([]metrics.TaskMetrics, 0, len(tasks))
	for _, t := range tasks {
		m := metrics.Compute(metrics.Inputs{
			Key: t.Key, Summary: t.Summary, Author: t.Author, Team: t.Team,
			GroupBy: cfg.GroupBy, CreatedAt: t.CreatedAt, RawHistory: histories[t.Key],
			Mapping: mapping, Quarters: quarters, AsOf: asOf, BounceWindow: cfg.BounceWindow,
		})
		if r, ok := returns[t.Key]; ok {
			m.TestingReturns = r.TestingReturns
			m.ExternalTestReturns = r.ExternalTestReturns
		}
		rows = append(rows, m)
	}

	if err := metrics.WriteTTMDetails(ttmDetailsOutput, rows); err != nil {
		return fmt.Errorf("cli: writing ttm-details report: %w", err)
	}
	log.WithField("output", ttmDetailsOutput).Info(metrics.Summary("rows written", len(rows), time.Since(started)))
	return nil
}
