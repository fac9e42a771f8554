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
	subepicReturnsOutput    string
	subepicReturnsStartDate string
)

var subepicReturnsCmd = &cobra.Command{
	Use:   "fullstack-subepic-returns",
	Short: "Write the per-root downstream-return-counts CSV report",
	RunE:  runSubepicReturns,
}

func init() {
	subepicReturnsCmd.Flags().StringVar(&subepicReturnsOutput, "output", "", "output CSV path (required)")
	subepicReturnsCmd.Flags().StringVar(&subepicReturnsStartDate, "start-date", "", "only consider roots created on or after this date (YYYY-MM-DD)")
	_ = subepicReturnsCmd.MarkFlagRequired("output")
}

func runSubepicReturns(cmd *cobra.Command, args []string) error {
	setupLogging()
	log := applog.With(nil)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	createdSince, err := parseAsOf(subepicReturnsStartDate)
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

	roots, err := db.TasksByKeyPrefix(ctx, cfg.HierarchyRootPrefix, createdSince)
	if err != nil {
		return fmt.Errorf("cli: loading hierarchy roots: %w", err)
	}
	rootKeys := make([]string, len(roots))
	for i, r := range roots {
		rootKeys[i] = r.Key
	}

	hc := metrics.HierarchyConfig{
		QueuePrefix: cfg.HierarchyQueuePrefix,
		LinkTypeID:  cfg.HierarchyLinkTypeID,
		Direction:   cfg.HierarchyLinkDirection,
		MaxDepth:    cfg.HierarchyMaxDepth,
	}
	returns, err := metrics.HierarchyReturnsBatch(ctx, db, rootKeys, hc, mapping, cfg.BounceWindow, nil)
	if err != nil {
		return fmt.Errorf("cli: computing hierarchy returns: %w", err)
	}

	rows := make([]metrics.SubepicReturnRow, 0, len(rootKeys))
	for _, root := range rootKeys {
		r := returns[root]
		rows = append(rows, metrics.SubepicReturnRow{
			RootKey: root, TestingReturns: r.TestingReturns, ExternalTestReturns: r.ExternalTestReturns,
		})
	}

	if err := metrics.WriteSubepicReturns(subepicReturnsOutput, rows); err != nil {
		return fmt.Errorf("cli: writing fullstack-subepic-returns report: %w", err)
	}
	log.WithField("output", subepicReturnsOutput).Info(metrics.Summary("rows written", len(rows), time.Since(started)))
	return nil
}
