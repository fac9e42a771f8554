package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evalgo/tracker-sync/internal/applog"
	"github.com/evalgo/tracker-sync/internal/metrics"
	"github.com/evalgo/tracker-sync/internal/syncengine"
)

var syncOpts syncengine.Options

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull tasks and changelogs matching --filter into the local store",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncOpts.Filter, "filter", "", "tracker search filter (required)")
	syncCmd.Flags().IntVar(&syncOpts.Limit, "limit", 0, "maximum number of tasks to sync (0 = no limit)")
	syncCmd.Flags().BoolVar(&syncOpts.SkipHistory, "skip-history", false, "skip changelog fetch and history replace")
	syncCmd.Flags().BoolVar(&syncOpts.ForceFullHistory, "force-full-history", false, "same as the default: history is always rebuilt from the full changelog unless --skip-history is set")
	syncCmd.Flags().BoolVar(&syncOpts.DryRun, "dry-run", false, "run the fetch pipeline without writing tasks or history (the sync run log row is still written)")
	_ = syncCmd.MarkFlagRequired("filter")
}

func runSync(cmd *cobra.Command, args []string) error {
	setupLogging()
	log := applog.With(nil)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if n, err := db.SweepOrphanedRuns(ctx, cfg.OrphanedRunMaxAge); err != nil {
		log.WithError(err).Warn("cli: orphaned-run sweep failed")
	} else if n > 0 {
		log.WithField("count", n).Info("cli: marked orphaned runs as failed")
	}

	client := newTrackerClient(cfg)
	orch := syncengine.New(db, client, cfg)

	started := time.Now()
	result := orch.Run(ctx, syncOpts)
	log.WithField("run_id", result.RunID).
		WithField("exit_code", int(result.Code)).
		Info(metrics.Summary("run completed", 1, time.Since(started)))

	if result.Code != syncengine.ExitSuccess {
		os.Exit(int(result.Code))
	}
	return nil
}
