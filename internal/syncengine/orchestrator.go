// Package syncengine is the sync orchestrator: it acquires the
// single-instance lock, drives the scroll producer, fans out to a bounded
// worker pool, and finalizes the SyncRunLog. It extends the teacher's
// manual worker/pool.go goroutine-plus-channel shape with
// golang.org/x/sync/errgroup's structured cancellation, per spec.md §4.3
// and §5.
package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evalgo/tracker-sync/internal/applog"
	"github.com/evalgo/tracker-sync/internal/config"
	"github.com/evalgo/tracker-sync/internal/history"
	"github.com/evalgo/tracker-sync/internal/lockfile"
	"github.com/evalgo/tracker-sync/internal/store"
	"github.com/evalgo/tracker-sync/internal/trackerapi"
)

func marshalLinks(links []trackerapi.LinkDTO) ([]byte, error) {
	storeLinks := make([]store.Link, len(links))
	for i, l := range links {
		storeLinks[i] = store.Link{TypeID: l.TypeID, Direction: l.Direction, TargetKey: l.TargetKey}
	}
	return json.Marshal(storeLinks)
}

// Options are the sync command's input parameters, per spec.md §6.
type Options struct {
	Filter           string
	Limit            int
	SkipHistory      bool
	ForceFullHistory bool
	DryRun           bool
}

// ExitCode mirrors spec.md §6's exit-code contract.
type ExitCode int

const (
	ExitSuccess   ExitCode = 0
	ExitFailed    ExitCode = 1
	ExitLockHeld  ExitCode = 2
	ExitCancelled ExitCode = 130
)

// finalizeTimeout bounds the fresh context used to record a run's final
// status when the run's own context has already been cancelled or may be
// about to exit the process (SIGINT/SIGTERM): pgx refuses Exec on an
// already-cancelled context, so finalizing needs one that isn't.
const finalizeTimeout = 10 * time.Second

// Result is what Run returns: the exit code to use and, when a run was
// actually attempted, its SyncRunLog id.
type Result struct {
	Code  ExitCode
	RunID string
}

// Orchestrator wires together the lock, the remote client, and the store to
// execute one sync invocation.
type Orchestrator struct {
	DB     *store.DB
	Client *trackerapi.Client
	Cfg    *config.TrackerConfig
	log    *applog.ContextLogger
}

// New builds an Orchestrator.
func New(db *store.DB, client *trackerapi.Client, cfg *config.TrackerConfig) *Orchestrator {
	return &Orchestrator{DB: db, Client: client, Cfg: cfg, log: applog.With(nil)}
}

// Run executes the full algorithm in spec.md §4.3: acquire the lock, start
// the run log, fan out to workers over the scroll producer, finalize the
// log, release the lock.
func (o *Orchestrator) Run(ctx context.Context, opts Options) Result {
	lock, err := lockfile.Acquire(o.Cfg.LockPath)
	if err != nil {
		if err == lockfile.ErrHeld {
			o.log.Warn("syncengine: another instance holds the lock")
			return Result{Code: ExitLockHeld}
		}
		o.log.WithError(err).Error("syncengine: failed to acquire lock")
		return Result{Code: ExitFailed}
	}
	defer lock.Release()

	runID, err := o.DB.StartRun(ctx)
	if err != nil {
		o.log.WithError(err).Error("syncengine: failed to start run log")
		return Result{Code: ExitFailed}
	}
	rlog := o.log.WithField("run_id", runID)

	counters := &safeCounters{}

	runErr := o.runWorkers(ctx, opts, counters)

	// ctx.Err() is non-nil only when the caller (the process's own
	// signal-derived context) was cancelled; errgroup also cancels the
	// derived gctx when any goroutine returns an error, but that leaves the
	// parent ctx untouched, so checking ctx here (not gctx) is what tells a
	// genuine external cancellation apart from an internal scroll/task
	// failure that merely propagated through errgroup.
	if ctx.Err() != nil {
		finalizeCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		if err := o.DB.FailRun(finalizeCtx, runID, "cancelled", counters.snapshot()); err != nil {
			rlog.WithError(err).Error("syncengine: failed to record cancelled run")
		}
		rlog.Warn("syncengine: run cancelled")
		return Result{Code: ExitCancelled, RunID: runID}
	}
	if runErr != nil {
		finalizeCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		if err := o.DB.FailRun(finalizeCtx, runID, runErr.Error(), counters.snapshot()); err != nil {
			rlog.WithError(err).Error("syncengine: failed to record failed run")
		}
		rlog.WithError(runErr).Error("syncengine: run failed")
		return Result{Code: ExitFailed, RunID: runID}
	}

	if err := o.DB.CompleteRun(ctx, runID, counters.snapshot()); err != nil {
		rlog.WithError(err).Error("syncengine: failed to finalize run log")
		return Result{Code: ExitFailed, RunID: runID}
	}
	rlog.WithField("tasks_processed", counters.snapshot().TasksProcessed).Info("syncengine: run completed")
	return Result{Code: ExitSuccess, RunID: runID}
}

// runWorkers drives the scroll producer into a bounded channel and fans out
// to MaxWorkers goroutines via errgroup, per spec.md §5's scheduling model.
// Its caller distinguishes external cancellation from an internal failure by
// inspecting the parent ctx, not gctx, since errgroup cancels gctx for both
// reasons.
func (o *Orchestrator) runWorkers(ctx context.Context, opts Options, counters *safeCounters) error {
	keysCh := make(chan string, o.Cfg.MaxWorkers*2)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(keysCh)
		it := o.Client.Search(opts.Filter, o.Cfg.ScrollPageSize, opts.Limit)
		for {
			keys, more, err := it.Next(gctx)
			if err != nil {
				return fmt.Errorf("syncengine: scroll error: %w", err)
			}
			for _, k := range keys {
				select {
				case keysCh <- k:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if !more {
				return nil
			}
		}
	})

	for i := 0; i < o.Cfg.MaxWorkers; i++ {
		group.Go(func() error {
			for {
				select {
				case key, ok := <-keysCh:
					if !ok {
						return nil
					}
					if err := o.processTask(gctx, key, opts, counters); err != nil {
						counters.incErrors()
						o.log.WithField("key", key).WithError(err).Warn("syncengine: task failed")
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}

	return group.Wait()
}

// processTask runs one task's write sequence in order per spec.md §5:
// fetch -> upsert -> fetch changelog -> replace history -> update
// last_sync_at.
func (o *Orchestrator) processTask(ctx context.Context, key string, opts Options, counters *safeCounters) error {
	dto, err := o.Client.GetTask(ctx, key)
	if err != nil {
		return fmt.Errorf("fetching task %s: %w", key, err)
	}

	if opts.DryRun {
		counters.incProcessed()
		return nil
	}

	linksJSON, err := marshalLinks(dto.Links)
	if err != nil {
		return fmt.Errorf("marshaling links for %s: %w", key, err)
	}

	t := &store.Task{
		NaturalID: dto.NaturalID, Key: dto.Key, Summary: dto.Summary, Description: dto.Description,
		Status: dto.Status, StatusDisplay: dto.StatusDisplay, Author: dto.Author, Assignee: dto.Assignee,
		Team: dto.Team, BusinessClient: dto.BusinessClient, ProductTeam: dto.ProductTeam,
		ProfitForecast: dto.ProfitForecast, Links: linksJSON, CreatedAt: dto.CreatedAt, UpdatedAt: dto.UpdatedAt,
	}
	created, err := o.DB.UpsertTask(ctx, t)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", key, err)
	}
	counters.incProcessed()
	if created {
		counters.incCreated()
	} else {
		counters.incUpdated()
	}

	if opts.SkipHistory {
		return nil
	}

	events, err := o.Client.GetChangelog(ctx, key)
	if err != nil {
		return fmt.Errorf("fetching changelog for %s: %w", key, err)
	}
	result := history.Reconstruct(events, dto.CreatedAt, dto.Status, dto.StatusDisplay)

	taskID, err := o.DB.TaskIDByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("resolving task id for %s: %w", key, err)
	}
	if err := o.DB.ReplaceHistory(ctx, taskID, dto.NaturalID, history.ToStore(result.Intervals)); err != nil {
		return fmt.Errorf("replacing history for %s: %w", key, err)
	}
	counters.addHistory(len(result.Intervals))

	if err := o.DB.TouchLastSyncAt(ctx, taskID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touching last_sync_at for %s: %w", key, err)
	}
	return nil
}

// safeCounters aggregates run counters from concurrent workers under a
// mutex, per spec.md §5's "shared state" note.
type safeCounters struct {
	mu sync.Mutex
	c  store.RunCounters
}

func (s *safeCounters) incProcessed() {
	s.mu.Lock()
	s.c.TasksProcessed++
	s.mu.Unlock()
}

func (s *safeCounters) incCreated() {
	s.mu.Lock()
	s.c.TasksCreated++
	s.mu.Unlock()
}

func (s *safeCounters) incUpdated() {
	s.mu.Lock()
	s.c.TasksUpdated++
	s.mu.Unlock()
}

func (s *safeCounters) addHistory(n int) {
	s.mu.Lock()
	s.c.HistoryEntriesProcessed += n
	s.mu.Unlock()
}

func (s *safeCounters) incErrors() {
	s.mu.Lock()
	s.c.ErrorsCount++
	s.mu.Unlock()
}

func (s *safeCounters) snapshot() store.RunCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}
