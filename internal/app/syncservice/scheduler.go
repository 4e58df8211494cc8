package syncservice

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ErikKalkoken/evesync/internal/singleinstance"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

const (
	DefaultSchedulerInterval    = 30 * time.Minute
	DefaultSchedulerConcurrency = 4
)

type SchedulerParams struct {
	Concurrency int           // max concurrent updates of characters and markets
	Interval    time.Duration // time between runs
	Markets     []MarketTypeUpdateParams

	// IsDowntime reports whether the remote APIs are currently down. Can be replaced in tests.
	IsDowntime func() bool
}

// Scheduler periodically updates all account keys, all characters and the watched market types.
type Scheduler struct {
	concurrency int
	interval    time.Duration
	isDowntime  func() bool
	markets     []MarketTypeUpdateParams
	s           *SyncService
	runs        singleinstance.Group

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a new Scheduler. Zero settings are replaced by the defaults.
func NewScheduler(s *SyncService, arg SchedulerParams) *Scheduler {
	sc := &Scheduler{
		concurrency: arg.Concurrency,
		interval:    arg.Interval,
		isDowntime:  arg.IsDowntime,
		markets:     arg.Markets,
		s:           s,
	}
	if sc.concurrency <= 0 {
		sc.concurrency = DefaultSchedulerConcurrency
	}
	if sc.interval <= 0 {
		sc.interval = DefaultSchedulerInterval
	}
	if sc.isDowntime == nil {
		sc.isDowntime = xgoesi.IsDailyDowntime
	}
	return sc
}

// Start starts the update loop. The first run starts immediately.
func (sc *Scheduler) Start(ctx context.Context) {
	ctx, sc.cancel = context.WithCancel(ctx)
	sc.wg.Add(1)
	go sc.loop(ctx)
	slog.Info("Scheduler started", "interval", sc.interval, "markets", len(sc.markets))
}

// Stop stops the update loop and waits for running updates to finish
// or until ctx is done.
func (sc *Scheduler) Stop(ctx context.Context) error {
	if sc.cancel != nil {
		sc.cancel()
	}
	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sc *Scheduler) loop(ctx context.Context) {
	defer sc.wg.Done()
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		sc.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (sc *Scheduler) tick(ctx context.Context) {
	if sc.isDowntime() {
		_, finish := xgoesi.DailyDowntime()
		slog.Info("Skipping update during daily downtime", "until", finish)
		return
	}
	sc.wg.Add(1)
	go func() {
		defer sc.wg.Done()
		if _, ok := sc.RunOnce(ctx); !ok {
			slog.Warn("Skipping update while previous update is still running")
		}
	}()
}

// RunStats summarizes an update run.
type RunStats struct {
	Failed    int
	Succeeded int
	Duration  time.Duration
}

// RunOnce updates all entities once.
// Account keys are updated first, since they determine the characters.
// Failed updates are logged and do not stop the run.
// It reports false without doing anything when another run is in progress.
func (sc *Scheduler) RunOnce(ctx context.Context) (RunStats, bool) {
	var stats RunStats
	ran, _ := sc.runs.TryDo("run", func() error {
		stats = sc.run(ctx)
		return nil
	})
	return stats, ran
}

func (sc *Scheduler) run(ctx context.Context) RunStats {
	start := time.Now()
	var failed, succeeded atomic.Int64
	report := func(e Entity, err error) {
		if err != nil {
			slog.Warn("Update failed", "entity", e, "error", err)
			failed.Add(1)
			return
		}
		succeeded.Add(1)
	}

	keyIDs, err := sc.s.st.ListAccountKeyIDs(ctx)
	if err != nil {
		slog.Error("Failed to list account keys", "error", err)
		return RunStats{}
	}
	for _, id := range slices.Sorted(keyIDs.All()) {
		if ctx.Err() != nil {
			break
		}
		e := AccountKeyEntity(id)
		report(e, sc.s.Update(ctx, e))
	}

	characterIDs, err := sc.s.st.ListCharacterIDsWithAccountKey(ctx)
	if err != nil {
		slog.Error("Failed to list characters", "error", err)
		return RunStats{}
	}
	g := new(errgroup.Group)
	g.SetLimit(sc.concurrency)
	for _, id := range slices.Sorted(characterIDs.All()) {
		g.Go(func() error {
			e := CharacterEntity(id)
			report(e, sc.s.Update(ctx, e))
			return nil
		})
	}
	for _, arg := range sc.markets {
		g.Go(func() error {
			_, err := sc.s.UpdateMarketType(ctx, arg)
			report(MarketTypeEntity(arg.RegionID, arg.TypeID), err)
			return nil
		})
	}
	g.Wait()

	stats := RunStats{
		Failed:    int(failed.Load()),
		Succeeded: int(succeeded.Load()),
		Duration:  time.Since(start),
	}
	slog.Info("Update run complete", "succeeded", stats.Succeeded, "failed", stats.Failed, "duration", stats.Duration)
	return stats
}
