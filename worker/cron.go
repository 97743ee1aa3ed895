package worker

import (
	"context"
	"log/slog"
	"time"

	"dealcaster/internal/model"

	"github.com/robfig/cron/v3"
)

// Cycler runs one hourly planning cycle.
type Cycler interface {
	RunCycle(ctx context.Context) error
}

// Maintainer is the store surface the cron jobs need.
type Maintainer interface {
	Cleanup(ctx context.Context) error
	Statistics(ctx context.Context) model.Statistics
}

// CronWorker drives the recurring jobs: the hourly posting cycle at every
// hour boundary, store cleanup every six hours and a daily statistics
// snapshot. The first cycle runs immediately on startup so a mid-hour
// restart does not sit idle until the next boundary.
type CronWorker struct {
	Scheduler Cycler
	Store     Maintainer
	Location  *time.Location
}

func (w *CronWorker) Start(ctx context.Context) error {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc("0 * * * *", func() { w.runCycle(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc("0 */6 * * *", func() { w.runCleanup(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc("0 2 * * *", func() { w.logSnapshot(ctx) }); err != nil {
		return err
	}

	go w.runCycle(ctx)

	c.Start()
	slog.Info("cron: started.", "location", loc.String())
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func (w *CronWorker) runCycle(ctx context.Context) {
	if err := w.Scheduler.RunCycle(ctx); err != nil {
		slog.Error("cron: hourly cycle failed.", "error", err)
	}
}

func (w *CronWorker) runCleanup(ctx context.Context) {
	if err := w.Store.Cleanup(ctx); err != nil {
		slog.Error("cron: cleanup failed.", "error", err)
	}
}

func (w *CronWorker) logSnapshot(ctx context.Context) {
	stats := w.Store.Statistics(ctx)
	slog.Info("cron: daily statistics snapshot.",
		"total_posts", stats.TotalPosts,
		"total_clicks", stats.TotalClicks,
		"avg_score", stats.AvgScore,
	)
}
