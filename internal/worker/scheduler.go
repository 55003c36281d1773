package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pending sweep on a fixed interval.
type Scheduler struct {
	worker   *SyncWorker
	interval time.Duration
	cron     *cron.Cron
}

func NewScheduler(worker *SyncWorker, interval time.Duration) (*Scheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("sync interval must be at least 1s, got %s", interval)
	}
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Scheduler{
		worker:   worker,
		interval: interval,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(logger))),
	}, nil
}

// Run performs one sweep immediately, then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	sweep := func() {
		if _, _, err := s.worker.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err)
		}
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), sweep); err != nil {
		return fmt.Errorf("schedule pending sync: %w", err)
	}
	sweep()
	s.cron.Start()
	slog.InfoContext(ctx, "Pending sync scheduled", "interval", s.interval)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
