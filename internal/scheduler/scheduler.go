package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drops expired rate-limit windows.
type Sweeper interface {
	Sweep() int
}

// Purger drops expired cache entries.
type Purger interface {
	PurgeCache() int
}

type Scheduler struct {
	sweeper  Sweeper
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
	c        *cron.Cron
}

func NewScheduler(sweeper Sweeper, purger Purger, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		sweeper:  sweeper,
		purger:   purger,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		c:        cron.New(),
	}
}

// Start registers the maintenance job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.RunMaintenance); err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	s.c.Start()
	s.logger.Info("Scheduler started", "interval", s.interval.String())
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// RunMaintenance sweeps rate-limit windows and purges cached key lists.
func (s *Scheduler) RunMaintenance() {
	swept := 0
	if s.sweeper != nil {
		swept = s.sweeper.Sweep()
	}
	purged := 0
	if s.purger != nil {
		purged = s.purger.PurgeCache()
	}
	s.logger.Debug("Maintenance run complete", "windows_swept", swept, "cache_entries_purged", purged)
}
