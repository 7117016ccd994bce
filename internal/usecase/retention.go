package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	drepo "FinSight/internal/domain/repository"
	"FinSight/pkg/logger"
)

// RetentionSweeper purges snapshot history past the retention window on a
// cron schedule.
type RetentionSweeper struct {
	store     drepo.SnapshotHistory
	retention time.Duration
	schedule  string
	metrics   drepo.Metrics
	log       *logger.Logger

	cron *cron.Cron
}

// NewRetentionSweeper creates a new RetentionSweeper instance.
func NewRetentionSweeper(store drepo.SnapshotHistory, retention time.Duration, schedule string, metrics drepo.Metrics, log *logger.Logger) *RetentionSweeper {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &RetentionSweeper{
		store:     store,
		retention: retention,
		schedule:  schedule,
		metrics:   metrics,
		log:       log,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *RetentionSweeper) Start() error {
	if s.retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("retention schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info("retention sweeper started",
		logger.String("schedule", s.schedule),
		logger.Duration("retention", s.retention))
	return nil
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	n, err := s.store.Purge(ctx, cutoff)
	if err != nil {
		s.metrics.RecordError("retention_purge")
		s.log.Error("retention purge failed", logger.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("retention purge complete", logger.Int64("rows", n))
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("retention sweeper stopped")
}
