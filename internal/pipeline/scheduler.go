package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/config"
)

// Scheduler runs a crawl once per day at a fixed UTC hour.
type Scheduler struct {
	pipeline *Pipeline
	cfg      config.CrawlConfig
}

func NewScheduler(p *Pipeline, cfg config.CrawlConfig) *Scheduler {
	return &Scheduler{pipeline: p, cfg: cfg}
}

// Run blocks until ctx is cancelled, triggering a crawl at each scheduled
// time. A failed crawl is logged and the next one still runs.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextRunAfter(time.Now().UTC(), s.cfg.ScheduleHour)
		zap.L().Info("next crawl scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.pipeline.CrawlOnce(ctx, s.cfg); err != nil {
			zap.L().Error("scheduled crawl failed", zap.Error(err))
		}
	}
}

func nextRunAfter(now time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		hour = 2
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
