// Package jobs runs background work on a cron schedule.
// The day rollover fires shortly after the day cutoff in the clock's
// location and expires weekly passes left over from earlier weeks.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/infra/metrics"
)

// Roller is the rollover entry point of the engagement registry.
type Roller interface {
	Rollover(ctx context.Context) (rolled, failed int)
}

// RolloverDelay is how long after the cutoff the rollover runs.
const RolloverDelay = 5 * time.Minute

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	roller Roller
	spec   string
	log    *log.Entry
}

// NewScheduler creates a scheduler whose rollover runs daily at
// clock.Cutoff + RolloverDelay in clock.Location.
func NewScheduler(roller Roller, clock engagement.Clock) *Scheduler {
	loc := clock.Location
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		roller: roller,
		spec:   RolloverSpec(clock.Cutoff),
		log:    log.WithField("component", "jobs"),
	}
}

// RolloverSpec returns the cron expression for a daily run at cutoff plus
// RolloverDelay.
func RolloverSpec(cutoff time.Duration) string {
	at := (cutoff + RolloverDelay) % (24 * time.Hour)
	return fmt.Sprintf("%d %d * * *", int(at.Minutes())%60, int(at.Hours()))
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunRollover(ctx) }); err != nil {
		return fmt.Errorf("schedule rollover %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("scheduler started")
	return nil
}

// RunRollover runs one rollover pass and records the result.
func (s *Scheduler) RunRollover(ctx context.Context) {
	start := time.Now()
	rolled, failed := s.roller.Rollover(ctx)

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	metrics.RolloverRuns.WithLabelValues(result).Inc()
	s.log.WithFields(log.Fields{
		"rolled":   rolled,
		"failed":   failed,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("rollover finished")
}

// Stop stops the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}
