package scheduler

import (
	"context"
	"time"

	"github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/logger"
)

// staleRetention is how long a stale-fallback materialization stays
// usable. Anything older is too far from the source to show.
const staleRetention = 24 * time.Hour

// SweepJob prunes the orchestrator's in-process stale-page map. Redis
// entries expire on their own TTL; the in-memory fallback copies do
// not, and their key space grows with every distinct search string.
type SweepJob struct {
	orchestrator *table.Orchestrator
	logger       *logger.Logger
	schedule     string
}

// NewSweepJob creates the cache sweep job
func NewSweepJob(cfg *config.Config, orchestrator *table.Orchestrator, log *logger.Logger) *SweepJob {
	return &SweepJob{
		orchestrator: orchestrator,
		logger:       log,
		schedule:     cfg.Scheduler.SweepSpec,
	}
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return "cache_sweep"
}

// Schedule returns the cron schedule
func (j *SweepJob) Schedule() string {
	return j.schedule
}

// Run drops stale materializations past the retention window
func (j *SweepJob) Run(ctx context.Context) error {
	removed := j.orchestrator.SweepStale(staleRetention)
	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Swept stale page materializations")
	}
	return nil
}
