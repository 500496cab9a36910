package scheduler

import (
	"context"
	"fmt"

	"github.com/valuelens/screener/internal/api/ws"
	"github.com/valuelens/screener/internal/fundamentals"
	"github.com/valuelens/screener/internal/source"
	"github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

// RefreshJob re-fetches every configured dataset, rebuilds the search
// index over the union of their records, drops cached pages and
// notifies connected clients.
type RefreshJob struct {
	fundamentals *source.FundamentalsClient
	universe     *source.UniverseClient
	orchestrator *table.Orchestrator
	search       *table.SearchIndex
	cache        *redis.Cache
	hub          *ws.Hub
	logger       *logger.Logger

	datasets []string
	schedule string
	pageSize int
}

// NewRefreshJob creates the dataset refresh job
func NewRefreshJob(cfg *config.Config, fundamentalsClient *source.FundamentalsClient,
	universeClient *source.UniverseClient, orchestrator *table.Orchestrator,
	search *table.SearchIndex, cache *redis.Cache, hub *ws.Hub, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		fundamentals: fundamentalsClient,
		universe:     universeClient,
		orchestrator: orchestrator,
		search:       search,
		cache:        cache,
		hub:          hub,
		logger:       log,
		datasets:     cfg.Scheduler.Datasets,
		schedule:     cfg.Scheduler.RefreshSpec,
		pageSize:     cfg.Fundamentals.DerivedPageSize,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "dataset_refresh"
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run refreshes every configured dataset. One dataset failing does not
// stop the others; the job fails only if all of them do.
func (j *RefreshJob) Run(ctx context.Context) error {
	var all []fundamentals.Record
	refreshed := 0

	for _, dataset := range j.datasets {
		records, err := j.refreshDataset(ctx, dataset)
		if err != nil {
			j.logger.WithError(err).WithField("dataset", dataset).Error("Dataset refresh failed")
			continue
		}
		all = append(all, records...)
		refreshed++
	}

	if refreshed == 0 {
		return fmt.Errorf("all %d datasets failed to refresh", len(j.datasets))
	}

	if err := j.search.Rebuild(all); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}

	if j.hub != nil {
		j.hub.Broadcast(ws.Event{
			Type:    ws.EventRefresh,
			Payload: map[string]interface{}{"datasets": j.datasets},
		})
	}

	j.logger.WithFields(map[string]interface{}{
		"datasets": refreshed,
		"records":  len(all),
	}).Info("Datasets refreshed")

	return nil
}

// refreshDataset updates one dataset: constituents, fundamentals,
// cached pages.
func (j *RefreshJob) refreshDataset(ctx context.Context, dataset string) ([]fundamentals.Record, error) {
	symbols, err := j.universe.FetchConstituents(ctx, dataset)
	if err != nil {
		// Constituents only bound prefetching; fundamentals still
		// refresh without them.
		j.logger.WithError(err).WithField("dataset", dataset).Warn("Constituents fetch failed")
	} else if err := j.cache.Set(ctx, redis.UniverseKey(dataset), symbols, redis.TTLUniverse); err != nil {
		j.logger.WithError(err).Warn("Universe cache write failed")
	}

	page, err := j.fundamentals.FetchPage(ctx, source.PageRequest{
		Dataset: dataset,
		Offset:  0,
		Limit:   j.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals: %w", err)
	}

	records := make([]fundamentals.Record, 0, len(page.Rows))
	for _, raw := range page.Rows {
		records = append(records, fundamentals.Normalize(raw))
	}

	if err := j.orchestrator.Invalidate(ctx, dataset); err != nil {
		j.logger.WithError(err).WithField("dataset", dataset).Warn("Page cache invalidation failed")
	}

	return records, nil
}
