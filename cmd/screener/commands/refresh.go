package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/scheduler"
	"github.com/valuelens/screener/internal/source"
	"github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

// refreshCmd runs one dataset refresh cycle and exits
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh datasets once and exit",
	Long: `Re-fetches every configured dataset, rebuilds the search index
and drops cached pages. The api command also runs this on a schedule;
this command is for cron-less deployments and manual refreshes.

Example:
  go run ./cmd/screener refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "screener")

	httpClient := httputil.NewWithTimeout(log, cfg.Fundamentals.Timeout).
		WithRateLimit(cfg.Fundamentals.RateLimitRPS)

	fundamentalsClient := source.NewFundamentalsClient(cfg, httpClient, log)
	universeClient := source.NewUniverseClient(cfg, httpClient, log)

	searchIndex, err := table.NewSearchIndex()
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	defer searchIndex.Close()

	orchestrator := table.NewOrchestrator(cfg, fundamentalsClient, access.NewGate(cfg.Access),
		nil, searchIndex, cache, log)

	job := scheduler.NewRefreshJob(cfg, fundamentalsClient, universeClient,
		orchestrator, searchIndex, cache, nil, log)

	if err := job.Run(context.Background()); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Println("Refresh complete")
	return nil
}
