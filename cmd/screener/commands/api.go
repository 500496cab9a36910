package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/api"
	"github.com/valuelens/screener/internal/api/handlers"
	"github.com/valuelens/screener/internal/api/ws"
	"github.com/valuelens/screener/internal/scheduler"
	"github.com/valuelens/screener/internal/source"
	"github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/internal/watchlist"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/database"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the screener API server",
	Long: `Starts the REST API server.

Endpoints:
  GET    /health
  GET    /api/screener/{dataset}
  GET    /api/screener/{dataset}/columns
  GET    /api/screener/{dataset}/layouts
  POST   /api/screener/{dataset}/layouts/{layout}/apply
  GET    /api/watchlists
  POST   /api/watchlists/{id}/symbols
  DELETE /api/watchlists/{id}/symbols/{symbol}
  POST   /api/watchlists/move
  POST   /api/watchlists/copy
  GET    /ws

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// Database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Redis page cache
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "screener")

	// Outbound HTTP
	httpClient := httputil.NewWithTimeout(log, cfg.Fundamentals.Timeout).
		WithRateLimit(cfg.Fundamentals.RateLimitRPS)

	// Source clients
	fundamentalsClient := source.NewFundamentalsClient(cfg, httpClient, log)
	universeClient := source.NewUniverseClient(cfg, httpClient, log)

	// Watchlists
	store := watchlist.NewRepository(db.Pool, log)
	reconciler := watchlist.NewReconciler(store, log)

	// Table pipeline
	gate := access.NewGate(cfg.Access)
	searchIndex, err := table.NewSearchIndex()
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	defer searchIndex.Close()

	orchestrator := table.NewOrchestrator(cfg, fundamentalsClient, gate, reconciler,
		searchIndex, cache, log)

	// Event stream
	hub := ws.NewHub(log)
	defer hub.Close()

	// Handlers and router
	screenerHandler := handlers.NewScreenerHandler(orchestrator, gate, log)
	watchlistHandler := handlers.NewWatchlistHandler(reconciler, hub, log)
	router := api.NewRouter(cfg, db, screenerHandler, watchlistHandler, hub, log)

	server := api.New(cfg, log, router)

	// Background refresh
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(log)

		refreshJob := scheduler.NewRefreshJob(cfg, fundamentalsClient, universeClient,
			orchestrator, searchIndex, cache, hub, log)
		if err := sched.AddJob(refreshJob); err != nil {
			return fmt.Errorf("add refresh job: %w", err)
		}
		if err := sched.AddJob(scheduler.NewSweepJob(cfg, orchestrator, log)); err != nil {
			return fmt.Errorf("add sweep job: %w", err)
		}

		sched.Start()
		defer sched.Stop()

		// Warm the search index before the first scheduled run.
		if err := sched.RunJob(refreshJob.Name()); err != nil {
			log.WithError(err).Warn("Initial refresh trigger failed")
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
