package commands

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/rank"
	"github.com/valuelens/screener/internal/source"
	screentable "github.com/valuelens/screener/internal/table"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

// screenCmd renders one ranked table page to stdout
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Print one ranked screener page",
	Long: `Fetches, derives and ranks one page of the analytics table and
prints it.

Examples:
  go run ./cmd/screener screen --dataset sp500
  go run ./cmd/screener screen --dataset nasdaq100 --sort fcfMargin --limit 25
  go run ./cmd/screener screen --sort roicStabilityScore --tier pro`,
	RunE: runScreen,
}

var (
	screenDataset string
	screenSort    string
	screenOrder   string
	screenLimit   int
	screenSearch  string
	screenTier    string
	screenUser    string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenDataset, "dataset", "sp500", "dataset to screen")
	screenCmd.Flags().StringVar(&screenSort, "sort", "", "column id to sort by")
	screenCmd.Flags().StringVar(&screenOrder, "order", "", "sort order (asc|desc)")
	screenCmd.Flags().IntVar(&screenLimit, "limit", 20, "rows to print")
	screenCmd.Flags().StringVar(&screenSearch, "search", "", "filter by symbol or name")
	screenCmd.Flags().StringVar(&screenTier, "tier", "free", "subscription tier to screen as")
	screenCmd.Flags().StringVar(&screenUser, "user", "", "resolve tier from the billing service for this user")
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	ctx := context.Background()

	httpClient := httputil.NewWithTimeout(log, cfg.Fundamentals.Timeout).
		WithRateLimit(cfg.Fundamentals.RateLimitRPS)

	// Resolve the caller's entitlement: billing service when --user is
	// given, static tier otherwise.
	var resolver source.TierResolver = source.StaticTierResolver{Tier: screenTier}
	if screenUser != "" {
		resolver = source.NewTierClient(cfg, httpClient, log)
	}
	ent, err := resolver.Resolve(ctx, screenUser)
	if err != nil {
		return fmt.Errorf("resolve tier: %w", err)
	}

	// One-shot pipeline: no redis, no watchlists. A zero config yields
	// a disabled client whose cache is a no-op.
	redisClient, err := redis.New(&config.Config{})
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	searchIndex, err := screentable.NewSearchIndex()
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	defer searchIndex.Close()

	gate := access.NewGate(cfg.Access)
	fundamentalsClient := source.NewFundamentalsClient(cfg, httpClient, log)
	orchestrator := screentable.NewOrchestrator(cfg, fundamentalsClient, gate, nil,
		searchIndex, redis.NewCache(redisClient, "screen"), log)

	page, err := orchestrator.Page(ctx, screentable.Query{
		Dataset:   screenDataset,
		Limit:     screenLimit,
		SortBy:    screenSort,
		SortOrder: rank.Direction(screenOrder),
		Search:    screenSearch,
		User:      ent,
	})
	if err != nil {
		return err
	}

	renderPage(page, gate, ent)
	return nil
}

// renderPage prints the page for the caller's unlocked columns
func renderPage(page *screentable.Page, gate *access.Gate, ent access.Entitlement) {
	cols := visibleColumns(gate, ent)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false

	hdr := make(table.Row, len(cols))
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		hdr[i] = strings.ToUpper(c.Label)
		if c.ID != "name" && c.ID != "dcfVerdict" {
			cfgs = append(cfgs, table.ColumnConfig{
				Number: i + 1, Align: text.AlignRight, AlignHeader: text.AlignRight,
			})
		}
	}
	tw.AppendHeader(hdr)
	tw.SetColumnConfigs(cfgs)

	for _, r := range page.Rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = cellValue(r, c.ID)
		}
		tw.AppendRow(row)
	}

	tw.Render()
	fmt.Printf("\n%d of %d rows", len(page.Rows), page.Total)
	if page.Stale {
		fmt.Print(" (stale)")
	}
	fmt.Println()
}

func visibleColumns(gate *access.Gate, ent access.Entitlement) []access.ColumnDescriptor {
	out := make([]access.ColumnDescriptor, 0, 8)
	for _, cv := range gate.ColumnsFor(ent, screenDataset) {
		if cv.ID == "watchlist" {
			continue
		}
		if cv.DefaultVisible && !cv.Locked {
			out = append(out, cv.ColumnDescriptor)
		}
	}
	return out
}

func cellValue(r screentable.Row, columnID string) string {
	switch columnID {
	case "rank":
		return fmt.Sprintf("%d", r.Rank)
	case "name":
		if r.Record.Name != "" {
			return r.Record.Name
		}
		return r.Record.Symbol
	case "marketCap":
		return humanize(r.Record.MarketCap)
	case "price":
		return formatFixed(r.Record.Price, 2)
	case "netProfitMargin":
		return formatPercent(r.Record.NetProfitMargin)
	case "fcfMargin":
		return formatPercent(r.Derived.FCFMargin)
	case "revenueGrowth10Y":
		// Persisted growth comes in percent points already.
		if r.Record.RevenueGrowth10Y == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f%%", *r.Record.RevenueGrowth10Y)
	case "roicStabilityScore":
		return formatFixed(r.Derived.ROICStabilityScore, 0)
	case "marginOfSafety":
		return formatPercent(r.Record.MarginOfSafety)
	case "dcfVerdict":
		return string(r.Derived.DCFVerdict)
	}
	return ""
}

// humanize renders a large value with a T/B/M suffix
func humanize(v *float64) string {
	if v == nil {
		return "-"
	}
	abs := math.Abs(*v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", *v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", *v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", *v/1e6)
	}
	return fmt.Sprintf("%.0f", *v)
}

func formatFixed(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}

// formatPercent renders a ratio as a percentage
func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
