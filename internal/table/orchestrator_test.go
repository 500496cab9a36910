package table

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/fundamentals"
	"github.com/valuelens/screener/internal/rank"
	"github.com/valuelens/screener/internal/source"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

type fakeFetcher struct {
	mu       sync.Mutex
	requests []source.PageRequest
	page     *source.Page
	err      error
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req source.PageRequest) (*source.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

func (f *fakeFetcher) request(i int) source.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func rawRow(symbol, name string, marketCap, fcf, revenue float64) map[string]any {
	return map[string]any{
		"symbol":    symbol,
		"name":      name,
		"marketCap": marketCap,
		"fcf":       fcf,
		"revenue":   revenue,
	}
}

func normalizeAll(page *source.Page) []fundamentals.Record {
	records := make([]fundamentals.Record, 0, len(page.Rows))
	for _, raw := range page.Rows {
		records = append(records, fundamentals.Normalize(raw))
	}
	return records
}

func newTestOrchestrator(t *testing.T, fetcher *fakeFetcher) *Orchestrator {
	t.Helper()

	cfg := &config.Config{}
	cfg.Fundamentals.DerivedPageSize = 600
	cfg.Access.FreeDataset = "sp500"
	cfg.Access.PaidTiers = []string{"pro", "premium"}

	client, err := redis.New(&config.Config{})
	require.NoError(t, err)

	idx, err := NewSearchIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	gate := access.NewGate(cfg.Access)
	return NewOrchestrator(cfg, fetcher, gate, nil, idx, redis.NewCache(client, "test"), logger.Nop())
}

func paidUser() access.Entitlement {
	return access.Entitlement{UserID: "u1", Tier: "pro"}
}

func TestPageServerSortPassesThrough(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			rawRow("AAA", "Alpha", 300, 30, 100),
			rawRow("BBB", "Beta", 200, 20, 100),
		},
		Total:   120,
		HasMore: true,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Offset: 10, Limit: 2,
		SortBy: "marketCap", SortOrder: rank.Descending,
		User: paidUser(),
	})
	require.NoError(t, err)

	req := fetcher.request(0)
	assert.Equal(t, "marketCap", req.SortBy)
	assert.Equal(t, "desc", req.SortOrder)
	assert.Equal(t, 10, req.Offset)
	assert.Equal(t, 2, req.Limit)

	// Source order is trusted as-is.
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "AAA", page.Rows[0].Record.Symbol)
	assert.Equal(t, "BBB", page.Rows[1].Record.Symbol)
	assert.Equal(t, 120, page.Total)
	assert.True(t, page.HasMore)

	// Rank numbering continues from the offset.
	assert.Equal(t, 11, page.Rows[0].Rank)
	assert.Equal(t, 12, page.Rows[1].Rank)
}

func TestPageDerivedSortFetchesLargeUnsortedPage(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			rawRow("LOW", "Low Margin", 100, 5, 100),    // fcfMargin 0.05
			rawRow("HIGH", "High Margin", 100, 40, 100), // fcfMargin 0.40
			rawRow("MID", "Mid Margin", 100, 20, 100),   // fcfMargin 0.20
			{"symbol": "NONE", "name": "No Data"},       // fcfMargin nil
		},
		Total: 4,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Offset: 0, Limit: 10,
		SortBy: "fcfMargin", SortOrder: rank.Descending,
		User: paidUser(),
	})
	require.NoError(t, err)

	req := fetcher.request(0)
	assert.Empty(t, req.SortBy, "derived sort must not be delegated to the source")
	assert.Equal(t, 600, req.Limit)
	assert.Equal(t, 0, req.Offset)

	symbols := make([]string, 0, len(page.Rows))
	for _, r := range page.Rows {
		symbols = append(symbols, r.Record.Symbol)
	}
	assert.Equal(t, []string{"HIGH", "MID", "LOW", "NONE"}, symbols)
}

func TestPageDerivedSortNullsLastAscending(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			{"symbol": "NONE", "name": "No Data"},
			rawRow("HIGH", "High Margin", 100, 40, 100),
			rawRow("LOW", "Low Margin", 100, 5, 100),
		},
		Total: 3,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "fcfMargin", SortOrder: rank.Ascending,
		User: paidUser(),
	})
	require.NoError(t, err)

	symbols := make([]string, 0, len(page.Rows))
	for _, r := range page.Rows {
		symbols = append(symbols, r.Record.Symbol)
	}
	assert.Equal(t, []string{"LOW", "HIGH", "NONE"}, symbols)
}

func TestPageDerivedSortSlicesWindow(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			rawRow("A", "A Co", 100, 10, 100),
			rawRow("B", "B Co", 100, 20, 100),
			rawRow("C", "C Co", 100, 30, 100),
			rawRow("D", "D Co", 100, 40, 100),
		},
		Total: 4,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Offset: 1, Limit: 2,
		SortBy: "fcfMargin", SortOrder: rank.Descending,
		User: paidUser(),
	})
	require.NoError(t, err)

	require.Len(t, page.Rows, 2)
	assert.Equal(t, "C", page.Rows[0].Record.Symbol)
	assert.Equal(t, "B", page.Rows[1].Record.Symbol)
	assert.Equal(t, 4, page.Total)
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.Rows[0].Rank)
}

func TestPageLockedSortRejected(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{}}
	o := newTestOrchestrator(t, fetcher)

	_, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "roicStabilityScore",
		User:   access.Entitlement{UserID: "u1", Tier: "free"},
	})
	assert.ErrorIs(t, err, access.ErrColumnLocked)
	assert.Zero(t, fetcher.count(), "gate must reject before any fetch")
}

func TestPageFreeDatasetExemptFromGate(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows:  []map[string]any{rawRow("AAA", "Alpha", 100, 10, 100)},
		Total: 1,
	}}
	o := newTestOrchestrator(t, fetcher)

	_, err := o.Page(context.Background(), Query{
		Dataset: "sp500", Limit: 10,
		SortBy: "roicStabilityScore",
		User:   access.Entitlement{UserID: "u1", Tier: "free"},
	})
	assert.NoError(t, err)
}

func TestPageDefaultSortDirection(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows:  []map[string]any{rawRow("AAA", "Alpha", 100, 10, 100)},
		Total: 1,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "marketCap",
		User:   paidUser(),
	})
	require.NoError(t, err)

	// marketCap is higher-is-better, so the first click sorts descending.
	assert.Equal(t, "desc", fetcher.request(0).SortOrder)
	require.NotNil(t, page.Sort)
	assert.Equal(t, rank.Spec{ColumnID: "marketCap", Direction: rank.Descending}, *page.Sort)
}

func TestPageStaleServedAfterFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows:  []map[string]any{rawRow("AAA", "Alpha", 100, 10, 100)},
		Total: 1,
	}}
	o := newTestOrchestrator(t, fetcher)

	q := Query{Dataset: "nasdaq100", Limit: 10, User: paidUser()}

	first, err := o.Page(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)
	assert.False(t, first.Stale)

	fetcher.mu.Lock()
	fetcher.err = errors.New("source down")
	fetcher.mu.Unlock()

	second, err := o.Page(context.Background(), q)
	assert.Error(t, err)
	require.NotNil(t, second, "previous data must survive a failed fetch")
	assert.True(t, second.Stale)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, "AAA", second.Rows[0].Record.Symbol)
}

func TestPageFetchFailureWithoutHistory(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("source down")}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{Dataset: "nasdaq100", Limit: 10, User: paidUser()})
	assert.Error(t, err)
	assert.Nil(t, page)
}

func TestPageSearchFiltersDerivedPath(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			rawRow("AAPL", "Apple Inc", 100, 10, 100),
			rawRow("MSFT", "Microsoft", 100, 20, 100),
		},
		Total: 2,
	}}
	o := newTestOrchestrator(t, fetcher)

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "fcfMargin", SortOrder: rank.Descending,
		Search: "apple",
		User:   paidUser(),
	})
	require.NoError(t, err)

	require.Len(t, page.Rows, 1)
	assert.Equal(t, "AAPL", page.Rows[0].Record.Symbol)
	assert.Equal(t, 1, page.Total)
}

func TestPageSearchFiltersWithRebuiltIndex(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{
		Rows: []map[string]any{
			rawRow("AAPL", "Apple Inc", 100, 10, 100),
			rawRow("MSFT", "Microsoft", 100, 20, 100),
		},
		Total: 2,
	}}
	o := newTestOrchestrator(t, fetcher)
	require.NoError(t, o.search.Rebuild(normalizeAll(fetcher.page)))

	page, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "fcfMargin", SortOrder: rank.Descending,
		Search: "microsoft",
		User:   paidUser(),
	})
	require.NoError(t, err)

	require.Len(t, page.Rows, 1)
	assert.Equal(t, "MSFT", page.Rows[0].Record.Symbol)
}

func TestPageSearchPassedThroughOnServerSort(t *testing.T) {
	fetcher := &fakeFetcher{page: &source.Page{Total: 0}}
	o := newTestOrchestrator(t, fetcher)

	_, err := o.Page(context.Background(), Query{
		Dataset: "nasdaq100", Limit: 10,
		SortBy: "marketCap", SortOrder: rank.Descending,
		Search: "apple",
		User:   paidUser(),
	})
	require.NoError(t, err)

	assert.Equal(t, "apple", fetcher.request(0).Search)
}

func TestSearchIndexMatch(t *testing.T) {
	idx, err := NewSearchIndex()
	require.NoError(t, err)
	defer idx.Close()

	page := &source.Page{Rows: []map[string]any{
		rawRow("AAPL", "Apple Inc", 100, 10, 100),
		rawRow("MSFT", "Microsoft Corporation", 100, 20, 100),
		rawRow("GOOG", "Alphabet Inc", 100, 30, 100),
	}}

	records := normalizeAll(page)
	require.NoError(t, idx.Rebuild(records))

	matched, err := idx.Match("aapl")
	require.NoError(t, err)
	assert.True(t, matched["AAPL"])
	assert.False(t, matched["MSFT"])

	matched, err = idx.Match("microsoft")
	require.NoError(t, err)
	assert.True(t, matched["MSFT"])

	matched, err = idx.Match("")
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestSearchIndexRebuildReplaces(t *testing.T) {
	idx, err := NewSearchIndex()
	require.NoError(t, err)
	defer idx.Close()

	first := normalizeAll(&source.Page{Rows: []map[string]any{
		rawRow("AAPL", "Apple Inc", 100, 10, 100),
	}})
	require.NoError(t, idx.Rebuild(first))

	second := normalizeAll(&source.Page{Rows: []map[string]any{
		rawRow("MSFT", "Microsoft", 100, 20, 100),
	}})
	require.NoError(t, idx.Rebuild(second))

	matched, err := idx.Match("aapl")
	require.NoError(t, err)
	assert.False(t, matched["AAPL"], "dropped symbols must not match after rebuild")

	matched, err = idx.Match("msft")
	require.NoError(t, err)
	assert.True(t, matched["MSFT"])
}

func TestSearchIndexColdReportsNoMatchSet(t *testing.T) {
	idx, err := NewSearchIndex()
	require.NoError(t, err)
	defer idx.Close()

	// Before the first rebuild the index knows nothing; it must report
	// no match set so callers fall back to their own filtering instead
	// of blanking the table.
	matched, err := idx.Match("aapl")
	require.NoError(t, err)
	assert.Nil(t, matched)

	require.NoError(t, idx.Rebuild(nil))

	// A rebuilt-but-empty universe is authoritative: nothing matches.
	matched, err = idx.Match("aapl")
	require.NoError(t, err)
	assert.NotNil(t, matched)
	assert.Empty(t, matched)
}
