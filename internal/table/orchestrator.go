package table

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valuelens/screener/internal/access"
	"github.com/valuelens/screener/internal/fundamentals"
	"github.com/valuelens/screener/internal/metrics"
	"github.com/valuelens/screener/internal/rank"
	"github.com/valuelens/screener/internal/source"
	"github.com/valuelens/screener/internal/watchlist"
	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/logger"
	"github.com/valuelens/screener/pkg/redis"
)

// PageFetcher is the slice of the fundamentals client the orchestrator
// needs. Tests swap in a fake.
type PageFetcher interface {
	FetchPage(ctx context.Context, req source.PageRequest) (*source.Page, error)
}

// Query describes one table page request.
type Query struct {
	Dataset   string
	Offset    int
	Limit     int
	SortBy    string
	SortOrder rank.Direction
	Search    string
	User      access.Entitlement
}

// Row is one rendered table row. Watchlists and PendingState come from
// the reconciler at render time and are never cached with the row.
type Row struct {
	Rank         int                `json:"rank"`
	Record       fundamentals.Record `json:"record"`
	Derived      metrics.View       `json:"derived"`
	Watchlists   []string           `json:"watchlists,omitempty"`
	PendingState string             `json:"pendingState,omitempty"`
}

// Page is one rendered table page. Stale marks data served from the
// last good materialization after a failed source fetch.
type Page struct {
	Rows    []Row      `json:"rows"`
	Total   int        `json:"total"`
	HasMore bool       `json:"hasMore"`
	Sort    *rank.Spec `json:"sort,omitempty"`
	Stale   bool       `json:"stale,omitempty"`
}

// cached page payload; watchlist membership is joined after this
type pagePayload struct {
	Rows    []payloadRow `json:"rows"`
	Total   int          `json:"total"`
	HasMore bool         `json:"hasMore"`
}

type payloadRow struct {
	Record  fundamentals.Record `json:"record"`
	Derived metrics.View        `json:"derived"`
}

// Orchestrator composes the normalizer, metrics calculator, rank
// engine and access gate into table pages. One instance serves all
// users; per-user state lives in the reconciler and the entitlement
// carried by each query.
type Orchestrator struct {
	fetcher    PageFetcher
	gate       *access.Gate
	reconciler *watchlist.Reconciler
	search     *SearchIndex
	cache      *redis.Cache
	logger     *logger.Logger

	// derivedPageSize bounds the single large fetch used when sorting
	// by a locally computed column.
	derivedPageSize int

	// lastGood keeps the most recent successful materialization per
	// page key for stale-while-revalidate. Swept periodically; the
	// key space grows with every distinct search string.
	mu       sync.RWMutex
	lastGood map[string]*staleEntry
}

type staleEntry struct {
	payload *pagePayload
	at      time.Time
}

// NewOrchestrator wires the table pipeline
func NewOrchestrator(cfg *config.Config, fetcher PageFetcher, gate *access.Gate,
	reconciler *watchlist.Reconciler, search *SearchIndex, cache *redis.Cache,
	log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:         fetcher,
		gate:            gate,
		reconciler:      reconciler,
		search:          search,
		cache:           cache,
		logger:          log,
		derivedPageSize: cfg.Fundamentals.DerivedPageSize,
		lastGood:        make(map[string]*staleEntry),
	}
}

// Page renders one table page. On a source fetch failure it serves the
// previous materialization of the same page, marked Stale, alongside
// the error; callers decide whether that is a 200 or a retry surface.
func (o *Orchestrator) Page(ctx context.Context, q Query) (*Page, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	if q.SortBy != "" {
		if err := o.gate.CheckSort(q.SortBy, q.User, q.Dataset); err != nil {
			return nil, err
		}
		if q.SortOrder != rank.Ascending && q.SortOrder != rank.Descending {
			col, _ := access.Column(q.SortBy)
			q.SortOrder = rank.DefaultDirection(col.HigherIsBetter)
		}
	}

	key := redis.PageKey(q.Dataset, q.Offset, q.Limit, q.SortBy, string(q.SortOrder), q.Search)

	var payload pagePayload
	hit, err := o.cache.Get(ctx, key, &payload)
	if err != nil {
		o.logger.WithError(err).Warn("Page cache read failed")
	}

	if !hit {
		fresh, err := o.materialize(ctx, q)
		if err != nil {
			o.mu.RLock()
			stale := o.lastGood[key]
			o.mu.RUnlock()
			if stale == nil {
				return nil, err
			}
			o.logger.WithError(err).WithField("dataset", q.Dataset).
				Warn("Source fetch failed, serving stale page")
			page := o.render(stale.payload, q)
			page.Stale = true
			return page, err
		}
		payload = *fresh

		o.mu.Lock()
		o.lastGood[key] = &staleEntry{payload: fresh, at: time.Now()}
		o.mu.Unlock()

		if err := o.cache.Set(ctx, key, fresh, redis.TTLPage); err != nil {
			o.logger.WithError(err).Warn("Page cache write failed")
		}

		o.prefetchNext(q, payload.HasMore)
	}

	return o.render(&payload, q), nil
}

// materialize builds the page payload from the source, choosing the
// server-sorted path or the local derived-sort path.
func (o *Orchestrator) materialize(ctx context.Context, q Query) (*pagePayload, error) {
	if q.SortBy != "" && access.IsDerived(q.SortBy) {
		return o.materializeDerived(ctx, q)
	}
	return o.materializeServer(ctx, q)
}

// materializeServer delegates sorting and pagination to the source and
// trusts the returned order.
func (o *Orchestrator) materializeServer(ctx context.Context, q Query) (*pagePayload, error) {
	page, err := o.fetcher.FetchPage(ctx, source.PageRequest{
		Dataset:   q.Dataset,
		Offset:    q.Offset,
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		SortOrder: string(q.SortOrder),
		Search:    q.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	rows := make([]payloadRow, 0, len(page.Rows))
	for _, raw := range page.Rows {
		rec := fundamentals.Normalize(raw)
		rows = append(rows, payloadRow{Record: rec, Derived: metrics.Derive(&rec)})
	}

	return &pagePayload{Rows: rows, Total: page.Total, HasMore: page.HasMore}, nil
}

// materializeDerived fetches one large unsorted page, derives metrics
// for every row, filters, sorts locally and slices out the window.
func (o *Orchestrator) materializeDerived(ctx context.Context, q Query) (*pagePayload, error) {
	page, err := o.fetcher.FetchPage(ctx, source.PageRequest{
		Dataset: q.Dataset,
		Offset:  0,
		Limit:   o.derivedPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch derived page: %w", err)
	}

	rows := make([]payloadRow, 0, len(page.Rows))
	for _, raw := range page.Rows {
		rec := fundamentals.Normalize(raw)
		rows = append(rows, payloadRow{Record: rec, Derived: metrics.Derive(&rec)})
	}

	rows, err = o.filterSearch(rows, q.Search)
	if err != nil {
		return nil, err
	}

	rank.Sort(rows, sortKey(q.SortBy), q.SortOrder)

	total := len(rows)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return &pagePayload{
		Rows:    rows[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// filterSearch keeps rows whose symbol matches the search index. When
// the index has no match set it falls back to a substring check so a
// cold index never blanks the table.
func (o *Orchestrator) filterSearch(rows []payloadRow, query string) ([]payloadRow, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return rows, nil
	}

	matched, err := o.search.Match(query)
	if err != nil {
		o.logger.WithError(err).Warn("Search index query failed")
	}

	lower := strings.ToLower(query)
	filtered := rows[:0]
	for _, r := range rows {
		ok := matched[r.Record.Symbol]
		if !ok && matched == nil {
			ok = strings.Contains(strings.ToLower(r.Record.Symbol), lower) ||
				strings.Contains(strings.ToLower(r.Record.Name), lower)
		}
		if ok {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// render joins live watchlist state onto the payload and assigns ranks
func (o *Orchestrator) render(payload *pagePayload, q Query) *Page {
	rows := make([]Row, 0, len(payload.Rows))
	for i, pr := range payload.Rows {
		row := Row{
			Rank:    q.Offset + i + 1,
			Record:  pr.Record,
			Derived: pr.Derived,
		}
		if o.reconciler != nil && q.User.UserID != "" {
			row.Watchlists = o.reconciler.Membership(q.User.UserID, pr.Record.Symbol)
			if state, ok := o.reconciler.Pending(q.User.UserID, pr.Record.Symbol); ok {
				row.PendingState = string(state)
			}
		}
		rows = append(rows, row)
	}

	page := &Page{
		Rows:    rows,
		Total:   payload.Total,
		HasMore: payload.HasMore,
	}
	if q.SortBy != "" {
		page.Sort = &rank.Spec{
			ColumnID:  q.SortBy,
			Direction: q.SortOrder,
			Derived:   access.IsDerived(q.SortBy),
		}
	}
	return page
}

// prefetchNext warms the cache for the following page in the
// background. Failures are logged and dropped.
func (o *Orchestrator) prefetchNext(q Query, hasMore bool) {
	if !hasMore {
		return
	}

	next := q
	next.Offset = q.Offset + q.Limit

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		key := redis.PageKey(next.Dataset, next.Offset, next.Limit,
			next.SortBy, string(next.SortOrder), next.Search)

		var existing pagePayload
		if hit, _ := o.cache.Get(ctx, key, &existing); hit {
			return
		}

		payload, err := o.materialize(ctx, next)
		if err != nil {
			o.logger.WithError(err).Debug("Prefetch failed")
			return
		}

		o.mu.Lock()
		o.lastGood[key] = &staleEntry{payload: payload, at: time.Now()}
		o.mu.Unlock()

		if err := o.cache.Set(ctx, key, payload, redis.TTLPage); err != nil {
			o.logger.WithError(err).Debug("Prefetch cache write failed")
		}
	}()
}

// Invalidate drops every cached page of a dataset. The refresh job
// calls this after a successful re-fetch.
func (o *Orchestrator) Invalidate(ctx context.Context, dataset string) error {
	o.mu.Lock()
	prefix := fmt.Sprintf("page:%s:", dataset)
	for k := range o.lastGood {
		if strings.HasPrefix(k, prefix) {
			delete(o.lastGood, k)
		}
	}
	o.mu.Unlock()

	return o.cache.DeleteByPrefix(ctx, redis.DatasetPrefix(dataset))
}

// SweepStale drops stale-fallback materializations older than maxAge
// and returns how many were removed.
func (o *Orchestrator) SweepStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for k, entry := range o.lastGood {
		if entry.at.Before(cutoff) {
			delete(o.lastGood, k)
			removed++
		}
	}
	return removed
}

// verdict order for local sorting: undervalued ranks ahead of fairly
// valued ahead of overvalued; missing verdicts sort last.
func verdictKey(v metrics.Verdict) any {
	switch v {
	case metrics.VerdictUndervalued:
		return 0.0
	case metrics.VerdictFairlyValued:
		return 1.0
	case metrics.VerdictOvervalued:
		return 2.0
	}
	return nil
}

// sortKey maps a column id onto a row key extractor for the rank
// engine. Unknown ids yield nil keys, which sort last.
func sortKey(columnID string) func(payloadRow) any {
	switch columnID {
	case "name":
		return func(r payloadRow) any { return r.Record.Name }
	case "marketCap":
		return func(r payloadRow) any { return r.Record.MarketCap }
	case "price":
		return func(r payloadRow) any { return r.Record.Price }
	case "revenue":
		return func(r payloadRow) any { return r.Record.Revenue }
	case "netIncome":
		return func(r payloadRow) any { return r.Record.NetIncome }
	case "netProfitMargin":
		return func(r payloadRow) any { return r.Record.NetProfitMargin }
	case "fcfMargin":
		return func(r payloadRow) any { return r.Derived.FCFMargin }
	case "fcfMarginMedian10Y":
		return func(r payloadRow) any { return r.Record.FCFMarginMedian10Y }
	case "revenueGrowth1Y":
		return func(r payloadRow) any { return r.Derived.RevenueGrowth1Y }
	case "revenueGrowth5Y":
		return func(r payloadRow) any { return r.Record.RevenueGrowth5Y }
	case "revenueGrowth10Y":
		return func(r payloadRow) any { return r.Record.RevenueGrowth10Y }
	case "roic10YAvg":
		return func(r payloadRow) any { return r.Record.ROIC10YAvg }
	case "roicStability":
		return func(r payloadRow) any { return r.Derived.ROICStability }
	case "roicStabilityScore":
		return func(r payloadRow) any { return r.Derived.ROICStabilityScore }
	case "projectedRevenue5Y":
		return func(r payloadRow) any { return r.Derived.ProjectedRevenue5Y }
	case "projectedRevenue10Y":
		return func(r payloadRow) any { return r.Derived.ProjectedRevenue10Y }
	case "projectedEarnings5Y":
		return func(r payloadRow) any { return r.Derived.ProjectedEarnings5Y }
	case "projectedEarnings10Y":
		return func(r payloadRow) any { return r.Derived.ProjectedEarnings10Y }
	case "marketCapToEarnings5Y":
		return func(r payloadRow) any { return r.Derived.MarketCapToEarnings5Y }
	case "marketCapToEarnings10Y":
		return func(r payloadRow) any { return r.Derived.MarketCapToEarnings10Y }
	case "dcfImpliedGrowth":
		return func(r payloadRow) any { return r.Record.DCFImpliedGrowth }
	case "marginOfSafety":
		return func(r payloadRow) any { return r.Record.MarginOfSafety }
	case "dcfVerdict":
		return func(r payloadRow) any { return verdictKey(r.Derived.DCFVerdict) }
	}
	return func(r payloadRow) any { return nil }
}
