package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
)

// UniverseClient scrapes index constituent lists. Datasets map to
// index pages on the configured host; the refresh job uses the symbol
// lists to bound prefetching.
type UniverseClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewUniverseClient creates an index constituents client
func NewUniverseClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *UniverseClient {
	return &UniverseClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Universe.BaseURL,
	}
}

var symbolRe = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// FetchConstituents scrapes the symbols of one index page. Pages list
// constituents in a table whose symbol cells link to /symbol/{SYM}.
func (c *UniverseClient) FetchConstituents(ctx context.Context, dataset string) ([]string, error) {
	fullURL := fmt.Sprintf("%s/%s", c.baseURL, dataset)

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("universe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse universe page: %w", err)
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, 512)

	doc.Find("table tbody tr td a").Each(func(i int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, "/symbol/") {
			return
		}

		sym := strings.TrimSpace(sel.Text())
		if !symbolRe.MatchString(sym) || seen[sym] {
			return
		}

		seen[sym] = true
		symbols = append(symbols, sym)
	})

	if len(symbols) == 0 {
		return nil, fmt.Errorf("no constituents found for %s", dataset)
	}

	c.logger.WithFields(map[string]interface{}{
		"dataset": dataset,
		"count":   len(symbols),
	}).Debug("Fetched index constituents")

	return symbols, nil
}
