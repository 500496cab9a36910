package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/valuelens/screener/pkg/config"
	"github.com/valuelens/screener/pkg/httputil"
	"github.com/valuelens/screener/pkg/logger"
)

// PageRequest describes one fundamentals page fetch. SortBy must be
// empty when the sort column is computed locally: the source cannot
// order what it does not store, so the caller asks for a large
// unsorted page instead.
type PageRequest struct {
	Dataset   string
	Offset    int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string
}

// Page is the raw fundamentals response. Rows keep their source field
// names and pass through the normalizer before anything touches them.
type Page struct {
	Rows    []map[string]any `json:"rows"`
	Total   int              `json:"total"`
	HasMore bool             `json:"hasMore"`
}

// FundamentalsClient talks to the fundamentals source API.
// All fundamentals fetches go through this client.
type FundamentalsClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewFundamentalsClient creates a fundamentals source client
func NewFundamentalsClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *FundamentalsClient {
	return &FundamentalsClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Fundamentals.BaseURL,
		apiKey:     cfg.Fundamentals.APIKey,
	}
}

// FetchPage requests one page of raw fundamentals records
func (c *FundamentalsClient) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(req.Offset))
	params.Set("limit", strconv.Itoa(req.Limit))
	if req.SortBy != "" {
		params.Set("sortBy", req.SortBy)
		params.Set("sortOrder", req.SortOrder)
	}
	if req.Search != "" {
		params.Set("search", req.Search)
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	fullURL := fmt.Sprintf("%s/v1/fundamentals/%s?%s",
		c.baseURL, url.PathEscape(req.Dataset), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fundamentals request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode fundamentals page: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"dataset": req.Dataset,
		"offset":  req.Offset,
		"rows":    len(page.Rows),
		"total":   page.Total,
	}).Debug("Fetched fundamentals page")

	return &page, nil
}
