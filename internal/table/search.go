package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/valuelens/screener/internal/fundamentals"
)

// SearchIndex is an in-memory full-text index over symbol and company
// name. It backs the search box for locally sorted pages; server-sorted
// pages pass the query through to the fundamentals API instead.
type SearchIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	populated bool
}

type searchDoc struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// NewSearchIndex creates an empty index. Call Rebuild after each
// dataset refresh to swap in the new universe.
func NewSearchIndex() (*SearchIndex, error) {
	index, err := bleve.NewMemOnly(buildSearchMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &SearchIndex{index: index}, nil
}

func buildSearchMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = true
	textFieldMapping.Index = true
	docMapping.AddFieldMappingsAt("symbol", textFieldMapping)
	docMapping.AddFieldMappingsAt("name", textFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Rebuild replaces the index contents with the given records. The old
// index stays queryable until the swap completes.
func (s *SearchIndex) Rebuild(records []fundamentals.Record) error {
	next, err := bleve.NewMemOnly(buildSearchMapping())
	if err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}

	batch := next.NewBatch()
	for _, rec := range records {
		if rec.Symbol == "" {
			continue
		}
		doc := searchDoc{Symbol: rec.Symbol, Name: rec.Name}
		if err := batch.Index(rec.Symbol, doc); err != nil {
			next.Close()
			return fmt.Errorf("failed to add to batch: %w", err)
		}
	}
	if err := next.Batch(batch); err != nil {
		next.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = next
	s.populated = true
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Match returns the set of symbols whose symbol or name matches the
// query. An empty query matches nothing; callers skip filtering then.
// Before the first Rebuild lands the index knows no symbols at all, so
// Match reports no match set (nil) rather than an empty one, and the
// caller falls back to its own filtering.
func (s *SearchIndex) Match(query string) (map[string]bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	s.mu.RLock()
	populated := s.populated
	s.mu.RUnlock()
	if !populated {
		return nil, nil
	}

	// Exact symbol match first, then prefix, then name words, then
	// substring anywhere. Boosts only affect ranking; membership is
	// what the table filter consumes.
	exactQuery := bleve.NewTermQuery(strings.ToLower(query))
	exactQuery.SetField("symbol")
	exactQuery.SetBoost(10.0)

	prefixQuery := bleve.NewPrefixQuery(strings.ToLower(query))
	prefixQuery.SetField("symbol")
	prefixQuery.SetBoost(5.0)

	nameMatchQuery := bleve.NewMatchQuery(query)
	nameMatchQuery.SetField("name")
	nameMatchQuery.SetBoost(3.0)

	wildcardSymbol := bleve.NewWildcardQuery("*" + strings.ToLower(query) + "*")
	wildcardSymbol.SetField("symbol")
	wildcardSymbol.SetBoost(2.0)

	wildcardName := bleve.NewWildcardQuery("*" + strings.ToLower(query) + "*")
	wildcardName.SetField("name")
	wildcardName.SetBoost(1.0)

	searchQuery := bleve.NewDisjunctionQuery(
		exactQuery,
		prefixQuery,
		nameMatchQuery,
		wildcardSymbol,
		wildcardName,
	)

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"symbol"}
	searchRequest.Size = 1000

	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()

	searchResults, err := index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	matched := make(map[string]bool, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		matched[hit.ID] = true
	}
	return matched, nil
}

// Close releases the underlying index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
