package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching on top of the shared client.
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value. A miss (or disabled Redis) returns
// (false, nil), never an error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := c.fullKey(key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// DeleteByPrefix removes every cached key under the given key prefix.
// Used to drop all pages of a dataset after a refresh.
func (c *Cache) DeleteByPrefix(ctx context.Context, keyPrefix string) error {
	if !c.client.Enabled() {
		return nil
	}

	pattern := c.fullKey(keyPrefix) + "*"
	iter := c.client.Redis().Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Redis().Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete failed: %w", err)
		}
	}
	return iter.Err()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Predefined TTLs
const (
	TTLPage     = 10 * time.Minute // materialized table pages
	TTLUniverse = 24 * time.Hour   // index constituent lists
)

// PageKey builds the cache key for a materialized table page.
// The key carries everything that shapes the page content.
func PageKey(dataset string, offset, limit int, sortBy, sortOrder, search string) string {
	return fmt.Sprintf("page:%s:%d:%d:%s:%s:%s", dataset, offset, limit, sortBy, sortOrder, search)
}

// DatasetPrefix is the key prefix covering every cached page of a dataset.
func DatasetPrefix(dataset string) string {
	return fmt.Sprintf("page:%s:", dataset)
}

// UniverseKey builds the cache key for an index constituent list.
func UniverseKey(dataset string) string {
	return fmt.Sprintf("universe:%s", dataset)
}
