package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valuelens/screener/pkg/config"
)

func TestDisabledClient(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Enabled = false

	client, err := New(cfg)
	assert.NoError(t, err)
	assert.False(t, client.Enabled())

	// Cache over a disabled client is a silent no-op
	cache := NewCache(client, "screener")

	var out string
	found, err := cache.Get(t.Context(), "page:sp500:0:50:::", &out)
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(t.Context(), "k", "v", TTLPage))
	assert.NoError(t, cache.Delete(t.Context(), "k"))
	assert.NoError(t, cache.DeleteByPrefix(t.Context(), DatasetPrefix("sp500")))
}

func TestPageKey(t *testing.T) {
	key := PageKey("sp500", 50, 25, "fcfMargin", "desc", "apple")
	assert.Equal(t, "page:sp500:50:25:fcfMargin:desc:apple", key)

	// Every page key of a dataset falls under its prefix
	assert.Contains(t, key, DatasetPrefix("sp500"))
	assert.NotContains(t, key, DatasetPrefix("nasdaq100"))
}
