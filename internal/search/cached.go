// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Cache stores serialized result sets by key. internal/cache provides a
// Redis implementation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached wraps a Provider with a read-through cache. Cache errors are
// logged and never fail a search; empty result sets are not cached so a
// later query can still find something.
type Cached struct {
	Provider Provider
	Cache    Cache
	TTL      time.Duration
}

// Name returns the wrapped provider's name.
func (c *Cached) Name() string { return c.Provider.Name() }

// Search returns cached results when present, otherwise queries the
// wrapped provider and stores a non-empty answer.
func (c *Cached) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	log := logging.Get()
	key := cacheKey(c.Provider.Name(), query)

	if data, ok, err := c.Cache.Get(ctx, key); err != nil {
		log.Warn("search cache read failed", zap.Error(err))
	} else if ok {
		var results []types.SearchResult
		if err := json.Unmarshal(data, &results); err == nil {
			log.Debug("search cache hit", zap.String("query", query))
			return results, nil
		}
	}

	results, err := c.Provider.Search(ctx, query)
	if err != nil || len(results) == 0 {
		return results, err
	}

	data, err := json.Marshal(results)
	if err == nil {
		err = c.Cache.Set(ctx, key, data, c.TTL)
	}
	if err != nil {
		log.Warn("search cache write failed", zap.Error(err))
	}
	return results, nil
}

func cacheKey(provider, query string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(provider + "\x00" + norm))
	return "search:" + hex.EncodeToString(sum[:])
}
