// Package catalog serves the aggregator model catalog through a
// Redis read-through cache. The cache is eventually consistent and
// rebuildable; a failed fetch degrades to an empty catalog.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

const cacheKey = "catalog:openrouter"

// Store is the catalog's backing source.
type Store interface {
	ListModelsByFamily(ctx context.Context, family string) ([]models.Model, error)
}

// Cache is the read-through layer in front of the store.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Catalog loads aggregator models from the store, caching the result.
type Catalog struct {
	store Store
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// New creates a catalog. cache may be nil to disable caching.
func New(store Store, cache Cache, ttl time.Duration, log zerolog.Logger) *Catalog {
	return &Catalog{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "catalog").Logger(),
	}
}

// Models returns the aggregator catalog. A fetch failure is logged
// and yields an empty catalog; it never fails the pipeline.
func (c *Catalog) Models(ctx context.Context) []models.Model {
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []models.Model
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached
			}
		}
	}

	rows, err := c.store.ListModelsByFamily(ctx, string(providers.FamilyOpenRouter))
	if err != nil {
		c.log.Warn().Err(err).Msg("catalog fetch failed, using empty catalog")
		return nil
	}

	if c.cache != nil {
		if data, err := json.Marshal(rows); err == nil {
			if err := c.cache.Set(ctx, cacheKey, string(data), c.ttl); err != nil {
				c.log.Warn().Err(err).Msg("failed to cache catalog")
			}
		}
	}

	return rows
}

// ModelNames returns just the catalog's model names, as consumed by
// the provider resolver.
func (c *Catalog) ModelNames(ctx context.Context) []string {
	rows := c.Models(ctx)
	names := make([]string, 0, len(rows))
	for _, m := range rows {
		names = append(names, m.Name)
	}
	return names
}
