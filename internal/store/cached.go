package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/marketdata"
	"dividend-recovery/internal/models"
)

// DefaultCacheTTL is how long a download is served from the cache before refetching.
const DefaultCacheTTL = 24 * time.Hour

// CacheConfig holds configuration for a CachedSource.
type CacheConfig struct {
	// TTL is how old a cached download may be before it is considered stale.
	TTL time.Duration
	// ServeStale returns a stale entry when the upstream source fails.
	ServeStale bool
	Logger     *zerolog.Logger
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// CachedSource memoizes a market data source in a HistoryStore, keyed by source,
// symbol and requested range.
type CachedSource struct {
	upstream marketdata.Source
	store    HistoryStore
	ttl      time.Duration
	stale    bool
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCachedSource wraps upstream with the history cache.
func NewCachedSource(upstream marketdata.Source, store HistoryStore, cfg CacheConfig) *CachedSource {
	c := &CachedSource{
		upstream: upstream,
		store:    store,
		ttl:      cfg.TTL,
		stale:    cfg.ServeStale,
		logger:   zerolog.Nop(),
		now:      cfg.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Name implements marketdata.Source.
func (c *CachedSource) Name() string {
	return c.upstream.Name()
}

// History implements marketdata.Source.
func (c *CachedSource) History(ctx context.Context, symbol string, r models.DateRange) (*models.History, error) {
	symbol = marketdata.NormalizeSymbol(symbol)
	key := NewCacheKey(c.upstream.Name(), symbol, r)

	cached, err := c.store.GetHistory(ctx, key)
	switch {
	case err == nil:
		age := c.now().Sub(cached.FetchedAt)
		logging.LogCache(c.logger, symbol, true, age)
		if age <= c.ttl {
			return cached, nil
		}
	case apperrors.Is(err, apperrors.ErrCacheMiss):
		logging.LogCache(c.logger, symbol, false, 0)
	default:
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("History cache read failed")
		cached = nil
	}

	fresh, err := c.upstream.History(ctx, symbol, r)
	if err != nil {
		if cached != nil && c.stale {
			c.logger.Warn().Err(err).Str("symbol", symbol).
				Time("fetched_at", cached.FetchedAt).
				Msg("Upstream failed, serving stale history")
			return cached, nil
		}
		return nil, err
	}

	if err := c.store.SaveHistory(ctx, key, fresh); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("History cache write failed")
	}
	return fresh, nil
}

// Refresh bypasses the cache, fetches from upstream and stores the result.
func (c *CachedSource) Refresh(ctx context.Context, symbol string, r models.DateRange) (*models.History, error) {
	symbol = marketdata.NormalizeSymbol(symbol)
	fresh, err := c.upstream.History(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveHistory(ctx, NewCacheKey(c.upstream.Name(), symbol, r), fresh); err != nil {
		return nil, apperrors.Wrap(err, "caching history")
	}
	return fresh, nil
}
