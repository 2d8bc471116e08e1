// Package store provides persistence for downloaded market data.
package store

import (
	"context"
	"time"

	"dividend-recovery/internal/models"
)

// HistoryStore defines the interface for the history cache.
type HistoryStore interface {
	SaveHistory(ctx context.Context, key CacheKey, hist *models.History) error
	// GetHistory returns ErrCacheMiss when no entry exists for key.
	GetHistory(ctx context.Context, key CacheKey) (*models.History, error)
	ListEntries(ctx context.Context) ([]CacheEntry, error)
	DeleteSymbol(ctx context.Context, symbol string) (int64, error)
	Clear(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
}

// CacheKey identifies one download: a symbol over a date range from one source.
type CacheKey struct {
	Source string
	Symbol string
	From   time.Time
	To     time.Time
}

// NewCacheKey normalizes the range bounds to calendar days.
func NewCacheKey(source, symbol string, r models.DateRange) CacheKey {
	return CacheKey{
		Source: source,
		Symbol: symbol,
		From:   models.Day(r.From),
		To:     models.Day(r.To),
	}
}

// CacheEntry summarizes a cached download.
type CacheEntry struct {
	Key       CacheKey  `json:"key"`
	Currency  string    `json:"currency,omitempty"`
	Prices    int       `json:"prices"`
	Dividends int       `json:"dividends"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Age returns how long ago the entry was fetched.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
