// Package marketdata provides price and dividend history sources.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dividend-recovery/internal/models"
)

// Source names.
const (
	SourceYahoo = "yahoo"
	SourceCSV   = "csv"
)

// Source defines the interface for price and dividend history providers.
type Source interface {
	// Name identifies the source in logs and cache entries.
	Name() string
	// History returns the closes and dividends of symbol within r. Closes are
	// ascending with one entry per trading day.
	History(ctx context.Context, symbol string, r models.DateRange) (*models.History, error)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// normalizePrices truncates dates to calendar days, sorts ascending and keeps the last
// close reported for any day.
func normalizePrices(prices []models.PricePoint) []models.PricePoint {
	for i := range prices {
		prices[i].Date = models.Day(prices[i].Date)
	}
	sort.SliceStable(prices, func(i, j int) bool {
		return prices[i].Date.Before(prices[j].Date)
	})

	out := prices[:0]
	for _, p := range prices {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeDividends(dividends []models.DividendEvent) []models.DividendEvent {
	for i := range dividends {
		dividends[i].ExDate = models.Day(dividends[i].ExDate)
	}
	return models.SortedDividends(dividends)
}

// rangeParams validates a requested range.
func rangeParams(r models.DateRange) error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("date range must have both bounds")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("date range end %s is before start %s",
			r.To.Format(models.DateLayout), r.From.Format(models.DateLayout))
	}
	return nil
}
