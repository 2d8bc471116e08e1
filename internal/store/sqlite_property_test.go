package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dividend-recovery/internal/models"
)

// Property: saving a history and loading it back under the same key yields the same
// closes and dividends.
func TestProperty_HistoryRoundTripConsistency(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history_property.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"KO", "T", "PEP", "JNJ", "VZ", "MO", "PG", "XOM", "O", "ABBV"}
	run := 0

	properties.Property("History round-trip: save then load produces equivalent data", prop.ForAll(
		func(symbolIdx int, count int, basePrice float64, divCount int) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], run)

			hist := generateTestHistory(symbol, count, basePrice, divCount)
			key := NewCacheKey("test", symbol, models.DateRange{
				From: hist.Prices[0].Date,
				To:   hist.Prices[len(hist.Prices)-1].Date,
			})

			if err := store.SaveHistory(ctx, key, hist); err != nil {
				t.Logf("Failed to save history: %v", err)
				return false
			}
			loaded, err := store.GetHistory(ctx, key)
			if err != nil {
				t.Logf("Failed to load history: %v", err)
				return false
			}

			if len(loaded.Prices) != len(hist.Prices) || len(loaded.Dividends) != len(hist.Dividends) {
				t.Logf("Count mismatch: prices %d/%d dividends %d/%d",
					len(loaded.Prices), len(hist.Prices), len(loaded.Dividends), len(hist.Dividends))
				return false
			}
			for i, p := range hist.Prices {
				if !p.Date.Equal(loaded.Prices[i].Date) || !floatEqual(p.Close, loaded.Prices[i].Close, 1e-9) {
					t.Logf("Price mismatch at %d: %+v vs %+v", i, p, loaded.Prices[i])
					return false
				}
			}
			for i, d := range hist.Dividends {
				if !d.ExDate.Equal(loaded.Dividends[i].ExDate) || !floatEqual(d.Amount, loaded.Dividends[i].Amount, 1e-9) {
					t.Logf("Dividend mismatch at %d: %+v vs %+v", i, d, loaded.Dividends[i])
					return false
				}
			}
			return loaded.Currency == hist.Currency && models.ValidateSeries(loaded.Prices) == nil
		},
		gen.IntRange(0, len(symbols)-1),
		gen.IntRange(1, 60),
		gen.Float64Range(5.0, 500.0),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

// generateTestHistory creates a valid daily history for testing.
func generateTestHistory(symbol string, count int, basePrice float64, divCount int) *models.History {
	baseDate := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	hist := &models.History{
		Symbol:    symbol,
		Currency:  "USD",
		FetchedAt: time.Now().UTC(),
		Source:    "test",
	}
	for i := 0; i < count; i++ {
		variation := float64(i%7) * 0.01 * basePrice
		hist.Prices = append(hist.Prices, models.PricePoint{
			Date:  baseDate.AddDate(0, 0, i),
			Close: roundToDecimal(basePrice+variation, 2),
		})
	}
	for i := 0; i < divCount; i++ {
		hist.Dividends = append(hist.Dividends, models.DividendEvent{
			ExDate: baseDate.AddDate(0, 3*i, 0),
			Amount: roundToDecimal(basePrice*0.01*float64(i+1), 4),
		})
	}
	return hist
}

// roundToDecimal rounds a float to specified decimal places
func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// floatEqual compares two floats with a tolerance.
func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
