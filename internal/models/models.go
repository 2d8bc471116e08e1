// Package models provides domain models for the dividend recovery analysis.
package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the calendar date layout used across sources, caches and output.
const DateLayout = "2006-01-02"

// PricePoint is one daily close of a security.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// DividendEvent is one cash dividend, anchored on its ex-date.
type DividendEvent struct {
	ExDate time.Time `json:"ex_date"`
	Amount float64   `json:"amount"`
}

// History is a snapshot of a security's price and dividend history.
type History struct {
	Symbol    string          `json:"symbol"`
	Currency  string          `json:"currency,omitempty"`
	Prices    []PricePoint    `json:"prices"`
	Dividends []DividendEvent `json:"dividends"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
}

// DateRange represents a closed date range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ValidateSeries checks that prices are strictly ascending by calendar day and that
// every close is a finite positive number.
func ValidateSeries(prices []PricePoint) error {
	for i, p := range prices {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return fmt.Errorf("price %d (%s): close must be a finite positive number, got %v",
				i, p.Date.Format(DateLayout), p.Close)
		}
		if i > 0 && !Day(p.Date).After(Day(prices[i-1].Date)) {
			return fmt.Errorf("price %d (%s): dates must be strictly ascending after %s",
				i, p.Date.Format(DateLayout), prices[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// SortedDividends returns a copy of dividends ordered by ex-date ascending.
// The input slice is left untouched.
func SortedDividends(dividends []DividendEvent) []DividendEvent {
	out := make([]DividendEvent, len(dividends))
	copy(out, dividends)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExDate.Before(out[j].ExDate)
	})
	return out
}

// Slice returns the portion of the history that falls within r.
func (h *History) Slice(r DateRange) *History {
	out := &History{
		Symbol:    h.Symbol,
		Currency:  h.Currency,
		FetchedAt: h.FetchedAt,
		Source:    h.Source,
	}
	for _, p := range h.Prices {
		if r.Contains(p.Date) {
			out.Prices = append(out.Prices, p)
		}
	}
	for _, d := range h.Dividends {
		if r.Contains(d.ExDate) {
			out.Dividends = append(out.Dividends, d)
		}
	}
	return out
}
