package recovery

import (
	"errors"
	"testing"
	"time"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdays returns one close per weekday in [from, to], produced by closeAt.
func weekdays(from, to time.Time, closeAt func(time.Time) float64) []models.PricePoint {
	var out []models.PricePoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, models.PricePoint{Date: d, Close: closeAt(d)})
	}
	return out
}

func flat(price float64) func(time.Time) float64 {
	return func(time.Time) float64 { return price }
}

func TestCalendarWindow(t *testing.T) {
	prices := weekdays(date(2022, 6, 1), date(2022, 12, 30), flat(100))
	window := CalendarWindow(10, 90)(prices, date(2022, 6, 15))

	if len(window) == 0 {
		t.Fatal("expected a non-empty window")
	}
	// 2022-06-05 is a Sunday; the first close is Monday 2022-06-06.
	if got := window[0].Date; !got.Equal(date(2022, 6, 6)) {
		t.Errorf("window start = %s, want 2022-06-06", got.Format(models.DateLayout))
	}
	// 2022-09-13 is ex-date + 90 days and a Tuesday.
	if got := window[len(window)-1].Date; !got.Equal(date(2022, 9, 13)) {
		t.Errorf("window end = %s, want 2022-09-13", got.Format(models.DateLayout))
	}
}

func TestCalendarWindow_OutsideSeries(t *testing.T) {
	prices := weekdays(date(2022, 1, 3), date(2022, 3, 31), flat(100))
	if w := CalendarWindow(10, 90)(prices, date(2023, 6, 15)); len(w) != 0 {
		t.Errorf("expected empty window, got %d closes", len(w))
	}
	if w := CalendarWindow(10, 90)(nil, date(2023, 6, 15)); len(w) != 0 {
		t.Errorf("expected empty window for empty series, got %d closes", len(w))
	}
}

func TestCalendarWindow_IsCappedSubslice(t *testing.T) {
	prices := weekdays(date(2022, 6, 1), date(2022, 12, 30), flat(100))
	window := CalendarWindow(0, 5)(prices, date(2022, 6, 15))
	before := prices[len(window)+10]

	_ = append(window, models.PricePoint{Date: date(2030, 1, 1), Close: 1})

	if prices[len(window)+10] != before {
		t.Fatal("appending to a window modified the underlying series")
	}
}

func TestTradingDayWindow(t *testing.T) {
	prices := weekdays(date(2022, 6, 1), date(2022, 12, 30), flat(100))
	// Saturday ex-date anchors on the following Monday.
	window := TradingDayWindow(2, 3)(prices, date(2022, 6, 18))

	if len(window) != 6 {
		t.Fatalf("window size = %d, want 6", len(window))
	}
	if got := window[2].Date; !got.Equal(date(2022, 6, 20)) {
		t.Errorf("anchor = %s, want 2022-06-20", got.Format(models.DateLayout))
	}
}

func TestTradingDayWindow_ClampsToSeries(t *testing.T) {
	prices := weekdays(date(2022, 6, 1), date(2022, 6, 10), flat(100))
	window := TradingDayWindow(10, 90)(prices, date(2022, 6, 2))
	if len(window) != len(prices) {
		t.Errorf("window size = %d, want %d", len(window), len(prices))
	}
	if w := TradingDayWindow(0, 5)(prices, date(2022, 7, 1)); w != nil {
		t.Errorf("expected nil window after the last close, got %d closes", len(w))
	}
}

func TestReferencePolicies(t *testing.T) {
	prices := []models.PricePoint{
		{Date: date(2022, 6, 13), Close: 100},
		{Date: date(2022, 6, 14), Close: 101},
		{Date: date(2022, 6, 15), Close: 98},
	}

	if ref, ok := ReferenceAtOrBefore(prices, nil, date(2022, 6, 15)); !ok || ref != 98 {
		t.Errorf("at_or_before on ex-date = %v, %v; want 98", ref, ok)
	}
	if ref, ok := ReferenceAtOrBefore(prices, nil, date(2022, 6, 18)); !ok || ref != 98 {
		t.Errorf("at_or_before after series = %v, %v; want 98", ref, ok)
	}
	if ref, ok := ReferencePriorClose(prices, nil, date(2022, 6, 15)); !ok || ref != 101 {
		t.Errorf("prior_close = %v, %v; want 101", ref, ok)
	}
	if _, ok := ReferencePriorClose(prices, nil, date(2022, 6, 13)); ok {
		t.Error("prior_close before the first close should fail")
	}
	if ref, ok := ReferenceWindowStart(nil, prices[1:], date(2022, 6, 15)); !ok || ref != 101 {
		t.Errorf("window_start = %v, %v; want 101", ref, ok)
	}
	if _, ok := ReferenceWindowStart(nil, nil, date(2022, 6, 15)); ok {
		t.Error("window_start on empty window should fail")
	}
}

func TestPolicyByName(t *testing.T) {
	for _, mode := range []string{"", "calendar", "Trading"} {
		if _, err := WindowPolicyByName(mode, 10, 90); err != nil {
			t.Errorf("WindowPolicyByName(%q): %v", mode, err)
		}
	}
	if _, err := WindowPolicyByName("weekly", 10, 90); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown mode, got %v", err)
	}
	if _, err := WindowPolicyByName("calendar", -1, 90); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative bound, got %v", err)
	}

	for _, name := range []string{"", "at_or_before", "prior_close", "window_start"} {
		if _, err := ReferencePolicyByName(name); err != nil {
			t.Errorf("ReferencePolicyByName(%q): %v", name, err)
		}
	}
	prices := []models.PricePoint{
		{Date: date(2022, 6, 14), Close: 101},
		{Date: date(2022, 6, 15), Close: 98},
	}
	def, err := ReferencePolicyByName("")
	if err != nil {
		t.Fatalf("ReferencePolicyByName(\"\"): %v", err)
	}
	if ref, ok := def(prices, prices, date(2022, 6, 15)); !ok || ref != 101 {
		t.Errorf("default reference = %v, %v; want the prior close 101", ref, ok)
	}
	if _, err := ReferencePolicyByName("open"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown reference, got %v", err)
	}
}
