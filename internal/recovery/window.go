package recovery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/models"
)

// Default window span around an ex-date, in calendar days.
const (
	DefaultWindowBefore = 10
	DefaultWindowAfter  = 90
)

// Window modes accepted by WindowPolicyByName.
const (
	WindowModeCalendar = "calendar"
	WindowModeTrading  = "trading"
)

// Reference modes accepted by ReferencePolicyByName.
const (
	ReferenceModeAtOrBefore  = "at_or_before"
	ReferenceModePriorClose  = "prior_close"
	ReferenceModeWindowStart = "window_start"

	// DefaultReferenceMode is the last close before the ex-date; the ex-date close
	// already trades without the dividend.
	DefaultReferenceMode = ReferenceModePriorClose
)

// WindowPolicy maps an ex-date to the price window examined for it. Implementations
// return a subslice of prices and never modify it.
type WindowPolicy func(prices []models.PricePoint, exDate time.Time) []models.PricePoint

// ReferencePolicy picks the pre-dividend reference close for an event.
type ReferencePolicy func(prices, window []models.PricePoint, exDate time.Time) (float64, bool)

// CalendarWindow selects the closes dated from before calendar days ahead of the
// ex-date through after calendar days past it.
func CalendarWindow(before, after int) WindowPolicy {
	return func(prices []models.PricePoint, exDate time.Time) []models.PricePoint {
		ex := models.Day(exDate)
		start := ex.AddDate(0, 0, -before)
		end := ex.AddDate(0, 0, after)

		lo := sort.Search(len(prices), func(i int) bool {
			return !models.Day(prices[i].Date).Before(start)
		})
		hi := sort.Search(len(prices), func(i int) bool {
			return models.Day(prices[i].Date).After(end)
		})
		if lo >= hi {
			return nil
		}
		return prices[lo:hi:hi]
	}
}

// TradingDayWindow anchors on the first close on or after the ex-date and selects
// before trading days ahead of it through after trading days past it.
func TradingDayWindow(before, after int) WindowPolicy {
	return func(prices []models.PricePoint, exDate time.Time) []models.PricePoint {
		ex := models.Day(exDate)
		anchor := sort.Search(len(prices), func(i int) bool {
			return !models.Day(prices[i].Date).Before(ex)
		})
		if anchor == len(prices) {
			return nil
		}
		lo := anchor - before
		if lo < 0 {
			lo = 0
		}
		hi := anchor + after + 1
		if hi > len(prices) {
			hi = len(prices)
		}
		return prices[lo:hi:hi]
	}
}

// ReferenceAtOrBefore uses the last close dated on or before the ex-date.
func ReferenceAtOrBefore(prices, _ []models.PricePoint, exDate time.Time) (float64, bool) {
	ex := models.Day(exDate)
	idx := sort.Search(len(prices), func(i int) bool {
		return models.Day(prices[i].Date).After(ex)
	}) - 1
	if idx < 0 {
		return 0, false
	}
	return prices[idx].Close, true
}

// ReferencePriorClose uses the last close dated strictly before the ex-date.
func ReferencePriorClose(prices, _ []models.PricePoint, exDate time.Time) (float64, bool) {
	ex := models.Day(exDate)
	idx := sort.Search(len(prices), func(i int) bool {
		return !models.Day(prices[i].Date).Before(ex)
	}) - 1
	if idx < 0 {
		return 0, false
	}
	return prices[idx].Close, true
}

// ReferenceWindowStart uses the first close of the window.
func ReferenceWindowStart(_, window []models.PricePoint, _ time.Time) (float64, bool) {
	if len(window) == 0 {
		return 0, false
	}
	return window[0].Close, true
}

// WindowPolicyByName builds a window policy from its configured name.
func WindowPolicyByName(mode string, before, after int) (WindowPolicy, error) {
	if before < 0 || after < 0 {
		return nil, apperrors.NewValidationError("window", fmt.Sprintf("-%d/+%d", before, after), "window bounds must be non-negative")
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", WindowModeCalendar:
		return CalendarWindow(before, after), nil
	case WindowModeTrading:
		return TradingDayWindow(before, after), nil
	default:
		return nil, apperrors.NewValidationError("window_mode", mode, "must be 'calendar' or 'trading'")
	}
}

// ReferencePolicyByName returns the reference policy registered under name.
func ReferencePolicyByName(name string) (ReferencePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ReferenceModeAtOrBefore:
		return ReferenceAtOrBefore, nil
	case "", ReferenceModePriorClose:
		return ReferencePriorClose, nil
	case ReferenceModeWindowStart:
		return ReferenceWindowStart, nil
	default:
		return nil, apperrors.NewValidationError("reference", name, "must be 'at_or_before', 'prior_close' or 'window_start'")
	}
}
