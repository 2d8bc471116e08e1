// Package recovery computes how many trading days a security needs after a dividend
// to win back a fraction of the dividend amount, and averages that per calendar year.
//
// Day counts are 0-indexed offsets into the price window: a target met by the first
// close of the window has day 0. A target that is never met is reported as NotReached,
// which is never treated as a number.
package recovery

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/models"
)

// DayIndexBase is the index of the first point of a window.
const DayIndexBase = 0

// DefaultTargets are the recovery fractions used when none are configured.
var DefaultTargets = []float64{0.5, 0.75, 1.0}

// DayCount is a 0-based offset into a price window, or NotReached.
type DayCount int

// NotReached marks a target level that no close in the window met.
const NotReached DayCount = -1

// Reached reports whether d holds an actual offset.
func (d DayCount) Reached() bool {
	return d >= 0
}

func (d DayCount) String() string {
	if !d.Reached() {
		return "N/A"
	}
	return fmt.Sprintf("%d", int(d))
}

// MarshalJSON encodes NotReached as null.
func (d DayCount) MarshalJSON() ([]byte, error) {
	if !d.Reached() {
		return []byte("null"), nil
	}
	return json.Marshal(int(d))
}

// UnmarshalJSON decodes null as NotReached.
func (d *DayCount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = NotReached
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("day count must be non-negative, got %d", n)
	}
	*d = DayCount(n)
	return nil
}

// Result is the recovery of a single dividend event.
type Result struct {
	ExDate         time.Time  `json:"ex_date,omitempty"`
	DividendAmount float64    `json:"dividend_amount"`
	ReferencePrice float64    `json:"reference_price"`
	Targets        []float64  `json:"targets"`
	TargetPrices   []float64  `json:"target_prices"`
	Days           []DayCount `json:"days"`
	WindowSize     int        `json:"window_size"`
	WindowStart    time.Time  `json:"window_start"`
	WindowEnd      time.Time  `json:"window_end"`
}

// RecoveryDate returns the date on which target k was first met.
func (r *Result) RecoveryDate(window []models.PricePoint, k int) (time.Time, bool) {
	if k < 0 || k >= len(r.Days) || !r.Days[k].Reached() || int(r.Days[k]) >= len(window) {
		return time.Time{}, false
	}
	return window[r.Days[k]].Date, true
}

// ComputeRecovery finds, for every target fraction f, the first offset i in window with
// window[i].Close >= referencePrice + f*dividendAmount. Targets are evaluated
// independently and the first offset found for each is final.
//
// An empty window yields ErrMissingPriceData.
func ComputeRecovery(window []models.PricePoint, referencePrice, dividendAmount float64, targets []float64) (*Result, error) {
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	if !isPositive(referencePrice) {
		return nil, apperrors.NewValidationError("reference_price", referencePrice, "must be a finite positive number")
	}
	if !isPositive(dividendAmount) {
		return nil, apperrors.NewValidationError("dividend_amount", dividendAmount, "must be a finite positive number")
	}
	if len(window) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrMissingPriceData, "empty price window")
	}

	res := &Result{
		DividendAmount: dividendAmount,
		ReferencePrice: referencePrice,
		Targets:        append([]float64(nil), targets...),
		TargetPrices:   make([]float64, len(targets)),
		Days:           make([]DayCount, len(targets)),
		WindowSize:     len(window),
		WindowStart:    window[0].Date,
		WindowEnd:      window[len(window)-1].Date,
	}
	for k, f := range targets {
		res.TargetPrices[k] = referencePrice + f*dividendAmount
		res.Days[k] = NotReached
	}

	pending := len(targets)
	for i, p := range window {
		for k, level := range res.TargetPrices {
			if res.Days[k] == NotReached && p.Close >= level {
				res.Days[k] = DayCount(i)
				pending--
			}
		}
		if pending == 0 {
			break
		}
	}

	return res, nil
}

// ValidateTargets checks that targets is a non-empty set of distinct fractions in (0, 1].
func ValidateTargets(targets []float64) error {
	if len(targets) == 0 {
		return apperrors.NewValidationError("targets", targets, "at least one recovery target is required")
	}
	seen := make(map[float64]bool, len(targets))
	for _, f := range targets {
		if math.IsNaN(f) || f <= 0 || f > 1 {
			return apperrors.NewValidationError("targets", f, "recovery target must be in (0, 1]")
		}
		if seen[f] {
			return apperrors.NewValidationError("targets", f, "duplicate recovery target")
		}
		seen[f] = true
	}
	return nil
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
