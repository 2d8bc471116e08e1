package recovery

import (
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/models"
)

// TargetAverage is the mean recovery day for one target over the events of a year.
// Events that never reached the target are left out of both the sum and the count.
// Defined is false when no event reached the target.
type TargetAverage struct {
	Target  float64
	Mean    float64
	Reached int
	Defined bool
}

// MarshalJSON encodes an undefined mean as null.
func (a TargetAverage) MarshalJSON() ([]byte, error) {
	out := struct {
		Target  float64  `json:"target"`
		Mean    *float64 `json:"mean"`
		Reached int      `json:"reached"`
	}{Target: a.Target, Reached: a.Reached}
	if a.Defined {
		mean := a.Mean
		out.Mean = &mean
	}
	return json.Marshal(out)
}

// YearSummary is the aggregated recovery of all dividends with an ex-date in Year.
// A year without dividends is kept with every average undefined.
type YearSummary struct {
	Year     int             `json:"year"`
	Events   int             `json:"events"`
	Failed   int             `json:"failed"`
	Averages []TargetAverage `json:"averages"`
}

// Empty reports whether the year had no dividend events.
func (s YearSummary) Empty() bool {
	return s.Events == 0
}

// EventRecovery pairs a dividend event with its computed recovery.
type EventRecovery struct {
	Year   int                  `json:"year"`
	Event  models.DividendEvent `json:"event"`
	Result *Result              `json:"result"`
}

// Report is the full output of an aggregation run.
type Report struct {
	Symbol        string                  `json:"symbol,omitempty"`
	AsOfYear      int                     `json:"as_of_year"`
	LookbackYears int                     `json:"lookback_years"`
	Targets       []float64               `json:"targets"`
	DayIndexBase  int                     `json:"day_index_base"`
	Years         []YearSummary           `json:"years"`
	Events        []EventRecovery         `json:"events"`
	Failures      []*apperrors.EventError `json:"-"`
}

// AggregatorConfig holds configuration for an Aggregator.
type AggregatorConfig struct {
	Symbol    string
	Window    WindowPolicy
	Reference ReferencePolicy
	Logger    *zerolog.Logger
}

// Aggregator groups dividend events by calendar year and averages their recoveries.
// It holds no state between runs.
type Aggregator struct {
	symbol    string
	window    WindowPolicy
	reference ReferencePolicy
	logger    zerolog.Logger
}

// NewAggregator creates an aggregator; unset policies fall back to a -10/+90 calendar
// day window and the last close before the ex-date.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	a := &Aggregator{
		symbol:    cfg.Symbol,
		window:    cfg.Window,
		reference: cfg.Reference,
		logger:    zerolog.Nop(),
	}
	if a.window == nil {
		a.window = CalendarWindow(DefaultWindowBefore, DefaultWindowAfter)
	}
	if a.reference == nil {
		a.reference = ReferencePriorClose
	}
	if cfg.Logger != nil {
		a.logger = *cfg.Logger
	}
	if a.symbol != "" {
		a.logger = logging.WithSymbol(a.logger, a.symbol)
	}
	return a
}

// SummarizeByYear aggregates with the default policies and returns one row per year,
// most recent first.
func SummarizeByYear(prices []models.PricePoint, dividends []models.DividendEvent, targets []float64, lookbackYears, asOfYear int) ([]YearSummary, error) {
	report, err := NewAggregator(AggregatorConfig{}).Summarize(prices, dividends, targets, lookbackYears, asOfYear)
	if err != nil {
		return nil, err
	}
	return report.Years, nil
}

// Summarize walks the years asOfYear, asOfYear-1, ... for lookbackYears iterations.
// Within a year events are handled in ex-date order. Events that cannot be computed
// are collected in Report.Failures and do not stop the run; an error is returned only
// for invalid run inputs.
func (a *Aggregator) Summarize(prices []models.PricePoint, dividends []models.DividendEvent, targets []float64, lookbackYears, asOfYear int) (*Report, error) {
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	if lookbackYears < 1 {
		return nil, apperrors.NewValidationError("lookback_years", lookbackYears, "must be at least 1")
	}
	if err := models.ValidateSeries(prices); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	byYear := make(map[int][]models.DividendEvent)
	for _, d := range models.SortedDividends(dividends) {
		y := d.ExDate.Year()
		byYear[y] = append(byYear[y], d)
	}

	report := &Report{
		Symbol:        a.symbol,
		AsOfYear:      asOfYear,
		LookbackYears: lookbackYears,
		Targets:       append([]float64(nil), targets...),
		DayIndexBase:  DayIndexBase,
		Years:         make([]YearSummary, 0, lookbackYears),
	}

	for year := asOfYear; year > asOfYear-lookbackYears; year-- {
		events := byYear[year]
		sums := make([]float64, len(targets))
		counts := make([]int, len(targets))
		summary := YearSummary{Year: year, Events: len(events)}

		for _, ev := range events {
			res, err := a.computeEvent(prices, ev, targets)
			if err != nil {
				report.Failures = append(report.Failures, apperrors.NewEventError(a.symbol, ev.ExDate, ev.Amount, err))
				summary.Failed++
				logging.LogEventFailure(a.logger, ev.ExDate, ev.Amount, err)
				continue
			}
			for k, d := range res.Days {
				if d.Reached() {
					sums[k] += float64(d)
					counts[k]++
				}
			}
			report.Events = append(report.Events, EventRecovery{Year: year, Event: ev, Result: res})
		}

		summary.Averages = averages(targets, sums, counts)
		logging.LogYearSummary(a.logger, year, summary.Events, summary.Failed)
		report.Years = append(report.Years, summary)
	}

	return report, nil
}

// Event computes the recovery of a single dividend with the aggregator's policies.
func (a *Aggregator) Event(prices []models.PricePoint, ev models.DividendEvent, targets []float64) (*Result, []models.PricePoint, error) {
	if err := ValidateTargets(targets); err != nil {
		return nil, nil, err
	}
	res, err := a.computeEvent(prices, ev, targets)
	if err != nil {
		return nil, nil, apperrors.NewEventError(a.symbol, ev.ExDate, ev.Amount, err)
	}
	return res, a.window(prices, ev.ExDate), nil
}

func (a *Aggregator) computeEvent(prices []models.PricePoint, ev models.DividendEvent, targets []float64) (*Result, error) {
	if !isPositive(ev.Amount) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidDividend, "amount %v", ev.Amount)
	}
	window := a.window(prices, ev.ExDate)
	if len(window) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrMissingPriceData, "no closes in window")
	}
	ref, ok := a.reference(prices, window, ev.ExDate)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrMissingPriceData, "no reference close")
	}
	res, err := ComputeRecovery(window, ref, ev.Amount, targets)
	if err != nil {
		return nil, err
	}
	res.ExDate = ev.ExDate
	return res, nil
}

func averages(targets, sums []float64, counts []int) []TargetAverage {
	out := make([]TargetAverage, len(targets))
	for k, f := range targets {
		out[k] = TargetAverage{Target: f, Reached: counts[k]}
		if counts[k] > 0 {
			out[k].Mean = sums[k] / float64(counts[k])
			out[k].Defined = true
		}
	}
	return out
}

// LastCompleteYear returns the most recent calendar year that has fully elapsed at now.
func LastCompleteYear(now time.Time) int {
	return now.Year() - 1
}

// OverallAverages averages the yearly means of each target across the defined years.
func OverallAverages(years []YearSummary, targets []float64) []TargetAverage {
	sums := make([]float64, len(targets))
	counts := make([]int, len(targets))
	for _, y := range years {
		for k := range targets {
			if k < len(y.Averages) && y.Averages[k].Defined && !math.IsNaN(y.Averages[k].Mean) {
				sums[k] += y.Averages[k].Mean
				counts[k]++
			}
		}
	}
	return averages(targets, sums, counts)
}
