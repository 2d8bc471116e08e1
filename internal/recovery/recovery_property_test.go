package recovery

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dividend-recovery/internal/models"
)

// Property: a target met by the first close of the window is reported on day 0,
// and a target no close reaches is reported as NotReached.
func TestProperty_RecoveryBoundaries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("first close meeting every target yields day 0", prop.ForAll(
		func(closes []float64, ref, amount float64) bool {
			if len(closes) == 0 {
				return true
			}
			window := windowOf(closes...)
			window[0].Close = ref + amount

			res, err := ComputeRecovery(window, ref, amount, DefaultTargets)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			for _, d := range res.Days {
				if d != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, gen.Float64Range(1, 500)),
		gen.Float64Range(10, 500),
		gen.Float64Range(0.01, 20),
	))

	properties.Property("closes below every target yield NotReached", prop.ForAll(
		func(fractions []float64, ref, amount float64) bool {
			if len(fractions) == 0 {
				return true
			}
			closes := make([]float64, len(fractions))
			for i, f := range fractions {
				// Stay strictly below ref + 0.5*amount.
				closes[i] = ref + f*0.49*amount
			}

			res, err := ComputeRecovery(windowOf(closes...), ref, amount, DefaultTargets)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			for _, d := range res.Days {
				if d != NotReached {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(30, gen.Float64Range(-1, 1)),
		gen.Float64Range(10, 500),
		gen.Float64Range(0.01, 20),
	))

	properties.TestingRun(t)
}

// Property: for a fixed window, the day for a lower fraction is never later than the
// day for a higher one, counting NotReached as later than any day.
func TestProperty_RecoveryMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	rank := func(d DayCount) int {
		if !d.Reached() {
			return int(^uint(0) >> 1)
		}
		return int(d)
	}

	properties.Property("days are non-decreasing in the target fraction", prop.ForAll(
		func(closes []float64, amount float64) bool {
			if len(closes) == 0 {
				return true
			}
			res, err := ComputeRecovery(windowOf(closes...), 100, amount, DefaultTargets)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			for k := 1; k < len(res.Days); k++ {
				if rank(res.Days[k-1]) > rank(res.Days[k]) {
					t.Logf("days %v not monotonic for closes %v", res.Days, closes)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.Float64Range(95, 110)),
		gen.Float64Range(0.5, 8),
	))

	properties.TestingRun(t)
}

// Property: summarizing the same inputs twice yields identical output, and every
// defined year mean equals the mean of the reached days of that year's events.
func TestProperty_SummarizeByYear(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("aggregation is idempotent and excludes NotReached", prop.ForAll(
		func(steps []float64, offsets []int, amounts []float64) bool {
			prices := make([]models.PricePoint, len(steps))
			level := 100.0
			for i, s := range steps {
				level += s
				if level < 1 {
					level = 1
				}
				prices[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: level}
			}
			dividends := make([]models.DividendEvent, 0, len(offsets))
			for i, off := range offsets {
				if i >= len(amounts) {
					break
				}
				dividends = append(dividends, models.DividendEvent{ExDate: start.AddDate(0, 0, off), Amount: amounts[i]})
			}

			agg := NewAggregator(AggregatorConfig{})
			first, err := agg.Summarize(prices, dividends, DefaultTargets, 4, 2022)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			second, err := agg.Summarize(prices, dividends, DefaultTargets, 4, 2022)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			if !reflect.DeepEqual(first.Years, second.Years) {
				t.Logf("summaries differ between runs")
				return false
			}

			for _, year := range first.Years {
				for k, avg := range year.Averages {
					var sum float64
					var n int
					for _, ev := range first.Events {
						if ev.Year == year.Year && ev.Result.Days[k].Reached() {
							sum += float64(ev.Result.Days[k])
							n++
						}
					}
					if n != avg.Reached || (n > 0) != avg.Defined {
						return false
					}
					if n > 0 && sum/float64(n) != avg.Mean {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(1500, gen.Float64Range(-2, 2)),
		gen.SliceOfN(12, gen.IntRange(0, 1600)),
		gen.SliceOfN(12, gen.Float64Range(0.1, 5)),
	))

	properties.TestingRun(t)
}
