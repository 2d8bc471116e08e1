package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dividend-recovery/internal/models"
	"dividend-recovery/internal/recovery"
)

// analysisSettings are the analysis parameters of one run: config values overridden by
// command flags.
type analysisSettings struct {
	Targets       []float64
	LookbackYears int
	AsOfYear      int
	WindowMode    string
	Before        int
	After         int
	Reference     string
}

func addAnalysisFlags(cmd *cobra.Command, withYears bool) {
	if withYears {
		cmd.Flags().IntP("years", "y", 0, "number of years to analyze (default from config)")
		cmd.Flags().Int("as-of", 0, "most recent year to analyze (default: last complete year)")
	}
	cmd.Flags().StringSliceP("targets", "t", nil, "recovery targets as fractions or percentages, e.g. 50%,75%,100%")
	cmd.Flags().String("window", "", "window mode: calendar or trading")
	cmd.Flags().Int("before", -1, "window start, days before the ex-date")
	cmd.Flags().Int("after", -1, "window end, days after the ex-date")
	cmd.Flags().String("reference", "", "reference close: prior_close, window_start or at_or_before")
}

// settings merges the analysis flags of cmd over the configuration.
func (a *App) settings(cmd *cobra.Command) (analysisSettings, error) {
	cfg := a.Config.Analysis
	s := analysisSettings{
		Targets:       append([]float64(nil), cfg.Targets...),
		LookbackYears: cfg.LookbackYears,
		AsOfYear:      a.Config.ResolveAsOfYear(a.now()),
		WindowMode:    cfg.WindowMode,
		Before:        cfg.WindowBefore,
		After:         cfg.WindowAfter,
		Reference:     cfg.Reference,
	}

	flags := cmd.Flags()
	if flags.Changed("targets") {
		values, _ := flags.GetStringSlice("targets")
		targets, err := ParseTargets(values)
		if err != nil {
			return s, err
		}
		s.Targets = targets
	}
	if flags.Changed("years") {
		s.LookbackYears, _ = flags.GetInt("years")
	}
	if flags.Changed("as-of") {
		s.AsOfYear, _ = flags.GetInt("as-of")
	}
	if flags.Changed("window") {
		s.WindowMode, _ = flags.GetString("window")
	}
	if flags.Changed("before") {
		s.Before, _ = flags.GetInt("before")
	}
	if flags.Changed("after") {
		s.After, _ = flags.GetInt("after")
	}
	if flags.Changed("reference") {
		s.Reference, _ = flags.GetString("reference")
	}

	if s.LookbackYears < 1 {
		return s, fmt.Errorf("years must be at least 1, got %d", s.LookbackYears)
	}
	if _, err := s.aggregator("", nil); err != nil {
		return s, err
	}
	return s, nil
}

// aggregator builds a recovery aggregator with the selected policies.
func (s analysisSettings) aggregator(symbol string, logger *zerolog.Logger) (*recovery.Aggregator, error) {
	window, err := recovery.WindowPolicyByName(s.WindowMode, s.Before, s.After)
	if err != nil {
		return nil, err
	}
	reference, err := recovery.ReferencePolicyByName(s.Reference)
	if err != nil {
		return nil, err
	}
	return recovery.NewAggregator(recovery.AggregatorConfig{
		Symbol:    symbol,
		Window:    window,
		Reference: reference,
		Logger:    logger,
	}), nil
}

// padDays converts a window bound to the calendar days of history it may span.
func (s analysisSettings) padDays(n int) int {
	if s.WindowMode == recovery.WindowModeTrading {
		return n*7/5 + 14
	}
	return n + 7
}

// fetchRange covers every window of the analyzed years.
func (s analysisSettings) fetchRange() models.DateRange {
	first := s.AsOfYear - s.LookbackYears + 1
	return models.DateRange{
		From: time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -s.padDays(s.Before)),
		To:   time.Date(s.AsOfYear, time.December, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, s.padDays(s.After)),
	}
}

// eventRange covers the window of a single ex-date.
func (s analysisSettings) eventRange(exDate time.Time) models.DateRange {
	return models.DateRange{
		From: exDate.AddDate(0, 0, -s.padDays(s.Before)),
		To:   exDate.AddDate(0, 0, s.padDays(s.After)),
	}
}

func (s analysisSettings) describe() string {
	return fmt.Sprintf("%s window -%d/+%d, reference %s", s.WindowMode, s.Before, s.After, s.Reference)
}
