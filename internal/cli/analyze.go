package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/marketdata"
	"dividend-recovery/internal/models"
	"dividend-recovery/internal/recovery"
)

// symbolAnalysis is the outcome of analyzing one symbol.
type symbolAnalysis struct {
	Symbol   string                   `json:"symbol"`
	Report   *recovery.Report         `json:"report,omitempty"`
	Overall  []recovery.TargetAverage `json:"overall,omitempty"`
	Failures []eventFailure           `json:"failures,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

type eventFailure struct {
	ExDate string  `json:"ex_date"`
	Amount float64 `json:"amount"`
	Error  string  `json:"error"`
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>...",
		Short: "Average dividend recovery days per year",
		Long: `Fetch price and dividend history for each symbol and report, per calendar year,
the mean number of trading days the close needed to recover each target fraction of
the dividend. Years are listed most recent first.`,
		Example: `  divrec analyze KO
  divrec analyze T VZ MO --years 5 --targets 50%,100%
  divrec analyze O --window trading --before 0 --after 60 --reference prior_close --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			settings, err := app.settings(cmd)
			if err != nil {
				return err
			}
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			showEvents, _ := cmd.Flags().GetBool("events")

			src, err := app.Source()
			if err != nil {
				return err
			}

			results, err := app.analyzeAll(cmd, output, src, args, settings, concurrency)
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}

			if output.IsJSON() {
				if err := output.JSON(results); err != nil {
					return err
				}
			} else {
				for i, r := range results {
					if i > 0 {
						output.Println()
					}
					renderAnalysis(output, r, settings, showEvents, app.Config.UI.DateFormat)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d symbols failed", failed, len(results))
			}
			return nil
		},
	}

	addAnalysisFlags(cmd, true)
	cmd.Flags().IntP("concurrency", "c", 4, "symbols fetched in parallel")
	cmd.Flags().BoolP("events", "e", false, "also list every dividend event")
	return cmd
}

// analyzeAll analyzes symbols concurrently; results keep the order of symbols.
func (a *App) analyzeAll(cmd *cobra.Command, output *Output, src marketdata.Source, symbols []string, s analysisSettings, concurrency int) ([]symbolAnalysis, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var bar *progressbar.ProgressBar
	if len(symbols) > 1 && output.IsInteractive() {
		bar = progressbar.NewOptions(len(symbols),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	results := make([]symbolAnalysis, len(symbols))
	g, ctx := errgroup.WithContext(logging.WithLogger(cmd.Context(), a.Logger))
	g.SetLimit(concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			results[i] = a.analyzeSymbol(ctx, src, symbol, s)
			if bar != nil {
				_ = bar.Add(1)
			}
			// Per-symbol failures are reported in the result; only cancellation stops the group.
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return results, nil
}

func (a *App) analyzeSymbol(ctx context.Context, src marketdata.Source, symbol string, s analysisSettings) symbolAnalysis {
	symbol = marketdata.NormalizeSymbol(symbol)
	res := symbolAnalysis{Symbol: symbol}
	logger := logging.WithOperation(logging.WithSymbol(logging.FromContext(ctx), symbol), "analyze")

	hist, err := src.History(ctx, symbol, s.fetchRange())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch history")
		res.Error = err.Error()
		return res
	}

	base := logging.FromContext(ctx)
	agg, err := s.aggregator(symbol, &base)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	report, err := agg.Summarize(hist.Prices, hist.Dividends, s.Targets, s.LookbackYears, s.AsOfYear)
	if err != nil {
		logger.Error().Err(err).Msg("Analysis failed")
		res.Error = err.Error()
		return res
	}

	res.Report = report
	res.Overall = recovery.OverallAverages(report.Years, s.Targets)
	for _, f := range report.Failures {
		res.Failures = append(res.Failures, eventFailure{
			ExDate: f.ExDate.Format(models.DateLayout),
			Amount: f.Amount,
			Error:  f.Err.Error(),
		})
	}
	logger.Debug().
		Int("years", len(report.Years)).
		Int("events", len(report.Events)).
		Int("failures", len(report.Failures)).
		Msg("Analysis complete")
	return res
}

func renderAnalysis(output *Output, r symbolAnalysis, s analysisSettings, showEvents bool, dateFormat string) {
	output.Bold("%s  %s", r.Symbol, formatYearSpan(s.AsOfYear, s.LookbackYears))
	if r.Error != "" {
		output.Error("  %s", r.Error)
		return
	}
	output.Dim("%s; day 0 is the first close in the window", s.describe())
	output.Println()

	headers := []string{"Year", "Events"}
	for _, f := range s.Targets {
		headers = append(headers, FormatTarget(f))
	}
	table := NewTable(output, headers...)
	for _, y := range r.Report.Years {
		events := strconv.Itoa(y.Events)
		if y.Failed > 0 {
			events += output.Yellow(fmt.Sprintf(" (%d failed)", y.Failed))
		}
		row := []string{strconv.Itoa(y.Year), events}
		for _, avg := range y.Averages {
			row = append(row, meanCell(output, avg))
		}
		table.AddRow(row...)
	}
	overall := []string{"All", ""}
	for _, avg := range r.Overall {
		overall = append(overall, meanCell(output, avg))
	}
	table.AddRow(overall...)
	table.Render()

	if showEvents && len(r.Report.Events) > 0 {
		output.Println()
		headers := []string{"Ex-date", "Amount", "Reference"}
		for _, f := range s.Targets {
			headers = append(headers, FormatTarget(f))
		}
		events := NewTable(output, headers...)
		for _, ev := range r.Report.Events {
			row := []string{
				FormatDate(ev.Event.ExDate, dateFormat),
				FormatAmount(ev.Event.Amount),
				FormatPrice(ev.Result.ReferencePrice),
			}
			for _, d := range ev.Result.Days {
				row = append(row, dayCell(output, d))
			}
			events.AddRow(row...)
		}
		events.Render()
	}

	if len(r.Failures) > 0 {
		output.Println()
		output.Warning("Skipped events:")
		for _, f := range r.Failures {
			output.Printf("  %s  %s  %s\n", f.ExDate, FormatAmount(f.Amount), f.Error)
		}
	}
}

func meanCell(output *Output, avg recovery.TargetAverage) string {
	if !avg.Defined {
		return output.DimText(NotAvailable)
	}
	return FormatMean(avg)
}

func dayCell(output *Output, d recovery.DayCount) string {
	if !d.Reached() {
		return output.DimText(NotAvailable)
	}
	return FormatDays(d)
}
