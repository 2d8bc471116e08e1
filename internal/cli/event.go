package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/marketdata"
	"dividend-recovery/internal/models"
	"dividend-recovery/internal/recovery"
)

type eventTarget struct {
	Target float64           `json:"target"`
	Price  float64           `json:"price"`
	Days   recovery.DayCount `json:"days"`
	Date   *string           `json:"date"`
}

type eventReport struct {
	Symbol       string               `json:"symbol"`
	Event        models.DividendEvent `json:"event"`
	DayIndexBase int                  `json:"day_index_base"`
	Reference    float64              `json:"reference_price"`
	WindowSize   int                  `json:"window_size"`
	Targets      []eventTarget        `json:"targets"`
	Window       []models.PricePoint  `json:"window,omitempty"`
}

func newEventCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event <symbol> <ex-date>",
		Short: "Show the recovery of a single dividend",
		Long: `Compute the recovery of one dividend event, showing the reference close, the
price each target requires and the day and date it was first met.`,
		Example: `  divrec event KO 2021-03-14
  divrec event T 2021-01-07 --show-window
  divrec event MO 2021-03-24 --amount 0.86`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := marketdata.NormalizeSymbol(args[0])
			exDate, err := models.ParseDate(args[1])
			if err != nil {
				return apperrors.NewValidationError("ex-date", args[1], "must be YYYY-MM-DD")
			}
			amount, _ := cmd.Flags().GetFloat64("amount")
			showWindow, _ := cmd.Flags().GetBool("show-window")

			settings, err := app.settings(cmd)
			if err != nil {
				return err
			}
			src, err := app.Source()
			if err != nil {
				return err
			}
			hist, err := src.History(cmd.Context(), symbol, settings.eventRange(exDate))
			if err != nil {
				return err
			}

			ev, err := findDividend(hist.Dividends, exDate, amount)
			if err != nil {
				return apperrors.NewDataError("dividend", symbol, err.Error(), apperrors.ErrDataNotFound)
			}

			agg, err := settings.aggregator(symbol, &app.Logger)
			if err != nil {
				return err
			}
			res, window, err := agg.Event(hist.Prices, ev, settings.Targets)
			if err != nil {
				return err
			}

			report := buildEventReport(symbol, ev, res, window, showWindow)
			if output.IsJSON() {
				return output.JSON(report)
			}
			renderEvent(output, report, res, window, settings, showWindow, app.Config.UI.DateFormat)
			return nil
		},
	}

	addAnalysisFlags(cmd, false)
	cmd.Flags().Float64("amount", 0, "dividend amount, overriding the source")
	cmd.Flags().Bool("show-window", false, "list every close in the window")
	return cmd
}

// findDividend looks up the dividend with the given ex-date. A positive amount overrides
// the source and allows events the source does not report.
func findDividend(dividends []models.DividendEvent, exDate time.Time, amount float64) (models.DividendEvent, error) {
	exDate = models.Day(exDate)
	for _, d := range dividends {
		if models.Day(d.ExDate).Equal(exDate) {
			if amount > 0 {
				d.Amount = amount
			}
			return d, nil
		}
	}
	if amount > 0 {
		return models.DividendEvent{ExDate: exDate, Amount: amount}, nil
	}
	return models.DividendEvent{}, fmt.Errorf("no dividend with ex-date %s; pass --amount to supply one", exDate.Format(models.DateLayout))
}

func buildEventReport(symbol string, ev models.DividendEvent, res *recovery.Result, window []models.PricePoint, withWindow bool) eventReport {
	report := eventReport{
		Symbol:       symbol,
		Event:        ev,
		DayIndexBase: recovery.DayIndexBase,
		Reference:    res.ReferencePrice,
		WindowSize:   res.WindowSize,
	}
	for k, f := range res.Targets {
		t := eventTarget{Target: f, Price: res.TargetPrices[k], Days: res.Days[k]}
		if date, ok := res.RecoveryDate(window, k); ok {
			s := date.Format(models.DateLayout)
			t.Date = &s
		}
		report.Targets = append(report.Targets, t)
	}
	if withWindow {
		report.Window = window
	}
	return report
}

func renderEvent(output *Output, report eventReport, res *recovery.Result, window []models.PricePoint, s analysisSettings, showWindow bool, dateFormat string) {
	output.Bold("%s  ex-date %s  dividend %s", report.Symbol, FormatDate(report.Event.ExDate, dateFormat), FormatAmount(report.Event.Amount))
	output.Dim("%s; day 0 is the first close in the window", s.describe())
	output.Printf("Reference close: %s\n", FormatPrice(report.Reference))
	output.Printf("Window:          %s to %s (%d closes)\n",
		FormatDate(res.WindowStart, dateFormat), FormatDate(res.WindowEnd, dateFormat), res.WindowSize)
	output.Println()

	table := NewTable(output, "Target", "Price", "Day", "Date")
	for _, t := range report.Targets {
		date := output.DimText(NotAvailable)
		if t.Date != nil {
			d, _ := models.ParseDate(*t.Date)
			date = FormatDate(d, dateFormat)
		}
		table.AddRow(FormatTarget(t.Target), FormatPrice(t.Price), dayCell(output, t.Days), date)
	}
	table.Render()

	if !showWindow {
		return
	}
	output.Println()
	closes := NewTable(output, "Day", "Date", "Close", "Met")
	for i, p := range window {
		// Highest target this close meets.
		met, best := "", 0.0
		for k, level := range res.TargetPrices {
			if p.Close >= level && res.Targets[k] > best {
				best = res.Targets[k]
				met = output.Green(FormatTarget(best))
			}
		}
		closes.AddRow(fmt.Sprintf("%d", i), FormatDate(p.Date, dateFormat), FormatPrice(p.Close), met)
	}
	closes.Render()
}
