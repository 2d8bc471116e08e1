package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/marketdata"
	"dividend-recovery/internal/models"
	"dividend-recovery/internal/store"
)

type fetchResult struct {
	Symbol    string                 `json:"symbol"`
	Source    string                 `json:"source"`
	Currency  string                 `json:"currency,omitempty"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	FetchedAt time.Time              `json:"fetched_at"`
	Closes    int                    `json:"closes"`
	Dividends []models.DividendEvent `json:"dividends"`
	Prices    []models.PricePoint    `json:"prices,omitempty"`
}

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <symbol>",
		Short: "Download price and dividend history",
		Long: `Download daily closes and dividends for a symbol and store them in the history
cache. The default range covers the configured analysis years.`,
		Example: `  divrec fetch KO
  divrec fetch T --from 2015-01-01 --to 2021-12-31 --refresh
  divrec fetch VZ --prices --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := marketdata.NormalizeSymbol(args[0])
			refresh, _ := cmd.Flags().GetBool("refresh")
			withPrices, _ := cmd.Flags().GetBool("prices")

			settings, err := app.settings(cmd)
			if err != nil {
				return err
			}
			r, err := rangeFlags(cmd, settings.fetchRange())
			if err != nil {
				return err
			}

			src, err := app.Source()
			if err != nil {
				return err
			}
			var hist *models.History
			if refresh && app.cache != nil {
				hist, err = app.cache.Refresh(cmd.Context(), symbol, r)
			} else {
				hist, err = src.History(cmd.Context(), symbol, r)
			}
			if err != nil {
				return err
			}

			res := fetchResult{
				Symbol:    hist.Symbol,
				Source:    hist.Source,
				Currency:  hist.Currency,
				From:      r.From.Format(models.DateLayout),
				To:        r.To.Format(models.DateLayout),
				FetchedAt: hist.FetchedAt,
				Closes:    len(hist.Prices),
				Dividends: hist.Dividends,
			}
			if withPrices {
				res.Prices = hist.Prices
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			renderFetch(output, res, hist, app.Config.UI.DateFormat)
			return nil
		},
	}

	cmd.Flags().IntP("years", "y", 0, "number of years to cover (default from config)")
	cmd.Flags().Int("as-of", 0, "most recent year to cover (default: last complete year)")
	cmd.Flags().String("from", "", "first date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last date, YYYY-MM-DD")
	cmd.Flags().Bool("refresh", false, "bypass the cache and download again")
	cmd.Flags().Bool("prices", false, "include every close in the output")
	return cmd
}

// rangeFlags applies --from and --to over def.
func rangeFlags(cmd *cobra.Command, def models.DateRange) (models.DateRange, error) {
	r := def
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		t, err := models.ParseDate(v)
		if err != nil {
			return r, apperrors.NewValidationError("from", v, "must be YYYY-MM-DD")
		}
		r.From = t
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		t, err := models.ParseDate(v)
		if err != nil {
			return r, apperrors.NewValidationError("to", v, "must be YYYY-MM-DD")
		}
		r.To = t
	}
	if r.To.Before(r.From) {
		return r, apperrors.NewValidationError("to", r.To.Format(models.DateLayout), "must not be before from")
	}
	return r, nil
}

func renderFetch(output *Output, res fetchResult, hist *models.History, dateFormat string) {
	output.Bold("%s  %s to %s", res.Symbol, res.From, res.To)
	output.Printf("Source:    %s\n", res.Source)
	if res.Currency != "" {
		output.Printf("Currency:  %s\n", res.Currency)
	}
	output.Printf("Closes:    %d", res.Closes)
	if n := len(hist.Prices); n > 0 {
		output.Printf(" (%s to %s)", FormatDate(hist.Prices[0].Date, dateFormat), FormatDate(hist.Prices[n-1].Date, dateFormat))
	}
	output.Println()
	if !res.FetchedAt.IsZero() {
		output.Printf("Fetched:   %s\n", res.FetchedAt.Local().Format("2006-01-02 15:04:05"))
	}
	output.Println()

	if len(res.Dividends) == 0 {
		output.Warning("No dividends in range")
	} else {
		table := NewTable(output, "Ex-date", "Amount")
		for _, d := range res.Dividends {
			table.AddRow(FormatDate(d.ExDate, dateFormat), FormatAmount(d.Amount))
		}
		table.Render()
	}

	if len(res.Prices) > 0 {
		output.Println()
		table := NewTable(output, "Date", "Close")
		for _, p := range res.Prices {
			table.AddRow(FormatDate(p.Date, dateFormat), FormatPrice(p.Close))
		}
		table.Render()
	}
}

func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the history cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			hs, err := app.HistoryStore()
			if err != nil {
				return err
			}
			entries, err := hs.ListEntries(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if entries == nil {
					entries = []store.CacheEntry{}
				}
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Info("Cache is empty")
				return nil
			}
			now := app.now()
			table := NewTable(output, "Source", "Symbol", "From", "To", "Closes", "Dividends", "Age")
			for _, e := range entries {
				age := FormatDuration(e.Age(now))
				if e.Age(now) > app.Config.Data.CacheTTL {
					age = output.Yellow(age + " (stale)")
				}
				table.AddRow(
					e.Key.Source,
					e.Key.Symbol,
					e.Key.From.Format(models.DateLayout),
					e.Key.To.Format(models.DateLayout),
					strconv.Itoa(e.Prices),
					strconv.Itoa(e.Dividends),
					age,
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [symbol]",
		Short: "Remove cached downloads, for one symbol or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			hs, err := app.HistoryStore()
			if err != nil {
				return err
			}
			var removed int64
			if len(args) == 1 {
				removed, err = hs.DeleteSymbol(cmd.Context(), marketdata.NormalizeSymbol(args[0]))
			} else {
				removed, err = hs.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"removed": removed})
			}
			output.Success("Removed %s", pluralize(removed, "cached download"))
			return nil
		},
	})

	return cmd
}

func pluralize(n int64, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
