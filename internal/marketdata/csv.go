package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/models"
)

// priceRow matches the daily history export of Yahoo Finance; extra columns are ignored.
type priceRow struct {
	Date  string `csv:"Date"`
	Close string `csv:"Close"`
}

// dividendRow matches the dividend history export of Yahoo Finance.
type dividendRow struct {
	Date      string `csv:"Date"`
	Dividends string `csv:"Dividends"`
}

// CSVSource reads history from <dir>/<SYMBOL>.csv and the optional
// <dir>/<SYMBOL>_dividends.csv.
type CSVSource struct {
	dir    string
	logger zerolog.Logger
}

// NewCSVSource creates a CSV source rooted at dir.
func NewCSVSource(dir string, logger *zerolog.Logger) *CSVSource {
	s := &CSVSource{dir: dir, logger: zerolog.Nop()}
	if logger != nil {
		s.logger = *logger
	}
	return s
}

// Name implements Source.
func (s *CSVSource) Name() string {
	return SourceCSV
}

// PricesPath returns the closes file of symbol.
func (s *CSVSource) PricesPath(symbol string) string {
	return filepath.Join(s.dir, NormalizeSymbol(symbol)+".csv")
}

// DividendsPath returns the dividends file of symbol.
func (s *CSVSource) DividendsPath(symbol string) string {
	return filepath.Join(s.dir, NormalizeSymbol(symbol)+"_dividends.csv")
}

// History implements Source.
func (s *CSVSource) History(ctx context.Context, symbol string, r models.DateRange) (*models.History, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if err := rangeParams(r); err != nil {
		return nil, apperrors.NewValidationError("range", r, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var priceRows []*priceRow
	if err := readCSV(s.PricesPath(symbol), &priceRows); err != nil {
		if os.IsNotExist(err) {
			err = apperrors.ErrSymbolNotFound
		}
		logging.LogFetch(s.logger, SourceCSV, symbol, 0, 0, time.Since(start), err)
		return nil, apperrors.NewDataError("prices", symbol, s.PricesPath(symbol), err)
	}

	prices := make([]models.PricePoint, 0, len(priceRows))
	for i, row := range priceRows {
		price, ok, err := parseAmount(row.Close)
		if err != nil {
			return nil, apperrors.NewDataError("prices", symbol, fmt.Sprintf("row %d", i+2), err)
		}
		if !ok {
			continue
		}
		d, err := models.ParseDate(strings.TrimSpace(row.Date))
		if err != nil {
			return nil, apperrors.NewDataError("prices", symbol, fmt.Sprintf("row %d", i+2), err)
		}
		prices = append(prices, models.PricePoint{Date: d, Close: price})
	}

	var divRows []*dividendRow
	if err := readCSV(s.DividendsPath(symbol), &divRows); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.NewDataError("dividends", symbol, s.DividendsPath(symbol), err)
	}
	dividends := make([]models.DividendEvent, 0, len(divRows))
	for i, row := range divRows {
		amount, ok, err := parseAmount(row.Dividends)
		if err != nil {
			return nil, apperrors.NewDataError("dividends", symbol, fmt.Sprintf("row %d", i+2), err)
		}
		if !ok {
			continue
		}
		d, err := models.ParseDate(strings.TrimSpace(row.Date))
		if err != nil {
			return nil, apperrors.NewDataError("dividends", symbol, fmt.Sprintf("row %d", i+2), err)
		}
		dividends = append(dividends, models.DividendEvent{ExDate: d, Amount: amount})
	}

	hist := (&models.History{
		Symbol:    symbol,
		Prices:    normalizePrices(prices),
		Dividends: normalizeDividends(dividends),
		FetchedAt: time.Now().UTC(),
		Source:    SourceCSV,
	}).Slice(models.DateRange{From: models.Day(r.From), To: models.Day(r.To)})

	logging.LogFetch(s.logger, SourceCSV, symbol, len(hist.Prices), len(hist.Dividends), time.Since(start), nil)
	return hist, nil
}

func readCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.Unmarshal(f, out)
}

// parseAmount parses a positive decimal; blanks and "null" report ok == false.
func parseAmount(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if v <= 0 {
		return 0, false, nil
	}
	return v, true, nil
}
