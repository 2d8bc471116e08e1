package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/models"
	"dividend-recovery/pkg/utils"
)

// DefaultYahooBaseURL is the Yahoo Finance chart endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

const yahooUserAgent = "Mozilla/5.0 (compatible; dividend-recovery/0.1)"

// YahooConfig holds configuration for the Yahoo Finance source.
type YahooConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             utils.RetryConfig
	HTTPClient        *http.Client
	Logger            *zerolog.Logger
}

// YahooSource fetches daily closes and dividends from the Yahoo Finance chart API.
type YahooSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewYahooSource creates a new Yahoo Finance source.
func NewYahooSource(cfg YahooConfig) *YahooSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	if len(cfg.Retry.RetryableErrors) == 0 {
		cfg.Retry.RetryableErrors = []error{apperrors.ErrRateLimited, apperrors.ErrConnectionFailed}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &YahooSource{
		baseURL: cfg.BaseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:   cfg.Retry,
		logger:  logger,
	}
}

// Name implements Source.
func (y *YahooSource) Name() string {
	return SourceYahoo
}

// History implements Source.
func (y *YahooSource) History(ctx context.Context, symbol string, r models.DateRange) (*models.History, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if err := rangeParams(r); err != nil {
		return nil, apperrors.NewValidationError("range", r, err.Error())
	}

	start := time.Now()
	chart, err := utils.RetryWithResult(ctx, y.retry, func() (*yahooChart, error) {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return y.fetch(ctx, symbol, r)
	})
	if err != nil {
		logging.LogFetch(y.logger, SourceYahoo, symbol, 0, 0, time.Since(start), err)
		return nil, err
	}

	hist, err := chart.history(symbol)
	if err != nil {
		return nil, err
	}
	hist = hist.Slice(models.DateRange{From: models.Day(r.From), To: models.Day(r.To)})
	logging.LogFetch(y.logger, SourceYahoo, symbol, len(hist.Prices), len(hist.Dividends), time.Since(start), nil)
	return hist, nil
}

func (y *YahooSource) fetch(ctx context.Context, symbol string, r models.DateRange) (*yahooChart, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(models.Day(r.From).Unix(), 10))
	q.Set("period2", strconv.FormatInt(models.Day(r.To).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div")
	q.Set("includeAdjustedClose", "false")
	addr := y.baseURL + url.PathEscape(symbol) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewDataError("history", symbol, "request failed", fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewDataError("history", symbol, "reading response", fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewDataError("history", symbol, resp.Status, apperrors.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, apperrors.NewDataError("history", symbol, resp.Status, apperrors.ErrConnectionFailed)
	}

	var chart yahooChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, apperrors.NewDataError("history", symbol, fmt.Sprintf("decoding response (%s)", resp.Status), err)
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" || resp.StatusCode == http.StatusNotFound {
			return nil, apperrors.NewDataError("history", symbol, chart.Chart.Error.Description, apperrors.ErrSymbolNotFound)
		}
		return nil, apperrors.NewDataError("history", symbol, chart.Chart.Error.Description, apperrors.ErrDataNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDataError("history", symbol, resp.Status, apperrors.ErrDataNotFound)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, apperrors.NewDataError("history", symbol, "empty chart result", apperrors.ErrSymbolNotFound)
	}
	return &chart.Chart.Result[0], nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChart `json:"result"`
		Error  *yahooError  `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChart struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int    `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// history converts the chart payload into exchange-local calendar dates. Missing
// closes are dropped.
func (c *yahooChart) history(symbol string) (*models.History, error) {
	if len(c.Indicators.Quote) == 0 {
		return nil, apperrors.NewDataError("history", symbol, "no quote indicators", apperrors.ErrDataNotFound)
	}
	closes := c.Indicators.Quote[0].Close
	if len(closes) != len(c.Timestamp) {
		return nil, apperrors.NewDataError("history", symbol,
			fmt.Sprintf("%d timestamps for %d closes", len(c.Timestamp), len(closes)), apperrors.ErrDataNotFound)
	}

	local := func(ts int64) time.Time {
		return models.Day(time.Unix(ts+int64(c.Meta.GMTOffset), 0).UTC())
	}

	prices := make([]models.PricePoint, 0, len(closes))
	for i, ts := range c.Timestamp {
		if closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		prices = append(prices, models.PricePoint{Date: local(ts), Close: *closes[i]})
	}

	dividends := make([]models.DividendEvent, 0, len(c.Events.Dividends))
	for _, d := range c.Events.Dividends {
		if d.Amount <= 0 {
			continue
		}
		dividends = append(dividends, models.DividendEvent{ExDate: local(d.Date), Amount: d.Amount})
	}

	name := c.Meta.Symbol
	if name == "" {
		name = symbol
	}
	return &models.History{
		Symbol:    name,
		Currency:  c.Meta.Currency,
		Prices:    normalizePrices(prices),
		Dividends: normalizeDividends(dividends),
		FetchedAt: time.Now().UTC(),
		Source:    SourceYahoo,
	}, nil
}
