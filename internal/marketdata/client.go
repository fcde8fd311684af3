package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/strikefinance/backtest-engine/internal/circuitbreaker"
	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Fetcher maps a (symbol, interval, month) request to a BarSeries chunk,
// enforcing the vendor's per-minute and per-day quotas and retrying
// transport/rate-limit failures with exponential backoff against the
// Alpha-Vantage-shaped TIME_SERIES_INTRADAY contract, with an explicit
// token-bucket limiter instead of relying on the vendor's own throttling.
type Fetcher struct {
	config     Config
	logger     zerolog.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.EngineMetrics

	mu         sync.Mutex
	dailyDate  string
	dailyCount int
}

// NewFetcher constructs a Fetcher from a tier config. The per-minute quota
// is enforced with a token bucket that refills at PerMinute/60 per second;
// the daily quota is a plain counter reset on calendar-day change. m may be
// nil, in which case the fetcher runs without recording metrics.
func NewFetcher(config Config, logger zerolog.Logger, m *metrics.EngineMetrics) *Fetcher {
	limit := rate.Limit(float64(config.PerMinute) / 60.0)
	breakerCfg := circuitbreaker.DefaultConfig("marketdata-vendor", logger)
	breakerCfg.IsFailure = retriable
	breakerCfg.Metrics = m
	return &Fetcher{
		config: config,
		logger: logger.With().Str("component", "marketdata_fetcher").Logger(),
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(limit, maxInt(config.PerMinute, 1)),
		breaker: circuitbreaker.New(breakerCfg),
		metrics: m,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// FetchMonth fetches one calendar month's bars for (symbol, interval).
// month is "YYYY-MM".
func (f *Fetcher) FetchMonth(ctx context.Context, symbol string, interval types.Interval, month string) (types.BarSeries, error) {
	if err := f.reserveDailyQuota(); err != nil {
		f.metrics.RecordFetchRequest(symbol, interval.VendorParam(), "daily_limit")
		return types.BarSeries{}, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		f.metrics.RecordFetchRequest(symbol, interval.VendorParam(), "transport")
		return types.BarSeries{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	start := time.Now()
	defer func() {
		f.metrics.ObserveFetchDuration(symbol, interval.VendorParam(), time.Since(start))
	}()

	var series types.BarSeries
	var lastErr error

	for attempt := 0; attempt <= f.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := f.config.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			f.metrics.RecordFetchRetry(symbol, retryReason(lastErr))
			f.logger.Warn().
				Str("symbol", symbol).
				Str("month", month).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying fetch after transient error")
			select {
			case <-ctx.Done():
				return types.BarSeries{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := f.breaker.Execute(func() error {
			var innerErr error
			series, innerErr = f.doFetch(ctx, symbol, interval, month)
			return innerErr
		})
		if err == nil {
			f.metrics.RecordFetchRequest(symbol, interval.VendorParam(), "ok")
			return series, nil
		}
		lastErr = err
		if !retriable(err) {
			f.metrics.RecordFetchRequest(symbol, interval.VendorParam(), "error")
			return types.BarSeries{}, err
		}
	}
	f.metrics.RecordFetchRequest(symbol, interval.VendorParam(), "retries_exhausted")
	return types.BarSeries{}, fmt.Errorf("fetch %s %s: retries exhausted: %w", symbol, month, lastErr)
}

// retryReason labels why a fetch attempt is being retried, for the
// fetch_retries_total metric.
func retryReason(err error) string {
	switch {
	case isErr(err, ErrRateLimited):
		return "rate_limited"
	case isErr(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func retriable(err error) bool {
	return isErr(err, ErrRateLimited) || isErr(err, ErrTransport)
}

func isErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// FetchRange fetches every calendar month between startMonth and endMonth
// (inclusive, "YYYY-MM") and concatenates the results ascending.
func (f *Fetcher) FetchRange(ctx context.Context, symbol string, interval types.Interval, startMonth, endMonth string) (types.BarSeries, error) {
	months, err := MonthRange(startMonth, endMonth)
	if err != nil {
		return types.BarSeries{}, err
	}

	var all []types.Bar
	for _, m := range months {
		chunk, err := f.FetchMonth(ctx, symbol, interval, m)
		if err != nil {
			return types.BarSeries{}, err
		}
		all = append(all, chunk.Bars...)
	}
	series := types.NewBarSeries(symbol, interval, all)
	return series, nil
}

func (f *Fetcher) doFetch(ctx context.Context, symbol string, interval types.Interval, month string) (types.BarSeries, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_INTRADAY")
	params.Set("symbol", symbol)
	params.Set("interval", interval.VendorParam())
	params.Set("outputsize", "full")
	params.Set("extended_hours", "true")
	params.Set("adjusted", "true")
	params.Set("datatype", "json")
	params.Set("apikey", f.config.APIKey)
	params.Set("month", month)

	reqURL := fmt.Sprintf("%s?%s", f.config.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return types.BarSeries{}, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.BarSeries{}, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, string(body))
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return types.BarSeries{}, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	return parseBars(symbol, interval, decoded)
}

// reserveDailyQuota increments the daily counter, resetting it on calendar
// day change, and rejects with ErrDailyLimit once PerDay is exhausted.
func (f *Fetcher) reserveDailyQuota() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if f.dailyDate != today {
		f.dailyDate = today
		f.dailyCount = 0
	}
	if f.dailyCount >= f.config.PerDay {
		return ErrDailyLimit
	}
	f.dailyCount++
	return nil
}
