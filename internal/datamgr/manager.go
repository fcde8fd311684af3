// Package datamgr implements the Data Manager: it turns a requested
// (symbol, interval, start, end) window into a validated, gap-filled
// BarSeries by checking the cache first and only fetching the months that
// are missing.
package datamgr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/cache"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Fetcher is the subset of marketdata.Fetcher the Data Manager depends on.
type Fetcher interface {
	FetchMonth(ctx context.Context, symbol string, interval types.Interval, month string) (types.BarSeries, error)
}

// Manager coordinates the cache store and the external fetcher to serve
// complete bar series for a requested window.
type Manager struct {
	store   *cache.Store
	fetcher Fetcher
	logger  zerolog.Logger
}

func New(store *cache.Store, fetcher Fetcher, logger zerolog.Logger) *Manager {
	return &Manager{store: store, fetcher: fetcher, logger: logger.With().Str("component", "data_manager").Logger()}
}

// GetBars returns a validated, gap-filled BarSeries covering [start, end]
// for (symbol, interval). Coverage is checked month by month; only months
// not already cached are fetched and stored, unless forceRefresh is set, in
// which case every month in the window is re-fetched and the cache entry
// overwritten regardless of prior coverage.
func (m *Manager) GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time, forceRefresh bool) (types.BarSeries, error) {
	months := monthsBetween(start, end)

	for _, month := range months {
		if !forceRefresh {
			cached, err := m.store.HasMonth(ctx, symbol, interval, month)
			if err != nil {
				return types.BarSeries{}, fmt.Errorf("check cache coverage: %w", err)
			}
			if cached {
				continue
			}
		}

		m.logger.Info().Str("symbol", symbol).Str("month", month).Bool("force_refresh", forceRefresh).Msg("fetching month")
		chunk, err := m.fetcher.FetchMonth(ctx, symbol, interval, month)
		if err != nil {
			return types.BarSeries{}, fmt.Errorf("fetch month %s: %w", month, err)
		}
		if err := chunk.Validate(); err != nil {
			return types.BarSeries{}, fmt.Errorf("validate fetched month %s: %w", month, err)
		}
		if err := m.store.StoreBars(ctx, chunk, month); err != nil {
			return types.BarSeries{}, fmt.Errorf("store month %s: %w", month, err)
		}
	}

	series, err := m.store.GetRange(ctx, symbol, interval, start, end)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("read cached range: %w", err)
	}
	if err := series.Validate(); err != nil {
		return types.BarSeries{}, fmt.Errorf("validate assembled series: %w", err)
	}

	filled := fillGaps(series, interval)
	return filterRange(filled, start, end), nil
}

// monthsBetween returns every "YYYY-MM" calendar month touching [start, end].
func monthsBetween(start, end time.Time) []string {
	var months []string
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(last) {
		months = append(months, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// fillGaps inserts synthetic flat bars (open=high=low=close=prior close,
// volume=0) at each missing interval boundary inside any gap shorter than
// six hours, so downstream consumers see a contiguous series. Gaps of six
// hours or more (e.g. overnight, weekend) are left alone; market hours are
// not consulted.
func fillGaps(series types.BarSeries, interval types.Interval) types.BarSeries {
	if series.Len() < 2 {
		return series
	}

	step := interval.Duration()
	out := make([]types.Bar, 0, series.Len())
	out = append(out, series.Bars[0])

	for i := 1; i < series.Len(); i++ {
		prev := out[len(out)-1]
		cur := series.Bars[i]
		gap := cur.Timestamp.Sub(prev.Timestamp)

		if gap > step && gap < 6*time.Hour {
			steps := int(gap / step)
			for s := 1; s < steps; s++ {
				synthTS := prev.Timestamp.Add(time.Duration(s) * step)
				out = append(out, types.Bar{
					Symbol:    series.Symbol,
					Interval:  interval,
					Timestamp: synthTS,
					Open:      prev.Close,
					High:      prev.Close,
					Low:       prev.Close,
					Close:     prev.Close,
					Volume:    0,
					Synthetic: true,
				})
			}
		}
		out = append(out, cur)
	}

	return types.NewBarSeries(series.Symbol, interval, out)
}

func filterRange(series types.BarSeries, start, end time.Time) types.BarSeries {
	filtered := make([]types.Bar, 0, series.Len())
	for _, bar := range series.Bars {
		if !bar.Timestamp.Before(start) && !bar.Timestamp.After(end) {
			filtered = append(filtered, bar)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp.Before(filtered[j].Timestamp) })
	return types.NewBarSeries(series.Symbol, series.Interval, filtered)
}
