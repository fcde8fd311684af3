package marketdata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/strikefinance/backtest-engine/pkg/types"
)

func timeSeriesKey(interval string) string {
	return fmt.Sprintf("Time Series (%s)", interval)
}

// parseBars extracts the named time-series object from the raw decoded
// payload, validates error discriminators first, and returns an
// ascending-by-timestamp BarSeries. The vendor returns records in reverse
// chronological order; output is always re-sorted ascending.
func parseBars(symbol string, interval types.Interval, decoded map[string]any) (types.BarSeries, error) {
	if msg, ok := decoded["Error Message"].(string); ok && msg != "" {
		return types.BarSeries{}, fmt.Errorf("%w: %s", ErrVendor, msg)
	}
	if note, ok := decoded["Note"].(string); ok && note != "" {
		lower := strings.ToLower(note)
		if strings.Contains(lower, "limit") || strings.Contains(lower, "exceeded") {
			return types.BarSeries{}, fmt.Errorf("%w: %s", ErrRateLimited, note)
		}
		return types.BarSeries{}, fmt.Errorf("%w: %s", ErrVendor, note)
	}

	key := timeSeriesKey(interval.VendorParam())
	raw, ok := decoded[key].(map[string]any)
	if !ok {
		return types.BarSeries{}, fmt.Errorf("%w: missing %q in response", ErrVendor, key)
	}

	bars := make([]types.Bar, 0, len(raw))
	for ts, fields := range raw {
		record, ok := fields.(map[string]any)
		if !ok {
			continue
		}
		bar, err := parseBarRecord(symbol, interval, ts, record)
		if err != nil {
			return types.BarSeries{}, err
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return types.NewBarSeries(symbol, interval, bars), nil
}

func parseBarRecord(symbol string, interval types.Interval, tsKey string, record map[string]any) (types.Bar, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", tsKey)
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrVendor, tsKey, err)
	}

	open, err := parseDecimal(record["1. open"])
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: open: %v", ErrVendor, err)
	}
	high, err := parseDecimal(record["2. high"])
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: high: %v", ErrVendor, err)
	}
	low, err := parseDecimal(record["3. low"])
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: low: %v", ErrVendor, err)
	}
	closePx, err := parseDecimal(record["4. close"])
	if err != nil {
		return types.Bar{}, fmt.Errorf("%w: close: %v", ErrVendor, err)
	}
	volume, _ := parseVolume(record["5. volume"]) // missing volume tolerated, defaults to 0

	return types.Bar{
		Symbol:    symbol,
		Interval:  interval,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}

func parseDecimal(v any) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected string, got %T", v)
	}
	return strconv.ParseFloat(s, 64)
}

func parseVolume(v any) (int64, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
