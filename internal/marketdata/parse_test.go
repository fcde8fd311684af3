package marketdata

import (
	"errors"
	"testing"

	"github.com/strikefinance/backtest-engine/pkg/types"
)

func TestParseBarsHappyPath(t *testing.T) {
	decoded := map[string]any{
		"Time Series (5min)": map[string]any{
			"2024-06-03 09:35:00": map[string]any{
				"1. open": "101.0", "2. high": "102.0", "3. low": "100.5", "4. close": "101.5", "5. volume": "1000",
			},
			"2024-06-03 09:30:00": map[string]any{
				"1. open": "100.0", "2. high": "101.0", "3. low": "99.5", "4. close": "100.5", "5. volume": "1200",
			},
		},
	}

	series, err := parseBars("SPY", types.Interval5Min, decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("want 2 bars, got %d", series.Len())
	}
	if series.Bars[0].Timestamp.After(series.Bars[1].Timestamp) {
		t.Fatal("expected ascending timestamp order")
	}
	if series.Bars[0].Volume != 1200 {
		t.Fatalf("want first bar volume 1200, got %d", series.Bars[0].Volume)
	}
}

func TestParseBarsErrorMessage(t *testing.T) {
	decoded := map[string]any{"Error Message": "the symbol does not exist"}
	_, err := parseBars("BOGUS", types.Interval5Min, decoded)
	if !errors.Is(err, ErrVendor) {
		t.Fatalf("want ErrVendor, got %v", err)
	}
}

func TestParseBarsRateLimitNote(t *testing.T) {
	decoded := map[string]any{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is exceeded."}
	_, err := parseBars("SPY", types.Interval5Min, decoded)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestParseBarsMissingTimeSeriesKey(t *testing.T) {
	decoded := map[string]any{"Meta Data": map[string]any{}}
	_, err := parseBars("SPY", types.Interval5Min, decoded)
	if !errors.Is(err, ErrVendor) {
		t.Fatalf("want ErrVendor, got %v", err)
	}
}

func TestParseBarRecordMissingVolumeDefaultsToZero(t *testing.T) {
	record := map[string]any{
		"1. open": "10.0", "2. high": "11.0", "3. low": "9.5", "4. close": "10.5",
	}
	bar, err := parseBarRecord("SPY", types.Interval5Min, "2024-06-03 09:30:00", record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bar.Volume != 0 {
		t.Fatalf("want volume 0, got %d", bar.Volume)
	}
	if err := bar.Validate(); err != nil {
		t.Fatalf("parsed bar should validate: %v", err)
	}
}

func TestParseBarRecordBadTimestamp(t *testing.T) {
	record := map[string]any{
		"1. open": "10.0", "2. high": "11.0", "3. low": "9.5", "4. close": "10.5", "5. volume": "10",
	}
	_, err := parseBarRecord("SPY", types.Interval5Min, "not-a-timestamp", record)
	if !errors.Is(err, ErrVendor) {
		t.Fatalf("want ErrVendor, got %v", err)
	}
}

func TestParseBarRecordNonNumericPrice(t *testing.T) {
	record := map[string]any{
		"1. open": "abc", "2. high": "11.0", "3. low": "9.5", "4. close": "10.5", "5. volume": "10",
	}
	_, err := parseBarRecord("SPY", types.Interval5Min, "2024-06-03 09:30:00", record)
	if !errors.Is(err, ErrVendor) {
		t.Fatalf("want ErrVendor, got %v", err)
	}
}

