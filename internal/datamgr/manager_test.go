package datamgr

import (
	"testing"
	"time"

	"github.com/strikefinance/backtest-engine/pkg/types"
)

func TestMonthsBetweenSingleMonth(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	got := monthsBetween(start, end)
	want := []string{"2024-06"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestMonthsBetweenSpansMultipleMonths(t *testing.T) {
	start := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	got := monthsBetween(start, end)
	want := []string{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func mgrBar(ts time.Time, close float64) types.Bar {
	return types.Bar{Symbol: "SPY", Interval: types.Interval5Min, Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestFillGapsInsertsSyntheticBarsWithinThreshold(t *testing.T) {
	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	series := types.NewBarSeries("SPY", types.Interval5Min, []types.Bar{
		mgrBar(base, 100),
		mgrBar(base.Add(20*time.Minute), 104), // three 5-minute bars missing
	})

	filled := fillGaps(series, types.Interval5Min)
	if filled.Len() != 5 {
		t.Fatalf("want 5 bars after gap-filling (2 real + 3 synthetic), got %d", filled.Len())
	}
	for i := 1; i < 4; i++ {
		b := filled.Bars[i]
		if !b.Synthetic {
			t.Fatalf("bar %d: want synthetic, got real", i)
		}
		if b.Open != 100 || b.Close != 100 || b.Volume != 0 {
			t.Fatalf("bar %d: want flat synthetic bar at prior close, got %+v", i, b)
		}
	}
}

func TestFillGapsLeavesLargeGapsAlone(t *testing.T) {
	base := time.Date(2024, 6, 3, 16, 0, 0, 0, time.UTC) // market close
	series := types.NewBarSeries("SPY", types.Interval5Min, []types.Bar{
		mgrBar(base, 100),
		mgrBar(base.Add(18*time.Hour), 101), // overnight gap, >6h threshold
	})

	filled := fillGaps(series, types.Interval5Min)
	if filled.Len() != 2 {
		t.Fatalf("want overnight gap left alone (2 bars), got %d", filled.Len())
	}
}

func TestFillGapsNoopForFewerThanTwoBars(t *testing.T) {
	series := types.NewBarSeries("SPY", types.Interval5Min, []types.Bar{mgrBar(time.Now(), 100)})
	filled := fillGaps(series, types.Interval5Min)
	if filled.Len() != 1 {
		t.Fatalf("want unchanged single-bar series, got %d bars", filled.Len())
	}
}

func TestFilterRangeExcludesOutOfWindowBarsAndSorts(t *testing.T) {
	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	series := types.NewBarSeries("SPY", types.Interval5Min, []types.Bar{
		mgrBar(base.Add(10*time.Minute), 102),
		mgrBar(base, 100),
		mgrBar(base.Add(20*time.Minute), 104), // outside window below
	})

	got := filterRange(series, base, base.Add(15*time.Minute))
	if got.Len() != 2 {
		t.Fatalf("want 2 bars within window, got %d", got.Len())
	}
	if !got.Bars[0].Timestamp.Equal(base) {
		t.Fatalf("want ascending order starting at base, got %v", got.Bars[0].Timestamp)
	}
}
