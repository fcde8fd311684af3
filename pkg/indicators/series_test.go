package indicators

import (
	"math"
	"testing"
)

func TestSeriesSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SeriesSMA(values, 3)

	for i := 0; i < 2; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("index %d: want NaN, got %v", i, got[i])
		}
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		idx := i + 2
		if got[idx] != w {
			t.Errorf("index %d: want %v, got %v", idx, w, got[idx])
		}
	}
}

func TestSeriesEMASeedsFromFirstValue(t *testing.T) {
	values := []float64{10, 12, 11, 13}
	got := SeriesEMA(values, 2)
	if got[0] != 10 {
		t.Fatalf("want seed 10, got %v", got[0])
	}
	// mult = 2/3
	want1 := (12-10)*(2.0/3.0) + 10
	if math.Abs(got[1]-want1) > 1e-9 {
		t.Fatalf("want %v, got %v", want1, got[1])
	}
}

func TestSeriesRSIFlatZeroLossYields100(t *testing.T) {
	// Monotonically increasing series: every change is a gain, avgLoss stays 0.
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(100 + i)
	}
	got := SeriesRSI(values, 14)
	if got[14] != 100 {
		t.Fatalf("want RSI 100 for all-gains series, got %v", got[14])
	}
}

func TestSeriesRSIUndefinedBeforePeriod(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SeriesRSI(values, 14)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("index %d: want NaN for short series, got %v", i, v)
		}
	}
}

func TestSeriesMACDHistogramIsDifference(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(100 + i)
	}
	res := SeriesMACD(values)
	for i := range values {
		want := res.MACD[i] - res.Signal[i]
		if math.Abs(res.Histogram[i]-want) > 1e-9 {
			t.Fatalf("index %d: histogram %v != macd-signal %v", i, res.Histogram[i], want)
		}
	}
}

func TestSeriesATRFirstValueIsSMAOfTrueRange(t *testing.T) {
	highs := []float64{12, 13, 14, 15}
	lows := []float64{10, 11, 12, 13}
	closes := []float64{11, 12, 13, 14}
	got := SeriesATR(highs, lows, closes, 2)

	// period-1 = 1: first defined value is the SMA of TR[0], TR[1].
	if math.IsNaN(got[1]) {
		t.Fatalf("want defined ATR at index 1, got NaN")
	}
	tr0 := highs[0] - lows[0]
	tr1 := math.Max(highs[1]-lows[1], math.Max(math.Abs(highs[1]-closes[0]), math.Abs(lows[1]-closes[0])))
	want := (tr0 + tr1) / 2
	if math.Abs(got[1]-want) > 1e-9 {
		t.Fatalf("want %v, got %v", want, got[1])
	}
}

func TestSeriesATRMismatchedLengthsReturnsAllNaN(t *testing.T) {
	got := SeriesATR([]float64{1, 2}, []float64{1}, []float64{1, 2}, 14)
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("index %d: want NaN for mismatched input, got %v", i, v)
		}
	}
}
