package indicators

import "math"

// This file implements the pure, stateless slice functions over a full
// price history that the indicator contract requires, independent from the
// streaming Indicator objects in the rest of the package (EMA, RSI, MACD,
// ATR) which the Opening-Range-Breakout strategy updates bar by bar.
// Indices that are undefined because too little history is available carry
// math.NaN() rather than a zero value, so callers can distinguish "not yet
// computable" from "computed as zero".

// SeriesSMA returns the simple moving average of values over period,
// undefined (NaN) for indices < period-1.
func SeriesSMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// SeriesEMA returns the exponential moving average of values over period.
// The seed is values[0]; the multiplier is 2/(period+1).
func SeriesEMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if period < 1 {
		period = 1
	}
	mult := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*mult + out[i-1]
	}
	return out
}

// SeriesRSI returns the Wilder-style Relative Strength Index over period,
// undefined for indices < period. When avg_loss is zero and avg_gain is
// positive, RSI is reported as 100.
func SeriesRSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 {
		period = 14
	}
	if len(values) <= period {
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain > 0 {
			return 100
		}
		return 50
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the three series the MACD contract produces.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// SeriesMACD returns MACD(12,26,9): macd = ema12 - ema26, signal = ema(macd, 9),
// histogram = macd - signal.
func SeriesMACD(values []float64) MACDResult {
	ema12 := SeriesEMA(values, 12)
	ema26 := SeriesEMA(values, 26)
	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := SeriesEMA(macd, 9)
	histogram := make([]float64, len(values))
	for i := range values {
		histogram[i] = macd[i] - signal[i]
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: histogram}
}

// SeriesATR returns the Average True Range over period: true range is
// max(h-l, |h-prev_close|, |l-prev_close|) (h-l for the first bar), smoothed
// with an SMA of TR over period. The first defined value is at index
// period-1; earlier indices are NaN, and every index is NaN when there are
// no more than period bars.
func SeriesATR(highs, lows, closes []float64, period int) []float64 {
	n := len(highs)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 {
		period = 14
	}
	if n == 0 || n != len(lows) || n != len(closes) {
		return out
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	if n <= period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < n; i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}
