package indicators

import (
	"testing"
	"time"
)

func feedMACD(m *MACD, prices []float64) {
	now := time.Now()
	for _, p := range prices {
		_ = m.Update(p, now)
	}
}

func TestMACDNotReadyUntilSignalEMASeeded(t *testing.T) {
	m := NewMACD(3, 6, 3)
	// slow EMA needs 6 prices before MACD line exists at all, then the
	// signal EMA needs 3 MACD-line values on top of that.
	feedMACD(m, []float64{10, 11, 12, 13, 14, 15})
	if m.IsReady() {
		t.Fatal("want not ready: signal EMA has only just started accumulating")
	}
	feedMACD(m, []float64{16, 17})
	if !m.IsReady() {
		t.Fatal("want ready once signal EMA has its period of MACD values")
	}
}

func TestMACDHistogramEqualsLineMinusSignal(t *testing.T) {
	m := NewMACD(3, 6, 3)
	feedMACD(m, []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})
	if !m.IsReady() {
		t.Fatal("expected ready after enough prices")
	}
	want := m.MACDLine() - m.SignalLine()
	if m.Histogram() != want {
		t.Fatalf("want histogram %v, got %v", want, m.Histogram())
	}
	if m.Value() != m.MACDLine() {
		t.Fatalf("want Value() to report the MACD line, got %v vs %v", m.Value(), m.MACDLine())
	}
	vals := m.Values()
	if vals[0] != m.MACDLine() || vals[1] != m.SignalLine() || vals[2] != m.Histogram() {
		t.Fatalf("want Values() == [macd, signal, histogram], got %v", vals)
	}
}

func TestMACDRejectsNonPositivePrice(t *testing.T) {
	m := NewMACD(3, 6, 3)
	if err := m.Update(0, time.Now()); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestMACDDefaultsInvalidPeriods(t *testing.T) {
	m := NewMACD(0, -1, 0)
	if m.FastPeriod() != 12 || m.SlowPeriod() != 26 || m.SignalPeriod() != 9 {
		t.Fatalf("want standard defaults 12/26/9, got %d/%d/%d", m.FastPeriod(), m.SlowPeriod(), m.SignalPeriod())
	}
}

func TestMACDCrossoverDetection(t *testing.T) {
	m := NewMACD(3, 6, 3)
	feedMACD(m, []float64{10, 11, 12, 13, 14, 15, 16, 17, 18})
	if !m.IsReady() {
		t.Fatal("expected ready")
	}
	prevMACD, prevSignal := m.MACDLine(), m.SignalLine()
	_ = m.Update(30, time.Now()) // sharp jump should push the (fast) line above signal

	if !m.IsBullishCrossover(prevMACD-1, prevSignal+1) && !m.IsBullish() {
		t.Fatal("want bullish signal after a sharp upward jump")
	}
}

func TestMACDResetClearsState(t *testing.T) {
	m := NewMACD(3, 6, 3)
	feedMACD(m, []float64{10, 11, 12, 13, 14, 15, 16, 17, 18})
	m.Reset()
	if m.IsReady() || m.Value() != 0 || m.Histogram() != 0 {
		t.Fatal("want fully cleared state after Reset")
	}
}
