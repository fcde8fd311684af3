package indicators

import (
	"testing"
	"time"
)

func bar(h, l, c float64) PricePoint {
	return PricePoint{High: h, Low: l, Close: c, Timestamp: time.Now()}
}

func TestATRNotReadyUntilPeriodBars(t *testing.T) {
	a := NewATR(3)
	bars := []PricePoint{bar(12, 10, 11), bar(13, 11, 12)}
	for _, b := range bars {
		if err := a.UpdateOHLCV(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.IsReady() {
			t.Fatal("expected not ready before period bars")
		}
	}
	if err := a.UpdateOHLCV(bar(14, 12, 13)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.IsReady() {
		t.Fatal("expected ready after period bars")
	}
}

func TestATRFirstValueIsSimpleAverage(t *testing.T) {
	a := NewATR(2)
	_ = a.UpdateOHLCV(bar(12, 10, 11)) // tr = 2
	_ = a.UpdateOHLCV(bar(13, 11, 12)) // tr = max(2, |13-11|, |11-11|) = 2
	want := 2.0
	if got := a.Value(); got != want {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestATRRejectsInvertedHighLow(t *testing.T) {
	a := NewATR(14)
	if err := a.UpdateOHLCV(bar(9, 10, 9.5)); err == nil {
		t.Fatal("expected error for high < low")
	}
}

func TestATRGetStopLossDistanceZeroWhenNotReady(t *testing.T) {
	a := NewATR(14)
	if got := a.GetStopLossDistance(2.0); got != 0 {
		t.Fatalf("want 0 when not ready, got %v", got)
	}
}

func TestATRGetPositionSize(t *testing.T) {
	a := NewATR(2)
	_ = a.UpdateOHLCV(bar(12, 10, 11))
	_ = a.UpdateOHLCV(bar(13, 11, 12))
	// atrValue = 2, stopLossDistance = 2*1.5 = 3; riskAmount 300 / 3 = 100 shares.
	got := a.GetPositionSize(300, 1.5)
	if got != 100 {
		t.Fatalf("want 100 shares, got %d", got)
	}
}
