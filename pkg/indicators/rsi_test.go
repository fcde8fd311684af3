package indicators

import (
	"testing"
	"time"
)

func TestRSINotReadyUntilPeriodPlusOnePrices(t *testing.T) {
	r := NewRSI(3)
	now := time.Now()
	prices := []float64{10, 11, 12}
	for _, p := range prices {
		if err := r.Update(p, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.IsReady() {
			t.Fatalf("expected not ready after %d prices", len(prices))
		}
	}
	if err := r.Update(13, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsReady() {
		t.Fatal("expected ready after period+1 prices")
	}
}

func TestRSIAllGainsYields100(t *testing.T) {
	r := NewRSI(3)
	now := time.Now()
	for _, p := range []float64{10, 11, 12, 13, 14} {
		if err := r.Update(p, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := r.Value(); got != 100 {
		t.Fatalf("want 100, got %v", got)
	}
}

func TestRSIRejectsNonPositivePrice(t *testing.T) {
	r := NewRSI(14)
	if err := r.Update(0, time.Now()); err == nil {
		t.Fatal("expected error for non-positive price")
	}
}

func TestRSIResetClearsState(t *testing.T) {
	r := NewRSI(3)
	now := time.Now()
	for _, p := range []float64{10, 11, 12, 13} {
		_ = r.Update(p, now)
	}
	if !r.IsReady() {
		t.Fatal("expected ready before reset")
	}
	r.Reset()
	if r.IsReady() {
		t.Fatal("expected not ready after reset")
	}
	if r.Value() != 0 {
		t.Fatalf("want 0 value after reset, got %v", r.Value())
	}
}

func TestRSIOverboughtOversoldThresholds(t *testing.T) {
	r := NewRSI(3)
	now := time.Now()
	for _, p := range []float64{10, 11, 12, 13} {
		_ = r.Update(p, now)
	}
	if !r.IsOverbought() {
		t.Fatal("expected overbought after sustained gains")
	}
	if r.IsOversold() {
		t.Fatal("did not expect oversold after sustained gains")
	}
}
