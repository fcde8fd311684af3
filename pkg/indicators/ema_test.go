package indicators

import (
	"testing"
	"time"
)

func TestEMASeedsWithSMAOncePeriodReached(t *testing.T) {
	e := NewEMA(3)
	now := time.Now()
	prices := []float64{10, 20, 30}
	for _, p := range prices {
		if err := e.Update(p, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !e.IsReady() {
		t.Fatal("expected ready after period prices")
	}
	want := (10.0 + 20.0 + 30.0) / 3
	if e.Value() != want {
		t.Fatalf("want seeded SMA %v, got %v", want, e.Value())
	}
}

func TestEMASmoothsSubsequentUpdates(t *testing.T) {
	e := NewEMA(3)
	now := time.Now()
	for _, p := range []float64{10, 20, 30} {
		_ = e.Update(p, now)
	}
	seed := e.Value()
	_ = e.Update(40, now)
	want := (40-seed)*e.Multiplier() + seed
	if e.Value() != want {
		t.Fatalf("want %v, got %v", want, e.Value())
	}
}

func TestEMARejectsNonPositivePrice(t *testing.T) {
	e := NewEMA(5)
	if err := e.Update(-1, time.Now()); err == nil {
		t.Fatal("expected error for negative price")
	}
}

func TestEMANotReadyBeforePeriod(t *testing.T) {
	e := NewEMA(5)
	_ = e.Update(10, time.Now())
	if e.IsReady() {
		t.Fatal("expected not ready before period prices accumulate")
	}
}
