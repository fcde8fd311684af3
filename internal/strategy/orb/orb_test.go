package orb

import (
	"testing"
	"time"

	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

func newTestStrategy(t *testing.T) *Strategy {
	t.Helper()
	s, err := New(map[string]any{
		"breakout_threshold": 0.001,
		"volume_multiplier":  1.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s.(*Strategy)
}

func bar(ts time.Time, o, h, l, c float64, v int64) types.Bar {
	return types.Bar{Symbol: "SPY", Interval: types.Interval5Min, Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func ctxFor(b types.Bar) strategy.Context {
	return strategy.Context{CurrentBar: b, MarketHours: strategy.MarketHoursFlags{MinutesToClose: 120}}
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	_, err := New(map[string]any{"volume_multiplier": 10.0})
	if err == nil {
		t.Fatal("expected error for out-of-range volume_multiplier")
	}
}

func TestOnBarBuildsRangeThenArms(t *testing.T) {
	s := newTestStrategy(t)
	state := strategy.NewState()
	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

	// 7 bars at 5-minute spacing span exactly the 30-minute range period.
	bars := []types.Bar{
		bar(base, 100, 100.1, 100.0, 100.05, 1000),
		bar(base.Add(5*time.Minute), 100.05, 100.15, 100.0, 100.1, 1000),
		bar(base.Add(10*time.Minute), 100.1, 100.2, 100.0, 100.1, 1000),
		bar(base.Add(15*time.Minute), 100.1, 100.25, 100.0, 100.15, 1000),
		bar(base.Add(20*time.Minute), 100.15, 100.3, 100.0, 100.2, 1000),
		bar(base.Add(25*time.Minute), 100.2, 100.3, 100.0, 100.2, 1000),
		bar(base.Add(30*time.Minute), 100.2, 100.3, 100.0, 100.25, 1000),
	}

	for i, b := range bars {
		sig := s.OnBar(ctxFor(b), state)
		if sig != nil {
			t.Fatalf("bar %d: expected no signal while building range, got %+v", i, sig)
		}
	}

	if s.phase != PhaseArmed {
		t.Fatalf("want ARMED after range period elapses with sufficient range, got %s", s.phase)
	}
}

func TestOnBarArmsIdleWhenRangeTooNarrow(t *testing.T) {
	s := newTestStrategy(t)
	state := strategy.NewState()
	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

	// Range stays within 100.00-100.01 the whole period: rangeSize ~0.0001 < MinRangeSize 0.002.
	bars := []types.Bar{
		bar(base, 100, 100.01, 100.0, 100.005, 1000),
		bar(base.Add(30*time.Minute), 100.005, 100.01, 100.0, 100.005, 1000),
	}
	for _, b := range bars {
		s.OnBar(ctxFor(b), state)
	}
	if s.phase != PhaseIdle {
		t.Fatalf("want IDLE for a too-narrow range, got %s", s.phase)
	}
}

func TestCheckBreakoutLongOnVolumeConfirmedBreak(t *testing.T) {
	s := newTestStrategy(t)
	s.phase = PhaseArmed
	s.rangeHigh = 100.3
	s.rangeLow = 100.0
	s.volumeHistory = []float64{1000, 1000, 1000}

	base := time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC)
	s.sessionDate = base.Truncate(24 * time.Hour)
	b := bar(base, 100.3, 101.0, 100.25, 100.9, 2000)

	sig := s.OnBar(ctxFor(b), strategy.NewState())
	if sig == nil {
		t.Fatal("expected a breakout signal")
	}
	if sig.Type != types.SignalBuy {
		t.Fatalf("want BUY signal, got %s", sig.Type)
	}
	if s.phase != PhaseLongOpen {
		t.Fatalf("want LONG_OPEN phase, got %s", s.phase)
	}
}

func TestCheckBreakoutSuppressedWithoutVolumeConfirmation(t *testing.T) {
	s := newTestStrategy(t)
	s.phase = PhaseArmed
	s.rangeHigh = 100.3
	s.rangeLow = 100.0
	s.volumeHistory = []float64{1000, 1000, 1000}

	base := time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC)
	s.sessionDate = base.Truncate(24 * time.Hour)
	// Price clears the breakout level but volume doesn't confirm (below 1.5x average).
	b := bar(base, 100.3, 101.0, 100.25, 100.9, 1100)

	sig := s.OnBar(ctxFor(b), strategy.NewState())
	if sig != nil {
		t.Fatalf("expected no signal without volume confirmation, got %+v", sig)
	}
	if s.phase != PhaseArmed {
		t.Fatalf("want to remain ARMED, got %s", s.phase)
	}
}

func TestShouldExitStopBeforeTargetOnSameBarCollision(t *testing.T) {
	s := newTestStrategy(t)
	s.stopPrice = 99.0
	s.targetPrice = 105.0
	s.positionOpenedAt = time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC)

	state := strategy.NewState()
	state.CurrentPosition = &types.Position{Side: types.PositionSideLong, EntryPrice: 100}

	// A single bar whose range spans both the stop and the target.
	b := bar(time.Date(2024, 6, 3, 10, 10, 0, 0, time.UTC), 100, 106, 98, 103, 1000)
	ctx := strategy.Context{CurrentBar: b, MarketHours: strategy.MarketHoursFlags{MinutesToClose: 120}}

	sig := s.ShouldExit(ctx, state)
	if sig == nil {
		t.Fatal("expected an exit signal")
	}
	if sig.Reason != "stop_loss" {
		t.Fatalf("want the adverse stop-loss to win the same-bar collision, got %q", sig.Reason)
	}
}

func TestShouldExitBeforeCloseTakesPriorityOverStopTarget(t *testing.T) {
	s := newTestStrategy(t)
	s.stopPrice = 50.0
	s.targetPrice = 200.0
	s.positionOpenedAt = time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC)

	state := strategy.NewState()
	state.CurrentPosition = &types.Position{Side: types.PositionSideLong, EntryPrice: 100}

	b := bar(time.Date(2024, 6, 3, 15, 50, 0, 0, time.UTC), 100, 101, 99, 100, 1000)
	ctx := strategy.Context{CurrentBar: b, MarketHours: strategy.MarketHoursFlags{MinutesToClose: 10}}

	sig := s.ShouldExit(ctx, state)
	if sig == nil || sig.Reason != "exit_before_close" {
		t.Fatalf("want exit_before_close to preempt stop/target checks, got %+v", sig)
	}
}

func TestOnSessionEndFlattensOpenPosition(t *testing.T) {
	s := newTestStrategy(t)
	state := strategy.NewState()
	state.CurrentPosition = &types.Position{Side: types.PositionSideLong, EntryPrice: 100}

	sigs := s.OnSessionEnd(state)
	if len(sigs) != 1 || sigs[0].Type != types.SignalClose {
		t.Fatalf("want a single CLOSE signal, got %+v", sigs)
	}
}

func TestOnSessionEndNoopWhenFlat(t *testing.T) {
	s := newTestStrategy(t)
	state := strategy.NewState()
	if sigs := s.OnSessionEnd(state); sigs != nil {
		t.Fatalf("want no signals when already flat, got %+v", sigs)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestStrategy(t)
	s.volumeHistory = []float64{1, 2, 3}
	clone := s.Clone().(*Strategy)
	clone.volumeHistory[0] = 999
	if s.volumeHistory[0] == 999 {
		t.Fatal("mutating the clone's volume history must not affect the original")
	}
}
