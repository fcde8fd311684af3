// Package orb implements the Opening-Range Breakout reference strategy: it
// builds a high/low envelope over the first range_period_minutes of a
// session, arms on a sufficiently wide range, and enters on a volume-backed
// breakout through either edge. Built on pkg/indicators (ATR, volume
// tracking) and the strategy.Strategy contract, driven by the engine's
// pull-based on_bar loop rather than a push/event-bus model.
package orb

import (
	"fmt"
	"time"

	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/pkg/indicators"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Phase is the per-session state machine position.
type Phase string

const (
	PhaseInit          Phase = "INIT"
	PhaseBuildingRange Phase = "BUILDING_RANGE"
	PhaseArmed         Phase = "ARMED"
	PhaseIdle          Phase = "IDLE"
	PhaseLongOpen      Phase = "LONG_OPEN"
	PhaseShortOpen     Phase = "SHORT_OPEN"
	PhaseFlat          Phase = "FLAT"
)

// Params holds the ORB strategy's validated parameters.
type Params struct {
	RangePeriodMinutes     int
	BreakoutThreshold      float64
	VolumeMultiplier       float64
	StopLossATRMultiplier  float64
	TakeProfitRatio        float64
	MaxPositionTimeMinutes int
	MinRangeSize           float64
	ExitBeforeCloseMinutes int
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		RangePeriodMinutes:     30,
		BreakoutThreshold:      0.001,
		VolumeMultiplier:       1.5,
		StopLossATRMultiplier:  2.0,
		TakeProfitRatio:        2.0,
		MaxPositionTimeMinutes: 240,
		MinRangeSize:           0.002,
		ExitBeforeCloseMinutes: 15,
	}
}

// Strategy is the Opening-Range Breakout reference strategy.
type Strategy struct {
	params Params

	phase         Phase
	sessionDate   time.Time
	rangeStart    time.Time
	rangeHigh     float64
	rangeLow      float64

	volumeHistory []float64
	atr           *indicators.ATR

	positionOpenedAt time.Time
	stopPrice        float64
	targetPrice      float64
}

// New constructs an ORB strategy from a parameter bag, applying defaults
// for any key absent from params.
func New(params map[string]any) (strategy.Strategy, error) {
	p := DefaultParams()
	applyOverride(params, "range_period_minutes", &p.RangePeriodMinutes)
	applyOverride(params, "breakout_threshold", &p.BreakoutThreshold)
	applyOverride(params, "volume_multiplier", &p.VolumeMultiplier)
	applyOverride(params, "stop_loss_atr_multiplier", &p.StopLossATRMultiplier)
	applyOverride(params, "take_profit_ratio", &p.TakeProfitRatio)
	applyOverride(params, "max_position_time_minutes", &p.MaxPositionTimeMinutes)
	applyOverride(params, "min_range_size", &p.MinRangeSize)
	applyOverride(params, "exit_before_close_minutes", &p.ExitBeforeCloseMinutes)

	s := &Strategy{
		params: p,
		phase:  PhaseInit,
		atr:    indicators.NewATR(14),
	}
	result := s.ValidateParameters()
	if !result.Valid {
		return nil, fmt.Errorf("%w: %v", strategy.ErrInvalidParameters, result.Errors)
	}
	return s, nil
}

func applyOverride[T int | float64](params map[string]any, key string, dst *T) {
	raw, ok := params[key]
	if !ok {
		return
	}
	switch v := raw.(type) {
	case float64:
		*dst = T(v)
	case int:
		*dst = T(v)
	}
}

func (s *Strategy) Name() string             { return "opening-range-breakout" }
func (s *Strategy) Category() strategy.Category { return strategy.CategoryDayTrading }
func (s *Strategy) RequiredHistory() int     { return s.params.RangePeriodMinutes/5 + 25 }
func (s *Strategy) RequiredIndicators() []string {
	return []string{"atr_14", "volume_sma_20"}
}

func (s *Strategy) ParamSchema() []strategy.ParamSchema {
	return []strategy.ParamSchema{
		{Name: "range_period_minutes", Type: "int", Required: false, Min: 5, Max: 120},
		{Name: "breakout_threshold", Type: "float", Required: false, Min: 0, Max: 0.05},
		{Name: "volume_multiplier", Type: "float", Required: false, Min: 1.0, Max: 5.0},
		{Name: "stop_loss_atr_multiplier", Type: "float", Required: false, Min: 0.5, Max: 5.0},
		{Name: "take_profit_ratio", Type: "float", Required: false, Min: 1.0, Max: 5.0},
		{Name: "max_position_time_minutes", Type: "int", Required: false, Min: 30, Max: 480},
		{Name: "min_range_size", Type: "float", Required: false, Min: 0.001, Max: 0.02},
		{Name: "exit_before_close_minutes", Type: "int", Required: false, Min: 5, Max: 60},
	}
}

func (s *Strategy) ValidateParameters() strategy.ValidationResult {
	var errs []string
	check := func(name string, value, min, max float64) {
		if value < min || value > max {
			errs = append(errs, fmt.Sprintf("%s=%v out of range [%v,%v]", name, value, min, max))
		}
	}
	check("range_period_minutes", float64(s.params.RangePeriodMinutes), 5, 120)
	check("breakout_threshold", s.params.BreakoutThreshold, 0, 0.05)
	check("volume_multiplier", s.params.VolumeMultiplier, 1.0, 5.0)
	check("stop_loss_atr_multiplier", s.params.StopLossATRMultiplier, 0.5, 5.0)
	check("take_profit_ratio", s.params.TakeProfitRatio, 1.0, 5.0)
	check("max_position_time_minutes", float64(s.params.MaxPositionTimeMinutes), 30, 480)
	check("min_range_size", s.params.MinRangeSize, 0.001, 0.02)
	check("exit_before_close_minutes", float64(s.params.ExitBeforeCloseMinutes), 5, 60)
	return strategy.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func (s *Strategy) Clone() strategy.Strategy {
	clone := *s
	clone.volumeHistory = append([]float64(nil), s.volumeHistory...)
	clone.atr = indicators.NewATR(14)
	return &clone
}

// OnBar advances the session state machine and returns an entry signal when
// a breakout with sufficient volume confirmation occurs while ARMED.
func (s *Strategy) OnBar(ctx strategy.Context, state *strategy.State) *types.Signal {
	bar := ctx.CurrentBar
	sessionDate := bar.Timestamp.Truncate(24 * time.Hour)

	if s.phase == PhaseInit || !sessionDate.Equal(s.sessionDate) {
		s.startSession(sessionDate, bar)
	}

	s.updateIndicators(bar)

	switch s.phase {
	case PhaseBuildingRange:
		s.rangeHigh = maxf(s.rangeHigh, bar.High)
		s.rangeLow = minf(s.rangeLow, bar.Low)

		if bar.Timestamp.Sub(s.rangeStart) >= time.Duration(s.params.RangePeriodMinutes)*time.Minute {
			rangeSize := (s.rangeHigh - s.rangeLow) / s.rangeLow
			if rangeSize >= s.params.MinRangeSize {
				s.phase = PhaseArmed
			} else {
				s.phase = PhaseIdle
			}
		}
		return nil

	case PhaseArmed:
		return s.checkBreakout(bar)

	case PhaseLongOpen, PhaseShortOpen, PhaseIdle:
		return nil
	}
	return nil
}

func (s *Strategy) startSession(sessionDate time.Time, bar types.Bar) {
	s.sessionDate = sessionDate
	s.phase = PhaseBuildingRange
	s.rangeStart = bar.Timestamp
	s.rangeHigh = bar.High
	s.rangeLow = bar.Low
	s.volumeHistory = nil
}

func (s *Strategy) updateIndicators(bar types.Bar) {
	s.atr.UpdateOHLCV(indicators.PricePoint{
		Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close,
		Volume: bar.Volume, Timestamp: bar.Timestamp,
	})

	s.volumeHistory = append(s.volumeHistory, float64(bar.Volume))
	if len(s.volumeHistory) > 20 {
		s.volumeHistory = s.volumeHistory[len(s.volumeHistory)-20:]
	}
}

func (s *Strategy) avgVolume() float64 {
	return indicators.SMA(s.volumeHistory)
}

func (s *Strategy) checkBreakout(bar types.Bar) *types.Signal {
	avgVol := s.avgVolume()
	volOK := float64(bar.Volume) >= avgVol*s.params.VolumeMultiplier

	upperBreak := s.rangeHigh * (1 + s.params.BreakoutThreshold)
	lowerBreak := s.rangeLow * (1 - s.params.BreakoutThreshold)

	atrValue := s.atr.Value()

	if bar.Close > upperBreak && volOK {
		s.phase = PhaseLongOpen
		entry := bar.Close
		stop := entry - atrValue*s.params.StopLossATRMultiplier
		target := entry + (entry-stop)*s.params.TakeProfitRatio
		s.stopPrice = stop
		s.targetPrice = target
		s.positionOpenedAt = bar.Timestamp
		return &types.Signal{
			Type:       types.SignalBuy,
			Strength:   types.SignalStrong,
			Price:      &entry,
			StopLoss:   &stop,
			TakeProfit: &target,
			Reason:     "orb_long_breakout",
			Confidence: 0.7,
			Timestamp:  bar.Timestamp,
		}
	}

	if bar.Close < lowerBreak && volOK {
		s.phase = PhaseShortOpen
		entry := bar.Close
		stop := entry + atrValue*s.params.StopLossATRMultiplier
		target := entry - (stop-entry)*s.params.TakeProfitRatio
		s.stopPrice = stop
		s.targetPrice = target
		s.positionOpenedAt = bar.Timestamp
		return &types.Signal{
			Type:       types.SignalSell,
			Strength:   types.SignalStrong,
			Price:      &entry,
			StopLoss:   &stop,
			TakeProfit: &target,
			Reason:     "orb_short_breakout",
			Confidence: 0.7,
			Timestamp:  bar.Timestamp,
		}
	}

	return nil
}

// OnFill moves the phase to FLAT once the position the engine was tracking
// for us closes; no further entry is taken until the next session starts.
func (s *Strategy) OnFill(order types.Order, state *strategy.State) {
	if state.CurrentPosition == nil {
		s.phase = PhaseFlat
	}
}

// OnSessionEnd forces a CLOSE for any still-open position, since ORB is a
// day-trading strategy.
func (s *Strategy) OnSessionEnd(state *strategy.State) []types.Signal {
	if state.CurrentPosition == nil {
		return nil
	}
	return []types.Signal{{
		Type:   types.SignalClose,
		Reason: "session_end_flatten",
	}}
}

// CalculatePositionSize delegates to the engine-wide default sizing rule.
func (s *Strategy) CalculatePositionSize(signal types.Signal, ctx strategy.Context) int {
	return strategy.DefaultPositionSize(signal, ctx)
}

// ShouldExit adds the ORB-specific time-based and session-proximity exits on
// top of the strategy's own stop/target levels.
func (s *Strategy) ShouldExit(ctx strategy.Context, state *strategy.State) *types.Signal {
	if state.CurrentPosition == nil {
		return nil
	}

	bar := ctx.CurrentBar
	price := bar.Close

	if ctx.MarketHours.MinutesToClose <= float64(s.params.ExitBeforeCloseMinutes) {
		return &types.Signal{Type: types.SignalClose, Price: &price, Reason: "exit_before_close", Timestamp: bar.Timestamp}
	}

	age := bar.Timestamp.Sub(s.positionOpenedAt).Minutes()
	if age >= float64(s.params.MaxPositionTimeMinutes) {
		return &types.Signal{Type: types.SignalClose, Price: &price, Reason: "max_position_time", Timestamp: bar.Timestamp}
	}

	pos := state.CurrentPosition
	var stopHit, targetHit bool
	if pos.Side == types.PositionSideLong {
		stopHit = bar.Low <= s.stopPrice
		targetHit = bar.High >= s.targetPrice
	} else {
		stopHit = bar.High >= s.stopPrice
		targetHit = bar.Low <= s.targetPrice
	}
	if stopHit {
		stopPx := s.stopPrice
		return &types.Signal{Type: types.SignalClose, Price: &stopPx, Reason: "stop_loss", Timestamp: bar.Timestamp}
	}
	if targetHit {
		targetPx := s.targetPrice
		return &types.Signal{Type: types.SignalClose, Price: &targetPx, Reason: "take_profit", Timestamp: bar.Timestamp}
	}
	return nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
