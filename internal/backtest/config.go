package backtest

import (
	"time"

	"github.com/strikefinance/backtest-engine/internal/marketclock"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Config is the sole programmatic entry point to run a backtest.
type Config struct {
	Symbol         string
	Interval       types.Interval
	Start          time.Time
	End            time.Time
	InitialCapital float64

	Commission float64 // per-share commission
	Slippage   float64 // fractional slippage applied against fill price

	MarketHours         marketclock.Hours
	AllowExtendedHours  bool
	MaxPositionSize     float64
	RiskPerTrade        float64
}

// DefaultConfig returns a sensible default configuration; MarketHours must
// still be set by the caller (DefaultHours() requires loading a timezone,
// which can fail).
func DefaultConfig() *Config {
	return &Config{
		Symbol:             "SPY",
		Interval:           types.Interval5Min,
		InitialCapital:     100000,
		Commission:         0.005,
		Slippage:           0.0005,
		AllowExtendedHours: false,
		MaxPositionSize:    0.25,
		RiskPerTrade:       0.01,
	}
}

// Validate checks configuration invariants before a run starts.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return ErrInvalidCapital
	}
	if c.Start.After(c.End) {
		return ErrInvalidDateRange
	}
	if c.Symbol == "" {
		return ErrInvalidSymbol
	}
	if !c.Interval.Valid() {
		return ErrInvalidInterval
	}
	return nil
}
