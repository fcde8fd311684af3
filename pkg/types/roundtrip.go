package types

import "time"

// RoundTrip is a matched entry+exit pair of Trades, derived from the trade
// log by FIFO matching in the Performance Analyzer.
type RoundTrip struct {
	Symbol      string
	Side        PositionSide
	Quantity    int
	EntryPrice  float64
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    time.Time
	Commissions float64
	EntryReason string
	ExitReason  string
}

// PnL computes the realized profit/loss for the round trip, net of the
// commissions attributed to its entry and exit fills.
func (rt RoundTrip) PnL() float64 {
	direction := 1.0
	if rt.Side == PositionSideShort {
		direction = -1.0
	}
	return (rt.ExitPrice-rt.EntryPrice)*float64(rt.Quantity)*direction - rt.Commissions
}

// HoldDuration returns how long the round trip's position was held.
func (rt RoundTrip) HoldDuration() time.Duration {
	return rt.ExitTime.Sub(rt.EntryTime)
}

// Winning reports whether the round trip closed profitably.
func (rt RoundTrip) Winning() bool {
	return rt.PnL() > 0
}
