package types

import "time"

// SignalType is the action a strategy asks the engine to take.
type SignalType string

const (
	SignalBuy   SignalType = "BUY"
	SignalSell  SignalType = "SELL"
	SignalHold  SignalType = "HOLD"
	SignalClose SignalType = "CLOSE"
)

// SignalStrength is a strategy's qualitative confidence in a Signal,
// independent of the numeric Confidence score.
type SignalStrength string

const (
	SignalWeak   SignalStrength = "WEAK"
	SignalMedium SignalStrength = "MEDIUM"
	SignalStrong SignalStrength = "STRONG"
)

// Signal is strategy output for a single bar. HOLD signals carry no order;
// the engine ignores them.
type Signal struct {
	Type       SignalType
	Strength   SignalStrength
	Price      *float64
	Quantity   *int
	StopLoss   *float64
	TakeProfit *float64
	Reason     string
	Confidence float64 // [0,1]
	Timestamp  time.Time
	Metadata   map[string]any
}

// Actionable reports whether the signal should be translated into an order.
func (s Signal) Actionable() bool {
	return s.Type == SignalBuy || s.Type == SignalSell || s.Type == SignalClose
}
