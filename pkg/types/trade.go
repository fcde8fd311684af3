package types

import "time"

// Trade is an executed fill. Trades are immutable once recorded.
type Trade struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Quantity   int
	Price      float64
	Timestamp  time.Time
	Commission float64
	Slippage   float64
	Reason     string
}
