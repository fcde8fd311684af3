package types

import "time"

// PositionSide is the directional exposure of an open Position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Position is open exposure in a single symbol. At most one Position exists
// per symbol per Portfolio; it is created on the first filling order from
// flat and closed when net quantity returns to zero.
type Position struct {
	Symbol       string
	Side         PositionSide
	Quantity     int
	EntryPrice   float64
	EntryTime    time.Time
	CurrentPrice float64
	UnrealizedPL float64
}

// MarkToMarket refreshes CurrentPrice and UnrealizedPL against the latest
// trade price.
func (p *Position) MarkToMarket(price float64) {
	p.CurrentPrice = price
	notional := float64(p.Quantity) * price
	cost := float64(p.Quantity) * p.EntryPrice
	if p.Side == PositionSideLong {
		p.UnrealizedPL = notional - cost
	} else {
		p.UnrealizedPL = cost - notional
	}
}

// MarketValue returns the signed exposure this position contributes to
// Portfolio.total_value. A long position ties up cash equal to its market
// value; a short position's sale proceeds already sit in cash, so its
// exposure contributes as a liability (the cost to buy back at the current
// price).
func (p *Position) MarketValue() float64 {
	if p.Side == PositionSideLong {
		return float64(p.Quantity) * p.CurrentPrice
	}
	return -float64(p.Quantity) * p.CurrentPrice
}

// Portfolio is the backtest account: cash plus open positions. Invariant:
// cash never goes negative — orders that would violate this are rejected by
// the Replay Engine rather than applied.
type Portfolio struct {
	Cash      float64
	Positions map[string]*Position
}

// NewPortfolio creates a flat portfolio seeded with the given cash.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		Cash:      initialCash,
		Positions: make(map[string]*Position),
	}
}

// TotalValue returns cash plus the signed mark-to-market value of every
// open position (§3: total_value = cash + Σ quantity·current_price).
func (p *Portfolio) TotalValue() float64 {
	total := p.Cash
	for _, pos := range p.Positions {
		total += pos.MarketValue()
	}
	return total
}

// MarkToMarket updates every open position's current price (when the
// position's symbol matches) and unrealized P/L.
func (p *Portfolio) MarkToMarket(symbol string, price float64) {
	if pos, ok := p.Positions[symbol]; ok {
		pos.MarkToMarket(price)
	}
}
