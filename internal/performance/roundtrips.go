package performance

import (
	"time"

	"github.com/strikefinance/backtest-engine/pkg/types"
)

// openLot is an unmatched slice of an entry trade still waiting to be
// closed out by an opposite-side trade.
type openLot struct {
	quantity   int
	price      float64
	ts         time.Time
	commission float64
	reason     string
}

// matchRoundTrips groups a chronologically ordered trade log into
// RoundTrips by FIFO: a trade that closes exposure consumes the earliest
// unmatched opposite-side lot of the same symbol, splitting into multiple
// RoundTrips when the closing trade's quantity doesn't align with a single
// open lot.
func matchRoundTrips(trades []types.Trade) []types.RoundTrip {
	longQueues := make(map[string][]openLot)
	shortQueues := make(map[string][]openLot)
	var roundTrips []types.RoundTrip

	for _, trade := range trades {
		switch trade.Side {
		case types.OrderSideBuy:
			roundTrips = append(roundTrips, closeAgainst(shortQueues, longQueues, trade, types.PositionSideShort)...)
		case types.OrderSideSell:
			roundTrips = append(roundTrips, closeAgainst(longQueues, shortQueues, trade, types.PositionSideLong)...)
		}
	}

	return roundTrips
}

// closeAgainst consumes lots from closingQueues[trade.Symbol] FIFO against
// trade, producing one RoundTrip per matched lot (or lot fragment). Any
// quantity left over after the opposite queue is exhausted opens a new lot
// in openingQueues on the trade's own side.
func closeAgainst(closingQueues, openingQueues map[string][]openLot, trade types.Trade, closedSide types.PositionSide) []types.RoundTrip {
	var roundTrips []types.RoundTrip
	remainingQty := trade.Quantity
	queue := closingQueues[trade.Symbol]

	for remainingQty > 0 && len(queue) > 0 {
		lot := queue[0]
		matchQty := minInt(remainingQty, lot.quantity)

		lotCommissionShare := lot.commission * float64(matchQty) / float64(lot.quantity)
		tradeCommissionShare := trade.Commission * float64(matchQty) / float64(trade.Quantity)

		rt := types.RoundTrip{
			Symbol:      trade.Symbol,
			Side:        closedSide,
			Quantity:    matchQty,
			Commissions: lotCommissionShare + tradeCommissionShare,
			ExitReason:  trade.Reason,
		}
		rt.EntryPrice, rt.EntryTime, rt.EntryReason = lot.price, lot.ts, lot.reason
		rt.ExitPrice, rt.ExitTime = trade.Price, trade.Timestamp
		roundTrips = append(roundTrips, rt)

		lot.quantity -= matchQty
		lot.commission -= lotCommissionShare
		remainingQty -= matchQty

		if lot.quantity == 0 {
			queue = queue[1:]
		} else {
			queue[0] = lot
		}
	}
	closingQueues[trade.Symbol] = queue

	if remainingQty > 0 {
		openingQueues[trade.Symbol] = append(openingQueues[trade.Symbol], openLot{
			quantity:   remainingQty,
			price:      trade.Price,
			ts:         trade.Timestamp,
			commission: trade.Commission * float64(remainingQty) / float64(trade.Quantity),
			reason:     trade.Reason,
		})
	}

	return roundTrips
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
