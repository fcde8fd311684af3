package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Result is the Replay Engine's raw output: the trade log, the equity
// curve, and the terminal portfolio. The Performance Analyzer consumes
// this directly; nothing here is pre-aggregated.
type Result struct {
	Trades      []types.Trade
	EquityCurve []types.EquityPoint
	Portfolio   *types.Portfolio
}

// Engine drives a single deterministic backtest run over one BarSeries.
type Engine struct {
	config   *Config
	strategy strategy.Strategy
	logger   zerolog.Logger
	metrics  *metrics.EngineMetrics

	portfolio     *types.Portfolio
	state         *strategy.State
	pendingOrders []types.Order
	trades        []types.Trade
	equityCurve   []types.EquityPoint
	highWaterMark float64
	orderSeq      int
	history       []types.Bar
}

// NewEngine constructs an Engine for one (config, strategy) pair. A fresh
// Engine must be created per run; it is not reusable across runs. m may be
// nil, in which case the run executes without recording metrics.
func NewEngine(config *Config, strat strategy.Strategy, logger zerolog.Logger, m *metrics.EngineMetrics) *Engine {
	return &Engine{
		config:        config,
		strategy:      strat,
		logger:        logger.With().Str("component", "replay_engine").Str("symbol", config.Symbol).Logger(),
		metrics:       m,
		portfolio:     types.NewPortfolio(config.InitialCapital),
		state:         strategy.NewState(),
		highWaterMark: config.InitialCapital,
	}
}

// Run replays series bar by bar. ctx is checked for cancellation between
// bars; on cancellation the partial trade log is discarded and the equity
// curve is truncated at the last completed bar. A bar whose processing
// violates a portfolio invariant (e.g. cash goes negative) aborts the run
// immediately, returning the error and discarding the run's results rather
// than returning a partial Result.
func (e *Engine) Run(ctx context.Context, series types.BarSeries) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if series.Len() == 0 {
		return &Result{Portfolio: e.portfolio}, nil
	}

	start := time.Now()
	defer func() {
		e.metrics.ObserveRunDuration(e.config.Symbol, e.strategy.Name(), time.Since(start))
	}()

	for i, bar := range series.Bars {
		select {
		case <-ctx.Done():
			e.trades = nil
			return nil, ctx.Err()
		default:
		}

		if err := e.processBar(bar, i, series.Bars); err != nil {
			return nil, err
		}
		e.history = append(e.history, bar)
	}

	return &Result{Trades: e.trades, EquityCurve: e.equityCurve, Portfolio: e.portfolio}, nil
}

func (e *Engine) processBar(bar types.Bar, index int, bars []types.Bar) error {
	start := time.Now()
	defer func() {
		e.metrics.ObserveBarProcessDuration(e.config.Symbol, time.Since(start))
		e.metrics.RecordBarProcessed(e.config.Symbol)
	}()

	// Step 1: mark-to-market against the bar's opening print, then record
	// the equity curve sample.
	e.portfolio.MarkToMarket(bar.Symbol, bar.Open)
	e.recordEquity(bar.Timestamp)

	// Step 2: session flags for this bar.
	ctx := e.buildContext(bar)

	// Step 3+4: match resting orders against this bar, notifying the
	// strategy of each fill.
	filled, err := e.matchOrders(bar)
	if err != nil {
		return err
	}
	for _, order := range filled {
		e.strategy.OnFill(order, e.state)
	}

	// Step 5: strategy-driven exit, evaluated intrabar against this bar's
	// high/low so a stop or target reachable within the bar fills within
	// the bar rather than waiting a cycle.
	if exit := e.strategy.ShouldExit(ctx, e.state); exit != nil {
		if err := e.executeExit(*exit, bar); err != nil {
			return err
		}
	}

	// Step 6: entry/continuation signal, queued to fill against the next bar.
	if signal := e.strategy.OnBar(ctx, e.state); signal != nil && signal.Actionable() {
		e.queueEntryOrder(*signal, ctx)
	}

	// Step 7: session-end forced flatten, then cancellation of any DAY
	// order still resting (a DAY order that never matched intraday has no
	// business filling against the next session's open).
	if e.isLastBarOfSession(index, bars) {
		for _, signal := range e.strategy.OnSessionEnd(e.state) {
			if err := e.executeExit(signal, bar); err != nil {
				return err
			}
		}
		e.cancelDayOrders()
	}

	e.portfolio.MarkToMarket(bar.Symbol, bar.Close)
	return nil
}

// cancelDayOrders cancels every still-pending DAY time-in-force order at
// session close; GTC/IOC/FOK orders are left resting across the boundary.
func (e *Engine) cancelDayOrders() {
	var remaining []types.Order
	for _, order := range e.pendingOrders {
		if order.TimeInForce == types.TimeInForceDay {
			order.Status = types.OrderStatusCancelled
			e.metrics.RecordOrderRejected(order.Symbol, "day_tif_expired")
			continue
		}
		remaining = append(remaining, order)
	}
	e.pendingOrders = remaining
}

func (e *Engine) recordEquity(ts time.Time) {
	value := e.portfolio.TotalValue()
	if value > e.highWaterMark {
		e.highWaterMark = value
	}
	drawdown := 0.0
	if e.highWaterMark > 0 {
		drawdown = (e.highWaterMark - value) / e.highWaterMark
	}
	e.equityCurve = append(e.equityCurve, types.EquityPoint{
		Timestamp:       ts,
		PortfolioValue:  value,
		RunningDrawdown: drawdown,
	})
}

func (e *Engine) buildContext(bar types.Bar) strategy.Context {
	isMarket := e.config.MarketHours.IsMarketHours(bar.Timestamp)
	isExtended := e.config.MarketHours.IsExtendedHours(bar.Timestamp)
	minutesToClose := e.config.MarketHours.MinutesToClose(bar.Timestamp)

	positions := make(map[string]types.Position, len(e.portfolio.Positions))
	for sym, pos := range e.portfolio.Positions {
		positions[sym] = *pos
	}

	required := e.strategy.RequiredHistory()
	var previous []types.Bar
	if required > 0 && len(e.history) > 0 {
		start := len(e.history) - required
		if start < 0 {
			start = 0
		}
		previous = e.history[start:]
	}

	return strategy.Context{
		CurrentBar:   bar,
		PreviousBars: previous,
		MarketHours: strategy.MarketHoursFlags{
			IsMarketHours:   isMarket,
			IsExtendedHours: isExtended,
			MinutesToClose:  minutesToClose,
		},
		Portfolio: strategy.PortfolioSnapshot{
			Cash:       e.portfolio.Cash,
			Positions:  positions,
			TotalValue: e.portfolio.TotalValue(),
		},
		RiskLimits: strategy.RiskLimits{
			MaxPositionSize: e.config.MaxPositionSize,
			RiskPerTrade:    e.config.RiskPerTrade,
		},
	}
}

func (e *Engine) isLastBarOfSession(index int, bars []types.Bar) bool {
	if index == len(bars)-1 {
		return true
	}
	cur := e.config.MarketHours.SessionDate(bars[index].Timestamp)
	next := e.config.MarketHours.SessionDate(bars[index+1].Timestamp)
	return !cur.Equal(next)
}

// matchOrders applies the engine's fill policy to every resting order
// against bar, returning the orders that filled this bar. Orders that don't
// meet their trigger this bar stay resting (subject to cancelDayOrders at
// session close).
func (e *Engine) matchOrders(bar types.Bar) ([]types.Order, error) {
	var filled []types.Order
	var remaining []types.Order

	for _, order := range e.pendingOrders {
		fillPrice, ok := e.tryFill(order, bar)
		if !ok {
			remaining = append(remaining, order)
			continue
		}
		if err := e.applyFill(&order, fillPrice, bar.Timestamp); err != nil {
			return nil, err
		}
		if order.Status != types.OrderStatusFilled {
			continue
		}
		filled = append(filled, order)
	}

	e.pendingOrders = remaining
	return filled, nil
}

func (e *Engine) tryFill(order types.Order, bar types.Bar) (float64, bool) {
	slip := e.config.Slippage

	switch order.Type {
	case types.OrderTypeMarket:
		if order.Side == types.OrderSideBuy {
			return bar.Open * (1 + slip), true
		}
		return bar.Open * (1 - slip), true

	case types.OrderTypeLimit:
		limit := *order.Price
		if order.Side == types.OrderSideBuy {
			if bar.Low <= limit {
				return minf(limit, bar.Open), true
			}
			return 0, false
		}
		if bar.High >= limit {
			return maxf(limit, bar.Open), true
		}
		return 0, false

	case types.OrderTypeStop:
		stop := *order.StopPrice
		if order.Side == types.OrderSideBuy {
			if bar.High >= stop {
				return maxf(stop, bar.Open) * (1 + slip), true
			}
			return 0, false
		}
		if bar.Low <= stop {
			return minf(stop, bar.Open) * (1 - slip), true
		}
		return 0, false
	}

	return 0, false
}

// applyFill deducts commission and adjusts cash/positions atomically,
// rejecting the order (leaving cash and positions untouched) if it would
// drive cash negative. It returns an error only for ErrInvariantViolation,
// a state the engine's own bookkeeping should never be able to reach; the
// caller aborts the run on it rather than continuing with corrupted state.
func (e *Engine) applyFill(order *types.Order, price float64, ts time.Time) error {
	commission := float64(order.Quantity) * e.config.Commission
	notional := price * float64(order.Quantity)

	existing := e.portfolio.Positions[order.Symbol]
	closingExisting := existing != nil &&
		((order.Side == types.OrderSideBuy && existing.Side == types.PositionSideShort) ||
			(order.Side == types.OrderSideSell && existing.Side == types.PositionSideLong))

	if closingExisting {
		// Covering a short costs cash; closing a long returns cash. Either
		// way the realized P/L is already captured in cash flow, so no
		// cash-sufficiency check applies to a reducing trade.
		if order.Side == types.OrderSideBuy {
			e.portfolio.Cash -= cost(notional, commission)
		} else {
			e.portfolio.Cash += notional - commission
		}
		e.reducePosition(order.Symbol, order.Quantity)
	} else {
		side := types.PositionSideLong
		if order.Side == types.OrderSideSell {
			side = types.PositionSideShort
		}
		if order.Side == types.OrderSideBuy {
			spend := cost(notional, commission)
			if e.portfolio.Cash-spend < 0 {
				order.Status = types.OrderStatusRejected
				order.Reason = ErrInsufficientCash.Error()
				e.metrics.RecordOrderRejected(order.Symbol, "insufficient_cash")
				return nil
			}
			e.portfolio.Cash -= spend
		} else {
			e.portfolio.Cash += notional - commission
		}
		e.openOrAddPosition(order.Symbol, side, order.Quantity, price, ts)
	}

	if e.portfolio.Cash < 0 {
		return fmt.Errorf("%w: cash negative after fill", ErrInvariantViolation)
	}

	filledAt := ts
	order.Status = types.OrderStatusFilled
	order.FilledAt = &filledAt
	order.FilledPrice = price
	e.metrics.RecordOrderFilled(order.Symbol, string(order.Side))

	e.trades = append(e.trades, types.Trade{
		ID:         fmt.Sprintf("%s-%d", order.ID, len(e.trades)),
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      price,
		Timestamp:  ts,
		Commission: commission,
		Slippage:   e.config.Slippage,
		Reason:     order.Reason,
	})
	return nil
}

func cost(notional, commission float64) float64 {
	return notional + commission
}

func (e *Engine) openOrAddPosition(symbol string, side types.PositionSide, qty int, price float64, ts time.Time) {
	pos, exists := e.portfolio.Positions[symbol]
	if !exists {
		e.portfolio.Positions[symbol] = &types.Position{
			Symbol: symbol, Side: side, Quantity: qty,
			EntryPrice: price, EntryTime: ts, CurrentPrice: price,
		}
		e.state.CurrentPosition = e.portfolio.Positions[symbol]
		return
	}
	totalCost := pos.EntryPrice*float64(pos.Quantity) + price*float64(qty)
	pos.Quantity += qty
	pos.EntryPrice = totalCost / float64(pos.Quantity)
	e.state.CurrentPosition = pos
}

func (e *Engine) reducePosition(symbol string, qty int) {
	pos, exists := e.portfolio.Positions[symbol]
	if !exists {
		return
	}
	pos.Quantity -= qty
	if pos.Quantity <= 0 {
		delete(e.portfolio.Positions, symbol)
		e.state.CurrentPosition = nil
		return
	}
	e.state.CurrentPosition = pos
}

// queueEntryOrder translates an actionable BUY/SELL signal into a resting
// MARKET order sized via the strategy's calculate_position_size, to be
// matched against the next bar.
func (e *Engine) queueEntryOrder(signal types.Signal, ctx strategy.Context) {
	qty := e.strategy.CalculatePositionSize(signal, ctx)
	if qty <= 0 {
		return
	}

	side := types.OrderSideBuy
	if signal.Type == types.SignalSell {
		side = types.OrderSideSell
	}

	e.orderSeq++
	order := types.Order{
		ID:          fmt.Sprintf("ord-%d", e.orderSeq),
		Symbol:      ctx.CurrentBar.Symbol,
		Side:        side,
		Type:        types.OrderTypeMarket,
		Quantity:    qty,
		TimeInForce: types.TimeInForceDay,
		Status:      types.OrderStatusPending,
		CreatedAt:   ctx.CurrentBar.Timestamp,
		Reason:      signal.Reason,
	}
	e.pendingOrders = append(e.pendingOrders, order)
}

// executeExit fills a CLOSE signal immediately against the bar that
// produced it, at the strategy-chosen price (stop, target, or close).
func (e *Engine) executeExit(signal types.Signal, bar types.Bar) error {
	pos, exists := e.portfolio.Positions[bar.Symbol]
	if !exists {
		return nil
	}

	price := bar.Close
	if signal.Price != nil {
		price = *signal.Price
	}

	side := types.OrderSideSell
	if pos.Side == types.PositionSideShort {
		side = types.OrderSideBuy
	}

	e.orderSeq++
	order := types.Order{
		ID:          fmt.Sprintf("ord-%d", e.orderSeq),
		Symbol:      bar.Symbol,
		Side:        side,
		Type:        types.OrderTypeMarket,
		Quantity:    pos.Quantity,
		TimeInForce: types.TimeInForceDay,
		Status:      types.OrderStatusPending,
		CreatedAt:   bar.Timestamp,
		Reason:      signal.Reason,
	}
	if err := e.applyFill(&order, price, bar.Timestamp); err != nil {
		return err
	}
	e.strategy.OnFill(order, e.state)
	return nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
