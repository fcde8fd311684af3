// Package strategy defines the pull-based Strategy Contract the Replay
// Engine drives bar by bar: a pure callback set the engine calls directly
// rather than an event-bus subscriber, since a single-threaded deterministic
// replay has no need for one.
package strategy

import (
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Category classifies how long a strategy expects to hold positions.
type Category string

const (
	CategoryDayTrading      Category = "day-trading"
	CategorySwingTrading    Category = "swing-trading"
	CategoryPositionTrading Category = "position-trading"
)

// MarketHoursFlags summarizes session timing for the current bar.
type MarketHoursFlags struct {
	IsMarketHours   bool
	IsExtendedHours bool
	MinutesToClose  float64
}

// PortfolioSnapshot is the read-only view of portfolio state a strategy may
// consult while deciding on a signal.
type PortfolioSnapshot struct {
	Cash        float64
	Positions   map[string]types.Position
	TotalValue  float64
}

// RiskLimits carries the run's configured sizing limits to the strategy.
// The engine does not check orders against them.
type RiskLimits struct {
	MaxPositionSize float64
	RiskPerTrade    float64
}

// Context is passed to on_bar and should_exit each bar.
type Context struct {
	CurrentBar     types.Bar
	PreviousBars   []types.Bar
	MarketHours    MarketHoursFlags
	Portfolio      PortfolioSnapshot
	RiskLimits     RiskLimits
}

// State is maintained by the replay engine on the strategy's behalf across
// the run.
type State struct {
	CurrentPosition *types.Position
	PendingOrders   []types.Order
	LastSignal      *types.Signal
	Scratchpad      map[string]any
	IndicatorCache  map[string]float64
	TradesClosed    int
	TradesWon       int
}

// NewState returns a zero-valued State ready for a fresh session.
func NewState() *State {
	return &State{
		Scratchpad:     make(map[string]any),
		IndicatorCache: make(map[string]float64),
	}
}

// ValidationResult is returned by validate_parameters.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ParamSchema describes a single strategy parameter's validation rule.
type ParamSchema struct {
	Name     string
	Type     string // "float", "int", "bool", "string"
	Required bool
	Min      float64
	Max      float64
}

// Strategy is the polymorphic capability set every pluggable strategy
// implements. The replay engine never type-switches on concrete strategies;
// it only calls through this interface.
type Strategy interface {
	Name() string
	Category() Category
	RequiredHistory() int
	RequiredIndicators() []string

	OnBar(ctx Context, state *State) *types.Signal
	OnFill(order types.Order, state *State)
	OnSessionEnd(state *State) []types.Signal

	CalculatePositionSize(signal types.Signal, ctx Context) int
	ShouldExit(ctx Context, state *State) *types.Signal

	ValidateParameters() ValidationResult
	ParamSchema() []ParamSchema

	// Clone returns an independent copy suitable for running inside a
	// parallel parameter sweep; mutating the clone must never affect the
	// original.
	Clone() Strategy
}

// Factory constructs a named strategy from a parameter bag.
type Factory func(params map[string]any) (Strategy, error)

// Registry maps strategy names to their constructors.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

func (r *Registry) Create(name string, params map[string]any) (Strategy, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return factory(params)
}

// DefaultPositionSize implements the engine-wide default sizing rule: cap
// position by 10% of available cash and 25% of total portfolio value; if
// the signal carries a stop-loss, also cap by 1% of account value at risk
// per share, taking the smaller of the two quantities, floored at 1 share.
func DefaultPositionSize(signal types.Signal, ctx Context) int {
	price := ctx.CurrentBar.Close
	if signal.Price != nil {
		price = *signal.Price
	}
	if price <= 0 {
		return 0
	}

	cashCap := (ctx.Portfolio.Cash * 0.10) / price
	valueCap := (ctx.Portfolio.TotalValue * 0.25) / price
	qty := cashCap
	if valueCap < qty {
		qty = valueCap
	}

	if signal.StopLoss != nil {
		riskPerShare := price - *signal.StopLoss
		if riskPerShare < 0 {
			riskPerShare = -riskPerShare
		}
		if riskPerShare > 0 {
			riskBudget := ctx.Portfolio.TotalValue * 0.01
			riskQty := riskBudget / riskPerShare
			if riskQty < qty {
				qty = riskQty
			}
		}
	}

	shares := int(qty)
	if shares < 1 {
		shares = 1
	}
	return shares
}

// DefaultShouldExit implements the engine-wide default exit rule: 2%
// stop-loss, 4% take-profit off the position's entry price.
func DefaultShouldExit(ctx Context, state *State) *types.Signal {
	if state.CurrentPosition == nil {
		return nil
	}
	pos := state.CurrentPosition
	price := ctx.CurrentBar.Close

	var stopHit, targetHit bool
	if pos.Side == types.PositionSideLong {
		stopHit = price <= pos.EntryPrice*0.98
		targetHit = price >= pos.EntryPrice*1.04
	} else {
		stopHit = price >= pos.EntryPrice*1.02
		targetHit = price <= pos.EntryPrice*0.96
	}

	if !stopHit && !targetHit {
		return nil
	}

	reason := "take_profit"
	if stopHit {
		reason = "stop_loss"
	}
	return &types.Signal{
		Type:      types.SignalClose,
		Price:     &price,
		Reason:    reason,
		Timestamp: ctx.CurrentBar.Timestamp,
	}
}
