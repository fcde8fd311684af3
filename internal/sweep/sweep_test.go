package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/backtest"
	"github.com/strikefinance/backtest-engine/internal/marketclock"
	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// flatStrategy never trades; it exists only to exercise the scheduler's
// fan-out and result-collection plumbing, not the engine's fill logic.
type flatStrategy struct {
	threshold float64
}

func (f *flatStrategy) Name() string                       { return "flat" }
func (f *flatStrategy) Category() strategy.Category         { return strategy.CategoryDayTrading }
func (f *flatStrategy) RequiredHistory() int                 { return 0 }
func (f *flatStrategy) RequiredIndicators() []string         { return nil }
func (f *flatStrategy) OnBar(strategy.Context, *strategy.State) *types.Signal { return nil }
func (f *flatStrategy) OnFill(types.Order, *strategy.State)  {}
func (f *flatStrategy) OnSessionEnd(*strategy.State) []types.Signal { return nil }
func (f *flatStrategy) CalculatePositionSize(types.Signal, strategy.Context) int { return 0 }
func (f *flatStrategy) ShouldExit(strategy.Context, *strategy.State) *types.Signal { return nil }
func (f *flatStrategy) ValidateParameters() strategy.ValidationResult {
	return strategy.ValidationResult{Valid: true}
}
func (f *flatStrategy) ParamSchema() []strategy.ParamSchema { return nil }
func (f *flatStrategy) Clone() strategy.Strategy {
	clone := *f
	return &clone
}

func flatFactory(params map[string]any) (strategy.Strategy, error) {
	threshold, _ := params["threshold"].(float64)
	if threshold < 0 {
		return nil, errors.New("threshold must be non-negative")
	}
	return &flatStrategy{threshold: threshold}, nil
}

func flatMarketHours() marketclock.Hours {
	return marketclock.Hours{MarketClose: 24 * time.Hour, AfterHoursEnd: 24 * time.Hour, Location: time.UTC}
}

func testSeries() types.BarSeries {
	base := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	bars := []types.Bar{
		{Symbol: "SPY", Interval: types.Interval5Min, Timestamp: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Symbol: "SPY", Interval: types.Interval5Min, Timestamp: base.Add(5 * time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
	}
	return types.NewBarSeries("SPY", types.Interval5Min, bars)
}

func testConfig() *backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.Start = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	cfg.End = cfg.Start.Add(time.Hour)
	cfg.MarketHours = flatMarketHours()
	return cfg
}

func TestSweepRunCoversEveryGridPointInOrder(t *testing.T) {
	grid := []ParamSet{
		{"threshold": 0.1},
		{"threshold": 0.2},
		{"threshold": 0.3},
	}
	s := New(flatFactory, testConfig(), 2, zerolog.Nop(), nil)
	results := s.Run(context.Background(), grid, testSeries())

	if len(results) != len(grid) {
		t.Fatalf("want %d results, got %d", len(grid), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("grid point %d: unexpected error: %v", i, r.Err)
		}
		if r.Params["threshold"] != grid[i]["threshold"] {
			t.Fatalf("result %d does not correspond to its grid point: %+v", i, r.Params)
		}
	}
}

func TestSweepRunCollectsFactoryErrorsWithoutAbortingOtherRuns(t *testing.T) {
	grid := []ParamSet{
		{"threshold": 0.1},
		{"threshold": -1.0}, // rejected by flatFactory
		{"threshold": 0.3},
	}
	s := New(flatFactory, testConfig(), 4, zerolog.Nop(), nil)
	results := s.Run(context.Background(), grid, testSeries())

	if results[1].Err == nil {
		t.Fatal("want grid point 1 to carry the factory's error")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("want the other grid points unaffected, got %v / %v", results[0].Err, results[2].Err)
	}
}

func TestNewDefaultsNonPositiveConcurrencyToOne(t *testing.T) {
	s := New(flatFactory, testConfig(), 0, zerolog.Nop(), nil)
	if s.maxConcurrency != 1 {
		t.Fatalf("want maxConcurrency 1, got %d", s.maxConcurrency)
	}
}

func TestRankByProfitFactorExcludesErrorsAndSortsDescending(t *testing.T) {
	results := []RunResult{
		{Params: ParamSet{"x": 1}, Report: types.PerformanceReport{ProfitFactor: 1.2}},
		{Params: ParamSet{"x": 2}, Err: errors.New("boom")},
		{Params: ParamSet{"x": 3}, Report: types.PerformanceReport{ProfitFactor: 2.5}},
	}
	ranked := RankByProfitFactor(results)
	if len(ranked) != 2 {
		t.Fatalf("want 2 ranked results (errors excluded), got %d", len(ranked))
	}
	if ranked[0].Report.ProfitFactor != 2.5 || ranked[1].Report.ProfitFactor != 1.2 {
		t.Fatalf("want descending profit factor order, got %+v", ranked)
	}
}
