// Package sweep runs a strategy across a grid of parameter sets, fanning
// out whole independent backtest runs in parallel rather than interleaving
// per-bar work within a single run. Bounded by a weighted semaphore rather
// than an unbounded goroutine-per-run fan-out.
package sweep

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/strikefinance/backtest-engine/internal/backtest"
	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/internal/performance"
	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// ParamSet is one point in the sweep grid: a concrete set of strategy
// constructor parameters.
type ParamSet map[string]any

// RunResult pairs a sweep grid point with the backtest it produced.
type RunResult struct {
	Params ParamSet
	Result *backtest.Result
	Report types.PerformanceReport
	Err    error
}

// Sweep owns the concurrency bound and the strategy factory used to build
// one independent strategy instance per grid point.
type Sweep struct {
	factory        strategy.Factory
	backtestConfig *backtest.Config
	maxConcurrency int64
	logger         zerolog.Logger
	metrics        *metrics.EngineMetrics
}

// New returns a Sweep bounded to run at most maxConcurrency backtests at
// once. A value <= 0 defaults to 1. m may be nil, in which case the sweep
// runs without recording metrics.
func New(factory strategy.Factory, backtestConfig *backtest.Config, maxConcurrency int, logger zerolog.Logger, m *metrics.EngineMetrics) *Sweep {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Sweep{
		factory:        factory,
		backtestConfig: backtestConfig,
		maxConcurrency: int64(maxConcurrency),
		logger:         logger,
		metrics:        m,
	}
}

// Run executes one backtest per ParamSet in grid, fanning out up to
// maxConcurrency whole runs at a time. Each run gets an independently
// constructed strategy instance (never a shared Clone), since the factory
// already builds fresh state.
func (s *Sweep) Run(ctx context.Context, grid []ParamSet, series types.BarSeries) []RunResult {
	results := make([]RunResult, len(grid))
	sem := semaphore.NewWeighted(s.maxConcurrency)
	var wg sync.WaitGroup

	for i, params := range grid {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = RunResult{Params: params, Err: fmt.Errorf("acquire sweep slot: %w", err)}
			continue
		}

		wg.Add(1)
		go func(i int, params ParamSet) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = s.runOne(ctx, params, series)
		}(i, params)
	}

	wg.Wait()
	return results
}

func (s *Sweep) runOne(ctx context.Context, params ParamSet, series types.BarSeries) RunResult {
	strat, err := s.factory(params)
	if err != nil {
		s.metrics.RecordSweepRun("unknown", "construct_error")
		return RunResult{Params: params, Err: fmt.Errorf("construct strategy: %w", err)}
	}

	s.metrics.IncSweepActiveRuns()
	defer s.metrics.DecSweepActiveRuns()
	start := time.Now()

	engine := backtest.NewEngine(s.backtestConfig, strat, s.logger, s.metrics)
	result, err := engine.Run(ctx, series)
	s.metrics.ObserveSweepRunDuration(time.Since(start))
	if err != nil {
		s.logger.Warn().Err(err).Interface("params", params).Msg("sweep run failed")
		s.metrics.RecordSweepRun(strat.Name(), "error")
		return RunResult{Params: params, Err: err}
	}

	report := performance.Analyze(result.Trades, result.EquityCurve, s.backtestConfig.InitialCapital)
	s.metrics.RecordSweepRun(strat.Name(), "ok")
	return RunResult{Params: params, Result: result, Report: report}
}

// RankByProfitFactor returns the non-error results sorted by profit factor
// descending, the scheduler's answer to "which grid point performed best".
func RankByProfitFactor(results []RunResult) []RunResult {
	ranked := make([]RunResult, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			ranked = append(ranked, r)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Report.ProfitFactor > ranked[j].Report.ProfitFactor
	})
	return ranked
}
