// Command backtest runs a single deterministic backtest end-to-end: it
// resolves bars through the Data Manager, replays them through a named
// strategy, computes the performance report, and optionally archives the
// result. It is the library's only CLI surface; no server, no wire
// protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/strikefinance/backtest-engine/internal/archive"
	"github.com/strikefinance/backtest-engine/internal/backtest"
	"github.com/strikefinance/backtest-engine/internal/cache"
	"github.com/strikefinance/backtest-engine/internal/config"
	"github.com/strikefinance/backtest-engine/internal/datamgr"
	"github.com/strikefinance/backtest-engine/internal/marketclock"
	"github.com/strikefinance/backtest-engine/internal/marketdata"
	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/internal/performance"
	"github.com/strikefinance/backtest-engine/internal/strategy"
	"github.com/strikefinance/backtest-engine/internal/strategy/orb"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

func main() {
	symbol := flag.String("symbol", "SPY", "symbol to backtest")
	strategyName := flag.String("strategy", "opening-range-breakout", "registered strategy name")
	interval := flag.String("interval", "5m", "bar interval (1m,5m,15m,30m,60m)")
	startDate := flag.String("start", "", "start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 100000, "initial capital")
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address")
	forceRefresh := flag.Bool("force-refresh", false, "re-fetch every month in the window even if already cached")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	archiveResult := flag.Bool("archive", false, "persist the report to the archive store")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := log.With().Str("component", "cmd_backtest").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	var engineMetrics *metrics.EngineMetrics
	if *metricsAddr != "" {
		engineMetrics = metrics.NewEngineMetrics("backtest")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", *metricsAddr).Msg("serving Prometheus metrics")
	}

	start, end, err := parseWindow(*startDate, *endDate)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid date window")
	}

	iv := types.Interval(*interval)
	if !iv.Valid() {
		logger.Fatal().Str("interval", *interval).Msg("unrecognized interval")
	}

	ctx := context.Background()

	series, err := resolveBars(ctx, cfg, *symbol, iv, start, end, *forceRefresh, logger, engineMetrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve bar series")
	}

	registry := buildRegistry()
	strat, err := registry.Create(*strategyName, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("strategy", *strategyName).Msg("failed to construct strategy")
	}

	marketHours, err := marketclock.DefaultHours()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load market hours")
	}

	btCfg := backtest.DefaultConfig()
	btCfg.Symbol = *symbol
	btCfg.Interval = iv
	btCfg.Start = start
	btCfg.End = end
	btCfg.InitialCapital = *capital
	btCfg.MarketHours = marketHours

	engine := backtest.NewEngine(btCfg, strat, logger, engineMetrics)
	result, err := engine.Run(ctx, series)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest run failed")
	}

	report := performance.Analyze(result.Trades, result.EquityCurve, btCfg.InitialCapital)

	logger.Info().
		Str("symbol", *symbol).
		Str("strategy", strat.Name()).
		Int("trades", report.TotalTrades).
		Float64("hit_rate", report.HitRate).
		Float64("profit_factor", report.ProfitFactor).
		Float64("total_pl_percent", report.TotalPLPercent).
		Float64("max_drawdown_pct", report.MaxDrawdownPct).
		Float64("sharpe", report.SharpeRatio).
		Msg("backtest completed")

	fmt.Printf("Strategy:        %s\n", strat.Name())
	fmt.Printf("Symbol:          %s\n", *symbol)
	fmt.Printf("Trades:          %d (win rate %.1f%%)\n", report.TotalTrades, report.HitRate)
	fmt.Printf("Total P/L:       %.2f (%.2f%%)\n", report.TotalPL, report.TotalPLPercent)
	fmt.Printf("Profit factor:   %.2f\n", report.ProfitFactor)
	fmt.Printf("Max drawdown:    %.2f%%\n", report.MaxDrawdownPct)
	fmt.Printf("Sharpe / Sortino / Calmar: %.2f / %.2f / %.2f\n", report.SharpeRatio, report.SortinoRatio, report.CalmarRatio)

	if *archiveResult {
		if err := persistReport(ctx, cfg, strat.Name(), *symbol, btCfg, result, report, logger); err != nil {
			logger.Error().Err(err).Msg("failed to archive report")
		}
	}
}

func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
	} else {
		start = time.Now().UTC().AddDate(0, -1, 0)
	}

	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
	} else {
		end = time.Now().UTC().AddDate(0, 0, -1)
	}
	return start, end, nil
}

// resolveBars wires the Data Manager's cache+fetcher pipeline together from
// process configuration.
func resolveBars(ctx context.Context, cfg *config.Config, symbol string, interval types.Interval, start, end time.Time, forceRefresh bool, logger zerolog.Logger, m *metrics.EngineMetrics) (types.BarSeries, error) {
	store, err := cache.NewStore(ctx, &cfg.Database, logger, m)
	if err != nil {
		return types.BarSeries{}, fmt.Errorf("open cache store: %w", err)
	}
	defer store.Close()

	var mdConfig marketdata.Config
	if cfg.MarketData.Tier == "premium" {
		mdConfig = marketdata.PremiumTierConfig(cfg.MarketData.APIKey)
	} else {
		mdConfig = marketdata.FreeTierConfig(cfg.MarketData.APIKey)
	}
	fetcher := marketdata.NewFetcher(mdConfig, logger, m)

	manager := datamgr.New(store, fetcher, logger)
	return manager.GetBars(ctx, symbol, interval, start, end, forceRefresh)
}

func buildRegistry() *strategy.Registry {
	registry := strategy.NewRegistry()
	registry.Register("opening-range-breakout", orb.New)
	return registry
}

func persistReport(ctx context.Context, cfg *config.Config, strategyName, symbol string, btCfg *backtest.Config, result *backtest.Result, report types.PerformanceReport, logger zerolog.Logger) error {
	store, err := archive.NewStore(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open archive store: %w", err)
	}
	defer store.Close()

	record := &types.BacktestReport{
		StrategyName:   strategyName,
		Symbol:         symbol,
		Performance:    report,
		Trades:         result.Trades,
		EquityCurve:    result.EquityCurve,
		InitialCapital: btCfg.InitialCapital,
		FinalCapital:   result.Portfolio.TotalValue(),
		Start:          btCfg.Start,
		End:            btCfg.End,
	}
	return store.Save(ctx, record)
}
