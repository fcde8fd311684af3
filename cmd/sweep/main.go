// Command sweep runs a strategy across a grid of parameter sets against one
// resolved bar series, fanning out whole independent backtest runs bounded
// by a weighted semaphore, and prints the grid ranked by profit factor.
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

	"github.com/strikefinance/backtest-engine/internal/backtest"
	"github.com/strikefinance/backtest-engine/internal/cache"
	"github.com/strikefinance/backtest-engine/internal/config"
	"github.com/strikefinance/backtest-engine/internal/datamgr"
	"github.com/strikefinance/backtest-engine/internal/marketclock"
	"github.com/strikefinance/backtest-engine/internal/marketdata"
	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/internal/strategy/orb"
	"github.com/strikefinance/backtest-engine/internal/sweep"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

func main() {
	symbol := flag.String("symbol", "SPY", "symbol to sweep")
	interval := flag.String("interval", "5m", "bar interval")
	startDate := flag.String("start", "", "start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 100000, "initial capital per run")
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	top := flag.Int("top", 5, "how many ranked grid points to print")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address")
	forceRefresh := flag.Bool("force-refresh", false, "re-fetch every month in the window even if already cached")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "cmd_sweep").Logger()

	var engineMetrics *metrics.EngineMetrics
	if *metricsAddr != "" {
		engineMetrics = metrics.NewEngineMetrics("sweep")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", *metricsAddr).Msg("serving Prometheus metrics")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	var start, end time.Time
	if *startDate != "" {
		start, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid start date")
		}
	} else {
		start = time.Now().UTC().AddDate(0, -1, 0)
	}
	if *endDate != "" {
		end, err = time.Parse("2006-01-02", *endDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid end date")
		}
	} else {
		end = time.Now().UTC().AddDate(0, 0, -1)
	}

	iv := types.Interval(*interval)
	if !iv.Valid() {
		logger.Fatal().Str("interval", *interval).Msg("unrecognized interval")
	}

	ctx := context.Background()

	store, err := cache.NewStore(ctx, &cfg.Database, logger, engineMetrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("open cache store")
	}
	defer store.Close()

	var mdConfig marketdata.Config
	if cfg.MarketData.Tier == "premium" {
		mdConfig = marketdata.PremiumTierConfig(cfg.MarketData.APIKey)
	} else {
		mdConfig = marketdata.FreeTierConfig(cfg.MarketData.APIKey)
	}
	fetcher := marketdata.NewFetcher(mdConfig, logger, engineMetrics)
	manager := datamgr.New(store, fetcher, logger)

	series, err := manager.GetBars(ctx, *symbol, iv, start, end, *forceRefresh)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve bar series")
	}

	marketHours, err := marketclock.DefaultHours()
	if err != nil {
		logger.Fatal().Err(err).Msg("load market hours")
	}

	btCfg := backtest.DefaultConfig()
	btCfg.Symbol = *symbol
	btCfg.Interval = iv
	btCfg.Start = start
	btCfg.End = end
	btCfg.InitialCapital = *capital
	btCfg.MarketHours = marketHours

	grid := orbParamGrid()
	scheduler := sweep.New(orb.New, btCfg, cfg.Sweep.MaxConcurrency, logger, engineMetrics)
	results := scheduler.Run(ctx, grid, series)
	ranked := sweep.RankByProfitFactor(results)

	n := *top
	if n > len(ranked) {
		n = len(ranked)
	}
	fmt.Printf("Sweep over %d grid points, %d succeeded\n", len(grid), len(ranked))
	for i := 0; i < n; i++ {
		r := ranked[i]
		fmt.Printf("#%d params=%v trades=%d hit_rate=%.1f%% profit_factor=%.2f total_pl_pct=%.2f%%\n",
			i+1, r.Params, r.Report.TotalTrades, r.Report.HitRate, r.Report.ProfitFactor, r.Report.TotalPLPercent)
	}
}

// orbParamGrid sweeps the ORB strategy's two most consequential knobs:
// breakout threshold and volume confirmation multiplier.
func orbParamGrid() []sweep.ParamSet {
	var grid []sweep.ParamSet
	for _, threshold := range []float64{0.0005, 0.001, 0.002} {
		for _, volMult := range []float64{1.2, 1.5, 2.0} {
			grid = append(grid, sweep.ParamSet{
				"breakout_threshold": threshold,
				"volume_multiplier":  volMult,
			})
		}
	}
	return grid
}
