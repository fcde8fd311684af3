// Package archive implements the Backtest Result Archive: an append-only
// store of completed BacktestReports, queryable by strategy/symbol and by
// performance thresholds. Shares internal/cache's raw-pgx idiom.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/config"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS backtest_reports (
	run_id           TEXT PRIMARY KEY,
	strategy_name    TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	parameters       JSONB NOT NULL,
	initial_capital  DOUBLE PRECISION NOT NULL,
	final_capital    DOUBLE PRECISION NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ NOT NULL,
	hit_rate         DOUBLE PRECISION NOT NULL,
	profit_factor    DOUBLE PRECISION NOT NULL,
	total_pl_percent DOUBLE PRECISION NOT NULL,
	max_drawdown_pct DOUBLE PRECISION NOT NULL,
	tags             TEXT[] NOT NULL DEFAULT '{}',
	report           JSONB NOT NULL,
	trades           JSONB NOT NULL,
	equity_curve     JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_backtest_reports_strategy_symbol
	ON backtest_reports (strategy_name, symbol, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_backtest_reports_thresholds
	ON backtest_reports (hit_rate, profit_factor);
`

// Store is the append-only persistence layer for completed backtest runs.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore opens a pool and ensures the archive schema exists.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse archive db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLife

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive db: %w", err)
	}

	store := &Store{pool: pool, logger: logger}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save persists a completed BacktestReport, assigning it a fresh run ID
// (strategy_symbol_timestamp followed by a uuid suffix) if one is not
// already set.
func (s *Store) Save(ctx context.Context, report *types.BacktestReport) error {
	if report.RunID == "" {
		report.RunID = fmt.Sprintf("%s_%s_%s_%s", report.StrategyName, report.Symbol,
			time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())
	}

	params, err := json.Marshal(report.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	perf, err := json.Marshal(report.Performance)
	if err != nil {
		return fmt.Errorf("marshal performance report: %w", err)
	}
	trades, err := json.Marshal(report.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}
	equity, err := json.Marshal(report.EquityCurve)
	if err != nil {
		return fmt.Errorf("marshal equity curve: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_reports (
			run_id, strategy_name, symbol, parameters, initial_capital,
			final_capital, start_time, end_time, hit_rate, profit_factor,
			total_pl_percent, max_drawdown_pct, tags, report, trades, equity_curve
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (run_id) DO NOTHING`,
		report.RunID, report.StrategyName, report.Symbol, params,
		report.InitialCapital, report.FinalCapital, report.Start, report.End,
		report.Performance.HitRate, report.Performance.ProfitFactor,
		report.Performance.TotalPLPercent, report.Performance.MaxDrawdownPct,
		report.Tags, perf, trades, equity,
	)
	if err != nil {
		return fmt.Errorf("insert backtest report: %w", err)
	}

	s.logger.Info().
		Str("run_id", report.RunID).
		Str("strategy", report.StrategyName).
		Str("symbol", report.Symbol).
		Msg("archived backtest report")
	return nil
}

// ListByStrategySymbol returns the most recent runs for a strategy+symbol
// pair, newest first, capped at limit.
func (s *Store) ListByStrategySymbol(ctx context.Context, strategyName, symbol string, limit int) ([]types.BacktestReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, strategy_name, symbol, parameters, initial_capital,
		       final_capital, start_time, end_time, tags, report, trades,
		       equity_curve, created_at
		FROM backtest_reports
		WHERE strategy_name = $1 AND symbol = $2
		ORDER BY created_at DESC
		LIMIT $3`, strategyName, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports by strategy/symbol: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

// ListByThresholds returns runs meeting or exceeding the given hit-rate and
// profit-factor floors, ordered by profit factor descending, capped at
// limit.
func (s *Store) ListByThresholds(ctx context.Context, minHitRate, minProfitFactor float64, limit int) ([]types.BacktestReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, strategy_name, symbol, parameters, initial_capital,
		       final_capital, start_time, end_time, tags, report, trades,
		       equity_curve, created_at
		FROM backtest_reports
		WHERE hit_rate >= $1 AND profit_factor >= $2
		ORDER BY profit_factor DESC
		LIMIT $3`, minHitRate, minProfitFactor, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports by thresholds: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

// Cleanup deletes archived reports created before the given time, returning
// the number of rows removed.
func (s *Store) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backtest_reports WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("cleanup archived reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReports(rows pgx.Rows) ([]types.BacktestReport, error) {
	var reports []types.BacktestReport
	for rows.Next() {
		var (
			r         types.BacktestReport
			paramsRaw []byte
			perfRaw   []byte
			tradesRaw []byte
			equityRaw []byte
		)
		if err := rows.Scan(
			&r.RunID, &r.StrategyName, &r.Symbol, &paramsRaw, &r.InitialCapital,
			&r.FinalCapital, &r.Start, &r.End, &r.Tags, &perfRaw, &tradesRaw,
			&equityRaw, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan backtest report row: %w", err)
		}
		if err := json.Unmarshal(paramsRaw, &r.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
		if err := json.Unmarshal(perfRaw, &r.Performance); err != nil {
			return nil, fmt.Errorf("unmarshal performance report: %w", err)
		}
		if err := json.Unmarshal(tradesRaw, &r.Trades); err != nil {
			return nil, fmt.Errorf("unmarshal trades: %w", err)
		}
		if err := json.Unmarshal(equityRaw, &r.EquityCurve); err != nil {
			return nil, fmt.Errorf("unmarshal equity curve: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest report rows: %w", err)
	}
	return reports, nil
}
