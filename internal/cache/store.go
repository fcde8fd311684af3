// Package cache implements the Cache Store: a Postgres-backed persistence
// layer for fetched bars, keyed by (symbol, interval, timestamp), so the
// Data Manager never re-fetches a month already on disk. Uses a raw pgx pool
// directly; DDL is issued inline rather than through a migration tool.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/strikefinance/backtest-engine/internal/config"
	"github.com/strikefinance/backtest-engine/internal/metrics"
	"github.com/strikefinance/backtest-engine/pkg/types"
)

// Store wraps a PostgreSQL connection pool holding cached bars.
type Store struct {
	pool    *pgxpool.Pool
	logger  zerolog.Logger
	metrics *metrics.EngineMetrics
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT NOT NULL,
	interval   TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	open       DOUBLE PRECISION NOT NULL,
	high       DOUBLE PRECISION NOT NULL,
	low        DOUBLE PRECISION NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	volume     BIGINT NOT NULL,
	synthetic  BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (symbol, interval, ts)
);

CREATE TABLE IF NOT EXISTS cached_months (
	symbol   TEXT NOT NULL,
	interval TEXT NOT NULL,
	month    TEXT NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (symbol, interval, month)
);
`

// NewStore opens a connection pool and ensures the schema exists. m may be
// nil, in which case the store runs without recording metrics.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger, m *metrics.EngineMetrics) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLife

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{pool: pool, logger: logger.With().Str("component", "cache_store").Logger(), metrics: m}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// StoreBars idempotently upserts every bar in series and marks the given
// month as cached for (symbol, interval).
func (s *Store) StoreBars(ctx context.Context, series types.BarSeries, month string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.metrics.RecordCacheStoreError("store_bars")
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, bar := range series.Bars {
		_, err := tx.Exec(ctx, `
			INSERT INTO bars (symbol, interval, ts, open, high, low, close, volume, synthetic)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, interval, ts) DO UPDATE
			SET open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume,
				synthetic = EXCLUDED.synthetic
		`, bar.Symbol, string(bar.Interval), bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Synthetic)
		if err != nil {
			s.metrics.RecordCacheStoreError("store_bars")
			return fmt.Errorf("upsert bar: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cached_months (symbol, interval, month, cached_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, interval, month) DO UPDATE SET cached_at = EXCLUDED.cached_at
	`, series.Symbol, string(series.Interval), month, time.Now().UTC())
	if err != nil {
		s.metrics.RecordCacheStoreError("store_bars")
		return fmt.Errorf("mark month cached: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		s.metrics.RecordCacheStoreError("store_bars")
		return fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Debug().
		Str("symbol", series.Symbol).
		Str("month", month).
		Int("bars", len(series.Bars)).
		Msg("stored bars")
	return nil
}

// HasMonth reports whether (symbol, interval, month) was already fetched
// and cached.
func (s *Store) HasMonth(ctx context.Context, symbol string, interval types.Interval, month string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM cached_months WHERE symbol = $1 AND interval = $2 AND month = $3)
	`, symbol, string(interval), month).Scan(&exists)
	if err != nil {
		s.metrics.RecordCacheStoreError("has_month")
		return false, fmt.Errorf("check month cached: %w", err)
	}
	if exists {
		s.metrics.RecordCacheHit(symbol, string(interval))
	} else {
		s.metrics.RecordCacheMiss(symbol, string(interval))
	}
	return exists, nil
}

// GetRange returns cached bars for (symbol, interval) within [start, end],
// ascending by timestamp.
func (s *Store) GetRange(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) (types.BarSeries, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, open, high, low, close, volume, synthetic
		FROM bars
		WHERE symbol = $1 AND interval = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`, symbol, string(interval), start, end)
	if err != nil {
		s.metrics.RecordCacheStoreError("get_range")
		return types.BarSeries{}, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var bar types.Bar
		bar.Symbol = symbol
		bar.Interval = interval
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Synthetic); err != nil {
			s.metrics.RecordCacheStoreError("get_range")
			return types.BarSeries{}, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		s.metrics.RecordCacheStoreError("get_range")
		return types.BarSeries{}, fmt.Errorf("iterate bars: %w", err)
	}

	return types.NewBarSeries(symbol, interval, bars), nil
}

// Cleanup deletes cached bars older than the retention cutoff, for symbols
// no longer in active use.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bars WHERE ts < $1`, olderThan)
	if err != nil {
		s.metrics.RecordCacheStoreError("cleanup")
		return 0, fmt.Errorf("cleanup bars: %w", err)
	}
	return tag.RowsAffected(), nil
}
