package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"orderblock-trading-bot/internal/strategy"
)

const schema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	id          BIGSERIAL PRIMARY KEY,
	symbol      TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	bar         BIGINT NOT NULL,
	candle_time BIGINT NOT NULL,
	side        TEXT,
	price       DOUBLE PRECISION,
	reason      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lifecycle_events_symbol_time
	ON lifecycle_events (symbol, candle_time);

CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	symbol      TEXT NOT NULL,
	entry_time  BIGINT NOT NULL,
	exit_time   BIGINT NOT NULL,
	side        TEXT NOT NULL,
	entry       DOUBLE PRECISION NOT NULL,
	exit        DOUBLE PRECISION NOT NULL,
	size        DOUBLE PRECISION NOT NULL,
	quantity    DOUBLE PRECISION NOT NULL,
	margin      DOUBLE PRECISION NOT NULL,
	fees        DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	pnl_percent DOUBLE PRECISION NOT NULL,
	is_win      BOOLEAN NOT NULL,
	method      TEXT NOT NULL,
	exit_reason TEXT NOT NULL,
	partial     BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_exit_time
	ON trades (symbol, exit_time);
`

// PostgresSink persists events and trades through a pgx pool
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresSink connects, verifies the connection and ensures the schema
func NewPostgresSink(ctx context.Context, url string, logger zerolog.Logger) (*PostgresSink, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info().Msg("postgres sink connected")
	return &PostgresSink{pool: pool, logger: logger}, nil
}

// RecordEvent inserts one lifecycle event
func (s *PostgresSink) RecordEvent(ctx context.Context, e strategy.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lifecycle_events (symbol, event_type, bar, candle_time, side, price, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Symbol, string(e.Type), e.Bar, e.Time, string(e.Side), e.Price, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecordTrade inserts one finalized trade
func (s *PostgresSink) RecordTrade(ctx context.Context, t strategy.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (symbol, entry_time, exit_time, side, entry, exit, size, quantity,
		                     margin, fees, pnl, pnl_percent, is_win, method, exit_reason, partial)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.Symbol, t.EntryTime, t.ExitTime, string(t.Side), t.Entry, t.Exit, t.Size, t.Quantity,
		t.Margin, t.Fees, t.Pnl, t.PnlPercent, t.IsWin, t.Method, t.ExitReason, t.Partial,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresSink) Close() {
	s.pool.Close()
}
