package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"orderblock-trading-bot/internal/strategy"
)

// Sink persists lifecycle events and trades. Implementations must tolerate
// being called from the candle loop; slow writes should not block it longer
// than their context allows.
type Sink interface {
	RecordEvent(ctx context.Context, e strategy.Event) error
	RecordTrade(ctx context.Context, t strategy.Trade) error
	Close()
}

// LogSink writes events and trades to the structured log. It is the default
// sink when no database is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// RecordEvent logs one lifecycle event
func (s *LogSink) RecordEvent(ctx context.Context, e strategy.Event) error {
	s.logger.Info().
		Str("symbol", e.Symbol).
		Str("type", string(e.Type)).
		Str("side", string(e.Side)).
		Float64("price", e.Price).
		Str("reason", e.Reason).
		Int("bar", e.Bar).
		Msg("lifecycle event")
	return nil
}

// RecordTrade logs one finalized trade
func (s *LogSink) RecordTrade(ctx context.Context, t strategy.Trade) error {
	s.logger.Info().
		Str("symbol", t.Symbol).
		Str("side", string(t.Side)).
		Float64("entry", t.Entry).
		Float64("exit", t.Exit).
		Float64("pnl", t.Pnl).
		Float64("pnl_percent", t.PnlPercent).
		Str("exit_reason", t.ExitReason).
		Bool("partial", t.Partial).
		Bool("win", t.IsWin).
		Msg("trade closed")
	return nil
}

// Close is a no-op
func (s *LogSink) Close() {}
