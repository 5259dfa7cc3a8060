package engine

import (
	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/indicators"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/risk"
	"orderblock-trading-bot/internal/strategy"
)

// SymbolEngine binds one symbol's lifecycle to the per-candle indicator
// snapshot. Backtest and live trading both drive it through the same entry
// points, so a given candle sequence produces the same decisions in either
// mode.
type SymbolEngine struct {
	symbol    string
	cfg       *config.StrategyConfig
	lifecycle *strategy.Lifecycle
}

// NewSymbolEngine wires the lifecycle for one symbol. capital supplies the
// current account capital; gate is nil for backtests.
func NewSymbolEngine(symbol string, cfg *config.Config, bank *filters.Bank, riskMgr *risk.Manager, capital func() float64, gate strategy.EntryGate) *SymbolEngine {
	return &SymbolEngine{
		symbol:    symbol,
		cfg:       &cfg.StrategyConfig,
		lifecycle: strategy.NewLifecycle(symbol, &cfg.StrategyConfig, cfg.FeesConfig, bank, riskMgr, capital, gate),
	}
}

// Lifecycle exposes the state machine for inspection
func (e *SymbolEngine) Lifecycle() *strategy.Lifecycle {
	return e.lifecycle
}

// ProcessCandle advances the engine by the closed candle at index i of a
// contiguous history starting at bar 0. This is the backtest entry point.
func (e *SymbolEngine) ProcessCandle(candles []market.Candle, i int) strategy.StepResult {
	return e.ProcessWindow(candles[:i+1], i)
}

// ProcessWindow advances the engine by the closed candle at the end of
// window, identified by the monotonic bar counter. Live trading uses this so
// history can be trimmed without disturbing bar arithmetic.
func (e *SymbolEngine) ProcessWindow(window []market.Candle, bar int) strategy.StepResult {
	snap := e.snapshot(window)
	return e.lifecycle.Step(window, bar, snap)
}

// snapshot computes the indicator values for the last candle of the window.
// Values the window is too short for stay zero; Snapshot.Ready gates the
// detector on them.
func (e *SymbolEngine) snapshot(window []market.Candle) strategy.Snapshot {
	snap := strategy.Snapshot{
		ATR:        indicators.CalculateATR(window, e.cfg.ATRPeriod),
		ATRPercent: indicators.CalculateATRPercent(window, e.cfg.ATRPeriod),
		VolumeAvg:  indicators.CalculateAverageVolume(window, e.cfg.VolumeAvgPeriod),
		TrendSMA:   indicators.CalculateSMA(window, e.cfg.TrendSMAPeriod),
	}
	if past := len(window) - e.cfg.TrendSlopeBars; past > 0 {
		snap.TrendSMAPast = indicators.CalculateSMA(window[:past], e.cfg.TrendSMAPeriod)
	}
	return snap
}
