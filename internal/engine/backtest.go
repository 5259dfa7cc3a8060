package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/regime"
	"orderblock-trading-bot/internal/risk"
	"orderblock-trading-bot/internal/strategy"
)

// Summary aggregates the outcome of one backtest run. TotalTrades counts
// closed positions; TP1 partials contribute PnL but not a trade count.
type Summary struct {
	Symbol         string           `json:"symbol"`
	CandlesTested  int              `json:"candles_tested"`
	TotalTrades    int              `json:"total_trades"`
	Wins           int              `json:"wins"`
	Losses         int              `json:"losses"`
	WinRate        float64          `json:"win_rate"`
	TotalPnl       float64          `json:"total_pnl"`
	TotalFees      float64          `json:"total_fees"`
	TotalReturn    float64          `json:"total_return_percent"`
	MaxDrawdown    float64          `json:"max_drawdown_percent"`
	InitialCapital float64          `json:"initial_capital"`
	FinalCapital   float64          `json:"final_capital"`
	Trades         []strategy.Trade `json:"trades"`
	Events         []strategy.Event `json:"-"`
	EquityCurve    []float64        `json:"-"`
}

// Backtester replays historical candles through a fresh engine. Every run
// builds its own risk manager, filter bank and regime cache, so two runs over
// the same candles are independent and produce identical output.
type Backtester struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewBacktester creates a backtester
func NewBacktester(cfg *config.Config, logger zerolog.Logger) *Backtester {
	return &Backtester{cfg: cfg, logger: logger}
}

// Run replays candles for one symbol. Trading starts after the warmup
// prefix; the candles before it only feed the indicators.
func (b *Backtester) Run(symbol string, candles []market.Candle) (*Summary, error) {
	warmup := b.cfg.StrategyConfig.WarmupBars
	if len(candles) <= warmup {
		return nil, fmt.Errorf("need more than %d candles for warmup, got %d", warmup, len(candles))
	}

	capital := b.cfg.RiskConfig.InitialCapital
	riskMgr := risk.NewManager(b.cfg.RiskConfig)
	classifier := regime.NewClassifier(b.cfg.RegimeConfig, regime.NewMemoryCache())
	bank := filters.NewBank(b.cfg.FiltersConfig, classifier)

	eng := NewSymbolEngine(symbol, b.cfg, bank, riskMgr, func() float64 { return capital }, nil)

	summary := &Summary{
		Symbol:         symbol,
		CandlesTested:  len(candles) - warmup,
		InitialCapital: capital,
	}
	peak := capital

	for i := warmup; i < len(candles); i++ {
		res := eng.ProcessCandle(candles, i)

		summary.Events = append(summary.Events, res.Events...)
		for _, tr := range res.Trades {
			capital += tr.Pnl
			summary.TotalPnl += tr.Pnl
			summary.TotalFees += tr.Fees
			summary.Trades = append(summary.Trades, tr)

			if !tr.Partial {
				summary.TotalTrades++
				if tr.IsWin {
					summary.Wins++
				} else {
					summary.Losses++
				}
			}

			b.logger.Debug().
				Str("symbol", symbol).
				Str("side", string(tr.Side)).
				Str("exit_reason", tr.ExitReason).
				Float64("pnl", tr.Pnl).
				Bool("partial", tr.Partial).
				Msg("backtest trade")
		}

		if capital > peak {
			peak = capital
		}
		if peak > 0 {
			dd := (peak - capital) / peak * 100
			if dd > summary.MaxDrawdown {
				summary.MaxDrawdown = dd
			}
		}
		summary.EquityCurve = append(summary.EquityCurve, capital)
	}

	summary.FinalCapital = capital
	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.TotalTrades) * 100
	}
	if summary.InitialCapital > 0 {
		summary.TotalReturn = (capital - summary.InitialCapital) / summary.InitialCapital * 100
	}

	b.logger.Info().
		Str("symbol", symbol).
		Int("trades", summary.TotalTrades).
		Float64("win_rate", summary.WinRate).
		Float64("total_pnl", summary.TotalPnl).
		Float64("max_drawdown", summary.MaxDrawdown).
		Msg("backtest complete")

	return summary, nil
}
