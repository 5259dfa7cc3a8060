package engine

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/risk"
	"orderblock-trading-bot/internal/strategy"
)

func backtestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.StrategyConfig.WarmupBars = 60
	cfg.StrategyConfig.ATRPeriod = 5
	cfg.StrategyConfig.VolumeAvgPeriod = 10
	cfg.StrategyConfig.TrendSMAPeriod = 30
	cfg.StrategyConfig.TrendSlopeBars = 5
	cfg.StrategyConfig.TrendSideBars = 10
	cfg.StrategyConfig.TrendSideMinBars = 5
	cfg.StrategyConfig.MinTrendDistancePercent = 1.0
	cfg.FiltersConfig = config.FiltersConfig{}
	return cfg
}

// trendCandles builds a steady uptrend with one embedded breakout, a
// moved-away confirmation candle and a bullish midpoint retest, then keeps
// climbing through both profit targets.
func trendCandles() []market.Candle {
	candles := make([]market.Candle, 0, 100)
	prevClose := 100.0

	for i := 0; i < 100; i++ {
		var c market.Candle
		switch i {
		case 70: // breakout candle: wide body on triple volume
			c = market.Candle{Open: prevClose, Close: prevClose + 1.2, Volume: 30}
			c.High, c.Low = c.Close+0.1, c.Open-0.1
		case 71: // closes beyond midpoint + half block size
			c = market.Candle{Open: prevClose, Close: 111.75, High: 111.95, Low: 111.45, Volume: 10}
		case 72: // dips to the midpoint and closes bullish
			c = market.Candle{Open: 110.85, Close: 111.4, High: 111.5, Low: 110.8, Volume: 10}
		default:
			var close float64
			if i < 70 {
				close = 100 + 0.15*float64(i)
			} else {
				close = 111.4 + 0.2*float64(i-72)
			}
			c = market.Candle{Open: prevClose, Close: close, Volume: 10}
			hi, lo := c.Open, c.Close
			if c.Close > c.Open {
				hi, lo = c.Close, c.Open
			}
			c.High, c.Low = hi+0.2, lo-0.2
		}
		c.OpenTime = int64(i+1) * 60000
		candles = append(candles, c)
		prevClose = c.Close
	}

	return candles
}

func TestBacktestRunsFullTradeCycle(t *testing.T) {
	bt := NewBacktester(backtestConfig(), zerolog.Nop())

	summary, err := bt.Run("BTCUSDT", trendCandles())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalTrades != 1 || summary.Wins != 1 {
		t.Errorf("trades=%d wins=%d, want one winning position", summary.TotalTrades, summary.Wins)
	}
	if len(summary.Trades) != 2 {
		t.Fatalf("trade records = %d, want TP1 partial plus TP2 runner", len(summary.Trades))
	}
	if !summary.Trades[0].Partial || summary.Trades[0].ExitReason != strategy.ExitTakeProfit1 {
		t.Errorf("first record = %+v, want TP1 partial", summary.Trades[0])
	}
	if summary.Trades[1].Partial || summary.Trades[1].ExitReason != strategy.ExitTakeProfit2 {
		t.Errorf("second record = %+v, want TP2 full exit", summary.Trades[1])
	}
	if summary.TotalPnl <= 0 {
		t.Errorf("total pnl = %v, want > 0", summary.TotalPnl)
	}
	if diff := summary.FinalCapital - (summary.InitialCapital + summary.TotalPnl); diff > 1e-6 || diff < -1e-6 {
		t.Errorf("capital %v -> %v does not match pnl %v",
			summary.InitialCapital, summary.FinalCapital, summary.TotalPnl)
	}

	found := false
	for _, e := range summary.Events {
		if e.Type == strategy.EventBlockDetected {
			found = true
		}
	}
	if !found {
		t.Error("no OB_DETECTED event in the replay")
	}
}

func TestBacktestIsDeterministic(t *testing.T) {
	candles := trendCandles()

	first, err := NewBacktester(backtestConfig(), zerolog.Nop()).Run("BTCUSDT", candles)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := NewBacktester(backtestConfig(), zerolog.Nop()).Run("BTCUSDT", candles)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("two replays over the same candles must be identical")
	}
}

func TestBacktestRejectsShortHistory(t *testing.T) {
	bt := NewBacktester(backtestConfig(), zerolog.Nop())

	if _, err := bt.Run("BTCUSDT", trendCandles()[:50]); err == nil {
		t.Error("history shorter than warmup must fail")
	}
}

func TestSymbolEngineParityBetweenEntryPoints(t *testing.T) {
	// ProcessCandle and ProcessWindow must agree when the window is the full
	// prefix: that equivalence is what live trimming relies on.
	cfg := backtestConfig()
	candles := trendCandles()

	a := NewSymbolEngine("BTCUSDT", cfg, filters.NewBank(cfg.FiltersConfig, nil), risk.NewManager(cfg.RiskConfig), func() float64 { return 10000 }, nil)
	b := NewSymbolEngine("BTCUSDT", cfg, filters.NewBank(cfg.FiltersConfig, nil), risk.NewManager(cfg.RiskConfig), func() float64 { return 10000 }, nil)

	for i := cfg.StrategyConfig.WarmupBars; i < len(candles); i++ {
		ra := a.ProcessCandle(candles, i)
		rb := b.ProcessWindow(candles[:i+1], i)
		if !reflect.DeepEqual(ra, rb) {
			t.Fatalf("bar %d: ProcessCandle and ProcessWindow diverge", i)
		}
	}
}
