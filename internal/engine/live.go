package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/events"
	"orderblock-trading-bot/internal/exchange"
	"orderblock-trading-bot/internal/feed"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/risk"
	"orderblock-trading-bot/internal/strategy"
	"orderblock-trading-bot/internal/telemetry"
)

const sinkTimeout = 2 * time.Second

// CandleSource delivers closed candles; the websocket stream implements it
type CandleSource interface {
	Candles() <-chan feed.Kline
}

// Trader runs the live engines: one goroutine per symbol, all sharing the
// account capital and the streak-based risk manager. Candles reach each
// symbol in feed order, and every decision goes through the same engine code
// the backtester uses.
type Trader struct {
	cfg     *config.Config
	logger  zerolog.Logger
	placer  exchange.OrderPlacer
	riskMgr *risk.Manager
	bank    *filters.Bank
	bus     *events.Bus
	metrics *telemetry.Metrics
	sink    telemetry.Sink

	mu      sync.Mutex
	capital float64
}

// NewTrader wires the live trader. metrics may be nil; sink must not be.
func NewTrader(cfg *config.Config, placer exchange.OrderPlacer, riskMgr *risk.Manager, bank *filters.Bank, bus *events.Bus, metrics *telemetry.Metrics, sink telemetry.Sink, logger zerolog.Logger) *Trader {
	return &Trader{
		cfg:     cfg,
		logger:  logger,
		placer:  placer,
		riskMgr: riskMgr,
		bank:    bank,
		bus:     bus,
		metrics: metrics,
		sink:    sink,
		capital: cfg.RiskConfig.InitialCapital,
	}
}

// Capital returns the current account capital
func (t *Trader) Capital() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capital
}

// Run consumes the candle source until it closes or the context ends
func (t *Trader) Run(ctx context.Context, src CandleSource) error {
	chans := make(map[string]chan market.Candle, len(t.cfg.TradingConfig.Symbols))
	var wg sync.WaitGroup

	for _, sym := range t.cfg.TradingConfig.Symbols {
		ch := make(chan market.Candle, 16)
		chans[sym] = ch
		wg.Add(1)
		go func(sym string, ch <-chan market.Candle) {
			defer wg.Done()
			t.runSymbol(ctx, sym, ch)
		}(sym, ch)
	}

	for {
		select {
		case <-ctx.Done():
			for _, ch := range chans {
				close(ch)
			}
			wg.Wait()
			return nil
		case k, ok := <-src.Candles():
			if !ok {
				for _, ch := range chans {
					close(ch)
				}
				wg.Wait()
				return nil
			}
			ch, known := chans[k.Symbol]
			if !known {
				continue
			}
			select {
			case ch <- k.Candle:
			case <-ctx.Done():
			}
		}
	}
}

// runSymbol owns one symbol's candle history and engine. History is capped;
// the monotonic bar counter keeps block ages and cooldowns correct across
// trims, and every indicator evaluates a bounded tail, so a trimmed window
// decides exactly like the backtest's full prefix.
func (t *Trader) runSymbol(ctx context.Context, symbol string, candles <-chan market.Candle) {
	logger := t.logger.With().Str("symbol", symbol).Logger()

	eng := NewSymbolEngine(symbol, t.cfg, t.bank, t.riskMgr, t.Capital, t.entryGate)

	warmup := t.cfg.StrategyConfig.WarmupBars
	maxHistory := warmup * 2
	history := make([]market.Candle, 0, maxHistory)
	bar := -1

	for c := range candles {
		history = append(history, c)
		if len(history) > maxHistory {
			trimmed := make([]market.Candle, warmup, maxHistory)
			copy(trimmed, history[len(history)-warmup:])
			history = trimmed
		}
		bar++

		if t.metrics != nil {
			t.metrics.ObserveCandle(symbol, c.Close)
		}

		if bar+1 <= warmup {
			continue
		}

		res := eng.ProcessWindow(history, bar)
		t.applyResult(ctx, logger, res)
	}
}

// applyResult publishes events, books trades into capital and feeds the
// metrics and the persistent sink.
func (t *Trader) applyResult(ctx context.Context, logger zerolog.Logger, res strategy.StepResult) {
	for _, e := range res.Events {
		t.bus.Publish(e)
		if t.metrics != nil {
			t.metrics.ObserveEvent(e)
		}

		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := t.sink.RecordEvent(sctx, e); err != nil {
			logger.Warn().Err(err).Str("type", string(e.Type)).Msg("event sink write failed")
		}
		cancel()
	}

	for _, tr := range res.Trades {
		t.mu.Lock()
		t.capital += tr.Pnl
		capital := t.capital
		t.mu.Unlock()

		if t.metrics != nil {
			t.metrics.ObserveTrade(tr)
			t.metrics.SetCapital(capital)
			t.metrics.SetSizeMultiplier(t.riskMgr.State().PositionSizeMultiplier)
		}

		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := t.sink.RecordTrade(sctx, tr); err != nil {
			logger.Warn().Err(err).Msg("trade sink write failed")
		}
		cancel()

		logger.Info().
			Str("side", string(tr.Side)).
			Str("exit_reason", tr.ExitReason).
			Float64("pnl", tr.Pnl).
			Float64("capital", capital).
			Bool("partial", tr.Partial).
			Msg("trade booked")
	}
}

// entryGate submits the entry and its protective orders. The entry limit
// order is the gate: if the venue does not accept it the fill is deferred and
// the lifecycle retries on a later candle. The retry carries the order's
// original client order ID, so an ambiguously accepted first attempt (say a
// timeout after the venue booked it) deduplicates instead of double-entering.
// Protective orders are best effort once the entry is in.
func (t *Trader) entryGate(req *strategy.EntryRequest) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := t.placer.PlaceLimitOrder(ctx, exchange.LimitOrderRequest{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Price:         req.Entry,
		Quantity:      req.Quantity,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Str("side", string(req.Side)).
			Float64("price", req.Entry).
			Msg("entry order rejected, fill deferred")
		return false
	}

	protective := []exchange.ConditionalOrderRequest{
		{Symbol: req.Symbol, Side: req.Side, TriggerPrice: req.StopLoss, Quantity: req.Quantity, ReduceOnly: true, ClientOrderID: req.ClientOrderID + "-sl"},
		{Symbol: req.Symbol, Side: req.Side, TriggerPrice: req.TakeProfit1, Quantity: req.Quantity * t.cfg.StrategyConfig.TP1ClosePercent, ReduceOnly: true, ClientOrderID: req.ClientOrderID + "-tp1"},
		{Symbol: req.Symbol, Side: req.Side, TriggerPrice: req.TakeProfit2, Quantity: req.Quantity * (1 - t.cfg.StrategyConfig.TP1ClosePercent), ReduceOnly: true, ClientOrderID: req.ClientOrderID + "-tp2"},
	}
	for _, p := range protective {
		if err := t.placer.PlaceConditionalOrder(ctx, p); err != nil {
			t.logger.Warn().
				Err(err).
				Str("symbol", p.Symbol).
				Float64("trigger", p.TriggerPrice).
				Msg("protective order failed")
		}
	}

	return true
}
