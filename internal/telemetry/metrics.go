package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"orderblock-trading-bot/internal/strategy"
)

// Metrics exports the trading counters and gauges scraped at /metrics
type Metrics struct {
	candlesProcessed *prometheus.CounterVec
	lifecycleEvents  *prometheus.CounterVec
	tradesClosed     *prometheus.CounterVec
	realizedPnl      *prometheus.GaugeVec
	lastPrice        *prometheus.GaugeVec
	accountCapital   prometheus.Gauge
	positionSizeMult prometheus.Gauge
}

// NewMetrics registers the collectors on the default registry
func NewMetrics() *Metrics {
	return &Metrics{
		candlesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obbot_candles_processed_total",
				Help: "Closed candles fed to the engine",
			},
			[]string{"symbol"},
		),
		lifecycleEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obbot_lifecycle_events_total",
				Help: "Order-Block lifecycle events by type",
			},
			[]string{"symbol", "type"},
		),
		tradesClosed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obbot_trades_closed_total",
				Help: "Closed trades by exit reason and outcome",
			},
			[]string{"symbol", "exit_reason", "result"},
		),
		realizedPnl: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "obbot_realized_pnl",
				Help: "Cumulative realized PnL per symbol, fees included",
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "obbot_last_price",
				Help: "Close of the last processed candle",
			},
			[]string{"symbol"},
		),
		accountCapital: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "obbot_account_capital",
				Help: "Current account capital",
			},
		),
		positionSizeMult: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "obbot_position_size_multiplier",
				Help: "Current streak-based position size multiplier",
			},
		),
	}
}

// ObserveCandle records one processed candle and its close price
func (m *Metrics) ObserveCandle(symbol string, close float64) {
	m.candlesProcessed.WithLabelValues(symbol).Inc()
	m.lastPrice.WithLabelValues(symbol).Set(close)
}

// ObserveEvent records one lifecycle event
func (m *Metrics) ObserveEvent(e strategy.Event) {
	m.lifecycleEvents.WithLabelValues(e.Symbol, string(e.Type)).Inc()
}

// ObserveTrade records a finalized trade. Partials count toward PnL only.
func (m *Metrics) ObserveTrade(t strategy.Trade) {
	m.realizedPnl.WithLabelValues(t.Symbol).Add(t.Pnl)
	if t.Partial {
		return
	}
	result := "loss"
	if t.IsWin {
		result = "win"
	}
	m.tradesClosed.WithLabelValues(t.Symbol, t.ExitReason, result).Inc()
}

// SetCapital updates the account capital gauge
func (m *Metrics) SetCapital(capital float64) {
	m.accountCapital.Set(capital)
}

// SetSizeMultiplier updates the risk-ladder multiplier gauge
func (m *Metrics) SetSizeMultiplier(mult float64) {
	m.positionSizeMult.Set(mult)
}
