package regime

import (
	"time"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/indicators"
	"orderblock-trading-bot/internal/market"
)

// Type classifies current market behavior
type Type string

const (
	Ranging  Type = "RANGING"
	Trending Type = "TRENDING"
	Volatile Type = "VOLATILE"
)

// Result is a classified market regime with its inputs
type Result struct {
	Regime         Type    `json:"regime"`
	Confidence     float64 `json:"confidence"` // winning bucket score, 0-100
	ADXValue       float64 `json:"adx_value"`
	ATRPercent     float64 `json:"atr_percent"`
	BBWidthPercent float64 `json:"bb_width_percent"`
	ComputedAt     int64   `json:"computed_at"` // candle open time, ms
}

// Cache stores classified regimes per symbol. Staleness is decided by the
// classifier against candle timestamps so backtest replays stay
// deterministic; backends may add their own expiry as hygiene.
type Cache interface {
	Get(symbol string) (*Result, bool)
	Set(symbol string, result *Result)
}

// Classifier computes a weighted-score market regime with a short-TTL cache
// keyed by symbol. Weights: ADX 40%, ATR% 30%, BB-width% 30%.
type Classifier struct {
	cfg   config.RegimeConfig
	cache Cache
	ttl   time.Duration
}

// NewClassifier creates a classifier backed by the given cache
func NewClassifier(cfg config.RegimeConfig, cache Cache) *Classifier {
	return &Classifier{
		cfg:   cfg,
		cache: cache,
		ttl:   time.Duration(cfg.CacheTTLMinutes) * time.Minute,
	}
}

// Classify returns the regime for the window ending at the last candle,
// recomputing only when the cached entry is older than the TTL in candle
// time.
func (c *Classifier) Classify(symbol string, candles []market.Candle) *Result {
	if len(candles) == 0 {
		return &Result{Regime: Ranging}
	}

	now := candles[len(candles)-1].OpenTime

	if cached, ok := c.cache.Get(symbol); ok {
		age := time.Duration(now-cached.ComputedAt) * time.Millisecond
		if age >= 0 && age < c.ttl {
			return cached
		}
	}

	result := c.compute(candles)
	result.ComputedAt = now
	c.cache.Set(symbol, result)

	return result
}

func (c *Classifier) compute(candles []market.Candle) *Result {
	adx := indicators.CalculateADX(candles, c.cfg.ADXPeriod)
	atrPct := indicators.CalculateATRPercent(candles, c.cfg.ATRPeriod)
	bbwPct := indicators.CalculateBBWidthPercent(candles, c.cfg.BBPeriod, c.cfg.BBStdDev)

	scores := map[Type]float64{}

	// ADX: 40%
	switch {
	case adx < 20:
		scores[Ranging] += 40
	case adx <= 45:
		scores[Trending] += 40
	default:
		scores[Volatile] += 40
	}

	// ATR as % of price: 30%
	switch {
	case atrPct < 0.8:
		scores[Ranging] += 30
	case atrPct <= 2.0:
		scores[Trending] += 30
	default:
		scores[Volatile] += 30
	}

	// Bollinger width as % of price: 30%
	switch {
	case bbwPct < 3.0:
		scores[Ranging] += 30
	case bbwPct <= 7.0:
		scores[Trending] += 30
	default:
		scores[Volatile] += 30
	}

	// Fixed evaluation order keeps ties deterministic
	winner := Ranging
	best := scores[Ranging]
	for _, t := range []Type{Trending, Volatile} {
		if scores[t] > best {
			winner = t
			best = scores[t]
		}
	}

	if best > 100 {
		best = 100
	}

	return &Result{
		Regime:         winner,
		Confidence:     best,
		ADXValue:       adx,
		ATRPercent:     atrPct,
		BBWidthPercent: bbwPct,
	}
}
