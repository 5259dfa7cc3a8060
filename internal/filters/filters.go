package filters

import (
	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/indicators"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/regime"
	"orderblock-trading-bot/internal/structure"
)

// Context carries everything a filter may consume: the candle window ending
// at the evaluation bar, the trade direction and the candidate zone. Filters
// are pure over this context.
type Context struct {
	Symbol     string
	Candles    []market.Candle
	Side       market.Side
	ATR        float64
	Price      float64
	ZoneTop    float64
	ZoneBottom float64
}

// Filter is a named boolean predicate over a Context
type Filter struct {
	Name  string
	Check func(*Context) bool
}

// Bank is the configuration-selected set of entry filters combined by AND.
// PreFill holds the subset re-checked immediately before a limit fill
// (volatility and order-flow direction).
type Bank struct {
	filters []Filter
	preFill []Filter
}

// NewBank builds the filter bank from configuration. The regime classifier
// is only consulted when the regime filter is enabled.
func NewBank(cfg config.FiltersConfig, classifier *regime.Classifier) *Bank {
	b := &Bank{}

	if cfg.EnableATRRange {
		f := Filter{Name: "atr_range", Check: func(ctx *Context) bool {
			if ctx.Price == 0 {
				return false
			}
			atrPct := ctx.ATR / ctx.Price * 100
			return atrPct >= cfg.ATRMinPercent && atrPct <= cfg.ATRMaxPercent
		}}
		b.filters = append(b.filters, f)
		b.preFill = append(b.preFill, f)
	}

	if cfg.EnableCVD {
		f := Filter{Name: "cvd_direction", Check: func(ctx *Context) bool {
			series := indicators.CalculateCVD(ctx.Candles, cfg.CVDLookback)
			trend := indicators.CVDTrend(series, cfg.CVDTrendBars)
			if ctx.Side == market.SideLong {
				return trend > 0
			}
			return trend < 0
		}}
		b.filters = append(b.filters, f)
		b.preFill = append(b.preFill, f)
	}

	if cfg.EnableBOS {
		b.filters = append(b.filters, Filter{Name: "break_of_structure", Check: func(ctx *Context) bool {
			return structure.HasBreakOfStructure(ctx.Candles, ctx.Side, cfg.StructureLookback, cfg.SwingStrength)
		}})
	}

	if cfg.EnableLiquiditySweep {
		b.filters = append(b.filters, Filter{Name: "liquidity_sweep", Check: func(ctx *Context) bool {
			return structure.HasLiquiditySweep(ctx.Candles, ctx.Side, cfg.StructureLookback, cfg.SwingStrength, cfg.SweepRecentBars)
		}})
	}

	if cfg.EnableEMAAlignment {
		b.filters = append(b.filters, Filter{Name: "ema_alignment", Check: func(ctx *Context) bool {
			fast := indicators.CalculateEMA(ctx.Candles, cfg.EMAFastPeriod)
			medium := indicators.CalculateEMA(ctx.Candles, cfg.EMAMediumPeriod)
			slow := indicators.CalculateEMA(ctx.Candles, cfg.EMASlowPeriod)
			if fast == 0 || medium == 0 || slow == 0 {
				return false
			}
			if ctx.Side == market.SideLong {
				return fast > medium && medium > slow
			}
			return fast < medium && medium < slow
		}})
	}

	if cfg.EnableFVG {
		b.filters = append(b.filters, Filter{Name: "fvg_confluence", Check: func(ctx *Context) bool {
			return structure.HasConfluentFVG(ctx.Candles, ctx.Side, cfg.FVGMinGapPercent, ctx.ZoneTop, ctx.ZoneBottom, cfg.FVGRecentBars)
		}})
	}

	if cfg.EnableADX {
		b.filters = append(b.filters, Filter{Name: "adx_strength", Check: func(ctx *Context) bool {
			return indicators.CalculateADX(ctx.Candles, cfg.ADXPeriod) >= cfg.ADXMin
		}})
	}

	if cfg.EnableRSI {
		b.filters = append(b.filters, Filter{Name: "rsi_level", Check: func(ctx *Context) bool {
			rsi := indicators.CalculateRSI(ctx.Candles, cfg.RSIPeriod)
			if cfg.RSIContrarian {
				// Contrarian mode requires the extreme reading
				if ctx.Side == market.SideLong {
					return rsi <= cfg.RSIOversold
				}
				return rsi >= cfg.RSIOverbought
			}
			if ctx.Side == market.SideLong {
				return rsi < cfg.RSIOverbought
			}
			return rsi > cfg.RSIOversold
		}})
	}

	if cfg.EnableRegime && classifier != nil {
		b.filters = append(b.filters, Filter{Name: "regime_suitability", Check: func(ctx *Context) bool {
			result := classifier.Classify(ctx.Symbol, ctx.Candles)
			if result.Confidence < cfg.RegimeMinConfidence {
				return false
			}
			if cfg.RegimeRequired == "" {
				return true
			}
			return string(result.Regime) == cfg.RegimeRequired
		}})
	}

	return b
}

// Evaluate AND-composes the enabled filters, short-circuiting on the first
// failure. It returns the failing filter's name as the rejection reason and
// the fraction of filters passed as a 0-100 score.
func (b *Bank) Evaluate(ctx *Context) (bool, string, float64) {
	if len(b.filters) == 0 {
		return true, "", 100
	}

	passed := 0
	for _, f := range b.filters {
		if !f.Check(ctx) {
			return false, f.Name, float64(passed) / float64(len(b.filters)) * 100
		}
		passed++
	}

	return true, "", 100
}

// PreFill re-evaluates the volatility and order-flow filters immediately
// before a limit fill.
func (b *Bank) PreFill(ctx *Context) (bool, string) {
	for _, f := range b.preFill {
		if !f.Check(ctx) {
			return false, f.Name
		}
	}
	return true, ""
}

// Size returns the number of enabled filters
func (b *Bank) Size() int {
	return len(b.filters)
}
