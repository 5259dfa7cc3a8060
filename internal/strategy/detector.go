package strategy

import (
	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/market"
)

// Rejection reasons attached to discarded candidates
const (
	RejectTooSmall        = "ob_too_small"
	RejectTrendDistance   = "too_close_to_trend_sma"
	RejectTrendSlope      = "trend_slope_opposed"
	RejectTrendSustain    = "trend_not_sustained"
	RejectFailedRetest    = "failed_ob_retest"
	RejectActiveBlockKept = "active_block_kept"
)

// Detector evaluates each new candle against the opening-range-breakout
// thresholds and applies the new-block rejection filters.
type Detector struct {
	cfg    *config.StrategyConfig
	memory *FailedOBMemory
}

// NewDetector creates a detector sharing the symbol's failed-block memory
func NewDetector(cfg *config.StrategyConfig, memory *FailedOBMemory) *Detector {
	return &Detector{cfg: cfg, memory: memory}
}

// Detect evaluates the candle at the end of the window. It returns a
// candidate Order Block, or nil with a rejection reason when a breakout was
// found but filtered out. Both nil and empty reason means no breakout (or
// not enough information) — that candle is simply skipped.
func (d *Detector) Detect(candles []market.Candle, bar int, snap Snapshot) (*OrderBlock, string) {
	if len(candles) == 0 || !snap.Ready() {
		return nil, ""
	}

	c := candles[len(candles)-1]
	if c.Range() == 0 || snap.VolumeAvg == 0 {
		return nil, ""
	}

	volRatio := c.Volume / snap.VolumeAvg

	breakout := c.Range() > snap.ATR*d.cfg.ORBAtrMult &&
		volRatio > d.cfg.ORBVolMult &&
		c.BodyRatio() > d.cfg.MinBodyRatio

	if !breakout {
		return nil, ""
	}

	var side market.Side
	switch {
	case c.Bullish() && c.Close > snap.TrendSMA:
		side = market.SideLong
	case c.Bearish() && c.Close < snap.TrendSMA:
		side = market.SideShort
	default:
		return nil, ""
	}

	ob := &OrderBlock{
		Side:        side,
		Method:      MethodORB,
		DetectedBar: bar,
		VolumeRatio: volRatio,
	}
	if c.Close >= c.Open {
		ob.Top, ob.Bottom = c.Close, c.Open
	} else {
		ob.Top, ob.Bottom = c.Open, c.Close
	}

	if reason := d.rejectCandidate(candles, c, ob, snap, bar); reason != "" {
		return nil, reason
	}

	return ob, ""
}

// rejectCandidate applies the size, trend and failed-block filters to a
// newly-detected candidate. An already-active block is never re-filtered.
func (d *Detector) rejectCandidate(candles []market.Candle, c market.Candle, ob *OrderBlock, snap Snapshot, bar int) string {
	if ob.Size() < snap.ATR*d.cfg.MinSizeATRMult {
		return RejectTooSmall
	}

	// Trend filter: demand real distance from the long SMA, a slope that
	// agrees with the block direction, and a sustained stay on the right
	// side of the SMA rather than a single spike.
	distPct := (c.Close - snap.TrendSMA) / snap.TrendSMA * 100
	if ob.Side == market.SideShort {
		distPct = -distPct
	}
	if distPct < d.cfg.MinTrendDistancePercent {
		return RejectTrendDistance
	}

	slope := snap.TrendSMA - snap.TrendSMAPast
	if ob.Side == market.SideLong && slope < 0 {
		return RejectTrendSlope
	}
	if ob.Side == market.SideShort && slope > 0 {
		return RejectTrendSlope
	}

	sideBars := d.cfg.TrendSideBars
	if len(candles) < sideBars {
		sideBars = len(candles)
	}
	onSide := 0
	for i := len(candles) - sideBars; i < len(candles); i++ {
		if ob.Side == market.SideLong && candles[i].Close > snap.TrendSMA {
			onSide++
		}
		if ob.Side == market.SideShort && candles[i].Close < snap.TrendSMA {
			onSide++
		}
	}
	if onSide < d.cfg.TrendSideMinBars {
		return RejectTrendSustain
	}

	if d.memory.Rejects(ob.Midpoint(), ob.Size()/2, bar) {
		return RejectFailedRetest
	}

	return ""
}
