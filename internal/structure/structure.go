package structure

import (
	"orderblock-trading-bot/internal/market"
)

// SwingPoint is a confirmed local price extreme
type SwingPoint struct {
	Index int
	Price float64
}

// FindSwingHighs returns confirmed swing highs: bars whose high exceeds the
// highs of the surrounding strength bars on both sides. The last strength
// bars can never confirm a swing.
func FindSwingHighs(candles []market.Candle, strength int) []SwingPoint {
	if strength <= 0 || len(candles) < 2*strength+1 {
		return nil
	}

	var swings []SwingPoint
	for i := strength; i < len(candles)-strength; i++ {
		isSwing := true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Index: i, Price: candles[i].High})
		}
	}

	return swings
}

// FindSwingLows returns confirmed swing lows, mirroring FindSwingHighs
func FindSwingLows(candles []market.Candle, strength int) []SwingPoint {
	if strength <= 0 || len(candles) < 2*strength+1 {
		return nil
	}

	var swings []SwingPoint
	for i := strength; i < len(candles)-strength; i++ {
		isSwing := true
		for j := i - strength; j <= i+strength; j++ {
			if j == i {
				continue
			}
			if candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{Index: i, Price: candles[i].Low})
		}
	}

	return swings
}

// HasBreakOfStructure reports whether, within the lookback window, price has
// closed beyond the most recent confirmed swing extreme at least once after
// that swing formed. LONG checks closes above the latest swing high, SHORT
// checks closes below the latest swing low.
func HasBreakOfStructure(candles []market.Candle, side market.Side, lookback, strength int) bool {
	if len(candles) < lookback {
		lookback = len(candles)
	}
	window := candles[len(candles)-lookback:]

	var swings []SwingPoint
	if side == market.SideLong {
		swings = FindSwingHighs(window, strength)
	} else {
		swings = FindSwingLows(window, strength)
	}
	if len(swings) == 0 {
		return false
	}

	swing := swings[len(swings)-1]
	// Swing is confirmed strength bars after its extreme
	for i := swing.Index + strength; i < len(window); i++ {
		if side == market.SideLong && window[i].Close > swing.Price {
			return true
		}
		if side == market.SideShort && window[i].Close < swing.Price {
			return true
		}
	}

	return false
}

// HasLiquiditySweep reports whether a recent candle wicked through the
// nearest prior swing extreme and closed back on the correct side of it.
// For LONG a wick below a prior swing low closing back above it, for SHORT
// a wick above a prior swing high closing back below it.
func HasLiquiditySweep(candles []market.Candle, side market.Side, lookback, strength, recentBars int) bool {
	if len(candles) < lookback {
		lookback = len(candles)
	}
	window := candles[len(candles)-lookback:]

	if recentBars <= 0 || recentBars > len(window) {
		recentBars = len(window)
	}

	var swings []SwingPoint
	if side == market.SideLong {
		swings = FindSwingLows(window, strength)
	} else {
		swings = FindSwingHighs(window, strength)
	}

	for i := len(window) - recentBars; i < len(window); i++ {
		c := window[i]
		for _, swing := range swings {
			if swing.Index+strength > i {
				continue // swing not confirmed yet at bar i
			}
			if side == market.SideLong && c.Low < swing.Price && c.Close > swing.Price {
				return true
			}
			if side == market.SideShort && c.High > swing.Price && c.Close < swing.Price {
				return true
			}
		}
	}

	return false
}

// FVG is a three-candle fair value gap
type FVG struct {
	Side   market.Side
	Top    float64
	Bottom float64
	Index  int // index of the middle candle within the scanned slice
}

// FindFVGs identifies fair value gaps: a bullish gap when candle i's high
// sits below candle i+2's low, bearish when candle i's low sits above candle
// i+2's high, and the gap exceeds minGapPercent of price.
func FindFVGs(candles []market.Candle, minGapPercent float64) []FVG {
	if len(candles) < 3 {
		return nil
	}

	var fvgs []FVG
	for i := 0; i < len(candles)-2; i++ {
		c1 := candles[i]
		c3 := candles[i+2]

		if c1.High < c3.Low && c1.High > 0 {
			gapPct := (c3.Low - c1.High) / c1.High * 100
			if gapPct >= minGapPercent {
				fvgs = append(fvgs, FVG{Side: market.SideLong, Top: c3.Low, Bottom: c1.High, Index: i + 1})
			}
		}

		if c1.Low > c3.High && c3.High > 0 {
			gapPct := (c1.Low - c3.High) / c3.High * 100
			if gapPct >= minGapPercent {
				fvgs = append(fvgs, FVG{Side: market.SideShort, Top: c1.Low, Bottom: c3.High, Index: i + 1})
			}
		}
	}

	return fvgs
}

// HasConfluentFVG reports whether a recent fair value gap in the trade
// direction geometrically overlaps the [zoneBottom, zoneTop] price zone.
func HasConfluentFVG(candles []market.Candle, side market.Side, minGapPercent float64, zoneTop, zoneBottom float64, recentBars int) bool {
	if len(candles) < recentBars {
		recentBars = len(candles)
	}
	window := candles[len(candles)-recentBars:]

	for _, fvg := range FindFVGs(window, minGapPercent) {
		if fvg.Side != side {
			continue
		}
		if fvg.Bottom <= zoneTop && fvg.Top >= zoneBottom {
			return true
		}
	}

	return false
}
