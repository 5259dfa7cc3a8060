package indicators

import (
	"math"

	"orderblock-trading-bot/internal/market"
)

// Window functions below evaluate the indicator for the window ending at the
// last candle of the slice. Callers slice the history (candles[:i+1]) to
// evaluate at a specific bar, which keeps backtest and live evaluation on the
// same code path. Insufficient data returns the neutral value for the
// indicator ("not enough information", never an error).

// CalculateSMA calculates Simple Moving Average of closes
func CalculateSMA(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}

	return sum / float64(period)
}

// emaWindowMult fixes the EMA evaluation tail at a multiple of the period.
// The seed would otherwise depend on how much history the caller kept, and a
// trimmed live window could drift from the backtest's full prefix.
const emaWindowMult = 4

// CalculateEMA calculates Exponential Moving Average of closes over a fixed
// tail of emaWindowMult*period candles, seeded with the SMA of the tail's
// first period closes
func CalculateEMA(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	if tail := period * emaWindowMult; len(candles) > tail {
		candles = candles[len(candles)-tail:]
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += candles[i].Close
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		ema = (candles[i].Close-ema)*multiplier + ema
	}

	return ema
}

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(candles []market.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0

	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateATR calculates Average True Range
func CalculateATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trSum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		trSum += trueRange(candles[i], candles[i-1])
	}

	return trSum / float64(period)
}

// CalculateATRPercent returns ATR as a percentage of the latest close
func CalculateATRPercent(candles []market.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	price := candles[len(candles)-1].Close
	if price == 0 {
		return 0
	}
	return CalculateATR(candles, period) / price * 100
}

func trueRange(c, prev market.Candle) float64 {
	return math.Max(
		c.High-c.Low,
		math.Max(
			math.Abs(c.High-prev.Close),
			math.Abs(c.Low-prev.Close),
		),
	)
}

// CalculateADX calculates the Average Directional Index using Wilder
// smoothing of +DM/-DM and true range. Requires 2*period+1 candles.
func CalculateADX(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2*period+1 {
		return 0
	}

	// Use the most recent 2*period+1 candles
	window := candles[len(candles)-(2*period+1):]

	smoothedTR := 0.0
	smoothedPlusDM := 0.0
	smoothedMinusDM := 0.0

	// Seed with sums over the first period
	for i := 1; i <= period; i++ {
		plusDM, minusDM := directionalMovement(window[i], window[i-1])
		smoothedTR += trueRange(window[i], window[i-1])
		smoothedPlusDM += plusDM
		smoothedMinusDM += minusDM
	}

	dxSum := 0.0
	dxCount := 0

	appendDX := func() {
		if smoothedTR == 0 {
			return
		}
		plusDI := 100 * smoothedPlusDM / smoothedTR
		minusDI := 100 * smoothedMinusDM / smoothedTR
		diSum := plusDI + minusDI
		if diSum == 0 {
			return
		}
		dxSum += 100 * math.Abs(plusDI-minusDI) / diSum
		dxCount++
	}

	appendDX()

	// Wilder smoothing over the second period
	for i := period + 1; i < len(window); i++ {
		plusDM, minusDM := directionalMovement(window[i], window[i-1])
		smoothedTR = smoothedTR - smoothedTR/float64(period) + trueRange(window[i], window[i-1])
		smoothedPlusDM = smoothedPlusDM - smoothedPlusDM/float64(period) + plusDM
		smoothedMinusDM = smoothedMinusDM - smoothedMinusDM/float64(period) + minusDM
		appendDX()
	}

	if dxCount == 0 {
		return 0
	}
	return dxSum / float64(dxCount)
}

func directionalMovement(c, prev market.Candle) (plusDM, minusDM float64) {
	upMove := c.High - prev.High
	downMove := prev.Low - c.Low

	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	return plusDM, minusDM
}

// BollingerBands holds Bollinger Band values
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands over closes
func CalculateBollingerBands(candles []market.Candle, period int, stdDevMult float64) BollingerBands {
	if period <= 0 || len(candles) < period {
		return BollingerBands{}
	}

	middle := CalculateSMA(candles, period)

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + stdDev*stdDevMult,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMult,
	}
}

// CalculateBBWidthPercent returns Bollinger Band width as a percentage of the
// middle band
func CalculateBBWidthPercent(candles []market.Candle, period int, stdDevMult float64) float64 {
	bb := CalculateBollingerBands(candles, period, stdDevMult)
	if bb.Middle == 0 {
		return 0
	}
	return (bb.Upper - bb.Lower) / bb.Middle * 100
}

// CalculateAverageVolume calculates average volume over a period
func CalculateAverageVolume(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// CandleDelta approximates the buy-minus-sell volume of a single candle from
// the close position within the range. Zero-range candles contribute nothing.
func CandleDelta(c market.Candle) float64 {
	r := c.Range()
	if r == 0 {
		return 0
	}
	buyRatio := (c.Close - c.Low) / r
	sellRatio := (c.High - c.Close) / r
	return c.Volume * (buyRatio - sellRatio)
}

// CalculateCVD returns the running cumulative volume delta series over the
// last lookback candles. The series has one entry per candle in the window.
func CalculateCVD(candles []market.Candle, lookback int) []float64 {
	if lookback <= 0 || len(candles) == 0 {
		return nil
	}
	if len(candles) < lookback {
		lookback = len(candles)
	}

	series := make([]float64, 0, lookback)
	running := 0.0
	for i := len(candles) - lookback; i < len(candles); i++ {
		running += CandleDelta(candles[i])
		series = append(series, running)
	}

	return series
}

// CVDTrend returns the change of the cumulative volume delta over the most
// recent bars of the series. Positive means accumulating buy pressure.
func CVDTrend(series []float64, bars int) float64 {
	if bars <= 0 || len(series) < bars+1 {
		return 0
	}
	return series[len(series)-1] - series[len(series)-1-bars]
}
