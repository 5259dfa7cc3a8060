package market

import "time"

// Side represents a trade direction
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Candle represents a single OHLCV candle.
// OpenTime is in milliseconds since epoch, ascending and unique per symbol.
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the candle open time as time.Time
func (c Candle) Time() time.Time {
	return time.Unix(c.OpenTime/1000, (c.OpenTime%1000)*int64(time.Millisecond))
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute body size
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// BodyRatio returns body size relative to range, 0 when the range is zero
func (c Candle) BodyRatio() float64 {
	r := c.Range()
	if r == 0 {
		return 0
	}
	return c.Body() / r
}

// Bullish reports whether the candle closed above its open
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// Touches reports whether price traded through the given level intrabar
func (c Candle) Touches(price float64) bool {
	return c.Low <= price && price <= c.High
}
