package regime

import (
	"testing"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/market"
)

func testConfig() config.RegimeConfig {
	return config.RegimeConfig{
		ADXPeriod:       3,
		ATRPeriod:       3,
		BBPeriod:        5,
		BBStdDev:        2,
		CacheTTLMinutes: 15,
	}
}

// quietCandles produces a tight flat range: low ADX, low ATR%, narrow bands
func quietCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 60000,
			Open:     100,
			High:     100.1,
			Low:      99.9,
			Close:    100,
			Volume:   10,
		}
	}
	return candles
}

// wildCandles produces violent expansion: every metric lands in the volatile
// bucket
func wildCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	price := 100.0
	for i := range candles {
		move := 8.0
		if i%2 == 1 {
			move = -8.0
		}
		open := price
		price += move
		high := open
		low := price
		if move > 0 {
			high, low = price, open
		}
		candles[i] = market.Candle{
			OpenTime: int64(i) * 60000,
			Open:     open,
			High:     high + 1,
			Low:      low - 1,
			Close:    price,
			Volume:   10,
		}
	}
	return candles
}

func TestClassifyRanging(t *testing.T) {
	c := NewClassifier(testConfig(), NewMemoryCache())

	result := c.Classify("BTCUSDT", quietCandles(20))
	if result.Regime != Ranging {
		t.Errorf("quiet market classified as %s, want RANGING", result.Regime)
	}
	if result.Confidence != 100 {
		t.Errorf("confidence = %v, want 100 when every bucket agrees", result.Confidence)
	}
}

func TestClassifyVolatile(t *testing.T) {
	c := NewClassifier(testConfig(), NewMemoryCache())

	result := c.Classify("BTCUSDT", wildCandles(20))
	if result.ATRPercent <= 2.0 {
		t.Fatalf("fixture too tame: ATRPercent = %v", result.ATRPercent)
	}
	if result.Regime != Volatile {
		t.Errorf("violent market classified as %s (conf %v), want VOLATILE", result.Regime, result.Confidence)
	}
}

func TestClassifyCacheTTLUsesCandleTime(t *testing.T) {
	c := NewClassifier(testConfig(), NewMemoryCache())
	candles := quietCandles(20)

	first := c.Classify("BTCUSDT", candles)

	// 5 candle-minutes later: still inside the 15 minute TTL
	within := append(append([]market.Candle{}, candles...), market.Candle{
		OpenTime: candles[len(candles)-1].OpenTime + 5*60000,
		Open:     100, High: 100.1, Low: 99.9, Close: 100, Volume: 10,
	})
	cached := c.Classify("BTCUSDT", within)
	if cached.ComputedAt != first.ComputedAt {
		t.Error("classification inside the TTL should come from the cache")
	}

	// 20 candle-minutes later: stale, must recompute
	beyond := append(append([]market.Candle{}, candles...), market.Candle{
		OpenTime: candles[len(candles)-1].OpenTime + 20*60000,
		Open:     100, High: 100.1, Low: 99.9, Close: 100, Volume: 10,
	})
	fresh := c.Classify("BTCUSDT", beyond)
	if fresh.ComputedAt == first.ComputedAt {
		t.Error("classification past the TTL should be recomputed")
	}
}

func TestClassifyCacheIsPerSymbol(t *testing.T) {
	c := NewClassifier(testConfig(), NewMemoryCache())
	quiet := quietCandles(20)
	wild := wildCandles(20)

	a := c.Classify("BTCUSDT", quiet)
	b := c.Classify("ETHUSDT", wild)

	if a.Regime == b.Regime {
		t.Error("symbols must not share cache entries")
	}
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()

	if _, ok := cache.Get("BTCUSDT"); ok {
		t.Error("empty cache should miss")
	}

	want := &Result{Regime: Trending, Confidence: 70, ComputedAt: 123}
	cache.Set("BTCUSDT", want)

	got, ok := cache.Get("BTCUSDT")
	if !ok || got.Regime != Trending || got.ComputedAt != 123 {
		t.Errorf("Get = %+v ok=%v, want stored result", got, ok)
	}

	cache.Clear()
	if _, ok := cache.Get("BTCUSDT"); ok {
		t.Error("cache should be empty after Clear")
	}
}
