package market

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, strings.Join([]string{
		"openTime,open,high,low,close,volume",
		"60000,100,101,99,100.5,10",
		"120000,100.5,102,100,101.5,12",
	}, "\n"))

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if candles[0].OpenTime != 60000 || candles[0].High != 101 || candles[1].Close != 101.5 {
		t.Errorf("parsed candles wrong: %+v", candles)
	}
}

func TestLoadCSVWithoutHeader(t *testing.T) {
	path := writeCSV(t, "60000,100,101,99,100.5,10\n120000,100.5,102,100,101.5,12\n")

	candles, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
}

func TestLoadCSVRejectsOutOfOrderRows(t *testing.T) {
	path := writeCSV(t, "120000,100,101,99,100.5,10\n60000,100.5,102,100,101.5,12\n")

	if _, err := LoadCSV(path); err == nil {
		t.Error("descending timestamps must fail the load")
	}
}

func TestLoadCSVRejectsShortRows(t *testing.T) {
	path := writeCSV(t, "60000,100,101,99,100.5\n")

	if _, err := LoadCSV(path); err == nil {
		t.Error("five columns must fail the load")
	}
}

func TestLoadCSVRejectsBadValues(t *testing.T) {
	path := writeCSV(t, "60000,100,101,99,100.5,10\n120000,abc,102,100,101.5,12\n")

	if _, err := LoadCSV(path); err == nil {
		t.Error("non-numeric value must fail the load")
	}
}

func TestCandleHelpers(t *testing.T) {
	c := Candle{Open: 100, High: 103.5, Low: 100, Close: 103}

	if c.Range() != 3.5 {
		t.Errorf("Range = %v, want 3.5", c.Range())
	}
	if c.Body() != 3 {
		t.Errorf("Body = %v, want 3", c.Body())
	}
	if !c.Bullish() || c.Bearish() {
		t.Error("close above open must read bullish")
	}
	if !c.Touches(101.5) || c.Touches(99.9) {
		t.Error("Touches must check the low..high span")
	}

	doji := Candle{Open: 100, High: 100, Low: 100, Close: 100}
	if doji.BodyRatio() != 0 {
		t.Errorf("zero-range body ratio = %v, want 0", doji.BodyRatio())
	}

	if SideLong.Opposite() != SideShort || SideShort.Opposite() != SideLong {
		t.Error("Opposite must flip the side")
	}
}
