package market

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadCSV reads candle history from a CSV file with columns
// openTime,open,high,low,close,volume. A header row is skipped when the
// first field is not numeric. Rows must be ordered ascending by openTime;
// out-of-order or malformed rows are a feed contract violation and fail the
// load so bad data never reaches the engine.
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candle file: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	var lastTime int64

	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+1, len(row))
		}

		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			if i == 0 {
				// Header row
				continue
			}
			return nil, fmt.Errorf("row %d: bad openTime %q", i+1, row[0])
		}

		vals := make([]float64, 5)
		for j := 1; j < 6; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q", i+1, row[j])
			}
			vals[j-1] = v
		}

		if openTime <= lastTime {
			return nil, fmt.Errorf("row %d: openTime %d not ascending", i+1, openTime)
		}
		lastTime = openTime

		candles = append(candles, Candle{
			OpenTime: openTime,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}

	return candles, nil
}
