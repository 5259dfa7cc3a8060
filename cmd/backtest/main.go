package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/engine"
	"orderblock-trading-bot/internal/logging"
	"orderblock-trading-bot/internal/market"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to JSON config file (optional)")
	csvPath := flag.String("csv", "", "path to OHLCV CSV file (required)")
	symbol := flag.String("symbol", "BTCUSDT", "symbol label for the report")
	tradesOut := flag.String("trades", "", "optional path to write the trade list as JSON")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -csv <file> [-config <file>] [-symbol <name>] [-trades <file>]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)

	candles, err := market.LoadCSV(*csvPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *csvPath).Msg("load candles failed")
	}
	logger.Info().Int("candles", len(candles)).Str("symbol", *symbol).Msg("candles loaded")

	bt := engine.NewBacktester(cfg, logging.Component(logger, "backtest"))
	summary, err := bt.Run(*symbol, candles)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	printReport(summary)

	if *tradesOut != "" {
		data, err := json.MarshalIndent(summary.Trades, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("encode trades failed")
		}
		if err := os.WriteFile(*tradesOut, data, 0644); err != nil {
			logger.Fatal().Err(err).Msg("write trades failed")
		}
		logger.Info().Str("path", *tradesOut).Int("trades", len(summary.Trades)).Msg("trade list written")
	}
}

func printReport(s *engine.Summary) {
	fmt.Println()
	fmt.Println("=== Backtest Report ===")
	fmt.Printf("Symbol:          %s\n", s.Symbol)
	fmt.Printf("Candles tested:  %d\n", s.CandlesTested)
	fmt.Printf("Total trades:    %d\n", s.TotalTrades)
	fmt.Printf("Wins / Losses:   %d / %d\n", s.Wins, s.Losses)
	fmt.Printf("Win rate:        %.2f%%\n", s.WinRate)
	fmt.Printf("Total PnL:       %.2f\n", s.TotalPnl)
	fmt.Printf("Total fees:      %.2f\n", s.TotalFees)
	fmt.Printf("Total return:    %.2f%%\n", s.TotalReturn)
	fmt.Printf("Max drawdown:    %.2f%%\n", s.MaxDrawdown)
	fmt.Printf("Capital:         %.2f -> %.2f\n", s.InitialCapital, s.FinalCapital)
	fmt.Println()
}
