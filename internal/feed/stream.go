package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/market"
)

// Kline is one closed candle for one symbol as delivered by the stream
type Kline struct {
	Symbol string
	Candle market.Candle
}

// combinedMessage is the envelope of the Binance combined stream
type combinedMessage struct {
	Stream string       `json:"stream"`
	Data   klineMessage `json:"data"`
}

type klineMessage struct {
	EventType string       `json:"e"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// Stream consumes the Binance futures combined kline stream and forwards
// only closed candles. Mid-candle updates never reach the engine, so live
// decisions line up with backtest decisions over the same candles.
type Stream struct {
	cfg      config.FeedConfig
	symbols  []string
	interval string
	out      chan Kline
	logger   zerolog.Logger
}

// NewStream creates a stream for the given symbols and kline interval
func NewStream(cfg config.FeedConfig, symbols []string, interval string, logger zerolog.Logger) *Stream {
	return &Stream{
		cfg:      cfg,
		symbols:  symbols,
		interval: interval,
		out:      make(chan Kline, 64),
		logger:   logger,
	}
}

// Candles returns the closed-candle channel. It is closed when Run returns.
func (s *Stream) Candles() <-chan Kline {
	return s.out
}

// Run connects and pumps candles until the context is cancelled or the
// reconnect budget is exhausted.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.out)

	url := s.streamURL()
	delay := time.Duration(s.cfg.ReconnectDelaySecs) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		err := s.consume(ctx, url)
		if err == nil {
			return nil
		}

		attempts++
		if s.cfg.MaxReconnects > 0 && attempts > s.cfg.MaxReconnects {
			return fmt.Errorf("stream gave up after %d reconnects: %w", attempts-1, err)
		}

		s.logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("retry_in", delay).
			Msg("stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// consume runs one websocket session. A nil return means the context ended.
func (s *Stream) consume(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	s.logger.Info().
		Str("url", url).
		Int("symbols", len(s.symbols)).
		Msg("stream connected")

	// Unblock ReadMessage on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg combinedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("unparseable stream message")
			continue
		}
		if msg.Data.EventType != "kline" || !msg.Data.Kline.Closed {
			continue
		}

		candle, err := msg.Data.Kline.toCandle()
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", msg.Data.Symbol).Msg("bad kline payload")
			continue
		}

		select {
		case s.out <- Kline{Symbol: msg.Data.Symbol, Candle: candle}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Stream) streamURL() string {
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.interval))
	}
	base := s.cfg.StreamURL
	if base == "" {
		base = "wss://fstream.binance.com/stream"
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

func (k klinePayload) toCandle() (market.Candle, error) {
	var c market.Candle
	var err error

	c.OpenTime = k.OpenTime
	if c.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
		return c, fmt.Errorf("open: %w", err)
	}
	if c.High, err = strconv.ParseFloat(k.High, 64); err != nil {
		return c, fmt.Errorf("high: %w", err)
	}
	if c.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
		return c, fmt.Errorf("low: %w", err)
	}
	if c.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
		return c, fmt.Errorf("close: %w", err)
	}
	if c.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
		return c, fmt.Errorf("volume: %w", err)
	}
	return c, nil
}
