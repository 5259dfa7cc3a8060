package exchange

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"orderblock-trading-bot/internal/market"
)

func TestPaperExchangeIdempotency(t *testing.T) {
	p := NewPaperExchange(zerolog.Nop())
	ctx := context.Background()

	req := LimitOrderRequest{
		Symbol:        "BTCUSDT",
		Side:          market.SideLong,
		Price:         101.5,
		Quantity:      1,
		ClientOrderID: "order-1",
	}

	if err := p.PlaceLimitOrder(ctx, req); err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	if err := p.PlaceLimitOrder(ctx, req); err != nil {
		t.Fatalf("duplicate placement must be absorbed, got %v", err)
	}
	if p.OrderCount() != 1 {
		t.Errorf("order count = %d, want 1 after duplicate submit", p.OrderCount())
	}
}

func TestPaperExchangeCancel(t *testing.T) {
	p := NewPaperExchange(zerolog.Nop())
	ctx := context.Background()

	if err := p.PlaceConditionalOrder(ctx, ConditionalOrderRequest{
		Symbol:        "BTCUSDT",
		Side:          market.SideLong,
		TriggerPrice:  99.5,
		Quantity:      1,
		ReduceOnly:    true,
		ClientOrderID: "stop-1",
	}); err != nil {
		t.Fatalf("conditional placement failed: %v", err)
	}

	if err := p.CancelOrder(ctx, "BTCUSDT", "stop-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if p.OrderCount() != 0 {
		t.Errorf("order count = %d, want 0 after cancel", p.OrderCount())
	}

	// Cancelling an unknown ID is a no-op
	if err := p.CancelOrder(ctx, "BTCUSDT", "missing"); err != nil {
		t.Errorf("unknown cancel should not error, got %v", err)
	}
}

func TestPaperExchangeHonorsContext(t *testing.T) {
	p := NewPaperExchange(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PlaceLimitOrder(ctx, LimitOrderRequest{ClientOrderID: "x"})
	if err == nil {
		t.Error("cancelled context should fail the placement")
	}
}
