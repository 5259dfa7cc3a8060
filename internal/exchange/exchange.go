package exchange

import (
	"context"

	"orderblock-trading-bot/internal/market"
)

// LimitOrderRequest is a resting entry order at a fixed price. ClientOrderID
// is the caller-supplied idempotency key: submitting the same ID twice must
// not create a second order.
type LimitOrderRequest struct {
	Symbol        string
	Side          market.Side
	Price         float64
	Quantity      float64
	ClientOrderID string
}

// ConditionalOrderRequest is a stop or take-profit order that triggers at
// TriggerPrice and closes (part of) an open position.
type ConditionalOrderRequest struct {
	Symbol        string
	Side          market.Side // side of the position being reduced
	TriggerPrice  float64
	Quantity      float64
	ReduceOnly    bool
	ClientOrderID string
}

// OrderPlacer is the exchange surface the live trader depends on. The paper
// implementation backs dry runs; a real venue adapter satisfies the same
// interface.
type OrderPlacer interface {
	PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) error
	PlaceConditionalOrder(ctx context.Context, req ConditionalOrderRequest) error
	CancelOrder(ctx context.Context, symbol, clientOrderID string) error
}
