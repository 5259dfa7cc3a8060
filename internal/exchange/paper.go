package exchange

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// PaperExchange accepts every order without touching a venue. It remembers
// client order IDs so duplicate submissions are absorbed, which is what makes
// retries from the trader idempotent.
type PaperExchange struct {
	mu     sync.Mutex
	orders map[string]struct{}
	logger zerolog.Logger
}

// NewPaperExchange creates an empty paper exchange
func NewPaperExchange(logger zerolog.Logger) *PaperExchange {
	return &PaperExchange{
		orders: make(map[string]struct{}),
		logger: logger,
	}
}

// PlaceLimitOrder records the order; a repeated client order ID is a no-op
func (p *PaperExchange) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, seen := p.orders[req.ClientOrderID]; seen {
		p.logger.Debug().
			Str("symbol", req.Symbol).
			Str("client_order_id", req.ClientOrderID).
			Msg("duplicate limit order ignored")
		return nil
	}
	p.orders[req.ClientOrderID] = struct{}{}

	p.logger.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("price", req.Price).
		Float64("quantity", req.Quantity).
		Msg("paper limit order placed")
	return nil
}

// PlaceConditionalOrder records a stop or take-profit order
func (p *PaperExchange) PlaceConditionalOrder(ctx context.Context, req ConditionalOrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, seen := p.orders[req.ClientOrderID]; seen {
		return nil
	}
	p.orders[req.ClientOrderID] = struct{}{}

	p.logger.Info().
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("trigger_price", req.TriggerPrice).
		Float64("quantity", req.Quantity).
		Bool("reduce_only", req.ReduceOnly).
		Msg("paper conditional order placed")
	return nil
}

// CancelOrder forgets a recorded order; cancelling an unknown ID is a no-op
func (p *PaperExchange) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.orders, clientOrderID)
	p.logger.Info().
		Str("symbol", symbol).
		Str("client_order_id", clientOrderID).
		Msg("paper order cancelled")
	return nil
}

// OrderCount returns the number of live recorded orders
func (p *PaperExchange) OrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}
