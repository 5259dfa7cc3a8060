package events

import (
	"testing"
	"time"

	"orderblock-trading-bot/internal/strategy"
)

func TestBusDeliversToTypeAndAllSubscribers(t *testing.T) {
	bus := NewBus()
	got := make(chan strategy.Event, 4)

	bus.Subscribe(strategy.EventBlockDetected, func(e strategy.Event) { got <- e })
	bus.SubscribeAll(func(e strategy.Event) { got <- e })

	bus.Publish(strategy.Event{Type: strategy.EventBlockDetected, Symbol: "BTCUSDT"})

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			if e.Symbol != "BTCUSDT" {
				t.Errorf("event = %+v, want BTCUSDT", e)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestBusSkipsUnmatchedTypes(t *testing.T) {
	bus := NewBus()
	typed := make(chan strategy.Event, 1)
	all := make(chan strategy.Event, 1)

	bus.Subscribe(strategy.EventBlockDetected, func(e strategy.Event) { typed <- e })
	bus.SubscribeAll(func(e strategy.Event) { all <- e })

	bus.Publish(strategy.Event{Type: strategy.EventOrderFilled, Symbol: "ETHUSDT"})

	select {
	case e := <-all:
		if e.Type != strategy.EventOrderFilled {
			t.Errorf("all-subscriber got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("all-subscriber never fired")
	}

	select {
	case e := <-typed:
		t.Fatalf("typed subscriber got unrelated event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
