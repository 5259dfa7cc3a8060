package strategy

import (
	"math"
	"testing"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/risk"
)

func newTestLifecycle(gate EntryGate) (*Lifecycle, *risk.Manager) {
	cfg := config.DefaultConfig()
	strat := cfg.StrategyConfig
	riskMgr := risk.NewManager(cfg.RiskConfig)
	bank := filters.NewBank(config.FiltersConfig{}, nil)
	l := NewLifecycle("BTCUSDT", &strat, cfg.FeesConfig, bank, riskMgr, func() float64 { return 10000 }, gate)
	return l, riskMgr
}

// drive appends the candle to the history and steps the lifecycle once
func drive(l *Lifecycle, history *[]market.Candle, c market.Candle, snap Snapshot) StepResult {
	*history = append(*history, c)
	return l.Step(*history, len(*history)-1, snap)
}

func nextTime(history []market.Candle) int64 {
	return int64(len(history)) * 60000
}

func hasEvent(res StepResult, t EventType) bool {
	for _, e := range res.Events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func eventReason(res StepResult, t EventType) string {
	for _, e := range res.Events {
		if e.Type == t {
			return e.Reason
		}
	}
	return ""
}

func assertSingleFlight(t *testing.T, l *Lifecycle) {
	t.Helper()
	count := 0
	if l.Block() != nil {
		count++
	}
	if l.Order() != nil {
		count++
	}
	if l.Position() != nil {
		count++
	}
	if count > 1 {
		t.Fatalf("single-flight violated: block=%v order=%v position=%v",
			l.Block() != nil, l.Order() != nil, l.Position() != nil)
	}
	switch l.Phase() {
	case PhaseIdle:
		if count != 0 {
			t.Fatalf("IDLE with live state")
		}
	case PhaseBlockActive:
		if l.Block() == nil {
			t.Fatalf("BLOCK_ACTIVE without a block")
		}
	case PhaseOrderPending:
		if l.Order() == nil {
			t.Fatalf("ORDER_PENDING without an order")
		}
	case PhasePositionOpen:
		if l.Position() == nil {
			t.Fatalf("POSITION_OPEN without a position")
		}
	}
}

func moveAwayCandle(openTime int64) market.Candle {
	// Closes beyond midpoint 101.5 + 0.75 * size 3 = 103.75 without touching
	// the midpoint
	return market.Candle{OpenTime: openTime, Open: 103, High: 104.3, Low: 102.9, Close: 104, Volume: 100}
}

func retestCandle(openTime int64) market.Candle {
	// Dips to the midpoint and closes bullish
	return market.Candle{OpenTime: openTime, Open: 101.2, High: 102.5, Low: 101.0, Close: 102.2, Volume: 100}
}

func TestLifecycleFullCycleToTP2(t *testing.T) {
	l, riskMgr := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	// Breakout: block detected
	res := drive(l, &history, bullishBreakout(nextTime(history)), snap)
	if !hasEvent(res, EventBlockDetected) {
		t.Fatalf("no OB_DETECTED, events: %+v", res.Events)
	}
	if l.Phase() != PhaseBlockActive {
		t.Fatalf("phase = %s, want BLOCK_ACTIVE", l.Phase())
	}
	assertSingleFlight(t, l)

	// Price moves away: limit placed at the midpoint
	res = drive(l, &history, moveAwayCandle(nextTime(history)), snap)
	if !hasEvent(res, EventBlockMovedAway) || !hasEvent(res, EventOrderPlaced) {
		t.Fatalf("expected move-away and limit placement, events: %+v", res.Events)
	}
	if l.Phase() != PhaseOrderPending {
		t.Fatalf("phase = %s, want ORDER_PENDING", l.Phase())
	}
	if l.Order().Price != 101.5 {
		t.Errorf("limit price = %v, want midpoint 101.5", l.Order().Price)
	}
	assertSingleFlight(t, l)

	// Retest with a bullish reversal candle: fill
	res = drive(l, &history, retestCandle(nextTime(history)), snap)
	if !hasEvent(res, EventOrderFilled) {
		t.Fatalf("no LIMIT_FILLED, events: %+v", res.Events)
	}
	if l.Phase() != PhasePositionOpen {
		t.Fatalf("phase = %s, want POSITION_OPEN", l.Phase())
	}
	assertSingleFlight(t, l)

	pos := l.Position()
	wantEntry := 101.5 * 1.0002 // maker slippage on the limit price
	if math.Abs(pos.Entry-wantEntry) > 1e-9 {
		t.Errorf("entry = %v, want %v", pos.Entry, wantEntry)
	}
	if pos.StopLoss != 99.5 {
		t.Errorf("stop = %v, want block bottom with buffer 99.5", pos.StopLoss)
	}
	riskDist := pos.Entry - pos.StopLoss
	if math.Abs(pos.TakeProfit1-(pos.Entry+riskDist)) > 1e-9 {
		t.Errorf("TP1 = %v, want entry + 1R", pos.TakeProfit1)
	}
	if math.Abs(pos.TakeProfit2-(pos.Entry+2*riskDist)) > 1e-9 {
		t.Errorf("TP2 = %v, want entry + 2R", pos.TakeProfit2)
	}
	totalQty := pos.Quantity

	// TP1: partial exit, stop to breakeven
	res = drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 102.5, High: 103.8, Low: 102.3, Close: 103.6, Volume: 100}, snap)
	if !hasEvent(res, EventPartialExit) {
		t.Fatalf("no PARTIAL_EXIT, events: %+v", res.Events)
	}
	if len(res.Trades) != 1 || !res.Trades[0].Partial {
		t.Fatalf("trades = %+v, want one partial", res.Trades)
	}
	if res.Trades[0].Pnl <= 0 {
		t.Errorf("TP1 partial pnl = %v, want > 0", res.Trades[0].Pnl)
	}
	pos = l.Position()
	if pos.StopLoss != pos.Entry {
		t.Errorf("stop = %v, want exact breakeven %v", pos.StopLoss, pos.Entry)
	}
	if math.Abs(pos.RemainingSize-0.2) > 1e-9 {
		t.Errorf("remaining size = %v, want 0.2", pos.RemainingSize)
	}
	partialQty := res.Trades[0].Quantity
	assertSingleFlight(t, l)

	// TP2: runner closes, position resolves as a win
	res = drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 104.5, High: 105.8, Low: 104.2, Close: 105.6, Volume: 100}, snap)
	if !hasEvent(res, EventPositionClosed) {
		t.Fatalf("no POSITION_CLOSED, events: %+v", res.Events)
	}
	if len(res.Trades) != 1 || res.Trades[0].Partial {
		t.Fatalf("trades = %+v, want one full exit", res.Trades)
	}
	final := res.Trades[0]
	if !final.IsWin || final.ExitReason != ExitTakeProfit2 {
		t.Errorf("final trade = %+v, want TP2 win", final)
	}
	if math.Abs(partialQty+final.Quantity-totalQty) > 1e-9 {
		t.Errorf("quantity split %v + %v != total %v", partialQty, final.Quantity, totalQty)
	}
	if l.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want IDLE", l.Phase())
	}
	assertSingleFlight(t, l)

	if s := riskMgr.State(); s.ConsecutiveWins != 1 || s.ConsecutiveLosses != 0 {
		t.Errorf("risk state = %+v, want one win recorded", s)
	}
}

func TestLifecycleDeferredTouchThenTimeout(t *testing.T) {
	l, _ := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)
	drive(l, &history, moveAwayCandle(nextTime(history)), snap)

	// Touch on a bearish candle: fill deferred, validity counter reset
	res := drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 101.8, High: 101.9, Low: 101.2, Close: 101.4, Volume: 100}, snap)
	if eventReason(res, EventFillDeferred) != DeferNoReversal {
		t.Fatalf("expected deferred fill for missing reversal, events: %+v", res.Events)
	}
	if l.Order().BarsSinceTouch != 0 {
		t.Errorf("touch must reset the validity counter, got %d", l.Order().BarsSinceTouch)
	}

	// Three candles without a touch: validity expires
	noTouch := func() market.Candle {
		return market.Candle{OpenTime: nextTime(history), Open: 102, High: 102.8, Low: 101.8, Close: 102.5, Volume: 100}
	}
	drive(l, &history, noTouch(), snap)
	drive(l, &history, noTouch(), snap)
	res = drive(l, &history, noTouch(), snap)

	if eventReason(res, EventOrderCancelled) != CancelTimedOut {
		t.Fatalf("expected timeout cancellation, events: %+v", res.Events)
	}
	if l.Phase() != PhaseIdle || l.Order() != nil || l.Block() != nil {
		t.Errorf("cancelled order must clear all state, phase=%s", l.Phase())
	}
}

func TestLifecycleZoneExitCancelsOrder(t *testing.T) {
	l, _ := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)
	drive(l, &history, moveAwayCandle(nextTime(history)), snap)

	// Close below bottom 100 minus half the block size: zone abandoned
	res := drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 101, High: 101.2, Low: 98, Close: 98.3, Volume: 100}, snap)
	if eventReason(res, EventOrderCancelled) != CancelZoneExit {
		t.Fatalf("expected zone-exit cancellation, events: %+v", res.Events)
	}
	if l.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want IDLE", l.Phase())
	}
}

func TestLifecycleBlockInvalidatedByCloseThrough(t *testing.T) {
	l, _ := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)

	res := drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 100.5, High: 100.6, Low: 99.2, Close: 99.4, Volume: 100}, snap)
	if eventReason(res, EventBlockInvalidated) != InvalidBreached {
		t.Fatalf("expected close-through invalidation, events: %+v", res.Events)
	}
	if l.Phase() != PhaseIdle || l.Block() != nil {
		t.Errorf("invalidated block must clear, phase=%s", l.Phase())
	}
}

func TestLifecycleBlockExpiresAtMaxAge(t *testing.T) {
	l, _ := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)

	// Drift inside the block without moving away or breaching
	var res StepResult
	for i := 0; i < 21; i++ {
		res = drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 102, High: 102.4, Low: 101.6, Close: 102, Volume: 100}, snap)
	}

	if eventReason(res, EventBlockInvalidated) != InvalidMaxAge {
		t.Fatalf("expected max-age invalidation, events: %+v", res.Events)
	}
	if l.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want IDLE", l.Phase())
	}
}

func TestLifecycleReplacementNeedsStrongerVolume(t *testing.T) {
	strongerBreakout := func(openTime int64, volume float64) market.Candle {
		return market.Candle{OpenTime: openTime, Open: 100.3, High: 103.65, Low: 99.9, Close: 103.5, Volume: volume}
	}
	quietDrift := func(openTime int64) market.Candle {
		return market.Candle{OpenTime: openTime, Open: 103, High: 103.45, Low: 102.8, Close: 103.3, Volume: 100}
	}

	t.Run("weaker candidate keeps the active block", func(t *testing.T) {
		l, _ := newTestLifecycle(nil)
		history := flatWindow(25, 100)
		snap := upSnapshot()

		drive(l, &history, bullishBreakout(nextTime(history)), snap)
		drive(l, &history, quietDrift(nextTime(history)), snap)

		// Volume ratio 4 < active 3 * 1.5
		res := drive(l, &history, strongerBreakout(nextTime(history), 400), snap)
		if eventReason(res, EventBlockRejected) != RejectActiveBlockKept {
			t.Fatalf("expected active block kept, events: %+v", res.Events)
		}
		if l.Block().Top != 103 {
			t.Errorf("block top = %v, original block should survive", l.Block().Top)
		}
	})

	t.Run("stronger candidate replaces the block", func(t *testing.T) {
		l, _ := newTestLifecycle(nil)
		history := flatWindow(25, 100)
		snap := upSnapshot()

		drive(l, &history, bullishBreakout(nextTime(history)), snap)
		drive(l, &history, quietDrift(nextTime(history)), snap)

		// Volume ratio 6 >= active 3 * 1.5
		res := drive(l, &history, strongerBreakout(nextTime(history), 600), snap)
		if !hasEvent(res, EventBlockReplaced) || !hasEvent(res, EventBlockDetected) {
			t.Fatalf("expected replacement, events: %+v", res.Events)
		}
		if l.Block().Top != 103.5 || l.Block().Bottom != 100.3 {
			t.Errorf("block zone = %v..%v, want the new body", l.Block().Bottom, l.Block().Top)
		}
		assertSingleFlight(t, l)
	})
}

func TestLifecycleEntryGateDefersAndRetries(t *testing.T) {
	allow := false
	var reqs []*EntryRequest
	gate := func(req *EntryRequest) bool {
		reqs = append(reqs, req)
		return allow
	}

	l, _ := newTestLifecycle(gate)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)
	drive(l, &history, moveAwayCandle(nextTime(history)), snap)

	// Gate vetoes: no fill, order stays pending
	res := drive(l, &history, retestCandle(nextTime(history)), snap)
	if eventReason(res, EventFillDeferred) != DeferUnconfirmed {
		t.Fatalf("expected gate deferral, events: %+v", res.Events)
	}
	if l.Phase() != PhaseOrderPending {
		t.Fatalf("phase = %s, want ORDER_PENDING after veto", l.Phase())
	}
	if len(reqs) != 1 || reqs[0].Symbol != "BTCUSDT" {
		t.Fatalf("gate saw requests %+v", reqs)
	}

	// Next touch with the gate open: fill goes through
	allow = true
	res = drive(l, &history, retestCandle(nextTime(history)), snap)
	if !hasEvent(res, EventOrderFilled) {
		t.Fatalf("expected fill once confirmed, events: %+v", res.Events)
	}
	if l.Phase() != PhasePositionOpen {
		t.Errorf("phase = %s, want POSITION_OPEN", l.Phase())
	}

	// The retry must resubmit the same logical order: one idempotency key,
	// minted when the limit order was created, on both attempts. A fresh key
	// per attempt would let an ambiguously accepted first submission
	// double-enter.
	if len(reqs) != 2 {
		t.Fatalf("gate invoked %d times, want 2", len(reqs))
	}
	if reqs[0].ClientOrderID == "" {
		t.Fatal("entry request without a client order ID")
	}
	if reqs[0].ClientOrderID != reqs[1].ClientOrderID {
		t.Errorf("retry changed the client order ID: %q then %q", reqs[0].ClientOrderID, reqs[1].ClientOrderID)
	}
}

func TestLifecycleMovedAwayPromotesSameCandle(t *testing.T) {
	l, _ := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)

	// The candle that crosses the confirmation threshold creates the limit
	// order immediately; a confirmed block never lingers in BLOCK_ACTIVE.
	drive(l, &history, moveAwayCandle(nextTime(history)), snap)
	if l.Phase() != PhaseOrderPending {
		t.Fatalf("phase = %s, want ORDER_PENDING on the crossing candle", l.Phase())
	}
	if ord := l.Order(); !ord.Block.MovedAway || ord.ClientOrderID == "" {
		t.Errorf("order = %+v, want moved-away block and a minted client order ID", ord)
	}
	assertSingleFlight(t, l)
}

func TestLifecycleLossFeedsCooldownAndMemory(t *testing.T) {
	l, riskMgr := newTestLifecycle(nil)
	history := flatWindow(25, 100)
	snap := upSnapshot()

	drive(l, &history, bullishBreakout(nextTime(history)), snap)
	drive(l, &history, moveAwayCandle(nextTime(history)), snap)
	drive(l, &history, retestCandle(nextTime(history)), snap)

	// Stop hit: losing full exit
	res := drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 100.8, High: 101, Low: 99.2, Close: 99.3, Volume: 100}, snap)
	if !hasEvent(res, EventPositionClosed) {
		t.Fatalf("no POSITION_CLOSED, events: %+v", res.Events)
	}
	if res.Trades[len(res.Trades)-1].IsWin {
		t.Fatal("stop before TP1 must be a loss")
	}
	if s := riskMgr.State(); s.ConsecutiveLosses != 1 {
		t.Errorf("risk state = %+v, want one loss recorded", s)
	}

	// Breakout on the very next candle: silenced by the re-entry cooldown
	res = drive(l, &history, bullishBreakout(nextTime(history)), snap)
	if len(res.Events) != 0 {
		t.Fatalf("cooldown should suppress detection entirely, events: %+v", res.Events)
	}
	if l.Phase() != PhaseIdle {
		t.Fatalf("phase = %s, want IDLE during cooldown", l.Phase())
	}

	// Sit out the cooldown
	for i := 0; i < 4; i++ {
		drive(l, &history, market.Candle{OpenTime: nextTime(history), Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 100}, snap)
	}

	// Same-level breakout after the cooldown: rejected by failed-block memory
	res = drive(l, &history, bullishBreakout(nextTime(history)), snap)
	if eventReason(res, EventBlockRejected) != RejectFailedRetest {
		t.Fatalf("expected failed-retest rejection, events: %+v", res.Events)
	}
}
