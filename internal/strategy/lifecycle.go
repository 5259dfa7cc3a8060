package strategy

import (
	"github.com/google/uuid"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/filters"
	"orderblock-trading-bot/internal/market"
	"orderblock-trading-bot/internal/risk"
)

// Cancellation and invalidation reasons
const (
	CancelZoneExit   = "ob_zone_exit"
	CancelTimedOut   = "timed_out"
	InvalidMaxAge    = "max_age"
	InvalidBreached  = "price_through_block"
	DeferNoReversal  = "no_reversal_candle"
	DeferUnconfirmed = "entry_not_confirmed"
)

// Lifecycle owns one symbol's Order-Block state machine:
//
//	IDLE -> BLOCK_ACTIVE -> (moved away) ORDER_PENDING -> POSITION_OPEN
//
// with invalidation, timeout and zone-exit paths back to IDLE. At most one
// of block/order/position exists at any time. Step is the single decision
// function shared by backtest and live trading.
type Lifecycle struct {
	symbol    string
	cfg       *config.StrategyConfig
	fees      config.FeesConfig
	bank      *filters.Bank
	riskMgr   *risk.Manager
	detector  *Detector
	memory    *FailedOBMemory
	positions *PositionManager

	phase       Phase
	block       *OrderBlock
	order       *LimitOrder
	position    *Position
	lastExitBar int

	capital func() float64
	gate    EntryGate
}

// NewLifecycle creates the state machine for one symbol. capital supplies
// current account capital for sizing; gate confirms entries in live mode and
// may be nil for unconditional (backtest) fills.
func NewLifecycle(symbol string, cfg *config.StrategyConfig, fees config.FeesConfig, bank *filters.Bank, riskMgr *risk.Manager, capital func() float64, gate EntryGate) *Lifecycle {
	memory := NewFailedOBMemory(cfg.FailedOBMemoryBars, cfg.FailedOBRejectBars)
	return &Lifecycle{
		symbol:      symbol,
		cfg:         cfg,
		fees:        fees,
		bank:        bank,
		riskMgr:     riskMgr,
		detector:    NewDetector(cfg, memory),
		memory:      memory,
		positions:   NewPositionManager(cfg),
		phase:       PhaseIdle,
		lastExitBar: -(1 << 30),
		capital:     capital,
		gate:        gate,
	}
}

// Phase returns the current state tag
func (l *Lifecycle) Phase() Phase { return l.phase }

// Block returns the active Order Block, if any
func (l *Lifecycle) Block() *OrderBlock { return l.block }

// Order returns the pending limit order, if any
func (l *Lifecycle) Order() *LimitOrder { return l.order }

// Position returns the open position, if any
func (l *Lifecycle) Position() *Position { return l.position }

// Step advances the state machine by one closed candle. window must end at
// the candle for bar; snap holds the indicator values for that bar. The
// returned effects carry telemetry events and finalized trades.
func (l *Lifecycle) Step(window []market.Candle, bar int, snap Snapshot) StepResult {
	res := StepResult{}
	if len(window) == 0 {
		return res
	}
	c := window[len(window)-1]

	l.memory.Prune(bar)

	switch l.phase {
	case PhasePositionOpen:
		l.stepPosition(c, bar, &res)
	case PhaseOrderPending:
		l.stepOrder(window, c, bar, snap, &res)
	case PhaseBlockActive:
		l.stepBlock(c, bar, snap, &res)
	}

	if l.phase == PhaseIdle || l.phase == PhaseBlockActive {
		l.tryDetect(window, c, bar, snap, &res)
	}

	return res
}

// stepBlock ages the active block, invalidates it on staleness or a close
// through its far boundary, and promotes it to a pending limit order once
// price has moved away from the midpoint.
func (l *Lifecycle) stepBlock(c market.Candle, bar int, snap Snapshot, res *StepResult) {
	ob := l.block
	ob.Age++

	if ob.Age > l.cfg.OBMaxBars {
		l.invalidateBlock(c, bar, InvalidMaxAge, res)
		return
	}

	long := ob.Side == market.SideLong
	if long && c.Close < ob.Bottom || !long && c.Close > ob.Top {
		l.invalidateBlock(c, bar, InvalidBreached, res)
		return
	}

	mult := l.awayMult(snap.ATRPercent)
	mid := ob.Midpoint()
	if long && c.Close >= mid+ob.Size()*mult || !long && c.Close <= mid-ob.Size()*mult {
		ob.MovedAway = true
		l.emit(res, EventBlockMovedAway, bar, c.OpenTime, ob.Side, c.Close, "")

		l.order = &LimitOrder{
			Side:          ob.Side,
			Price:         mid,
			Block:         ob,
			CreatedBar:    bar,
			ClientOrderID: uuid.NewString(),
		}
		l.phase = PhaseOrderPending
		l.emit(res, EventOrderPlaced, bar, c.OpenTime, ob.Side, mid, "")
	}
}

// awayMult selects the moved-away confirmation multiplier by volatility
// regime: less confirmation demanded in quiet markets, more in trending
// ones.
func (l *Lifecycle) awayMult(atrPercent float64) float64 {
	switch {
	case atrPercent < l.cfg.RangeboundATRPercent:
		return l.cfg.MinAwayMultRangebound
	case atrPercent > l.cfg.TrendingATRPercent:
		return l.cfg.MinAwayMultTrending
	default:
		return l.cfg.MinAwayMultNormal
	}
}

// stepOrder manages the pending limit order: zone-exit cancellation, the
// touch/reversal/filter fill sequence, and the no-touch validity timeout.
func (l *Lifecycle) stepOrder(window []market.Candle, c market.Candle, bar int, snap Snapshot, res *StepResult) {
	o := l.order
	ob := o.Block
	long := o.Side == market.SideLong

	buffer := ob.Size() * l.cfg.ZoneExitBufferRatio
	if long && c.Close < ob.Bottom-buffer || !long && c.Close > ob.Top+buffer {
		l.cancelOrder(c, bar, CancelZoneExit, res)
		return
	}

	if !c.Touches(o.Price) {
		o.BarsSinceTouch++
		if o.BarsSinceTouch >= l.cfg.OrderValidityBars {
			l.cancelOrder(c, bar, CancelTimedOut, res)
		}
		return
	}

	o.BarsSinceTouch = 0

	// A touch only fills on a reversal candle in the trade direction;
	// otherwise the order stays working for the next candle.
	if long && !c.Bullish() || !long && !c.Bearish() {
		l.emit(res, EventFillDeferred, bar, c.OpenTime, o.Side, o.Price, DeferNoReversal)
		return
	}

	fctx := &filters.Context{
		Symbol:     l.symbol,
		Candles:    window,
		Side:       o.Side,
		ATR:        snap.ATR,
		Price:      c.Close,
		ZoneTop:    ob.Top,
		ZoneBottom: ob.Bottom,
	}
	if ok, name := l.bank.PreFill(fctx); !ok {
		l.emit(res, EventFillDeferred, bar, c.OpenTime, o.Side, o.Price, name)
		return
	}

	req := l.buildEntry(ob, o, bar, snap)
	if l.gate != nil && !l.gate(req) {
		l.emit(res, EventFillDeferred, bar, c.OpenTime, o.Side, o.Price, DeferUnconfirmed)
		return
	}

	l.position = &Position{
		Side:          req.Side,
		Entry:         req.Entry,
		StopLoss:      req.StopLoss,
		TakeProfit1:   req.TakeProfit1,
		TakeProfit2:   req.TakeProfit2,
		EntryTime:     c.OpenTime,
		EntryBar:      bar,
		Margin:        req.Margin,
		Quantity:      req.Quantity,
		RemainingSize: 1.0,
		Method:        ob.Method,
	}
	l.block = nil
	l.order = nil
	l.phase = PhasePositionOpen
	l.emit(res, EventOrderFilled, bar, c.OpenTime, req.Side, req.Entry, "")
}

// buildEntry computes the fill geometry: maker slippage on the limit price,
// stop at the block boundary with a buffer (optionally capped by ATR,
// shrinking the stop distance only), and the two take-profit levels from the
// resulting risk.
func (l *Lifecycle) buildEntry(ob *OrderBlock, o *LimitOrder, bar int, snap Snapshot) *EntryRequest {
	slip := l.fees.SlippagePercent / 100
	long := o.Side == market.SideLong

	var entry, stop float64
	if long {
		entry = o.Price * (1 + slip)
		stop = ob.Bottom * (1 - l.cfg.SLBufferPercent/100)
	} else {
		entry = o.Price * (1 - slip)
		stop = ob.Top * (1 + l.cfg.SLBufferPercent/100)
	}

	riskDist := entry - stop
	if !long {
		riskDist = stop - entry
	}
	if l.cfg.EnableRiskCap && snap.ATR > 0 {
		capDist := snap.ATR * l.cfg.MaxRiskATR
		if riskDist > capDist {
			riskDist = capDist
			if long {
				stop = entry - riskDist
			} else {
				stop = entry + riskDist
			}
		}
	}

	var tp1, tp2 float64
	if long {
		tp1 = entry + riskDist*l.cfg.TP1Ratio
		tp2 = entry + riskDist*l.cfg.RewardRiskRatio
	} else {
		tp1 = entry - riskDist*l.cfg.TP1Ratio
		tp2 = entry - riskDist*l.cfg.RewardRiskRatio
	}

	margin := l.riskMgr.MarginFor(l.capital())
	quantity := margin * l.fees.Leverage / entry

	return &EntryRequest{
		Symbol:        l.symbol,
		Side:          o.Side,
		Entry:         entry,
		StopLoss:      stop,
		TakeProfit1:   tp1,
		TakeProfit2:   tp2,
		Quantity:      quantity,
		Margin:        margin,
		Bar:           bar,
		ClientOrderID: o.ClientOrderID,
	}
}

// stepPosition applies the position manager's verdict: the TP1 partial
// mutates the position once (size, breakeven stop, flag); a full exit
// finalizes the trade, updates the risk ladder and failed-block memory, and
// starts the re-entry cooldown.
func (l *Lifecycle) stepPosition(c market.Candle, bar int, res *StepResult) {
	pos := l.position
	check := l.positions.Evaluate(pos, c, bar)
	if !check.Exited {
		return
	}

	if check.Partial {
		frac := l.cfg.TP1ClosePercent
		res.Trades = append(res.Trades, l.buildTrade(pos, c, check.Price, frac, ExitTakeProfit1, true, true))
		l.emit(res, EventPartialExit, bar, c.OpenTime, pos.Side, check.Price, "")

		pos.RemainingSize = 1 - frac
		pos.StopLoss = pos.Entry
		pos.PartialExitDone = true
		return
	}

	res.Trades = append(res.Trades, l.buildTrade(pos, c, check.Price, pos.RemainingSize, check.Reason, check.Win, false))
	l.emit(res, EventPositionClosed, bar, c.OpenTime, pos.Side, check.Price, check.Reason)

	l.riskMgr.RecordResult(check.Win)
	if !check.Win {
		l.memory.Record(pos.Entry, bar)
	}

	l.lastExitBar = bar
	l.position = nil
	l.phase = PhaseIdle
}

func (l *Lifecycle) buildTrade(pos *Position, c market.Candle, exit, frac float64, reason string, win, partial bool) Trade {
	qty := pos.Quantity * frac
	dir := 1.0
	if pos.Side == market.SideShort {
		dir = -1
	}

	gross := (exit - pos.Entry) * dir * qty
	fees := pos.Entry*qty*l.fees.MakerFeePercent/100 + exit*qty*l.fees.TakerFeePercent/100
	pnl := gross - fees

	marginShare := pos.Margin * frac
	pnlPct := 0.0
	if marginShare > 0 {
		pnlPct = pnl / marginShare * 100
	}

	return Trade{
		Symbol:     l.symbol,
		EntryTime:  pos.EntryTime,
		ExitTime:   c.OpenTime,
		Side:       pos.Side,
		Entry:      pos.Entry,
		Exit:       exit,
		Size:       frac,
		Quantity:   qty,
		Margin:     marginShare,
		Fees:       fees,
		Pnl:        pnl,
		PnlPercent: pnlPct,
		IsWin:      win,
		Method:     pos.Method,
		ExitReason: reason,
		Partial:    partial,
	}
}

// tryDetect runs the detector and filter bank, honoring the re-entry
// cooldown and the replacement policy for an already-active block.
func (l *Lifecycle) tryDetect(window []market.Candle, c market.Candle, bar int, snap Snapshot, res *StepResult) {
	if bar-l.lastExitBar < l.cfg.ReentryCooldownBars {
		return
	}

	cand, reason := l.detector.Detect(window, bar, snap)
	if cand == nil {
		if reason != "" {
			l.emit(res, EventBlockRejected, bar, c.OpenTime, "", c.Close, reason)
		}
		return
	}

	if l.phase == PhaseBlockActive {
		if !l.cfg.EnableOBReplacement || cand.VolumeRatio < l.block.VolumeRatio*l.cfg.ReplacementVolumeRatio {
			l.emit(res, EventBlockRejected, bar, c.OpenTime, cand.Side, c.Close, RejectActiveBlockKept)
			return
		}
	}

	fctx := &filters.Context{
		Symbol:     l.symbol,
		Candles:    window,
		Side:       cand.Side,
		ATR:        snap.ATR,
		Price:      c.Close,
		ZoneTop:    cand.Top,
		ZoneBottom: cand.Bottom,
	}
	pass, failed, score := l.bank.Evaluate(fctx)
	if !pass {
		l.emit(res, EventBlockRejected, bar, c.OpenTime, cand.Side, c.Close, "filter:"+failed)
		return
	}
	cand.FilterScore = score

	if l.phase == PhaseBlockActive {
		l.emit(res, EventBlockReplaced, bar, c.OpenTime, cand.Side, c.Close, "")
	}

	l.block = cand
	l.phase = PhaseBlockActive
	l.emit(res, EventBlockDetected, bar, c.OpenTime, cand.Side, cand.Midpoint(), "")
}

func (l *Lifecycle) invalidateBlock(c market.Candle, bar int, reason string, res *StepResult) {
	l.emit(res, EventBlockInvalidated, bar, c.OpenTime, l.block.Side, c.Close, reason)
	l.block = nil
	l.phase = PhaseIdle
}

func (l *Lifecycle) cancelOrder(c market.Candle, bar int, reason string, res *StepResult) {
	l.emit(res, EventOrderCancelled, bar, c.OpenTime, l.order.Side, l.order.Price, reason)
	l.order = nil
	l.block = nil
	l.phase = PhaseIdle
}

func (l *Lifecycle) emit(res *StepResult, t EventType, bar int, ts int64, side market.Side, price float64, reason string) {
	res.Events = append(res.Events, Event{
		Type:   t,
		Symbol: l.symbol,
		Bar:    bar,
		Time:   ts,
		Side:   side,
		Price:  price,
		Reason: reason,
	})
}
