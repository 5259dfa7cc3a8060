package strategy

import (
	"orderblock-trading-bot/internal/market"
)

// Phase is the tagged per-symbol engine state. Exactly one of block, order or
// position exists at a time; invalid combinations are unrepresentable.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseBlockActive  Phase = "BLOCK_ACTIVE"
	PhaseOrderPending Phase = "ORDER_PENDING"
	PhasePositionOpen Phase = "POSITION_OPEN"
)

// MethodORB is the opening-range-breakout detection method
const MethodORB = "ORB"

// OrderBlock is a detected breakout candle body used as a retest zone.
// Invariant: Top >= Bottom.
type OrderBlock struct {
	Side        market.Side
	Top         float64
	Bottom      float64
	Method      string
	DetectedBar int
	Age         int
	VolumeRatio float64 // breakout volume vs average, used by replacement
	MovedAway   bool
	FilterScore float64
}

// Midpoint returns the retest entry level
func (ob *OrderBlock) Midpoint() float64 {
	return (ob.Top + ob.Bottom) / 2
}

// Size returns the zone height
func (ob *OrderBlock) Size() float64 {
	return ob.Top - ob.Bottom
}

// LimitOrder is the pending retest entry at the block midpoint. At most one
// per symbol, alive only while its block has moved away and no position is
// open. ClientOrderID is minted once at creation and reused across deferred
// submission retries, so the venue can deduplicate an ambiguously accepted
// entry.
type LimitOrder struct {
	Side           market.Side
	Price          float64
	Block          *OrderBlock
	CreatedBar     int
	BarsSinceTouch int // validity counter, reset whenever price touches the limit
	ClientOrderID  string
}

// Position is the open position created on a limit fill. At most one per
// symbol.
type Position struct {
	Side            market.Side
	Entry           float64
	StopLoss        float64
	TakeProfit1     float64
	TakeProfit2     float64
	EntryTime       int64
	EntryBar        int
	Margin          float64
	Quantity        float64
	RemainingSize   float64 // fraction still open, (0,1]
	PartialExitDone bool
	Method          string
}

// Trade is an immutable exit record. A position produces one record (full
// exit) or two (TP1 partial + final exit).
type Trade struct {
	Symbol     string      `json:"symbol"`
	EntryTime  int64       `json:"entry_time"`
	ExitTime   int64       `json:"exit_time"`
	Side       market.Side `json:"side"`
	Entry      float64     `json:"entry"`
	Exit       float64     `json:"exit"`
	Size       float64     `json:"size"` // fraction of the position closed
	Quantity   float64     `json:"quantity"`
	Margin     float64     `json:"margin"`
	Fees       float64     `json:"fees"`
	Pnl        float64     `json:"pnl"`
	PnlPercent float64     `json:"pnl_percent"`
	IsWin      bool        `json:"is_win"`
	Method     string      `json:"method"`
	ExitReason string      `json:"exit_reason"`
	Partial    bool        `json:"partial"`
}

// EventType enumerates lifecycle transitions and detector outcomes emitted
// for telemetry
type EventType string

const (
	EventBlockDetected    EventType = "OB_DETECTED"
	EventBlockRejected    EventType = "OB_REJECTED"
	EventBlockReplaced    EventType = "OB_REPLACED"
	EventBlockInvalidated EventType = "OB_INVALIDATED"
	EventBlockMovedAway   EventType = "OB_MOVED_AWAY"
	EventOrderPlaced      EventType = "LIMIT_PLACED"
	EventOrderCancelled   EventType = "LIMIT_CANCELLED"
	EventOrderFilled      EventType = "LIMIT_FILLED"
	EventFillDeferred     EventType = "FILL_DEFERRED"
	EventPartialExit      EventType = "PARTIAL_EXIT"
	EventPositionClosed   EventType = "POSITION_CLOSED"
)

// Event is a telemetry record for one detector or lifecycle outcome.
// Rejections carry a reason string instead of an error.
type Event struct {
	Type   EventType   `json:"type"`
	Symbol string      `json:"symbol"`
	Bar    int         `json:"bar"`
	Time   int64       `json:"time"`
	Side   market.Side `json:"side,omitempty"`
	Price  float64     `json:"price,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Snapshot carries the per-candle indicator values the detector and
// lifecycle consume. Computed once per candle by the engine.
type Snapshot struct {
	ATR          float64 // ATR over the configured period
	ATRPercent   float64 // ATR as % of close
	VolumeAvg    float64 // average volume over the configured period
	TrendSMA     float64 // long-horizon SMA (higher-timeframe trend proxy)
	TrendSMAPast float64 // same SMA evaluated TrendSlopeBars ago
}

// Ready reports whether enough history existed to compute every input
func (s Snapshot) Ready() bool {
	return s.ATR > 0 && s.VolumeAvg > 0 && s.TrendSMA > 0 && s.TrendSMAPast > 0
}

// StepResult is the effect set of one candle tick: telemetry events and any
// finalized trades. The state transition itself lives in the Lifecycle.
type StepResult struct {
	Events []Event
	Trades []Trade
}

// EntryRequest describes the entry the lifecycle wants to take. In live mode
// the gate submits it to the exchange collaborator and may veto the fill
// (submission not confirmed); in backtest the fill is unconditional.
// ClientOrderID is the limit order's idempotency key: a retried request for
// the same order carries the same key.
type EntryRequest struct {
	Symbol        string
	Side          market.Side
	Entry         float64
	StopLoss      float64
	TakeProfit1   float64
	TakeProfit2   float64
	Quantity      float64
	Margin        float64
	Bar           int
	ClientOrderID string
}

// EntryGate confirms or defers an entry. Returning false leaves the limit
// order pending for the next candle.
type EntryGate func(*EntryRequest) bool
