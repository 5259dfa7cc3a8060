package strategy

import (
	"math"

	"orderblock-trading-bot/config"
	"orderblock-trading-bot/internal/market"
)

// Exit reasons recorded on trades
const (
	ExitTakeProfit1 = "take_profit_1"
	ExitTakeProfit2 = "take_profit_2"
	ExitStopLoss    = "stop_loss"
	ExitTimeout     = "timeout"
)

// ExitCheck is the outcome of evaluating one candle against an open
// position. Win is only meaningful for full exits: it is the overall
// position outcome fed to the risk ladder and failed-block memory.
type ExitCheck struct {
	Exited  bool
	Partial bool
	Price   float64
	Reason  string
	Win     bool
}

// PositionManager evaluates exit conditions for the open position on every
// candle. It is pure: mutations are applied by the lifecycle.
type PositionManager struct {
	cfg *config.StrategyConfig
}

// NewPositionManager creates a position manager
func NewPositionManager(cfg *config.StrategyConfig) *PositionManager {
	return &PositionManager{cfg: cfg}
}

// Evaluate checks exits in priority order: TP1 partial first (exclusive for
// the candle), then TP2/SL with the same-candle tie broken by proximity to
// the candle open, then the holding-time stop at the candle open.
func (pm *PositionManager) Evaluate(pos *Position, c market.Candle, bar int) ExitCheck {
	long := pos.Side == market.SideLong

	tp1Hit := long && c.High >= pos.TakeProfit1 || !long && c.Low <= pos.TakeProfit1
	if !pos.PartialExitDone && tp1Hit {
		if pm.cfg.TP1ClosePercent >= 1.0 {
			// Full-exit variant: TP1 closes the whole position
			return ExitCheck{Exited: true, Price: pos.TakeProfit1, Reason: ExitTakeProfit1, Win: true}
		}
		return ExitCheck{Exited: true, Partial: true, Price: pos.TakeProfit1, Reason: ExitTakeProfit1}
	}

	if !tp1Hit || pos.PartialExitDone {
		tp2Hit := long && c.High >= pos.TakeProfit2 || !long && c.Low <= pos.TakeProfit2
		slHit := long && c.Low <= pos.StopLoss || !long && c.High >= pos.StopLoss

		switch {
		case tp2Hit && slHit:
			// Both touched intrabar: without tick data, award the exit to
			// whichever level sits closer to the candle open. Ties go to the
			// stop.
			if math.Abs(c.Open-pos.StopLoss) <= math.Abs(c.Open-pos.TakeProfit2) {
				return pm.stopExit(pos)
			}
			return ExitCheck{Exited: true, Price: pos.TakeProfit2, Reason: ExitTakeProfit2, Win: true}
		case tp2Hit:
			return ExitCheck{Exited: true, Price: pos.TakeProfit2, Reason: ExitTakeProfit2, Win: true}
		case slHit:
			return pm.stopExit(pos)
		}
	}

	if bar-pos.EntryBar >= pm.cfg.MaxHoldingBars {
		// Time stop at the candle open; scored by sign of price movement
		// only, not by hitting a target.
		win := long && c.Open > pos.Entry || !long && c.Open < pos.Entry
		return ExitCheck{Exited: true, Price: c.Open, Reason: ExitTimeout, Win: win}
	}

	return ExitCheck{}
}

func (pm *PositionManager) stopExit(pos *Position) ExitCheck {
	// After TP1 the stop sits at breakeven with profit already banked, so
	// the position as a whole resolved as a winner.
	return ExitCheck{Exited: true, Price: pos.StopLoss, Reason: ExitStopLoss, Win: pos.PartialExitDone}
}
