package risk

import (
	"sync"

	"orderblock-trading-bot/config"
)

// Streak thresholds for the sizing ladder. The ladder only tightens: a worse
// streak can never loosen a clamp applied by an earlier one.
const (
	halfSizeLossStreak    = 5
	quarterSizeLossStreak = 10
	resetWinStreak        = 3

	halfSizeMultiplier    = 0.5
	quarterSizeMultiplier = 0.25
)

// State holds the win/loss streak counters and the resulting position size
// multiplier. Carried forward across positions, never reset except by the
// streak rules.
type State struct {
	ConsecutiveLosses      int     `json:"consecutive_losses"`
	ConsecutiveWins        int     `json:"consecutive_wins"`
	PositionSizeMultiplier float64 `json:"position_size_multiplier"`
}

// Manager owns the account-wide risk state. When capital is pooled across
// symbols all updates funnel through one Manager; the mutex serializes
// writers so streak updates are never lost.
type Manager struct {
	mu    sync.Mutex
	cfg   config.RiskConfig
	state State
}

// NewManager creates a manager at full size
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{
		cfg: cfg,
		state: State{
			PositionSizeMultiplier: 1.0,
		},
	}
}

// RecordResult applies a full-exit outcome to the streak ladder and returns
// the updated state.
func (m *Manager) RecordResult(isWin bool) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isWin {
		m.state.ConsecutiveWins++
		m.state.ConsecutiveLosses = 0
		if m.state.ConsecutiveWins >= resetWinStreak {
			m.state.PositionSizeMultiplier = 1.0
		}
	} else {
		m.state.ConsecutiveLosses++
		m.state.ConsecutiveWins = 0
		if m.state.ConsecutiveLosses >= quarterSizeLossStreak {
			if m.state.PositionSizeMultiplier > quarterSizeMultiplier {
				m.state.PositionSizeMultiplier = quarterSizeMultiplier
			}
		} else if m.state.ConsecutiveLosses >= halfSizeLossStreak {
			if m.state.PositionSizeMultiplier > halfSizeMultiplier {
				m.state.PositionSizeMultiplier = halfSizeMultiplier
			}
		}
	}

	return m.state
}

// MarginFor computes the margin for a new position from current capital:
// the capital fraction clamped to [minMargin, maxMargin], scaled by the
// streak multiplier, floored again at minMargin.
func (m *Manager) MarginFor(capital float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	margin := capital * m.cfg.AccountCapitalFraction
	if margin < m.cfg.MinMargin {
		margin = m.cfg.MinMargin
	}
	if margin > m.cfg.MaxMargin {
		margin = m.cfg.MaxMargin
	}

	margin *= m.state.PositionSizeMultiplier
	if margin < m.cfg.MinMargin {
		margin = m.cfg.MinMargin
	}

	return margin
}

// State returns a copy of the current risk state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}
