// Package risk holds the per-bot guards consulted by the decision loop:
// the consecutive-loss/daily-loss circuit breaker, position sizing, and
// TP/SL/time-cut exit checks.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CircuitBreaker guards new entries against runaway consecutive losses or
// a daily drawdown past a configured fraction of peak equity. It never
// gates exit checks or reconciliation — only the entry branch consults it.
type CircuitBreaker struct {
	mu sync.RWMutex

	maxConsecutiveLosses int
	maxDailyLossPct      decimal.Decimal
	cooldown             time.Duration

	consecutiveLosses int
	dailyLoss         decimal.Decimal
	peakEquity        decimal.Decimal
	tripped           bool
	trippedAt         time.Time
	reason            string

	lastResetDay string
}

// NewCircuitBreaker builds a breaker for one bot. maxDailyLossPct is a
// fraction of peak equity (e.g. 0.05 for 5%).
func NewCircuitBreaker(maxConsecutiveLosses int, maxDailyLossPct decimal.Decimal, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxConsecutiveLosses: maxConsecutiveLosses,
		maxDailyLossPct:      maxDailyLossPct,
		cooldown:             cooldown,
	}
}

// Check reports whether trading should be halted. It also rolls daily
// state over at the local-midnight boundary and re-arms a tripped breaker
// once its cooldown has elapsed.
func (cb *CircuitBreaker) Check(equity decimal.Decimal) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if cb.lastResetDay != today {
		// A trip outlives the daily rollover; only the cooldown re-arms it.
		tripped := cb.tripped
		cb.resetLocked()
		cb.tripped = tripped
		cb.lastResetDay = today
	}

	if equity.GreaterThan(cb.peakEquity) {
		cb.peakEquity = equity
	}

	if cb.tripped {
		if time.Since(cb.trippedAt) > cb.cooldown {
			cb.tripped = false
			cb.consecutiveLosses = 0
			cb.dailyLoss = decimal.Zero
			log.Info().Msg("circuit breaker reset after cooldown")
			return false
		}
		return true
	}

	if cb.dailyLoss.IsNegative() && !cb.peakEquity.IsZero() {
		drawdownPct := cb.dailyLoss.Abs().Div(cb.peakEquity)
		if drawdownPct.GreaterThan(cb.maxDailyLossPct) {
			cb.trip("max daily loss exceeded")
			return true
		}
	}

	return false
}

// Record updates the breaker from a closed trade's realised PnL, tripping
// on consecutive losses and keeping the win streak counter clean.
func (cb *CircuitBreaker) Record(pnl decimal.Decimal) {
	if pnl.IsNegative() {
		cb.RecordLoss(pnl)
	} else {
		cb.RecordWin(pnl)
	}
}

// RecordLoss records a losing trade: it bumps the consecutive-loss counter
// and adds pnl, sign included, to the daily total (a loss is negative).
func (cb *CircuitBreaker) RecordLoss(pnl decimal.Decimal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveLosses++
	cb.dailyLoss = cb.dailyLoss.Add(pnl)

	if cb.consecutiveLosses >= cb.maxConsecutiveLosses {
		cb.trip("max consecutive losses")
	}
}

// RecordWin records a winning trade's PnL and clears the loss streak.
func (cb *CircuitBreaker) RecordWin(pnl decimal.Decimal) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveLosses = 0
	cb.dailyLoss = cb.dailyLoss.Add(pnl)
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.tripped = true
	cb.trippedAt = time.Now()
	cb.reason = reason
	log.Warn().
		Str("reason", reason).
		Int("consecutive_losses", cb.consecutiveLosses).
		Str("daily_loss", cb.dailyLoss.StringFixed(2)).
		Dur("cooldown", cb.cooldown).
		Msg("circuit breaker tripped")
}

func (cb *CircuitBreaker) resetLocked() {
	cb.consecutiveLosses = 0
	cb.dailyLoss = decimal.Zero
	cb.tripped = false
}

// IsTripped reports the current trip state without rolling daily state.
func (cb *CircuitBreaker) IsTripped() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.tripped
}

// Stats returns a snapshot of the breaker's counters, for status
// reporting over the admin surface.
func (cb *CircuitBreaker) Stats() (consecutiveLosses int, dailyLoss decimal.Decimal, tripped bool, reason string) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveLosses, cb.dailyLoss, cb.tripped, cb.reason
}

// ForceReset manually clears the breaker, for an admin override.
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetLocked()
	log.Info().Msg("circuit breaker manually reset")
}
