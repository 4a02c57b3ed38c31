package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ExitCheck is the outcome of evaluating an open position against the
// time-cut/TP/SL rules for the current tick.
type ExitCheck struct {
	ShouldExit bool
	Reason     model.ExitReason
	PnLPct     decimal.Decimal
}

// CheckExit evaluates time-cut, then take-profit, then stop-loss, in that
// order — the first match wins, mirroring the decision loop's exit-check
// step. pnlPct is signed so a SHORT profits from a falling price.
func CheckExit(pos model.Position, currentPrice decimal.Decimal, timeCutMinutes int32, takeProfitPct, stopLossPct decimal.Decimal, now time.Time) ExitCheck {
	pnlPct := PnLPct(pos, currentPrice)

	if now.Sub(pos.EntryTime) >= time.Duration(timeCutMinutes)*time.Minute {
		return ExitCheck{ShouldExit: true, Reason: model.ExitTimeCut, PnLPct: pnlPct}
	}

	takeProfitPctScaled := takeProfitPct.Mul(hundred)
	stopLossPctScaled := stopLossPct.Mul(hundred)

	if pnlPct.GreaterThanOrEqual(takeProfitPctScaled) {
		return ExitCheck{ShouldExit: true, Reason: model.ExitTP, PnLPct: pnlPct}
	}
	if pnlPct.LessThanOrEqual(stopLossPctScaled.Neg()) {
		return ExitCheck{ShouldExit: true, Reason: model.ExitSL, PnLPct: pnlPct}
	}

	return ExitCheck{ShouldExit: false, PnLPct: pnlPct}
}

// PnLPct computes unrealised PnL as a percentage of entry price, signed
// for the position side: (price/entry - 1) * 100 for LONG, negated for
// SHORT.
func PnLPct(pos model.Position, currentPrice decimal.Decimal) decimal.Decimal {
	if pos.EntryPrice.IsZero() {
		return decimal.Zero
	}
	pct := currentPrice.Div(pos.EntryPrice).Sub(decimal.NewFromInt(1)).Mul(hundred)
	if pos.Side == model.SideShort {
		pct = pct.Neg()
	}
	return pct
}
