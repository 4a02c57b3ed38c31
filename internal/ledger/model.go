// Package ledger persists the trade lifecycle (open/close rows) and
// aggregates it into the MemoryContext fed to the AI voter.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeLedgerRow is one position's lifecycle: created OPEN at entry,
// updated to CLOSED exactly once at exit.
type TradeLedgerRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	BotID      string `gorm:"column:bot_id;index"`
	Symbol     string `gorm:"column:symbol"`
	Side       string `gorm:"column:side"` // LONG or SHORT

	EntryTime  time.Time       `gorm:"column:entry_time"`
	EntryPrice decimal.Decimal `gorm:"column:entry_price;type:decimal(20,6)"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:decimal(20,6)"`
	Leverage   int32           `gorm:"column:leverage"`
	RSIAtEntry decimal.Decimal `gorm:"column:rsi_at_entry;type:decimal(10,4)"`

	ExitTime        *time.Time       `gorm:"column:exit_time"`
	ExitPrice       *decimal.Decimal `gorm:"column:exit_price;type:decimal(20,6)"`
	ExitReason      string           `gorm:"column:exit_reason"` // TP, SL, TIME_CUT, MANUAL, END
	PnL             *decimal.Decimal `gorm:"column:pnl;type:decimal(20,6)"`
	PnLPct          *decimal.Decimal `gorm:"column:pnl_pct;type:decimal(10,4)"`
	DurationMinutes *int             `gorm:"column:duration_minutes"`

	Status    string    `gorm:"column:status;index"` // OPEN or CLOSED
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (TradeLedgerRow) TableName() string {
	return "trade_ledger"
}

// IsWin reports whether the closed row's PnL was positive. Callers must
// only call this on CLOSED rows.
func (r TradeLedgerRow) IsWin() bool {
	return r.PnL != nil && r.PnL.IsPositive()
}

// rsiZone buckets an RSI-at-entry value into the five narrative zones
// used by the memory builder, matching memory_context.py's
// _get_rsi_short_desc boundaries.
func rsiZone(rsi decimal.Decimal) string {
	f, _ := rsi.Float64()
	switch {
	case f < 30:
		return "oversold"
	case f < 40:
		return "low"
	case f < 60:
		return "neutral"
	case f < 70:
		return "high"
	default:
		return "overbought"
	}
}

func rsiZoneShortDesc(zone string) string {
	switch zone {
	case "oversold":
		return "RSI<30"
	case "low":
		return "RSI 30-40"
	case "neutral":
		return "RSI 40-60"
	case "high":
		return "RSI 60-70"
	case "overbought":
		return "RSI>70"
	default:
		return zone
	}
}
