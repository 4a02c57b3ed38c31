package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func closedRow(side string, rsi decimal.Decimal, hour int, pnl float64) TradeLedgerRow {
	p := decimal.NewFromFloat(pnl)
	entry := time.Date(2026, 7, 1, hour, 0, 0, 0, time.UTC)
	return TradeLedgerRow{
		Side:       side,
		RSIAtEntry: rsi,
		EntryTime:  entry,
		PnL:        &p,
		Status:     "CLOSED",
	}
}

func TestComputeOverallStats(t *testing.T) {
	rows := []TradeLedgerRow{
		closedRow("LONG", dec("25"), 10, 50),
		closedRow("LONG", dec("25"), 11, -20),
		closedRow("SHORT", dec("75"), 12, 30),
	}
	stats := ComputeOverallStats(rows)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.True(t, stats.TotalPnL.Equal(decimal.NewFromFloat(60)))
}

func TestComputeRSIZoneStats(t *testing.T) {
	rows := []TradeLedgerRow{
		closedRow("LONG", dec("25"), 10, 50),
		closedRow("LONG", dec("28"), 11, 40),
		closedRow("LONG", dec("26"), 12, -10),
	}
	stats := ComputeRSIZoneStats(rows)
	assert.Len(t, stats, 1)
	assert.Equal(t, "oversold", stats[0].Zone)
	assert.Equal(t, 3, stats[0].TotalTrades)
	assert.Equal(t, 2, stats[0].Wins)
}

func TestComputeHourlyStats(t *testing.T) {
	rows := []TradeLedgerRow{
		closedRow("LONG", dec("50"), 14, 50),
		closedRow("LONG", dec("50"), 14, 40),
		closedRow("LONG", dec("50"), 9, -10),
	}
	stats := ComputeHourlyStats(rows)
	assert.Len(t, stats, 2)
	assert.Equal(t, 14, stats[0].HourOfDay)
	assert.True(t, stats[0].WinRate.Equal(decimal.NewFromInt(100)))
}

func TestCurrentStreak(t *testing.T) {
	t.Run("winning streak at head", func(t *testing.T) {
		rows := []TradeLedgerRow{
			closedRow("LONG", dec("50"), 10, 50),
			closedRow("LONG", dec("50"), 10, 30),
			closedRow("LONG", dec("50"), 10, -10),
		}
		kind, count := CurrentStreak(rows)
		assert.Equal(t, StreakWin, kind)
		assert.Equal(t, 2, count)
	})

	t.Run("no rows", func(t *testing.T) {
		kind, count := CurrentStreak(nil)
		assert.Equal(t, StreakNone, kind)
		assert.Equal(t, 0, count)
	})
}
