package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fluxtrade/perpbot/internal/model"
)

func TestCheckExitTimeCutTakesPrecedence(t *testing.T) {
	pos := model.Position{
		Side:       model.SideLong,
		EntryPrice: dec("100"),
		EntryTime:  time.Now().Add(-200 * time.Minute),
	}
	result := CheckExit(pos, dec("110"), 120, dec("0.003"), dec("0.003"), time.Now())
	assert.True(t, result.ShouldExit)
	assert.Equal(t, model.ExitTimeCut, result.Reason)
}

func TestCheckExitTakeProfitLong(t *testing.T) {
	pos := model.Position{
		Side:       model.SideLong,
		EntryPrice: dec("100"),
		EntryTime:  time.Now(),
	}
	result := CheckExit(pos, dec("100.5"), 120, dec("0.003"), dec("0.003"), time.Now())
	assert.True(t, result.ShouldExit)
	assert.Equal(t, model.ExitTP, result.Reason)
}

func TestCheckExitStopLossShort(t *testing.T) {
	pos := model.Position{
		Side:       model.SideShort,
		EntryPrice: dec("100"),
		EntryTime:  time.Now(),
	}
	// price rose 0.5% against a short -> -0.5% PnL, beyond a 0.3% stop
	result := CheckExit(pos, dec("100.5"), 120, dec("0.003"), dec("0.003"), time.Now())
	assert.True(t, result.ShouldExit)
	assert.Equal(t, model.ExitSL, result.Reason)
}

func TestCheckExitNoneWhenWithinBand(t *testing.T) {
	pos := model.Position{
		Side:       model.SideLong,
		EntryPrice: dec("100"),
		EntryTime:  time.Now(),
	}
	result := CheckExit(pos, dec("100.1"), 120, dec("0.003"), dec("0.003"), time.Now())
	assert.False(t, result.ShouldExit)
}

func TestPnLPctSignsForSide(t *testing.T) {
	long := model.Position{Side: model.SideLong, EntryPrice: dec("100")}
	short := model.Position{Side: model.SideShort, EntryPrice: dec("100")}

	assert.True(t, PnLPct(long, dec("110")).Equal(dec("10")))
	assert.True(t, PnLPct(short, dec("110")).Equal(dec("-10")))
}
