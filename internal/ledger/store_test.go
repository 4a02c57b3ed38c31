package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxtrade/perpbot/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/ledger.db")
	require.NoError(t, err)
	return s
}

func TestStoreOpenCloseTrade(t *testing.T) {
	s := newTestStore(t)

	row := &TradeLedgerRow{
		BotID:      "bot-1",
		Symbol:     "BTCUSDT",
		Side:       "LONG",
		EntryTime:  time.Now().Add(-time.Hour),
		EntryPrice: dec("100000"),
		Quantity:   dec("0.01"),
		Leverage:   15,
		RSIAtEntry: dec("28"),
	}
	require.NoError(t, s.OpenTrade(row))
	assert.NotZero(t, row.ID)

	open, err := s.GetOpenTrade("bot-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "OPEN", open.Status)

	err = s.CloseTrade("bot-1", time.Now(), dec("100400"), dec("40"), dec("0.4"), model.ExitTP)
	require.NoError(t, err)

	open, err = s.GetOpenTrade("bot-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	recent, err := s.RecentClosedTrades("bot-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "CLOSED", recent[0].Status)
	assert.Equal(t, "TP", recent[0].ExitReason)
	require.NotNil(t, recent[0].PnL)
	assert.True(t, recent[0].PnL.Equal(decimal.NewFromInt(40)))
}

func TestStoreCloseTradeWithoutOpen(t *testing.T) {
	s := newTestStore(t)
	err := s.CloseTrade("no-such-bot", time.Now(), dec("1"), dec("0"), dec("0"), model.ExitManual)
	assert.ErrorIs(t, err, errNoOpenTrade)
}

func TestMemoryContextBuilderEmptyWhenNoTrades(t *testing.T) {
	s := newTestStore(t)
	b := NewMemoryContextBuilder(s)
	ctx := b.Build("bot-1", 7)
	assert.True(t, ctx.IsEmpty())
}

func TestMemoryContextBuilderSummarizesClosedTrades(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 6; i++ {
		row := &TradeLedgerRow{
			BotID:      "bot-1",
			Symbol:     "BTCUSDT",
			Side:       "LONG",
			EntryTime:  time.Now().Add(-time.Hour),
			EntryPrice: dec("100000"),
			Quantity:   dec("0.01"),
			Leverage:   15,
			RSIAtEntry: dec("25"),
		}
		require.NoError(t, s.OpenTrade(row))
		require.NoError(t, s.CloseTrade("bot-1", time.Now(), dec("100500"), dec("50"), dec("0.5"), model.ExitTP))
	}

	b := NewMemoryContextBuilder(s)
	ctx := b.Build("bot-1", 7)
	assert.False(t, ctx.IsEmpty())
	assert.Contains(t, ctx.OverallSummary, "6 trades")
	assert.Contains(t, ctx.BestConditions, "LONG")
}
