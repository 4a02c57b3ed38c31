package botengine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/ledger"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/risk"
	"github.com/fluxtrade/perpbot/internal/statestore"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// stubVoter always returns the configured kind, bypassing the real rule
// evaluation so tests can drive entry/exit deterministically.
type stubVoter struct{ kind model.SignalKind }

func (v stubVoter) Source() string { return "stub" }
func (v stubVoter) Evaluate(_ context.Context, _ model.MarketData, _ model.MemoryContext) (model.IndividualSignal, error) {
	return model.IndividualSignal{Source: "stub", Kind: v.kind, Confidence: decimal.NewFromInt(1), Weight: decimal.NewFromInt(1)}, nil
}

type fakeExchange struct {
	price    decimal.Decimal
	position *exchange.ExchangePosition
	closed   bool
}

func (f *fakeExchange) GetCurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.price, nil
}
func (f *fakeExchange) GetKlines(_ context.Context, _, _ string, limit int) ([]model.Candle, error) {
	candles := make([]model.Candle, limit)
	for i := range candles {
		candles[i] = model.Candle{Open: f.price, High: f.price, Low: f.price, Close: f.price, Volume: dec("100")}
	}
	return candles, nil
}
func (f *fakeExchange) GetTicker24h(_ context.Context, _ string) (model.Ticker24h, error) {
	return model.Ticker24h{High: f.price, Low: f.price, Volume: dec("1000")}, nil
}
func (f *fakeExchange) SetLeverage(_ context.Context, _ string, _ int32) error { return nil }
func (f *fakeExchange) CreateMarketOrder(_ context.Context, _ string, side exchange.OrderSide, quantity decimal.Decimal) (exchange.OrderResult, error) {
	posSide := model.SideLong
	if side == exchange.OrderSell {
		posSide = model.SideShort
	}
	f.position = &exchange.ExchangePosition{Side: posSide, Amount: quantity, EntryPrice: f.price, Leverage: 10}
	return exchange.OrderResult{OrderID: "order-1", FilledQty: quantity}, nil
}
func (f *fakeExchange) GetPosition(_ context.Context, _ string) (*exchange.ExchangePosition, error) {
	return f.position, nil
}
func (f *fakeExchange) ClosePosition(_ context.Context, _ string) (*exchange.OrderResult, error) {
	f.closed = true
	f.position = nil
	return &exchange.OrderResult{OrderID: "order-2"}, nil
}
func (f *fakeExchange) GetAccountBalance(_ context.Context) (exchange.AccountBalance, error) {
	return exchange.AccountBalance{Available: dec("1000")}, nil
}

var _ exchange.Exchange = (*fakeExchange)(nil)

func newTestInstance(t *testing.T, ex *fakeExchange, voter stubVoter) *BotInstance {
	t.Helper()

	cfg, err := model.NewBotConfig("primary", "BTCUSDT", model.RiskMedium)
	require.NoError(t, err)

	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	return New(Params{
		Config:         cfg,
		Exchange:       ex,
		Store:          store,
		State:          statestore.NewDummyStore(),
		Breaker:        risk.NewCircuitBreaker(3, dec("0.5"), time.Hour),
		Sizer:          risk.NewFixedCapitalSizer(dec("1000")),
		UseMemorySignal: false,
		RuleVoter:      voter,
		Interval:       time.Hour,
	})
}

func TestTickEntersPositionOnSignal(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalLong})

	require.NoError(t, bot.tick(context.Background()))

	snap := bot.Snapshot()
	require.NotNil(t, snap.Position)
	assert.Equal(t, model.SideLong, snap.Position.Side)
	assert.NotNil(t, ex.position)
}

func TestTickClosesOnTakeProfit(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalLong})

	require.NoError(t, bot.tick(context.Background()))
	require.NotNil(t, bot.Snapshot().Position)

	// Risk-medium default take-profit is 0.4%; move price up 1%.
	ex.price = dec("50500")
	require.NoError(t, bot.tick(context.Background()))

	assert.Nil(t, bot.Snapshot().Position)
	assert.True(t, ex.closed)
}

func TestTickSkipsEntryWhenPaused(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalLong})
	bot.Pause()

	require.NoError(t, bot.tick(context.Background()))
	assert.Nil(t, bot.Snapshot().Position)
}

func TestTickEmergencyCloseClearsPositionAndPauses(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalLong})

	require.NoError(t, bot.tick(context.Background()))
	require.NotNil(t, bot.Snapshot().Position)

	bot.EmergencyClose()
	require.NoError(t, bot.tick(context.Background()))

	snap := bot.Snapshot()
	assert.Nil(t, snap.Position)
	assert.True(t, snap.IsPaused)
	assert.True(t, ex.closed)
}

func TestTickSkipsEntryWhenCircuitBreakerTripped(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalLong})
	bot.breaker.RecordLoss(dec("-1"))
	bot.breaker.RecordLoss(dec("-1"))
	bot.breaker.RecordLoss(dec("-1"))
	require.True(t, bot.breaker.IsTripped())

	require.NoError(t, bot.tick(context.Background()))
	assert.Nil(t, bot.Snapshot().Position)
}

func TestStartAndStopLifecycle(t *testing.T) {
	ex := &fakeExchange{price: dec("50000")}
	bot := newTestInstance(t, ex, stubVoter{kind: model.SignalWait})

	require.NoError(t, bot.Start(context.Background()))
	assert.True(t, bot.Snapshot().IsRunning)

	bot.Stop(context.Background())
	assert.False(t, bot.Snapshot().IsRunning)
}
