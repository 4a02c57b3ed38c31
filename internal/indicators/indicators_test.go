package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fluxtrade/perpbot/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

func TestRSI(t *testing.T) {
	t.Run("not enough data returns neutral", func(t *testing.T) {
		assert.True(t, RSI(decs("100", "101"), 14).Equal(decimal.NewFromInt(50)))
	})

	t.Run("all gains approaches 100", func(t *testing.T) {
		prices := decs("100", "101", "102", "103", "104", "105", "106", "107", "108", "109", "110", "111", "112", "113", "114")
		rsi := RSI(prices, 14)
		assert.True(t, rsi.Equal(decimal.NewFromInt(100)), "expected 100, got %s", rsi)
	})

	t.Run("all losses approaches 0", func(t *testing.T) {
		prices := decs("114", "113", "112", "111", "110", "109", "108", "107", "106", "105", "104", "103", "102", "101", "100")
		rsi := RSI(prices, 14)
		assert.True(t, rsi.Equal(decimal.Zero), "expected 0, got %s", rsi)
	})
}

func TestSMA(t *testing.T) {
	t.Run("fewer prices than period averages what exists", func(t *testing.T) {
		got := SMA(decs("1", "2", "3"), 5)
		assert.True(t, got.Equal(dec("2")))
	})

	t.Run("exact window", func(t *testing.T) {
		got := SMA(decs("1", "2", "3", "4"), 2)
		assert.True(t, got.Equal(dec("3.5")))
	})
}

func TestEMA(t *testing.T) {
	t.Run("empty returns zero", func(t *testing.T) {
		assert.True(t, EMA(nil, 5).IsZero())
	})

	t.Run("constant series equals that constant", func(t *testing.T) {
		got := EMA(decs("10", "10", "10", "10", "10"), 3)
		assert.True(t, got.Equal(dec("10")))
	})
}

func TestATR(t *testing.T) {
	candles := []model.Candle{
		{High: dec("105"), Low: dec("95"), Close: dec("100")},
		{High: dec("106"), Low: dec("96"), Close: dec("101")},
		{High: dec("107"), Low: dec("97"), Close: dec("102")},
	}

	t.Run("insufficient candles returns zero", func(t *testing.T) {
		assert.True(t, ATR(candles, 14).IsZero())
	})

	t.Run("constant range true range equals the range", func(t *testing.T) {
		got := ATR(candles, 2)
		assert.True(t, got.Equal(dec("10")), "expected 10, got %s", got)
	})
}

func TestPopulate(t *testing.T) {
	md := &model.MarketData{
		Symbol: "BTCUSDT",
		Candles: []model.Candle{
			{Open: dec("100"), High: dec("102"), Low: dec("98"), Close: dec("101"), Volume: dec("10")},
			{Open: dec("101"), High: dec("103"), Low: dec("99"), Close: dec("102"), Volume: dec("12")},
			{Open: dec("102"), High: dec("104"), Low: dec("100"), Close: dec("103"), Volume: dec("8")},
		},
	}

	Populate(md)

	assert.False(t, md.RSI14.IsZero())
	assert.True(t, md.Support.LessThanOrEqual(md.Resistance))
	assert.True(t, md.MA7.Equal(SMA(closePrices(md.Candles), 7)))
}
