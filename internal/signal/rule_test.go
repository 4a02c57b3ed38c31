package signal

import (
	"context"
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

func TestRuleVoter(t *testing.T) {
	v := NewRuleVoter(dec("35"), dec("65"), dec("1.2"))

	t.Run("long when oversold, price above MA7, volume confirms", func(t *testing.T) {
		md := model.MarketData{CurrentPrice: dec("105000"), MA7: dec("104000"), RSI14: dec("30"), VolumeRatio: dec("1.5")}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalLong, sig.Kind)
	})

	t.Run("short when overbought, price below MA7, volume confirms", func(t *testing.T) {
		md := model.MarketData{CurrentPrice: dec("99000"), MA7: dec("100000"), RSI14: dec("70"), VolumeRatio: dec("1.5")}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalShort, sig.Kind)
	})

	t.Run("wait when RSI sits exactly on threshold", func(t *testing.T) {
		md := model.MarketData{CurrentPrice: dec("105000"), MA7: dec("104000"), RSI14: dec("35"), VolumeRatio: dec("1.5")}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalWait, sig.Kind)
	})

	t.Run("wait when volume doesn't confirm", func(t *testing.T) {
		md := model.MarketData{CurrentPrice: dec("105000"), MA7: dec("104000"), RSI14: dec("30"), VolumeRatio: dec("1.0")}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalWait, sig.Kind)
	})
}
