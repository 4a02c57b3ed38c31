package signal

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fluxtrade/perpbot/internal/model"
)

func TestScoreVoter(t *testing.T) {
	v := NewScoreVoter()

	t.Run("strong bullish alignment yields long", func(t *testing.T) {
		md := model.MarketData{
			CurrentPrice: dec("110000"),
			RSI14:        dec("15"),
			MA7:          dec("108000"),
			MA25:         dec("105000"),
			MA99:         dec("100000"),
			VolumeRatio:  dec("2.5"),
			ATR14:        dec("2000"),
			MACDLine:     dec("80"),
			MACDSignal:   dec("10"),
			MACDHist:     dec("70"),
		}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalLong, sig.Kind)
		assert.True(t, sig.Confidence.GreaterThan(decimal.Zero))
	})

	t.Run("strong bearish alignment yields short", func(t *testing.T) {
		md := model.MarketData{
			CurrentPrice: dec("90000"),
			RSI14:        dec("85"),
			MA7:          dec("95000"),
			MA25:         dec("100000"),
			MA99:         dec("105000"),
			VolumeRatio:  dec("2.5"),
			ATR14:        dec("2000"),
			MACDLine:     dec("-80"),
			MACDSignal:   dec("-10"),
			MACDHist:     dec("-70"),
		}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalShort, sig.Kind)
	})

	t.Run("flat market yields wait", func(t *testing.T) {
		md := model.MarketData{
			CurrentPrice: dec("100000"),
			RSI14:        dec("50"),
			MA7:          dec("100000"),
			MA25:         dec("100000"),
			MA99:         dec("100000"),
			VolumeRatio:  dec("1.0"),
			ATR14:        dec("500"),
			MACDLine:     dec("0"),
			MACDSignal:   dec("0"),
			MACDHist:     dec("0"),
		}
		sig, err := v.Evaluate(context.Background(), md, model.MemoryContext{})
		assert.NoError(t, err)
		assert.Equal(t, model.SignalWait, sig.Kind)
	})
}
