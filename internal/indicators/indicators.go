// Package indicators computes the technical-analysis fields of a
// model.MarketData snapshot from raw candles, using decimal.Decimal
// throughout to avoid float drift in price-sensitive comparisons.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Populate fills the derived fields of md from md.Candles. Candles must be
// in ascending time order with the most recent bar last. Safe to call with
// fewer candles than a given period; short series fall back to neutral
// defaults rather than erroring, matching the teacher's "not enough data"
// convention.
func Populate(md *model.MarketData) {
	closes := closePrices(md.Candles)

	md.RSI14 = RSI(closes, 14)
	md.MA7 = SMA(closes, 7)
	md.MA25 = SMA(closes, 25)
	md.MA99 = SMA(closes, 99)
	md.ATR14 = ATR(md.Candles, 14)
	md.MACDLine, md.MACDSignal, md.MACDHist = MACD(closes, 12, 26, 9)
	md.VolumeRatio = volumeRatio(md.Candles, 20)
	md.Support, md.Resistance = supportResistance(md.Candles, 20)
}

func closePrices(candles []model.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
func RSI(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) < period+1 {
		return decimal.NewFromInt(50)
	}

	gains := make([]decimal.Decimal, 0, len(prices)-1)
	losses := make([]decimal.Decimal, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i].Sub(prices[i-1])
		if change.IsPositive() {
			gains = append(gains, change)
			losses = append(losses, decimal.Zero)
		} else {
			gains = append(gains, decimal.Zero)
			losses = append(losses, change.Neg())
		}
	}

	if len(gains) < period {
		return decimal.NewFromInt(50)
	}

	avgGain := average(gains[:period])
	avgLoss := average(losses[:period])

	periodDec := decimal.NewFromInt(int64(period))
	periodMinus1 := decimal.NewFromInt(int64(period - 1))
	for i := period; i < len(gains); i++ {
		avgGain = avgGain.Mul(periodMinus1).Add(gains[i]).Div(periodDec)
		avgLoss = avgLoss.Mul(periodMinus1).Add(losses[i]).Div(periodDec)
	}

	if avgLoss.IsZero() {
		return hundred
	}

	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// EMA calculates the Exponential Moving Average.
func EMA(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	if len(prices) < period {
		return average(prices)
	}

	multiplier := two.Div(decimal.NewFromInt(int64(period + 1)))
	ema := average(prices[:period])
	for i := period; i < len(prices); i++ {
		ema = prices[i].Sub(ema).Mul(multiplier).Add(ema)
	}
	return ema
}

// SMA calculates the Simple Moving Average.
func SMA(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	if len(prices) < period {
		return average(prices)
	}
	return average(prices[len(prices)-period:])
}

// MACD returns the MACD line, its signal line, and their histogram. The
// signal line is tracked as an EMA of the MACD-line series itself rather
// than a fixed fraction of the current value.
func MACD(prices []decimal.Decimal, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram decimal.Decimal) {
	if len(prices) < slowPeriod {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	macdSeries := make([]decimal.Decimal, 0, len(prices)-slowPeriod+1)
	for i := slowPeriod; i <= len(prices); i++ {
		window := prices[:i]
		fastEMA := EMA(window, fastPeriod)
		slowEMA := EMA(window, slowPeriod)
		macdSeries = append(macdSeries, fastEMA.Sub(slowEMA))
	}

	line = macdSeries[len(macdSeries)-1]
	signal = EMA(macdSeries, signalPeriod)
	histogram = line.Sub(signal)
	return line, signal, histogram
}

// Momentum returns the percentage price change over period bars.
func Momentum(prices []decimal.Decimal, period int) decimal.Decimal {
	if len(prices) <= period {
		return decimal.Zero
	}
	current := prices[len(prices)-1]
	previous := prices[len(prices)-1-period]
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// Volatility returns the population standard deviation of prices.
func Volatility(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) < 2 {
		return decimal.Zero
	}
	avg := average(prices)
	sumSquares := decimal.Zero
	for _, p := range prices {
		diff := p.Sub(avg)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(prices))))
	return sqrt(variance)
}

// ATR calculates the Average True Range over candles as an SMA of the true
// range series, matching the teacher's rolling-average approach rather
// than full Wilder smoothing.
func ATR(candles []model.Candle, period int) decimal.Decimal {
	if len(candles) < period+1 {
		return decimal.Zero
	}

	trs := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		hl := high.Sub(low)
		hc := high.Sub(prevClose).Abs()
		lc := low.Sub(prevClose).Abs()

		tr := hl
		if hc.GreaterThan(tr) {
			tr = hc
		}
		if lc.GreaterThan(tr) {
			tr = lc
		}
		trs = append(trs, tr)
	}

	return SMA(trs, period)
}

// volumeRatio returns the most recent bar's volume divided by the average
// volume of the preceding `period` bars, or 1 if there isn't enough data.
func volumeRatio(candles []model.Candle, period int) decimal.Decimal {
	if len(candles) < period+1 {
		return decimal.NewFromInt(1)
	}
	window := candles[len(candles)-period-1 : len(candles)-1]
	volumes := make([]decimal.Decimal, len(window))
	for i, c := range window {
		volumes[i] = c.Volume
	}
	avgVol := average(volumes)
	if avgVol.IsZero() {
		return decimal.NewFromInt(1)
	}
	current := candles[len(candles)-1].Volume
	return current.Div(avgVol)
}

// supportResistance returns the min low and max high over the trailing
// `period` candles.
func supportResistance(candles []model.Candle, period int) (support, resistance decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}
	if len(candles) > period {
		candles = candles[len(candles)-period:]
	}
	support = candles[0].Low
	resistance = candles[0].High
	for _, c := range candles[1:] {
		if c.Low.LessThan(support) {
			support = c.Low
		}
		if c.High.GreaterThan(resistance) {
			resistance = c.High
		}
	}
	return support, resistance
}

func average(data []decimal.Decimal) decimal.Decimal {
	if len(data) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range data {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(data))))
}

// sqrt computes a decimal square root via Newton's method. Negative input
// returns zero since variance is never negative in practice.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}
	x := d
	for i := 0; i < 20; i++ {
		x = x.Add(d.Div(x)).Div(two)
	}
	return x
}
