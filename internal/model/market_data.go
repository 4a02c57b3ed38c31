package model

import "github.com/shopspring/decimal"

// Candle is one OHLCV bar.
type Candle struct {
	Open, High, Low, Close, Volume decimal.Decimal
	OpenTime                       int64
}

// Ticker24h is the exchange's rolling 24h summary for a symbol.
type Ticker24h struct {
	High       decimal.Decimal
	Low        decimal.Decimal
	ChangePct  decimal.Decimal
	Volume     decimal.Decimal
}

// MarketData is the derived snapshot a bot instance computes once per
// tick from raw candles, feeding every signal-ensemble voter.
type MarketData struct {
	Symbol       string
	CurrentPrice decimal.Decimal
	Candles      []Candle
	Ticker       Ticker24h

	RSI14        decimal.Decimal
	MA7          decimal.Decimal
	MA25         decimal.Decimal
	MA99         decimal.Decimal
	ATR14        decimal.Decimal
	VolumeRatio  decimal.Decimal
	MACDLine     decimal.Decimal
	MACDSignal   decimal.Decimal
	MACDHist     decimal.Decimal
	Support      decimal.Decimal
	Resistance   decimal.Decimal
}
