package signal

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

// ScoreWeights is the default per-factor weighting of the six-factor
// composite score. Every weight sums to 1.0.
var ScoreWeights = map[string]decimal.Decimal{
	"rsi":            decimal.NewFromFloat(0.25),
	"ma_trend":       decimal.NewFromFloat(0.25),
	"volume":         decimal.NewFromFloat(0.15),
	"atr":            decimal.NewFromFloat(0.10),
	"macd":           decimal.NewFromFloat(0.15),
	"price_position": decimal.NewFromFloat(0.10),
}

const (
	longScoreThreshold  = 0.2
	shortScoreThreshold = -0.2
)

// subScore is one factor's contribution: a value in [-1,1], its weight,
// and the reason string surfaced when it's among the top-3 movers.
type subScore struct {
	name   string
	value  decimal.Decimal
	weight decimal.Decimal
	reason string
}

func (s subScore) weighted() decimal.Decimal { return s.value.Mul(s.weight) }

// ScoreVoter computes a weighted composite of six technical sub-scores
// (RSI, MA alignment, volume, ATR band, MACD histogram, price-vs-MA25
// position), each independently clamped to [-1,1].
type ScoreVoter struct {
	Weights        map[string]decimal.Decimal
	LongThreshold  decimal.Decimal
	ShortThreshold decimal.Decimal
}

// NewScoreVoter builds a ScoreVoter using the default weights and
// thresholds.
func NewScoreVoter() *ScoreVoter {
	return &ScoreVoter{
		Weights:        ScoreWeights,
		LongThreshold:  decimal.NewFromFloat(longScoreThreshold),
		ShortThreshold: decimal.NewFromFloat(shortScoreThreshold),
	}
}

func (v *ScoreVoter) Source() string { return "score" }

func (v *ScoreVoter) Evaluate(_ context.Context, md model.MarketData, _ model.MemoryContext) (model.IndividualSignal, error) {
	scores := []subScore{
		v.scoreRSI(md.RSI14),
		v.scoreMATrend(md.MA7, md.MA25, md.MA99),
		v.scoreVolume(md.VolumeRatio),
		v.scoreATR(md.ATR14, md.CurrentPrice),
		v.scoreMACD(md.MACDHist),
		v.scorePricePosition(md.CurrentPrice, md.MA25),
	}

	totalWeight := decimal.Zero
	weightedSum := decimal.Zero
	for _, s := range scores {
		totalWeight = totalWeight.Add(s.weight)
		weightedSum = weightedSum.Add(s.weighted())
	}

	total := decimal.Zero
	if totalWeight.IsPositive() {
		total = weightedSum.Div(totalWeight)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].value.Abs().GreaterThan(scores[j].value.Abs())
	})
	reasons := make([]string, 0, 3)
	for i := 0; i < len(scores) && i < 3; i++ {
		reasons = append(reasons, scores[i].reason)
	}

	sig := model.IndividualSignal{
		Source:     v.Source(),
		Confidence: decimalMin(total.Abs(), decimal.NewFromInt(1)),
		Weight:     DefaultWeights[v.Source()],
		Reason:     joinReasons(reasons),
	}

	switch {
	case total.GreaterThanOrEqual(v.LongThreshold):
		sig.Kind = model.SignalLong
	case total.LessThanOrEqual(v.ShortThreshold):
		sig.Kind = model.SignalShort
	default:
		sig.Kind = model.SignalWait
	}

	return sig, nil
}

func (v *ScoreVoter) scoreRSI(rsi decimal.Decimal) subScore {
	w := v.Weights["rsi"]
	f := func() float64 { r, _ := rsi.Float64(); return r }
	r := f()

	var score decimal.Decimal
	var reason string
	switch {
	case r < 20:
		score = decimal.NewFromFloat(1.0)
		reason = fmt.Sprintf("RSI deeply oversold (%.1f)", r)
	case r < 30:
		score = decimal.NewFromFloat(0.8 + (30-r)/50)
		reason = fmt.Sprintf("RSI oversold (%.1f)", r)
	case r < 40:
		score = decimal.NewFromFloat(0.3 + (40-r)/25)
		reason = fmt.Sprintf("RSI near low (%.1f)", r)
	case r <= 60:
		score = decimal.Zero
		reason = fmt.Sprintf("RSI neutral (%.1f)", r)
	case r <= 70:
		score = decimal.NewFromFloat(-0.3 - (r-60)/25)
		reason = fmt.Sprintf("RSI near high (%.1f)", r)
	case r <= 80:
		score = decimal.NewFromFloat(-0.8 - (r-70)/50)
		reason = fmt.Sprintf("RSI overbought (%.1f)", r)
	default:
		score = decimal.NewFromFloat(-1.0)
		reason = fmt.Sprintf("RSI deeply overbought (%.1f)", r)
	}

	return subScore{name: "rsi", value: score, weight: w, reason: reason}
}

func (v *ScoreVoter) scoreMATrend(ma7, ma25, ma99 decimal.Decimal) subScore {
	w := v.Weights["ma_trend"]
	if ma7.IsZero() || ma25.IsZero() {
		return subScore{name: "ma_trend", value: decimal.Zero, weight: w, reason: "insufficient MA data"}
	}

	var score decimal.Decimal
	var reason string
	switch {
	case ma99.IsPositive() && ma7.GreaterThan(ma25) && ma25.GreaterThan(ma99):
		score, reason = decimal.NewFromFloat(0.8), "full bullish MA alignment (MA7>MA25>MA99)"
	case ma99.IsPositive() && ma7.LessThan(ma25) && ma25.LessThan(ma99):
		score, reason = decimal.NewFromFloat(-0.8), "full bearish MA alignment (MA7<MA25<MA99)"
	case ma7.GreaterThan(ma25):
		score, reason = decimal.NewFromFloat(0.5), "MA uptrend (MA7>MA25)"
	case ma7.LessThan(ma25):
		score, reason = decimal.NewFromFloat(-0.5), "MA downtrend (MA7<MA25)"
	default:
		score, reason = decimal.Zero, "MA mixed"
	}

	return subScore{name: "ma_trend", value: score, weight: w, reason: reason}
}

func (v *ScoreVoter) scoreVolume(ratio decimal.Decimal) subScore {
	w := v.Weights["volume"]
	f, _ := ratio.Float64()

	var score decimal.Decimal
	var reason string
	switch {
	case f > 2.0:
		score, reason = decimal.NewFromFloat(0.5), fmt.Sprintf("high volume (%.1fx)", f)
	case f > 1.5:
		score, reason = decimal.NewFromFloat(0.3), fmt.Sprintf("elevated volume (%.1fx)", f)
	case f > 0.8:
		score, reason = decimal.Zero, fmt.Sprintf("normal volume (%.1fx)", f)
	default:
		score, reason = decimal.NewFromFloat(-0.2), fmt.Sprintf("low volume (%.1fx)", f)
	}

	return subScore{name: "volume", value: score, weight: w, reason: reason}
}

func (v *ScoreVoter) scoreATR(atr, price decimal.Decimal) subScore {
	w := v.Weights["atr"]
	if price.IsZero() {
		return subScore{name: "atr", value: decimal.Zero, weight: w, reason: "no price"}
	}
	pct := atr.Div(price).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()

	var score decimal.Decimal
	var reason string
	switch {
	case f > 3.0:
		score, reason = decimal.NewFromFloat(-0.3), fmt.Sprintf("high volatility (ATR %.1f%%)", f)
	case f > 1.5:
		score, reason = decimal.NewFromFloat(0.2), fmt.Sprintf("healthy volatility (ATR %.1f%%)", f)
	case f > 0.5:
		score, reason = decimal.Zero, fmt.Sprintf("low volatility (ATR %.1f%%)", f)
	default:
		score, reason = decimal.NewFromFloat(-0.2), fmt.Sprintf("very low volatility (ATR %.1f%%)", f)
	}

	return subScore{name: "atr", value: score, weight: w, reason: reason}
}

func (v *ScoreVoter) scoreMACD(histogram decimal.Decimal) subScore {
	w := v.Weights["macd"]
	h, _ := histogram.Float64()

	var score decimal.Decimal
	var reason string
	switch {
	case h > 50:
		score, reason = decimal.NewFromFloat(0.8), "strong bullish MACD momentum"
	case h > 0:
		s := 0.3 + minFloat(h/100, 0.5)
		score, reason = decimal.NewFromFloat(s), "bullish MACD momentum"
	case h < -50:
		score, reason = decimal.NewFromFloat(-0.8), "strong bearish MACD momentum"
	case h < 0:
		s := -0.3 + maxFloat(h/100, -0.5)
		score, reason = decimal.NewFromFloat(s), "bearish MACD momentum"
	default:
		score, reason = decimal.Zero, "MACD neutral"
	}

	return subScore{name: "macd", value: score, weight: w, reason: reason}
}

func (v *ScoreVoter) scorePricePosition(price, ma25 decimal.Decimal) subScore {
	w := v.Weights["price_position"]
	if ma25.IsZero() {
		return subScore{name: "price_position", value: decimal.Zero, weight: w, reason: "no MA25"}
	}
	pct := price.Sub(ma25).Div(ma25).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()

	var score decimal.Decimal
	var reason string
	switch {
	case f > 3:
		score, reason = decimal.NewFromFloat(-0.3), fmt.Sprintf("price %.1f%% above MA25 (overheated)", f)
	case f > 1:
		score, reason = decimal.NewFromFloat(0.2), fmt.Sprintf("price %.1f%% above MA25", f)
	case f < -3:
		score, reason = decimal.NewFromFloat(0.3), fmt.Sprintf("price %.1f%% below MA25 (oversold)", -f)
	case f < -1:
		score, reason = decimal.NewFromFloat(-0.2), fmt.Sprintf("price %.1f%% below MA25", -f)
	default:
		score, reason = decimal.Zero, "price near MA25"
	}

	return subScore{name: "price_position", value: score, weight: w, reason: reason}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ", "
		}
		out += r
	}
	return out
}
