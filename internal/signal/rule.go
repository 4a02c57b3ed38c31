package signal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

// RuleVoter is the deterministic threshold-crossing voter: LONG when RSI is
// oversold, price is above MA7, and volume confirms; SHORT for the
// symmetric overbought case; WAIT otherwise. All comparisons are strict —
// a value sitting exactly on a threshold never triggers.
type RuleVoter struct {
	RSIOversold     decimal.Decimal
	RSIOverbought   decimal.Decimal
	VolumeThreshold decimal.Decimal
}

// NewRuleVoter builds a RuleVoter from a bot's effective thresholds.
func NewRuleVoter(rsiOversold, rsiOverbought, volumeThreshold decimal.Decimal) *RuleVoter {
	return &RuleVoter{
		RSIOversold:     rsiOversold,
		RSIOverbought:   rsiOverbought,
		VolumeThreshold: volumeThreshold,
	}
}

func (v *RuleVoter) Source() string { return "rule" }

func (v *RuleVoter) Evaluate(_ context.Context, md model.MarketData, _ model.MemoryContext) (model.IndividualSignal, error) {
	long := md.RSI14.LessThan(v.RSIOversold) &&
		md.CurrentPrice.GreaterThan(md.MA7) &&
		md.VolumeRatio.GreaterThan(v.VolumeThreshold)

	short := md.RSI14.GreaterThan(v.RSIOverbought) &&
		md.CurrentPrice.LessThan(md.MA7) &&
		md.VolumeRatio.GreaterThan(v.VolumeThreshold)

	sig := model.IndividualSignal{
		Source:     v.Source(),
		Confidence: decimal.NewFromInt(1),
		Weight:     DefaultWeights[v.Source()],
	}

	switch {
	case long:
		sig.Kind = model.SignalLong
		sig.Reason = fmt.Sprintf("RSI %s below oversold %s, price above MA7, volume %sx", md.RSI14.StringFixed(1), v.RSIOversold.StringFixed(1), md.VolumeRatio.StringFixed(2))
	case short:
		sig.Kind = model.SignalShort
		sig.Reason = fmt.Sprintf("RSI %s above overbought %s, price below MA7, volume %sx", md.RSI14.StringFixed(1), v.RSIOverbought.StringFixed(1), md.VolumeRatio.StringFixed(2))
	default:
		sig.Kind = model.SignalWait
		sig.Reason = "no threshold crossing"
	}

	return sig, nil
}
