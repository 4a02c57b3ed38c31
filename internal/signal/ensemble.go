// Package signal implements the three-source signal ensemble: a
// deterministic rule voter, a six-factor weighted score voter, and an
// optional memory-augmented AI voter, combined by weighted vote with a
// consensus fallback.
package signal

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

// DefaultWeights is the default per-source weighting of the ensemble
// vote: AI carries the most weight when present, rule and score split
// the remainder evenly.
var DefaultWeights = map[string]decimal.Decimal{
	"ai":    decimal.NewFromFloat(0.4),
	"rule":  decimal.NewFromFloat(0.3),
	"score": decimal.NewFromFloat(0.3),
}

const (
	defaultConsensusThreshold = 2.0 / 3.0
	defaultWeightedThreshold  = 0.3
)

// Voter is a single signal source in the ensemble.
type Voter interface {
	Source() string
	Evaluate(ctx context.Context, md model.MarketData, mem model.MemoryContext) (model.IndividualSignal, error)
}

// Ensemble combines a set of voters into one EnsembleResult per tick.
type Ensemble struct {
	Voters             []Voter
	ConsensusThreshold decimal.Decimal
	WeightedThreshold  decimal.Decimal
}

// NewEnsemble builds an Ensemble with the default consensus/weighted
// thresholds from the given voters.
func NewEnsemble(voters ...Voter) *Ensemble {
	return &Ensemble{
		Voters:             voters,
		ConsensusThreshold: decimal.NewFromFloat(defaultConsensusThreshold),
		WeightedThreshold:  decimal.NewFromFloat(defaultWeightedThreshold),
	}
}

// Vote runs every voter (isolating per-source failures) and applies the
// weighted-vote decision precedence: weighted-threshold crossing first,
// then 2/3 consensus among present sources, else WAIT.
func (e *Ensemble) Vote(ctx context.Context, md model.MarketData, mem model.MemoryContext) model.EnsembleResult {
	signals := make([]model.IndividualSignal, 0, len(e.Voters))

	for _, voter := range e.Voters {
		sig, err := voter.Evaluate(ctx, md, mem)
		if err != nil {
			log.Warn().Str("source", voter.Source()).Err(err).Msg("signal voter failed, excluding from vote")
			continue
		}
		signals = append(signals, sig)
	}

	if len(signals) == 0 {
		return model.EnsembleResult{
			FinalSignal: model.SignalWait,
			Metadata:    "no sources",
		}
	}

	totalWeight := decimal.Zero
	weightedSum := decimal.Zero
	counts := map[model.SignalKind]int{}
	for _, sig := range signals {
		totalWeight = totalWeight.Add(sig.Weight)
		weightedSum = weightedSum.Add(sig.WeightedVote())
		counts[sig.Kind]++
	}

	weightedScore := decimal.Zero
	if totalWeight.IsPositive() {
		weightedScore = weightedSum.Div(totalWeight)
	}

	total := decimal.NewFromInt(int64(len(signals)))
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	consensusRatio := decimal.NewFromInt(int64(maxCount)).Div(total)

	result := model.EnsembleResult{
		Signals:        signals,
		ConsensusRatio: consensusRatio,
		WeightedScore:  weightedScore,
	}

	switch {
	case weightedScore.Abs().GreaterThanOrEqual(e.WeightedThreshold):
		if weightedScore.IsPositive() {
			result.FinalSignal = model.SignalLong
		} else {
			result.FinalSignal = model.SignalShort
		}
	case decimal.NewFromInt(int64(counts[model.SignalLong])).Div(total).GreaterThanOrEqual(e.ConsensusThreshold):
		result.FinalSignal = model.SignalLong
	case decimal.NewFromInt(int64(counts[model.SignalShort])).Div(total).GreaterThanOrEqual(e.ConsensusThreshold):
		result.FinalSignal = model.SignalShort
	default:
		result.FinalSignal = model.SignalWait
	}

	return result
}
