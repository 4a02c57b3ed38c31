package model

import "github.com/shopspring/decimal"

// IndividualSignal is the output of a single voter in the ensemble.
type IndividualSignal struct {
	Source     string
	Kind       SignalKind
	Confidence decimal.Decimal // [0,1]
	Weight     decimal.Decimal // >= 0
	Reason     string
}

// WeightedVote returns this signal's contribution to the ensemble's
// weighted score: LONG -> +weight*confidence, SHORT -> -weight*confidence,
// WAIT -> 0.
func (s IndividualSignal) WeightedVote() decimal.Decimal {
	switch s.Kind {
	case SignalLong:
		return s.Weight.Mul(s.Confidence)
	case SignalShort:
		return s.Weight.Mul(s.Confidence).Neg()
	default:
		return decimal.Zero
	}
}

// EnsembleResult is the aggregated decision across all present voters.
type EnsembleResult struct {
	FinalSignal    SignalKind
	Signals        []IndividualSignal
	ConsensusRatio decimal.Decimal
	WeightedScore  decimal.Decimal
	Metadata       string
}
