package signal

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fluxtrade/perpbot/internal/model"
)

type stubVoter struct {
	source string
	kind   model.SignalKind
	weight decimal.Decimal
	err    error
}

func (s stubVoter) Source() string { return s.source }

func (s stubVoter) Evaluate(_ context.Context, _ model.MarketData, _ model.MemoryContext) (model.IndividualSignal, error) {
	if s.err != nil {
		return model.IndividualSignal{}, s.err
	}
	return model.IndividualSignal{Source: s.source, Kind: s.kind, Confidence: decimal.NewFromInt(1), Weight: s.weight}, nil
}

func TestEnsembleVote(t *testing.T) {
	t.Run("no voters returns wait with metadata", func(t *testing.T) {
		e := NewEnsemble()
		result := e.Vote(context.Background(), model.MarketData{}, model.MemoryContext{})
		assert.Equal(t, model.SignalWait, result.FinalSignal)
		assert.Equal(t, "no sources", result.Metadata)
	})

	t.Run("weighted threshold crossing decides over consensus", func(t *testing.T) {
		e := NewEnsemble(
			stubVoter{source: "ai", kind: model.SignalLong, weight: decimal.NewFromFloat(0.4)},
			stubVoter{source: "rule", kind: model.SignalShort, weight: decimal.NewFromFloat(0.3)},
			stubVoter{source: "score", kind: model.SignalLong, weight: decimal.NewFromFloat(0.3)},
		)
		result := e.Vote(context.Background(), model.MarketData{}, model.MemoryContext{})
		assert.Equal(t, model.SignalLong, result.FinalSignal)
	})

	t.Run("failing voter is excluded, remaining vote still counts", func(t *testing.T) {
		e := NewEnsemble(
			stubVoter{source: "rule", kind: model.SignalLong, weight: decimal.NewFromFloat(0.3)},
			stubVoter{source: "score", kind: model.SignalLong, weight: decimal.NewFromFloat(0.3)},
			stubVoter{source: "ai", err: assertError{}},
		)
		result := e.Vote(context.Background(), model.MarketData{}, model.MemoryContext{})
		assert.Equal(t, model.SignalLong, result.FinalSignal)
		assert.Len(t, result.Signals, 2)
	})

	t.Run("split vote below weighted threshold falls to wait", func(t *testing.T) {
		e := NewEnsemble(
			stubVoter{source: "rule", kind: model.SignalLong, weight: decimal.NewFromFloat(0.3)},
			stubVoter{source: "score", kind: model.SignalShort, weight: decimal.NewFromFloat(0.3)},
		)
		result := e.Vote(context.Background(), model.MarketData{}, model.MemoryContext{})
		assert.Equal(t, model.SignalWait, result.FinalSignal)
	})
}

type assertError struct{}

func (assertError) Error() string { return "stub failure" }
