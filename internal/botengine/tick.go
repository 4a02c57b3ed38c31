package botengine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/indicators"
	"github.com/fluxtrade/perpbot/internal/ledger"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/risk"
)

const klinesLookback = 24

// tick runs the six-step cycle described in the decision-loop design:
// snapshot, signal, emergency-close, reconcile/exit-check, entry, persist.
func (b *BotInstance) tick(ctx context.Context) error {
	b.mu.Lock()
	b.runtime.LoopCount++
	b.mu.Unlock()

	md, err := b.fetchMarketData(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.runtime.CurrentPrice = md.CurrentPrice
	b.mu.Unlock()

	ensembleResult := b.generateSignal(ctx, md)
	b.mu.Lock()
	b.runtime.LastSignal = ensembleResult.FinalSignal
	b.runtime.LastSignalTime = time.Now()
	b.mu.Unlock()
	b.metrics.SignalGenerated(b.cfg.BotID, ensembleResult.FinalSignal)
	if b.onSignal != nil {
		b.onSignal(b.cfg.BotID, ensembleResult.FinalSignal)
	}

	b.mu.RLock()
	emergency := b.runtime.EmergencyClose
	b.mu.RUnlock()

	if emergency {
		if err := b.closePosition(ctx, md.CurrentPrice, model.ExitManual); err != nil {
			b.logger().Error().Err(err).Msg("emergency close failed")
		}
		b.mu.Lock()
		b.runtime.EmergencyClose = false
		b.runtime.IsPaused = true
		b.mu.Unlock()
		return b.persistTick(ctx)
	}

	if err := b.reconcileAndExitCheck(ctx, md.CurrentPrice); err != nil {
		b.logger().Error().Err(err).Msg("reconcile/exit-check failed")
	}

	b.mu.RLock()
	hasPosition := b.runtime.Position != nil
	paused := b.runtime.IsPaused
	b.mu.RUnlock()

	if !hasPosition && !paused && (ensembleResult.FinalSignal == model.SignalLong || ensembleResult.FinalSignal == model.SignalShort) {
		if b.breaker.Check(b.equity(ctx)) {
			b.metrics.CircuitBreakerTripped(b.cfg.BotID)
		} else if err := b.enterPosition(ctx, ensembleResult.FinalSignal, md); err != nil {
			b.logger().Error().Err(err).Msg("entry failed")
		}
	}

	return b.persistTick(ctx)
}

func (b *BotInstance) fetchMarketData(ctx context.Context) (model.MarketData, error) {
	var md model.MarketData
	var err error

	err = withRetry(ctx, func() error {
		md.CurrentPrice, err = b.exchange.GetCurrentPrice(ctx, b.cfg.Symbol)
		return err
	})
	if err != nil {
		return md, err
	}

	err = withRetry(ctx, func() error {
		md.Candles, err = b.exchange.GetKlines(ctx, b.cfg.Symbol, "5m", klinesLookback)
		return err
	})
	if err != nil {
		return md, err
	}

	err = withRetry(ctx, func() error {
		md.Ticker, err = b.exchange.GetTicker24h(ctx, b.cfg.Symbol)
		return err
	})
	if err != nil {
		return md, err
	}

	md.Symbol = b.cfg.Symbol
	indicators.Populate(&md)
	return md, nil
}

// generateSignal runs the memory-augmented ensemble when enabled, and the
// synchronous rule voter otherwise. In ensemble mode a failing voter is
// only dropped from the vote; there is no fallback to the rule voter alone.
func (b *BotInstance) generateSignal(ctx context.Context, md model.MarketData) model.EnsembleResult {
	if b.useMemorySig && b.ensemble != nil {
		mem := model.MemoryContext{}
		if b.memory != nil {
			mem = b.memory.Build(b.cfg.BotID, 7)
		}
		return b.ensemble.Vote(ctx, md, mem)
	}

	if b.ruleVoter == nil {
		return model.EnsembleResult{FinalSignal: model.SignalWait, Metadata: "no sources"}
	}
	sig, err := b.ruleVoter.Evaluate(ctx, md, model.MemoryContext{})
	if err != nil {
		b.logger().Warn().Err(err).Msg("rule voter failed, defaulting to WAIT")
		return model.EnsembleResult{FinalSignal: model.SignalWait, Metadata: "rule voter error"}
	}
	return model.EnsembleResult{FinalSignal: sig.Kind, Signals: []model.IndividualSignal{sig}}
}

// reconcileAndExitCheck adopts the exchange's live position as canonical
// and applies the time-cut/TP/SL checks in that order; the first match
// wins.
func (b *BotInstance) reconcileAndExitCheck(ctx context.Context, currentPrice decimal.Decimal) error {
	livePos, err := b.exchange.GetPosition(ctx, b.cfg.Symbol)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if livePos == nil {
		b.runtime.Position = nil
		b.mu.Unlock()
		return nil
	}
	if b.runtime.Position == nil {
		b.runtime.Position = &model.Position{
			Side:       livePos.Side,
			EntryPrice: livePos.EntryPrice,
			Quantity:   livePos.Amount,
			Leverage:   livePos.Leverage,
			EntryTime:  time.Now(),
		}
	}
	pos := *b.runtime.Position
	b.mu.Unlock()

	check := risk.CheckExit(pos, currentPrice, b.cfg.EffectiveTimeCutMinutes(), b.cfg.EffectiveTakeProfitPct(), b.cfg.EffectiveStopLossPct(), time.Now())
	if check.ShouldExit {
		return b.closePosition(ctx, currentPrice, check.Reason)
	}
	return nil
}

// closePosition issues a reducing market order, updates the ledger row to
// CLOSED, clears local state, records the outcome against the circuit
// breaker, and fires onTrade.
func (b *BotInstance) closePosition(ctx context.Context, currentPrice decimal.Decimal, reason model.ExitReason) error {
	b.mu.RLock()
	pos := b.runtime.Position
	b.mu.RUnlock()
	if pos == nil {
		return nil
	}

	if _, err := b.exchange.ClosePosition(ctx, b.cfg.Symbol); err != nil {
		return err
	}
	exitPrice := currentPrice

	pnlPct := risk.PnLPct(*pos, exitPrice)
	pnl := pos.Quantity.Mul(pos.EntryPrice).Mul(pnlPct).Div(decimal.NewFromInt(100))

	if err := b.store.CloseTrade(b.cfg.BotID, time.Now(), exitPrice, pnl, pnlPct, reason); err != nil {
		b.logger().Error().Err(err).Msg("ledger close-trade failed")
		b.metrics.LedgerWriteFailed(b.cfg.BotID)
	}

	b.breaker.Record(pnl)

	b.mu.Lock()
	b.runtime.Position = nil
	b.mu.Unlock()

	b.state.DeletePosition(ctx, b.cfg.BotID)
	b.metrics.PositionOpen(b.cfg.BotID, false)

	if b.onTrade != nil {
		b.onTrade(OnTradeEvent{
			BotID:      b.cfg.BotID,
			Symbol:     b.cfg.Symbol,
			Kind:       "CLOSE",
			Side:       pos.Side,
			Price:      exitPrice,
			Quantity:   pos.Quantity,
			PnL:        pnl,
			ExitReason: reason,
		})
	}
	return nil
}

// enterPosition sizes, sets leverage, places a market order, and records
// a new OPEN ledger row.
func (b *BotInstance) enterPosition(ctx context.Context, kind model.SignalKind, md model.MarketData) error {
	leverage := b.cfg.EffectiveLeverage()
	qty := b.sizer.Quantity(b.cfg.Symbol, b.cfg.EffectivePositionSizePct(), leverage, md.CurrentPrice, b.equity(ctx))
	if qty.IsZero() {
		return nil
	}

	if err := b.exchange.SetLeverage(ctx, b.cfg.Symbol, leverage); err != nil {
		return err
	}

	side := exchange.OrderBuy
	posSide := model.SideLong
	if kind == model.SignalShort {
		side = exchange.OrderSell
		posSide = model.SideShort
	}

	order, err := b.exchange.CreateMarketOrder(ctx, b.cfg.Symbol, side, qty)
	if err != nil {
		return err
	}

	tradeID := model.NewUUID()
	now := time.Now()

	row := &ledger.TradeLedgerRow{
		BotID:      b.cfg.BotID,
		Symbol:     b.cfg.Symbol,
		Side:       string(posSide),
		EntryTime:  now,
		EntryPrice: md.CurrentPrice,
		Quantity:   order.FilledQty,
		Leverage:   leverage,
		RSIAtEntry: md.RSI14,
	}
	if err := b.store.OpenTrade(row); err != nil {
		b.logger().Error().Err(err).Msg("ledger open-trade failed")
		b.metrics.LedgerWriteFailed(b.cfg.BotID)
	}

	b.mu.Lock()
	b.runtime.Position = &model.Position{
		Side:       posSide,
		EntryPrice: md.CurrentPrice,
		Quantity:   order.FilledQty,
		EntryTime:  now,
		Leverage:   leverage,
		TradeID:    tradeID,
		OrderID:    order.OrderID,
	}
	b.mu.Unlock()

	b.metrics.PositionOpen(b.cfg.BotID, true)

	if b.onTrade != nil {
		b.onTrade(OnTradeEvent{
			BotID:    b.cfg.BotID,
			Symbol:   b.cfg.Symbol,
			Kind:     "OPEN",
			Side:     posSide,
			Price:    md.CurrentPrice,
			Quantity: order.FilledQty,
		})
	}
	return nil
}

func (b *BotInstance) equity(ctx context.Context) decimal.Decimal {
	if b.notionalSource != nil {
		return b.notionalSource(ctx)
	}
	balance, err := b.exchange.GetAccountBalance(ctx)
	if err != nil {
		return decimal.Zero
	}
	return balance.Available
}

func (b *BotInstance) persistTick(ctx context.Context) error {
	runtime := b.Snapshot()
	b.persist(ctx, runtime)
	return nil
}

func (b *BotInstance) persist(ctx context.Context, runtime model.BotRuntimeState) {
	if !b.state.SaveBotState(ctx, b.cfg.BotID, runtime) {
		b.metrics.StateStoreSyncFailed(b.cfg.BotID)
	}
	if runtime.Position != nil {
		b.state.SavePosition(ctx, b.cfg.BotID, *runtime.Position)
	} else {
		b.state.DeletePosition(ctx, b.cfg.BotID)
	}
}
