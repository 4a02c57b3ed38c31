// Package botengine implements BotInstance, the per-bot decision loop:
// fetch market data, generate a signal, reconcile and exit-check any open
// position, gate and place new entries, then persist state — once per
// tick, forever, until stopped.
package botengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/ledger"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/risk"
	"github.com/fluxtrade/perpbot/internal/signal"
	"github.com/fluxtrade/perpbot/internal/statestore"
)

// Metrics is the instrumentation surface a BotInstance calls into on
// every tick. Defined here (the consumer) rather than in the producing
// package, since obsmetrics is just one possible implementation.
type Metrics interface {
	TickCompleted(botID string)
	SignalGenerated(botID string, kind model.SignalKind)
	LedgerWriteFailed(botID string)
	StateStoreSyncFailed(botID string)
	CircuitBreakerTripped(botID string)
	PositionOpen(botID string, open bool)
}

type noopMetrics struct{}

func (noopMetrics) TickCompleted(string)                      {}
func (noopMetrics) SignalGenerated(string, model.SignalKind)  {}
func (noopMetrics) LedgerWriteFailed(string)                  {}
func (noopMetrics) StateStoreSyncFailed(string)               {}
func (noopMetrics) CircuitBreakerTripped(string)               {}
func (noopMetrics) PositionOpen(string, bool)                  {}

// OnTradeEvent describes one open/close event for external subscribers
// (the Telegram bot, admin REST status handler).
type OnTradeEvent struct {
	BotID      string
	Symbol     string
	Kind       string // "OPEN" or "CLOSE"
	Side       model.Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	PnL        decimal.Decimal
	ExitReason model.ExitReason
}

// BotInstance drives one bot's trading cycle on its own goroutine.
type BotInstance struct {
	cfg      *model.BotConfig
	exchange exchange.Exchange
	store    *ledger.Store
	state    statestore.Store
	ensemble *signal.Ensemble
	memory   *ledger.MemoryContextBuilder
	breaker  *risk.CircuitBreaker
	sizer    *risk.Sizer
	metrics  Metrics

	interval       time.Duration
	useMemorySig   bool
	ruleVoter      signal.Voter
	notionalSource func(ctx context.Context) decimal.Decimal

	onSignal func(botID string, kind model.SignalKind)
	onTrade  func(OnTradeEvent)
	onError  func(botID string, err error)

	mu      sync.RWMutex
	runtime model.BotRuntimeState

	stopCh chan struct{}
	doneCh chan struct{}
}

// Params bundles an instance's collaborators. Fields left nil get a safe
// default (a no-op Metrics, an empty onTrade/onError).
type Params struct {
	Config         *model.BotConfig
	Exchange       exchange.Exchange
	Store          *ledger.Store
	State          statestore.Store
	Ensemble       *signal.Ensemble
	Memory         *ledger.MemoryContextBuilder
	Breaker        *risk.CircuitBreaker
	Sizer          *risk.Sizer
	Metrics        Metrics
	Interval       time.Duration
	UseMemorySignal bool
	RuleVoter      signal.Voter
	NotionalSource func(ctx context.Context) decimal.Decimal
	OnSignal       func(botID string, kind model.SignalKind)
	OnTrade        func(OnTradeEvent)
	OnError        func(botID string, err error)
}

// New builds a BotInstance from the given collaborators.
func New(p Params) *BotInstance {
	m := p.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &BotInstance{
		cfg:            p.Config,
		exchange:       p.Exchange,
		store:          p.Store,
		state:          p.State,
		ensemble:       p.Ensemble,
		memory:         p.Memory,
		breaker:        p.Breaker,
		sizer:          p.Sizer,
		metrics:        m,
		interval:       interval,
		useMemorySig:   p.UseMemorySignal,
		ruleVoter:      p.RuleVoter,
		notionalSource: p.NotionalSource,
		onSignal:       p.OnSignal,
		onTrade:        p.OnTrade,
		onError:        p.OnError,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

func (b *BotInstance) logger() zerolog.Logger {
	return log.With().Str("bot_id", b.cfg.BotID).Str("symbol", b.cfg.Symbol).Logger()
}

// Start performs one-time initialisation — restoring prior runtime state
// and position from the StateStore, registering under manager:bots, and
// marking manager:running — then launches the tick loop. Start returns
// once initialisation completes; the loop itself runs on its own
// goroutine until Stop is called.
func (b *BotInstance) Start(ctx context.Context) error {
	b.mu.Lock()
	if savedState, ok := b.state.LoadBotState(ctx, b.cfg.BotID); ok {
		b.runtime = savedState
	}
	if savedPos, ok := b.state.LoadPosition(ctx, b.cfg.BotID); ok {
		b.runtime.Position = &savedPos
	}
	b.runtime.IsRunning = true
	b.runtime.UptimeStart = time.Now()
	runtime := b.runtime
	b.mu.Unlock()

	b.state.RegisterBot(ctx, b.cfg.BotID)
	b.state.SetBotRunning(ctx, b.cfg.BotID)
	b.persist(ctx, runtime)

	go b.loop()
	b.logger().Info().Msg("bot instance started")
	return nil
}

// Stop requests an exit between iterations. It blocks until the loop
// goroutine has exited, persisted its final state, and unmarked
// manager:running.
func (b *BotInstance) Stop(ctx context.Context) {
	close(b.stopCh)
	<-b.doneCh
	b.state.SetBotStopped(ctx, b.cfg.BotID)
	b.logger().Info().Msg("bot instance stopped")
}

// Pause gates only the entry branch; an existing position is still
// managed (TP/SL/time-cut still fire while paused).
func (b *BotInstance) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtime.IsPaused = true
}

// Resume re-enables the entry branch.
func (b *BotInstance) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtime.IsPaused = false
}

// EmergencyClose sets a flag consulted by the next tick once its market
// data and signal are in, before reconciliation; it overrides pause and forces an immediate close of any open position.
func (b *BotInstance) EmergencyClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtime.EmergencyClose = true
}

// SetOnSignal replaces the signal callback, following the teacher's
// SetTradeCallback setter shape.
func (b *BotInstance) SetOnSignal(fn func(botID string, kind model.SignalKind)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSignal = fn
}

// SetOnTrade replaces the trade callback.
func (b *BotInstance) SetOnTrade(fn func(OnTradeEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrade = fn
}

// SetOnError replaces the error callback.
func (b *BotInstance) SetOnError(fn func(botID string, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Snapshot returns a defensive copy of the current runtime state.
func (b *BotInstance) Snapshot() model.BotRuntimeState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.runtime.Snapshot()
}

func (b *BotInstance) loop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.runTick()
		case <-b.stopCh:
			b.mu.Lock()
			b.runtime.IsRunning = false
			final := b.runtime
			b.mu.Unlock()
			b.persist(context.Background(), final)
			return
		}
	}
}

// runTick executes exactly one tick, recovering from a panic and
// reporting any error via onError/logger rather than letting a single
// bad tick kill the loop.
func (b *BotInstance) runTick() {
	defer func() {
		if r := recover(); r != nil {
			b.logger().Error().Interface("panic", r).Msg("tick panicked, continuing at next interval")
			if b.onError != nil {
				b.onError(b.cfg.BotID, fmt.Errorf("tick panicked: %v", r))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := b.tick(ctx); err != nil {
		b.logger().Error().Err(err).Msg("tick failed, continuing at next interval")
		if b.onError != nil {
			b.onError(b.cfg.BotID, err)
		}
		return
	}
	b.metrics.TickCompleted(b.cfg.BotID)
}

const tickTimeout = 60 * time.Second
