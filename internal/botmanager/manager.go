// Package botmanager implements BotManager, the registry that owns every
// running BotInstance, fans admin operations out to them, and propagates
// process-global callbacks to each.
package botmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/botengine"
	"github.com/fluxtrade/perpbot/internal/config"
	"github.com/fluxtrade/perpbot/internal/exchange"
	"github.com/fluxtrade/perpbot/internal/ledger"
	"github.com/fluxtrade/perpbot/internal/model"
	"github.com/fluxtrade/perpbot/internal/risk"
	"github.com/fluxtrade/perpbot/internal/signal"
	"github.com/fluxtrade/perpbot/internal/statestore"
)

var (
	// ErrAlreadyExists is returned by AddBot when the name collides with
	// an already-registered instance.
	ErrAlreadyExists = errors.New("botmanager: bot already exists")
	// ErrNotFound is returned by every single-bot operation given an
	// unregistered name.
	ErrNotFound = errors.New("botmanager: bot not found")
)

// managed bundles a running instance with its construction-time config,
// so GetSummary doesn't need to re-derive it.
type managed struct {
	instance *botengine.BotInstance
	cfg      *model.BotConfig
}

// BotManager is the registry of BotInstances keyed by bot name. It owns
// each instance's background task and applies process-global callbacks
// uniformly across all of them.
type BotManager struct {
	cfg      *config.Config
	exchange exchange.Exchange
	store    *ledger.Store
	state    statestore.Store
	metrics  botengine.Metrics

	mu   sync.RWMutex
	bots map[string]*managed

	onSignal func(botID string, kind model.SignalKind)
	onTrade  func(botengine.OnTradeEvent)
	onError  func(botID string, err error)
}

// Params bundles the collaborators shared by every bot the manager
// constructs.
type Params struct {
	Config   *config.Config
	Exchange exchange.Exchange
	Store    *ledger.Store
	State    statestore.Store
	Metrics  botengine.Metrics
}

// New builds an empty BotManager. Bots are added via AddBot.
func New(p Params) *BotManager {
	return &BotManager{
		cfg:      p.Config,
		exchange: p.Exchange,
		store:    p.Store,
		state:    p.State,
		metrics:  p.Metrics,
		bots:     make(map[string]*managed),
	}
}

// SetOnSignalCallback applies to every bot already registered and every
// bot added afterward.
func (m *BotManager) SetOnSignalCallback(fn func(botID string, kind model.SignalKind)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSignal = fn
	for _, mb := range m.bots {
		mb.instance.SetOnSignal(fn)
	}
}

// SetOnTradeCallback applies to every bot already registered and every
// bot added afterward.
func (m *BotManager) SetOnTradeCallback(fn func(botengine.OnTradeEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrade = fn
	for _, mb := range m.bots {
		mb.instance.SetOnTrade(fn)
	}
}

// SetOnErrorCallback applies to every bot already registered and every
// bot added afterward.
func (m *BotManager) SetOnErrorCallback(fn func(botID string, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
	for _, mb := range m.bots {
		mb.instance.SetOnError(fn)
	}
}

// buildInstance wires a fresh BotInstance around cfg from the manager's
// shared collaborators, per-bot ensemble/circuit-breaker/sizer.
func (m *BotManager) buildInstance(cfg *model.BotConfig) *botengine.BotInstance {
	ruleVoter := signal.NewRuleVoter(cfg.EffectiveRSIOversold(), cfg.EffectiveRSIOverbought(), cfg.EffectiveVolumeThreshold())

	var ensemble *signal.Ensemble
	var memory *ledger.MemoryContextBuilder
	useMemory := m.cfg != nil && m.cfg.UseMemorySignals
	if useMemory {
		voters := []signal.Voter{ruleVoter, signal.NewScoreVoter()}
		if m.cfg.AIProviderURL != "" {
			voters = append(voters, signal.NewAIVoter(m.cfg.AIProviderURL, m.cfg.AIProviderKey, m.cfg.AIModel, m.cfg.AITimeout))
		}
		ensemble = signal.NewEnsemble(voters...)
		memory = ledger.NewMemoryContextBuilder(m.store)
	}

	maxLosses := 3
	maxDailyLossPct := decimal.NewFromFloat(0.05)
	cooldown := 30 * time.Minute
	interval := 300 * time.Second
	if m.cfg != nil {
		maxLosses = m.cfg.MaxConsecutiveLosses
		maxDailyLossPct = m.cfg.MaxDailyLossPct
		cooldown = m.cfg.CircuitCooldown
		interval = m.cfg.LoopInterval
	}
	breaker := risk.NewCircuitBreaker(maxLosses, maxDailyLossPct, cooldown)

	var sizer *risk.Sizer
	if m.cfg != nil && m.cfg.UseRealBalance {
		sizer = risk.NewBalanceSizer()
	} else {
		capital := decimal.NewFromInt(1000)
		if m.cfg != nil {
			capital = m.cfg.NotionalCapital
		}
		sizer = risk.NewFixedCapitalSizer(capital)
	}

	return botengine.New(botengine.Params{
		Config:          cfg,
		Exchange:        m.exchange,
		Store:           m.store,
		State:           m.state,
		Ensemble:        ensemble,
		Memory:          memory,
		Breaker:         breaker,
		Sizer:           sizer,
		Metrics:         m.metrics,
		Interval:        interval,
		UseMemorySignal: useMemory,
		RuleVoter:       ruleVoter,
		OnSignal:        m.onSignal,
		OnTrade:         m.onTrade,
		OnError:         m.onError,
	})
}

// AddBot constructs and registers a new instance, initially stopped.
func (m *BotManager) AddBot(cfg *model.BotConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bots[cfg.BotName]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, cfg.BotName)
	}

	m.bots[cfg.BotName] = &managed{instance: m.buildInstance(cfg), cfg: cfg}
	log.Info().Str("bot", cfg.BotName).Str("symbol", cfg.Symbol).Msg("bot registered")
	return nil
}

// RemoveBot stops (if running) and deregisters a bot.
func (m *BotManager) RemoveBot(ctx context.Context, name string) error {
	m.mu.Lock()
	mb, ok := m.bots[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.bots, name)
	m.mu.Unlock()

	if mb.instance.Snapshot().IsRunning {
		mb.instance.Stop(ctx)
	}
	return nil
}

// GetBot returns the live instance registered under name, or nil.
func (m *BotManager) GetBot(name string) *botengine.BotInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.bots[name]
	if !ok {
		return nil
	}
	return mb.instance
}

// StartBot is idempotent: starting an already-running bot is a no-op.
func (m *BotManager) StartBot(ctx context.Context, name string) error {
	mb, err := m.lookup(name)
	if err != nil {
		return err
	}
	if mb.instance.Snapshot().IsRunning {
		return nil
	}
	return mb.instance.Start(ctx)
}

// StopBot requests a graceful stop and blocks until it completes.
func (m *BotManager) StopBot(ctx context.Context, name string) error {
	mb, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !mb.instance.Snapshot().IsRunning {
		return nil
	}
	mb.instance.Stop(ctx)
	return nil
}

// PauseBot sets the pause flag synchronously; an open position is still
// managed while paused.
func (m *BotManager) PauseBot(name string) error {
	mb, err := m.lookup(name)
	if err != nil {
		return err
	}
	mb.instance.Pause()
	return nil
}

// ResumeBot clears the pause flag.
func (m *BotManager) ResumeBot(name string) error {
	mb, err := m.lookup(name)
	if err != nil {
		return err
	}
	mb.instance.Resume()
	return nil
}

func (m *BotManager) lookup(name string) (*managed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.bots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return mb, nil
}

// StartAll starts every registered bot not already running.
func (m *BotManager) StartAll(ctx context.Context) {
	for _, name := range m.names() {
		if err := m.StartBot(ctx, name); err != nil {
			log.Error().Err(err).Str("bot", name).Msg("failed to start bot")
		}
	}
}

// StopAll requests a stop on every running bot and returns only once all
// of them have exited.
func (m *BotManager) StopAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range m.names() {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.StopBot(ctx, name); err != nil {
				log.Error().Err(err).Str("bot", name).Msg("failed to stop bot")
			}
		}()
	}
	wg.Wait()
}

func (m *BotManager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.bots))
	for name := range m.bots {
		names = append(names, name)
	}
	return names
}

// Run starts every registered bot and blocks until ctx is cancelled, then
// performs StopAll before returning.
func (m *BotManager) Run(ctx context.Context) {
	m.StartAll(ctx)
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping all bots")
	m.StopAll(context.Background())
}

// BotSummary is one bot's row in GetSummary's digest.
type BotSummary struct {
	Name       string
	Symbol     string
	IsRunning  bool
	IsPaused   bool
	HasPosition bool
	LastSignal model.SignalKind
	LoopCount  int64
}

// Summary is the manager-wide aggregate returned by GetSummary.
type Summary struct {
	Total   int
	Running int
	Paused  int
	Bots    []BotSummary
}

// GetSummary aggregates counts plus a per-bot digest, mirroring the
// teacher's GetMarketStats snapshot pattern.
func (m *BotManager) GetSummary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := Summary{Bots: make([]BotSummary, 0, len(m.bots))}
	for name, mb := range m.bots {
		snap := mb.instance.Snapshot()
		summary.Total++
		if snap.IsRunning {
			summary.Running++
		}
		if snap.IsPaused {
			summary.Paused++
		}
		summary.Bots = append(summary.Bots, BotSummary{
			Name:        name,
			Symbol:      mb.cfg.Symbol,
			IsRunning:   snap.IsRunning,
			IsPaused:    snap.IsPaused,
			HasPosition: snap.Position != nil,
			LastSignal:  snap.LastSignal,
			LoopCount:   snap.LoopCount,
		})
	}
	return summary
}
