package statestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/model"
)

// Store is the durable key/value snapshot contract consulted by
// BotInstance (crash-recovery restore, per-tick persist) and BotManager
// (bot registry, running-set). Every method returns a boolean success
// indicator and never panics or returns an error — a backend outage
// degrades to the dummy store, per §4.5/§7.
type Store interface {
	SaveBotState(ctx context.Context, name string, state model.BotRuntimeState) bool
	LoadBotState(ctx context.Context, name string) (model.BotRuntimeState, bool)

	SavePosition(ctx context.Context, name string, pos model.Position) bool
	LoadPosition(ctx context.Context, name string) (model.Position, bool)
	DeletePosition(ctx context.Context, name string) bool

	RegisterBot(ctx context.Context, name string) bool
	UnregisterBot(ctx context.Context, name string) bool
	GetRegisteredBots(ctx context.Context) ([]string, bool)

	SetBotRunning(ctx context.Context, name string) bool
	SetBotStopped(ctx context.Context, name string) bool
	GetRunningBots(ctx context.Context) ([]string, bool)
	ClearRunningBots(ctx context.Context) bool

	Ping(ctx context.Context) bool
}

// RedisStore is the production Store backed by a Redis hash/set layout,
// grounded on the teacher's adoption of github.com/redis/go-redis/v9 for
// its pub/sub layer (internal/pubsub/redis.go in the volaticloud
// reference repo) — the same client, used here for hash/set commands
// instead of pub/sub.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing *redis.Client. prefix namespaces every
// key per §3's key layout (e.g. "perpbot").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) stateKey(name string) string    { return fmt.Sprintf("%s:bot:%s:state", s.prefix, name) }
func (s *RedisStore) positionKey(name string) string { return fmt.Sprintf("%s:bot:%s:position", s.prefix, name) }
func (s *RedisStore) botsSetKey() string             { return fmt.Sprintf("%s:manager:bots", s.prefix) }
func (s *RedisStore) runningSetKey() string          { return fmt.Sprintf("%s:manager:running", s.prefix) }

func (s *RedisStore) SaveBotState(ctx context.Context, name string, state model.BotRuntimeState) bool {
	h := stateToHash(state)
	fields := make(map[string]interface{}, len(h))
	for k, v := range h {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, s.stateKey(name), fields).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: save bot state failed")
		return false
	}
	return true
}

func (s *RedisStore) LoadBotState(ctx context.Context, name string) (model.BotRuntimeState, bool) {
	h, err := s.client.HGetAll(ctx, s.stateKey(name)).Result()
	if err != nil || len(h) == 0 {
		return model.BotRuntimeState{}, false
	}
	return hashToState(h), true
}

func (s *RedisStore) SavePosition(ctx context.Context, name string, pos model.Position) bool {
	h := positionToHash(pos)
	fields := make(map[string]interface{}, len(h))
	for k, v := range h {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, s.positionKey(name), fields).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: save position failed")
		return false
	}
	return true
}

func (s *RedisStore) LoadPosition(ctx context.Context, name string) (model.Position, bool) {
	h, err := s.client.HGetAll(ctx, s.positionKey(name)).Result()
	if err != nil || len(h) == 0 {
		return model.Position{}, false
	}
	return hashToPosition(h), true
}

func (s *RedisStore) DeletePosition(ctx context.Context, name string) bool {
	if err := s.client.Del(ctx, s.positionKey(name)).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: delete position failed")
		return false
	}
	return true
}

func (s *RedisStore) RegisterBot(ctx context.Context, name string) bool {
	if err := s.client.SAdd(ctx, s.botsSetKey(), name).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: register bot failed")
		return false
	}
	return true
}

// UnregisterBot cascades: remove from the registry set, clear the
// running mark, and delete the state/position hashes.
func (s *RedisStore) UnregisterBot(ctx context.Context, name string) bool {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.botsSetKey(), name)
	pipe.SRem(ctx, s.runningSetKey(), name)
	pipe.Del(ctx, s.stateKey(name))
	pipe.Del(ctx, s.positionKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: unregister bot failed")
		return false
	}
	return true
}

func (s *RedisStore) GetRegisteredBots(ctx context.Context) ([]string, bool) {
	names, err := s.client.SMembers(ctx, s.botsSetKey()).Result()
	if err != nil {
		return nil, false
	}
	return names, true
}

func (s *RedisStore) SetBotRunning(ctx context.Context, name string) bool {
	if err := s.client.SAdd(ctx, s.runningSetKey(), name).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: set running failed")
		return false
	}
	return true
}

func (s *RedisStore) SetBotStopped(ctx context.Context, name string) bool {
	if err := s.client.SRem(ctx, s.runningSetKey(), name).Err(); err != nil {
		log.Warn().Err(err).Str("bot", name).Msg("statestore: set stopped failed")
		return false
	}
	return true
}

func (s *RedisStore) GetRunningBots(ctx context.Context) ([]string, bool) {
	names, err := s.client.SMembers(ctx, s.runningSetKey()).Result()
	if err != nil {
		return nil, false
	}
	return names, true
}

// ClearRunningBots wipes the running-set entirely. Called at process
// start to reset stale marks left by an unclean shutdown.
func (s *RedisStore) ClearRunningBots(ctx context.Context) bool {
	if err := s.client.Del(ctx, s.runningSetKey()).Err(); err != nil {
		log.Warn().Err(err).Msg("statestore: clear running bots failed")
		return false
	}
	return true
}

func (s *RedisStore) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// DummyStore implements Store against an in-process map, persisting
// nothing across restarts. Used when Redis is unreachable and fallback
// is enabled; crash-recovery becomes lossy but the live loop is
// unaffected, per §7.
type DummyStore struct {
	states    map[string]model.BotRuntimeState
	positions map[string]model.Position
	bots      map[string]bool
	running   map[string]bool
}

// NewDummyStore builds an empty DummyStore.
func NewDummyStore() *DummyStore {
	return &DummyStore{
		states:    map[string]model.BotRuntimeState{},
		positions: map[string]model.Position{},
		bots:      map[string]bool{},
		running:   map[string]bool{},
	}
}

func (d *DummyStore) SaveBotState(_ context.Context, name string, state model.BotRuntimeState) bool {
	d.states[name] = state
	return true
}

func (d *DummyStore) LoadBotState(_ context.Context, name string) (model.BotRuntimeState, bool) {
	s, ok := d.states[name]
	return s, ok
}

func (d *DummyStore) SavePosition(_ context.Context, name string, pos model.Position) bool {
	d.positions[name] = pos
	return true
}

func (d *DummyStore) LoadPosition(_ context.Context, name string) (model.Position, bool) {
	p, ok := d.positions[name]
	return p, ok
}

func (d *DummyStore) DeletePosition(_ context.Context, name string) bool {
	delete(d.positions, name)
	return true
}

func (d *DummyStore) RegisterBot(_ context.Context, name string) bool {
	d.bots[name] = true
	return true
}

func (d *DummyStore) UnregisterBot(_ context.Context, name string) bool {
	delete(d.bots, name)
	delete(d.running, name)
	delete(d.states, name)
	delete(d.positions, name)
	return true
}

func (d *DummyStore) GetRegisteredBots(_ context.Context) ([]string, bool) {
	out := make([]string, 0, len(d.bots))
	for name := range d.bots {
		out = append(out, name)
	}
	return out, true
}

func (d *DummyStore) SetBotRunning(_ context.Context, name string) bool {
	d.running[name] = true
	return true
}

func (d *DummyStore) SetBotStopped(_ context.Context, name string) bool {
	delete(d.running, name)
	return true
}

func (d *DummyStore) GetRunningBots(_ context.Context) ([]string, bool) {
	out := make([]string, 0, len(d.running))
	for name := range d.running {
		out = append(out, name)
	}
	return out, true
}

func (d *DummyStore) ClearRunningBots(_ context.Context) bool {
	d.running = map[string]bool{}
	return true
}

func (d *DummyStore) Ping(_ context.Context) bool { return true }
