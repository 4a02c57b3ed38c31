package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fluxtrade/perpbot/internal/model"
)

func TestDummyStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewDummyStore()

	assert.True(t, s.RegisterBot(ctx, "bot-1"))
	bots, ok := s.GetRegisteredBots(ctx)
	assert.True(t, ok)
	assert.Contains(t, bots, "bot-1")

	assert.True(t, s.SetBotRunning(ctx, "bot-1"))
	running, ok := s.GetRunningBots(ctx)
	assert.True(t, ok)
	assert.Contains(t, running, "bot-1")

	state := model.BotRuntimeState{IsRunning: true, LoopCount: 5}
	assert.True(t, s.SaveBotState(ctx, "bot-1", state))
	got, ok := s.LoadBotState(ctx, "bot-1")
	assert.True(t, ok)
	assert.Equal(t, int64(5), got.LoopCount)

	pos := model.Position{Side: model.SideLong, TradeID: "t1"}
	assert.True(t, s.SavePosition(ctx, "bot-1", pos))
	loaded, ok := s.LoadPosition(ctx, "bot-1")
	assert.True(t, ok)
	assert.Equal(t, "t1", loaded.TradeID)

	assert.True(t, s.DeletePosition(ctx, "bot-1"))
	_, ok = s.LoadPosition(ctx, "bot-1")
	assert.False(t, ok)

	assert.True(t, s.UnregisterBot(ctx, "bot-1"))
	bots, ok = s.GetRegisteredBots(ctx)
	assert.True(t, ok)
	assert.NotContains(t, bots, "bot-1")
	running, ok = s.GetRunningBots(ctx)
	assert.True(t, ok)
	assert.NotContains(t, running, "bot-1")

	assert.True(t, s.Ping(ctx))
}

func TestDummyStoreClearRunningBots(t *testing.T) {
	ctx := context.Background()
	s := NewDummyStore()
	s.SetBotRunning(ctx, "a")
	s.SetBotRunning(ctx, "b")
	assert.True(t, s.ClearRunningBots(ctx))
	running, _ := s.GetRunningBots(ctx)
	assert.Empty(t, running)
}
