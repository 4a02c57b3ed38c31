package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SignalKind is the outcome of a signal source or the ensemble vote.
type SignalKind string

const (
	SignalLong  SignalKind = "LONG"
	SignalShort SignalKind = "SHORT"
	SignalWait  SignalKind = "WAIT"
)

// ExitReason tags why a position was closed.
type ExitReason string

const (
	ExitTP       ExitReason = "TP"
	ExitSL       ExitReason = "SL"
	ExitTimeCut  ExitReason = "TIME_CUT"
	ExitManual   ExitReason = "MANUAL"
	ExitEnd      ExitReason = "END"
)

// Position is the at-most-one open position owned by a bot instance.
type Position struct {
	Side       Side
	EntryPrice decimal.Decimal
	Quantity   decimal.Decimal
	EntryTime  time.Time
	Leverage   int32
	TradeID    string
	OrderID    string
}

// BotRuntimeState is the mutable state exclusively owned by a running
// BotInstance; observable only via a snapshot.
type BotRuntimeState struct {
	IsRunning      bool
	IsPaused       bool
	EmergencyClose bool
	UptimeStart    time.Time
	LoopCount      int64
	CurrentPrice   decimal.Decimal
	LastSignal     SignalKind
	LastSignalTime time.Time
	Position       *Position
}

// Snapshot returns a defensive copy safe to hand to callers outside the
// owning goroutine.
func (s *BotRuntimeState) Snapshot() BotRuntimeState {
	cp := *s
	if s.Position != nil {
		posCopy := *s.Position
		cp.Position = &posCopy
	}
	return cp
}
