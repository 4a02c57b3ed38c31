package statestore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

// stateHash/positionHash convert between the typed runtime structs and
// the tagged string hashes persisted at <prefix>:bot:<name>:state and
// <prefix>:bot:<name>:position.

func encodeDecimal(d decimal.Decimal) string { return tagNumber + d.String() }

func decodeDecimal(s string) decimal.Decimal {
	raw, ok := DecodeNumberString(s)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return tagNull
	}
	return Encode(t)
}

func decodeTime(s string) time.Time {
	if IsNull(s) {
		return time.Time{}
	}
	t, _ := DecodeDatetime(s)
	return t
}

// stateToHash renders a BotRuntimeState as a tagged-string hash. The
// nested position is not part of it beyond a "has_position" flag; the
// position itself is stored standalone via positionToHash.
func stateToHash(s model.BotRuntimeState) map[string]string {
	h := map[string]string{
		"is_running":       Encode(s.IsRunning),
		"is_paused":        Encode(s.IsPaused),
		"emergency_close":  Encode(s.EmergencyClose),
		"uptime_start":     encodeTime(s.UptimeStart),
		"loop_count":       Encode(s.LoopCount),
		"current_price":    encodeDecimal(s.CurrentPrice),
		"last_signal":      Encode(string(s.LastSignal)),
		"last_signal_time": encodeTime(s.LastSignalTime),
		"has_position":     Encode(s.Position != nil),
		"last_updated":     Encode(time.Now().UTC()),
	}
	return h
}

func hashToState(h map[string]string) model.BotRuntimeState {
	var s model.BotRuntimeState
	if b, ok := DecodeBool(h["is_running"]); ok {
		s.IsRunning = b
	}
	if b, ok := DecodeBool(h["is_paused"]); ok {
		s.IsPaused = b
	}
	if b, ok := DecodeBool(h["emergency_close"]); ok {
		s.EmergencyClose = b
	}
	s.UptimeStart = decodeTime(h["uptime_start"])
	if raw, ok := DecodeNumberString(h["loop_count"]); ok {
		if n, err := decimal.NewFromString(raw); err == nil {
			s.LoopCount = n.IntPart()
		}
	}
	s.CurrentPrice = decodeDecimal(h["current_price"])
	s.LastSignal = model.SignalKind(h["last_signal"])
	s.LastSignalTime = decodeTime(h["last_signal_time"])
	return s
}

// positionToHash renders a Position as a tagged-string hash.
func positionToHash(p model.Position) map[string]string {
	return map[string]string{
		"side":        Encode(string(p.Side)),
		"entry_price": encodeDecimal(p.EntryPrice),
		"quantity":    encodeDecimal(p.Quantity),
		"entry_time":  encodeTime(p.EntryTime),
		"leverage":    Encode(p.Leverage),
		"trade_id":    Encode(p.TradeID),
		"order_id":    Encode(p.OrderID),
	}
}

func hashToPosition(h map[string]string) model.Position {
	var p model.Position
	p.Side = model.Side(h["side"])
	p.EntryPrice = decodeDecimal(h["entry_price"])
	p.Quantity = decodeDecimal(h["quantity"])
	p.EntryTime = decodeTime(h["entry_time"])
	if raw, ok := DecodeNumberString(h["leverage"]); ok {
		if n, err := decimal.NewFromString(raw); err == nil {
			p.Leverage = int32(n.IntPart())
		}
	}
	p.TradeID = h["trade_id"]
	p.OrderID = h["order_id"]
	return p
}
