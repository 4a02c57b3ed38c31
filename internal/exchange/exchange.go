// Package exchange is the adapter boundary (§6.1): the bot core never
// talks to a concrete exchange SDK directly, only through this narrow
// interface, so the decision loop can run unmodified against a mock in
// tests or a different venue in production.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fluxtrade/perpbot/internal/model"
)

// OrderSide is the exchange order direction, distinct from a position's
// LONG/SHORT: an exit order on a LONG position is a SELL.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderResult is the fill confirmation returned by order placement.
type OrderResult struct {
	OrderID   string
	FilledQty decimal.Decimal
}

// ExchangePosition is the venue's view of an open position, used to
// reconcile against locally-tracked state at each tick's reconcile step.
type ExchangePosition struct {
	Side       model.Side
	Amount     decimal.Decimal
	EntryPrice decimal.Decimal
	Leverage   int32
}

// AccountBalance is the futures wallet snapshot.
type AccountBalance struct {
	Available     decimal.Decimal
	Balance       decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Exchange is the required operation set of §6.1. Every numeric value
// crossing this boundary is a decimal.Decimal; no binary floats on the
// wire.
type Exchange interface {
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	GetTicker24h(ctx context.Context, symbol string) (model.Ticker24h, error)
	SetLeverage(ctx context.Context, symbol string, leverage int32) error
	CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, quantity decimal.Decimal) (OrderResult, error)
	GetPosition(ctx context.Context, symbol string) (*ExchangePosition, error)
	ClosePosition(ctx context.Context, symbol string) (*OrderResult, error)
	GetAccountBalance(ctx context.Context) (AccountBalance, error)
}
