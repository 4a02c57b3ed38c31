package risk

import (
	"github.com/shopspring/decimal"
)

// quantityPrecision is the rounding precision (decimal places) applied to
// a computed order quantity, keyed by symbol. Binance futures enforces a
// per-symbol step size via exchangeInfo; a fixed table keeps sizing
// deterministic and offline-testable the same way the whitelist in
// model.SymbolWhitelist does for valid symbols.
var quantityPrecision = map[string]int32{
	"BTCUSDT": 3,
	"ETHUSDT": 3,
	"SOLUSDT": 2,
	"BNBUSDT": 2,
	"XRPUSDT": 1,
}

func precisionFor(symbol string) int32 {
	if p, ok := quantityPrecision[symbol]; ok {
		return p
	}
	return 3
}

// Sizer computes an order quantity from notional capital, a position-size
// fraction and leverage. Unlike the stop-distance risk sizing a spot/
// perp-arb strategy would use, a leveraged futures entry sizes directly
// off notional exposure: quantity = (capital * positionSizePct * leverage) / price.
type Sizer struct {
	// fixedCapital is used when useExchangeBalance is false.
	fixedCapital       decimal.Decimal
	useExchangeBalance bool
}

// NewFixedCapitalSizer builds a Sizer that always sizes off a constant
// notional capital figure, ignoring the exchange-reported balance.
func NewFixedCapitalSizer(capital decimal.Decimal) *Sizer {
	return &Sizer{fixedCapital: capital}
}

// NewBalanceSizer builds a Sizer that sizes off the exchange-reported
// available USDT balance, passed in at call time.
func NewBalanceSizer() *Sizer {
	return &Sizer{useExchangeBalance: true}
}

// Quantity computes the order quantity for one entry. availableBalance is
// the exchange's reported available balance; it is only consulted when
// the Sizer was built with NewBalanceSizer.
func (s *Sizer) Quantity(symbol string, positionSizePct decimal.Decimal, leverage int32, price, availableBalance decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}

	capital := s.fixedCapital
	if s.useExchangeBalance {
		capital = availableBalance
	}

	notional := capital.Mul(positionSizePct).Mul(decimal.NewFromInt32(leverage))
	qty := notional.Div(price)

	return qty.Round(precisionFor(symbol))
}
