package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RiskLevel seeds numeric defaults for a BotConfig when the corresponding
// field is left unset.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskDefaults holds the {leverage, positionSizePct, takeProfitPct,
// stopLossPct} table from the risk-level default table.
type riskDefaults struct {
	leverage        int32
	positionSizePct decimal.Decimal
	takeProfitPct   decimal.Decimal
	stopLossPct     decimal.Decimal
}

var riskLevelDefaults = map[RiskLevel]riskDefaults{
	RiskLow: {
		leverage:        10,
		positionSizePct: decimal.NewFromFloat(0.03),
		takeProfitPct:   decimal.NewFromFloat(0.003),
		stopLossPct:     decimal.NewFromFloat(0.003),
	},
	RiskMedium: {
		leverage:        15,
		positionSizePct: decimal.NewFromFloat(0.05),
		takeProfitPct:   decimal.NewFromFloat(0.004),
		stopLossPct:     decimal.NewFromFloat(0.004),
	},
	RiskHigh: {
		leverage:        20,
		positionSizePct: decimal.NewFromFloat(0.08),
		takeProfitPct:   decimal.NewFromFloat(0.006),
		stopLossPct:     decimal.NewFromFloat(0.006),
	},
}

// SymbolWhitelist is the fixed set of tradeable perpetual symbols. A real
// deployment would source this from the exchange's exchangeInfo endpoint;
// a fixed list keeps config validation deterministic and offline-testable.
var SymbolWhitelist = map[string]bool{
	"BTCUSDT": true,
	"ETHUSDT": true,
	"SOLUSDT": true,
	"BNBUSDT": true,
	"XRPUSDT": true,
}

// BotConfig is immutable for the lifetime of a running bot instance; no
// admin operation updates it.
type BotConfig struct {
	BotID       string
	BotName     string
	Symbol      string
	RiskLevel   RiskLevel

	Leverage        *int32
	PositionSizePct *decimal.Decimal
	TakeProfitPct   *decimal.Decimal
	StopLossPct     *decimal.Decimal
	TimeCutMinutes  *int32
	RSIOversold     *decimal.Decimal
	RSIOverbought   *decimal.Decimal
	VolumeThreshold *decimal.Decimal

	IsTestnet   bool
	IsActive    bool
	Description string
}

// NewBotConfig constructs a BotConfig with a fresh BotID, validating name,
// symbol and risk level per the construction-time invariants.
func NewBotConfig(botName, symbol string, riskLevel RiskLevel) (*BotConfig, error) {
	cfg := &BotConfig{
		BotID:     NewUUID(),
		BotName:   botName,
		Symbol:    strings.ToUpper(symbol),
		RiskLevel: riskLevel,
		IsActive:  true,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the construction-time invariants: bot-name length,
// symbol whitelist membership, and risk-level membership. Position-size
// over 10% is permitted but should be warned about by the caller.
func (c *BotConfig) Validate() error {
	if len(c.BotName) == 0 || len(c.BotName) > 50 {
		return fmt.Errorf("botName must be 1-50 chars, got %d", len(c.BotName))
	}
	if !SymbolWhitelist[strings.ToUpper(c.Symbol)] {
		return fmt.Errorf("symbol %q is not in the whitelist", c.Symbol)
	}
	switch c.RiskLevel {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		return fmt.Errorf("unknown risk level %q", c.RiskLevel)
	}
	if c.Leverage != nil && (*c.Leverage < 1 || *c.Leverage > 125) {
		return fmt.Errorf("leverage must be 1-125, got %d", *c.Leverage)
	}
	if c.PositionSizePct != nil {
		if c.PositionSizePct.LessThanOrEqual(decimal.Zero) || c.PositionSizePct.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("positionSizePct must be in (0,1], got %s", c.PositionSizePct)
		}
	}
	return nil
}

// IsOversizedWarning reports whether the effective position size exceeds
// 10% of notional capital — permitted, but callers should log a warning.
func (c *BotConfig) IsOversizedWarning() bool {
	return c.EffectivePositionSizePct().GreaterThan(decimal.NewFromFloat(0.1))
}

func (c *BotConfig) defaults() riskDefaults {
	d, ok := riskLevelDefaults[c.RiskLevel]
	if !ok {
		return riskLevelDefaults[RiskMedium]
	}
	return d
}

// EffectiveLeverage returns the config's explicit leverage, else the
// risk-level default.
func (c *BotConfig) EffectiveLeverage() int32 {
	if c.Leverage != nil {
		return *c.Leverage
	}
	return c.defaults().leverage
}

// EffectivePositionSizePct returns the config's explicit value, else the
// risk-level default.
func (c *BotConfig) EffectivePositionSizePct() decimal.Decimal {
	if c.PositionSizePct != nil {
		return *c.PositionSizePct
	}
	return c.defaults().positionSizePct
}

// EffectiveTakeProfitPct returns the config's explicit value, else the
// risk-level default.
func (c *BotConfig) EffectiveTakeProfitPct() decimal.Decimal {
	if c.TakeProfitPct != nil {
		return *c.TakeProfitPct
	}
	return c.defaults().takeProfitPct
}

// EffectiveStopLossPct returns the config's explicit value, else the
// risk-level default.
func (c *BotConfig) EffectiveStopLossPct() decimal.Decimal {
	if c.StopLossPct != nil {
		return *c.StopLossPct
	}
	return c.defaults().stopLossPct
}

// EffectiveTimeCutMinutes returns the config's explicit value, else a
// conservative default of 120 minutes.
func (c *BotConfig) EffectiveTimeCutMinutes() int32 {
	if c.TimeCutMinutes != nil {
		return *c.TimeCutMinutes
	}
	return 120
}

// EffectiveRSIOversold returns the config's explicit value, else 35.0.
func (c *BotConfig) EffectiveRSIOversold() decimal.Decimal {
	if c.RSIOversold != nil {
		return *c.RSIOversold
	}
	return decimal.NewFromFloat(35.0)
}

// EffectiveRSIOverbought returns the config's explicit value, else 65.0.
func (c *BotConfig) EffectiveRSIOverbought() decimal.Decimal {
	if c.RSIOverbought != nil {
		return *c.RSIOverbought
	}
	return decimal.NewFromFloat(65.0)
}

// EffectiveVolumeThreshold returns the config's explicit value, else 1.2.
func (c *BotConfig) EffectiveVolumeThreshold() decimal.Decimal {
	if c.VolumeThreshold != nil {
		return *c.VolumeThreshold
	}
	return decimal.NewFromFloat(1.2)
}
