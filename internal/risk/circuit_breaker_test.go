package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCircuitBreakerTripsOnConsecutiveLosses(t *testing.T) {
	cb := NewCircuitBreaker(3, dec("0.5"), time.Hour)

	assert.False(t, cb.Check(dec("1000")))
	cb.RecordLoss(dec("-10"))
	cb.RecordLoss(dec("-10"))
	assert.False(t, cb.IsTripped())
	cb.RecordLoss(dec("-10"))

	assert.True(t, cb.IsTripped())
	assert.True(t, cb.Check(dec("1000")))
}

func TestCircuitBreakerWinResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker(3, dec("0.5"), time.Hour)
	cb.RecordLoss(dec("-10"))
	cb.RecordLoss(dec("-10"))
	cb.RecordWin(dec("20"))

	losses, _, tripped, _ := cb.Stats()
	assert.Equal(t, 0, losses)
	assert.False(t, tripped)
}

func TestCircuitBreakerTripsOnDailyLossFraction(t *testing.T) {
	cb := NewCircuitBreaker(10, dec("0.1"), time.Hour)

	cb.Check(dec("1000"))
	cb.RecordLoss(dec("-150"))

	assert.True(t, cb.Check(dec("1000")))
}

func TestCircuitBreakerReArmsAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(1, dec("0.5"), time.Millisecond)

	cb.Check(dec("1000"))
	cb.RecordLoss(dec("-10"))
	require.True(t, cb.IsTripped())

	time.Sleep(5 * time.Millisecond)
	assert.False(t, cb.Check(dec("1000")))
	assert.False(t, cb.IsTripped())
}

func TestCircuitBreakerForceReset(t *testing.T) {
	cb := NewCircuitBreaker(1, dec("0.5"), time.Hour)
	cb.RecordLoss(dec("-10"))
	require.True(t, cb.IsTripped())

	cb.ForceReset()
	assert.False(t, cb.IsTripped())
}
