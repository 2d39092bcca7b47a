package loan_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cerberus/internal/domain/loan"
)

func TestLoan_Expired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := &loan.Loan{DueAt: now}

	assert.False(t, l.Expired(now), "due instant itself is not expired")
	assert.False(t, l.Expired(now.Add(-time.Second)))
	assert.True(t, l.Expired(now.Add(time.Second)))
}

func TestLoan_PriceTriggered(t *testing.T) {
	l := &loan.Loan{
		LiquidationPrice: decimal.RequireFromString("0.000045"),
	}

	assert.True(t, l.PriceTriggered(decimal.RequireFromString("0.000044")))
	assert.True(t, l.PriceTriggered(decimal.RequireFromString("0.000045")), "equal price triggers")
	assert.False(t, l.PriceTriggered(decimal.RequireFromString("0.000046")))
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, loan.StatusActive.Valid())
	assert.True(t, loan.StatusRepaid.Valid())
	assert.True(t, loan.StatusLiquidatedTime.Valid())
	assert.True(t, loan.StatusLiquidatedPrice.Valid())
	assert.False(t, loan.Status("defaulted").Valid())
}
