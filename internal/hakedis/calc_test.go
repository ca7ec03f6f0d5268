package hakedis

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeAmounts(t *testing.T) {
	gross, deduction, net := ComputeAmounts(
		decimal.NewFromInt(1000),
		decimal.NewFromInt(10),
		decimal.NewFromInt(20),
	)

	assert.Equal(t, "1100.00", gross.StringFixed(2))
	assert.Equal(t, "220.00", deduction.StringFixed(2))
	assert.Equal(t, "880.00", net.StringFixed(2))
}

func TestComputeAmounts_Rounding(t *testing.T) {
	// 333.33 * 1.075 = 358.32975 -> 358.33; 358.33 * 0.12 = 42.9996 -> 43.00
	gross, deduction, net := ComputeAmounts(
		decimal.RequireFromString("333.33"),
		decimal.RequireFromString("7.5"),
		decimal.NewFromInt(12),
	)

	assert.Equal(t, "358.33", gross.StringFixed(2))
	assert.Equal(t, "43.00", deduction.StringFixed(2))
	assert.Equal(t, "315.33", net.StringFixed(2))
	assert.True(t, net.Equal(gross.Sub(deduction)))
}

func TestComputeAmounts_ZeroRates(t *testing.T) {
	gross, deduction, net := ComputeAmounts(decimal.NewFromInt(500), decimal.Zero, decimal.Zero)

	assert.Equal(t, "500.00", gross.StringFixed(2))
	assert.Equal(t, "0.00", deduction.StringFixed(2))
	assert.Equal(t, "500.00", net.StringFixed(2))
}

func TestComputeAmounts_Deterministic(t *testing.T) {
	amount := decimal.RequireFromString("12345.67")
	fee := decimal.RequireFromString("8.5")
	adv := decimal.RequireFromString("15")

	g1, d1, n1 := ComputeAmounts(amount, fee, adv)
	g2, d2, n2 := ComputeAmounts(amount, fee, adv)

	assert.True(t, g1.Equal(g2))
	assert.True(t, d1.Equal(d2))
	assert.True(t, n1.Equal(n2))
}
