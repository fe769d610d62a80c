package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine_AddsQuantityOnly(t *testing.T) {
	assert.Equal(t, lvl(1, 2), Combine(lvl(1, 1), lvl(1, 1)))
}

func TestCombine_TakesIncomingPrice(t *testing.T) {
	a := lvl(10, 1)
	b := lvl(11, 2)

	ab := Combine(a, b)
	ba := Combine(b, a)

	// Same quantity either way, but the price follows the right operand, so
	// the operation is not commutative.
	assert.Equal(t, lvl(11, 3), ab)
	assert.Equal(t, lvl(10, 3), ba)
	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab.Quantity, ba.Quantity)
}

func TestCombine_DecimalNetZero(t *testing.T) {
	combined := Combine(dec("100.1", "0.3"), dec("100.1", "-0.1"))
	combined = Combine(combined, dec("100.1", "-0.2"))
	assert.True(t, combined.Quantity.IsZero())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "(100.5, 2)", dec("100.50", "2.0").String())
}
