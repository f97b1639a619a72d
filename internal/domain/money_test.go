package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount, currency string) Money {
	t.Helper()
	m, err := NewMoney(decimal.RequireFromString(amount), currency)
	require.NoError(t, err)
	return m
}

func TestNewMoney(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("10.50"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "10.50 USD", m.String())

	_, err = NewMoney(decimal.RequireFromString("-0.01"), "USD")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = NewMoney(decimal.RequireFromString("1"), "")
	assert.ErrorIs(t, err, ErrEmptyCurrency)
}

func TestMoneyAdd(t *testing.T) {
	a := mustMoney(t, "10.00", "USD")
	b := mustMoney(t, "2.50", "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "12.50 USD", sum.String())

	// 运算返回新值，原值不变
	assert.Equal(t, "10.00 USD", a.String())

	_, err = a.Add(mustMoney(t, "1.00", "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneySubtract(t *testing.T) {
	a := mustMoney(t, "10.00", "USD")

	diff, err := a.Subtract(mustMoney(t, "4.00", "USD"))
	require.NoError(t, err)
	assert.Equal(t, "6.00 USD", diff.String())

	// 减到恰好为零是允许的
	zero, err := a.Subtract(mustMoney(t, "10.00", "USD"))
	require.NoError(t, err)
	assert.True(t, zero.Amount().IsZero())

	// 结果为负则拒绝
	_, err = a.Subtract(mustMoney(t, "10.01", "USD"))
	assert.ErrorIs(t, err, ErrNegativeResult)

	_, err = a.Subtract(mustMoney(t, "1.00", "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyComparisons(t *testing.T) {
	a := mustMoney(t, "5.00", "USD")
	b := mustMoney(t, "7.00", "USD")

	less, err := a.IsLessThan(b)
	require.NoError(t, err)
	assert.True(t, less)

	ge, err := b.IsGreaterOrEqual(a)
	require.NoError(t, err)
	assert.True(t, ge)

	ge, err = a.IsGreaterOrEqual(mustMoney(t, "5.00", "USD"))
	require.NoError(t, err)
	assert.True(t, ge)

	_, err = a.IsLessThan(mustMoney(t, "5.00", "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoneyEqual(t *testing.T) {
	// 数值相等即可，尾随零不影响
	assert.True(t, mustMoney(t, "2.5", "USD").Equal(mustMoney(t, "2.50", "USD")))
	assert.False(t, mustMoney(t, "2.50", "USD").Equal(mustMoney(t, "2.50", "EUR")))
	assert.False(t, mustMoney(t, "2.50", "USD").Equal(mustMoney(t, "2.51", "USD")))
}
