package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money 货币金额值对象
// 不可变：所有运算都返回新值，金额恒 >= 0
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney 创建金额，负数直接拒绝
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	if currency == "" {
		return Money{}, ErrEmptyCurrency
	}
	return Money{amount: amount, currency: currency}, nil
}

// ZeroMoney 指定币种的零值
func ZeroMoney(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

// Add 同币种相加
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract 同币种相减，结果为负数时返回 ErrNegativeResult
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, ErrNegativeResult
	}
	return Money{amount: result, currency: m.currency}, nil
}

func (m Money) IsLessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, ErrCurrencyMismatch
	}
	return m.amount.LessThan(other.amount), nil
}

func (m Money) IsGreaterOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, ErrCurrencyMismatch
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

// Equal 金额与币种都相等（数值相等即可，2.5 与 2.50 视为相等）
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String 固定两位小数展示，如 "50.00 USD"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}
