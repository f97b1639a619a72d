package domain

import (
	"fmt"
	"time"
)

// 账户状态
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE" // 终态，软删除
	StatusSuspended Status = "SUSPENDED"
)

// 账户类型
type AccountType string

const (
	TypeSavings  AccountType = "SAVINGS"
	TypeChecking AccountType = "CHECKING"
	TypeBusiness AccountType = "BUSINESS"
)

// 状态流转表：INACTIVE 是终态，不允许流出
var validStatusTransitions = map[Status][]Status{
	StatusActive:    {StatusSuspended, StatusInactive},
	StatusSuspended: {StatusActive, StatusInactive},
}

func CanTransitionTo(current, target Status) bool {
	allowed, exists := validStatusTransitions[current]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Account 账户聚合
//
// 不可变设计：Deposit / Withdraw / ChangeStatus 都返回一个新的 Account，
// Version 恰好 +1，接收者本身不被修改。并发安全不在聚合内处理，
// 由存储层按 Version 做条件写入保证。
type Account struct {
	ID            int64
	AccountNumber string // 账号密文，由 PII 编解码器加解密
	LookupHash    string // 明文账号的确定性查询哈希
	HolderName    string
	Email         string
	EmailHash     string
	Phone         string
	PhoneHash     string
	Type          AccountType
	Status        Status
	Balance       Money
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Deposit 入账，返回新账户值
func (a Account) Deposit(amount Money) (Account, error) {
	if a.Status != StatusActive {
		return Account{}, NewMutationError(KindInactiveAccount,
			fmt.Sprintf("账户状态为 %s，不允许交易", a.Status))
	}
	newBalance, err := a.Balance.Add(amount)
	if err != nil {
		return Account{}, NewMutationError(KindCurrencyMismatch, err.Error())
	}
	return a.applied(newBalance), nil
}

// Withdraw 出账，余额不足返回带明细的 INSUFFICIENT_FUNDS
func (a Account) Withdraw(amount Money) (Account, error) {
	if a.Status != StatusActive {
		return Account{}, NewMutationError(KindInactiveAccount,
			fmt.Sprintf("账户状态为 %s，不允许交易", a.Status))
	}
	insufficient, err := a.Balance.IsLessThan(amount)
	if err != nil {
		return Account{}, NewMutationError(KindCurrencyMismatch, err.Error())
	}
	if insufficient {
		return Account{}, NewInsufficientFunds(a.Balance, amount)
	}
	newBalance, err := a.Balance.Subtract(amount)
	if err != nil {
		return Account{}, NewMutationError(KindCurrencyMismatch, err.Error())
	}
	return a.applied(newBalance), nil
}

// ChangeStatus 状态变更，同样产生新版本
func (a Account) ChangeStatus(target Status) (Account, error) {
	if !CanTransitionTo(a.Status, target) {
		return Account{}, NewMutationError(KindInvalidStatus,
			fmt.Sprintf("账户状态不允许从 %s 变更为 %s", a.Status, target))
	}
	next := a
	next.Status = target
	next.Version = a.Version + 1
	next.UpdatedAt = time.Now()
	return next, nil
}

func (a Account) applied(newBalance Money) Account {
	next := a
	next.Balance = newBalance
	next.Version = a.Version + 1
	next.UpdatedAt = time.Now()
	return next
}
