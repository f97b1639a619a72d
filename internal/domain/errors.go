package domain

import (
	"errors"
	"fmt"
)

// 存储层约定错误，service 与 repository 共用
var (
	ErrAccountNotFound   = errors.New("账户不存在")
	ErrVersionConflict   = errors.New("版本冲突，账户已被并发修改")
	ErrDuplicateKey      = errors.New("幂等键已被登记")
	ErrInvalidTransition = errors.New("幂等记录状态不允许此变更")
)

// Money 值对象错误
var (
	ErrNegativeAmount   = errors.New("金额不能为负数")
	ErrEmptyCurrency    = errors.New("币种不能为空")
	ErrCurrencyMismatch = errors.New("币种不一致")
	ErrNegativeResult   = errors.New("运算结果不能为负数")
)

// ============================================================
// 对外错误分类
// ============================================================
//
// 每个终态错误都映射到一个稳定的机器可读 Kind，
// 客户端据此判断是否需要换新幂等键重试。

type ErrorKind string

const (
	KindInvalidAmount            ErrorKind = "INVALID_AMOUNT"
	KindAccountNotFound          ErrorKind = "ACCOUNT_NOT_FOUND"
	KindInactiveAccount          ErrorKind = "INACTIVE_ACCOUNT"
	KindInsufficientFunds        ErrorKind = "INSUFFICIENT_FUNDS"
	KindCurrencyMismatch         ErrorKind = "CURRENCY_MISMATCH"
	KindConcurrencyExhausted     ErrorKind = "CONCURRENCY_EXHAUSTED"
	KindIdempotencyKeyReuse      ErrorKind = "IDEMPOTENCY_KEY_REUSE"
	KindIdempotencyReplayFailure ErrorKind = "IDEMPOTENCY_REPLAY_FAILURE"
	KindAccountAlreadyExists     ErrorKind = "ACCOUNT_ALREADY_EXISTS"
	KindInvalidStatus            ErrorKind = "INVALID_STATUS"
)

// MutationError 变更操作的终态错误
// 会被序列化进幂等记录，同键重试时原样回放
type MutationError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// 余额不足时携带的明细
	CurrentBalance  string `json:"current_balance,omitempty"`
	RequestedAmount string `json:"requested_amount,omitempty"`

	// 回放失败记录时，携带首次执行的原始错误
	Cause *MutationError `json:"cause,omitempty"`
}

func (e *MutationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (原始错误: [%s] %s)", e.Kind, e.Message, e.Cause.Kind, e.Cause.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func NewMutationError(kind ErrorKind, message string) *MutationError {
	return &MutationError{Kind: kind, Message: message}
}

// NewInsufficientFunds 余额不足，携带当前余额与请求金额
func NewInsufficientFunds(current, requested Money) *MutationError {
	return &MutationError{
		Kind:            KindInsufficientFunds,
		Message:         fmt.Sprintf("余额不足，当前余额 %s，请求金额 %s", current, requested),
		CurrentBalance:  current.Amount().StringFixed(2),
		RequestedAmount: requested.Amount().StringFixed(2),
	}
}

// AsMutationError 提取 MutationError，非此类型返回 nil
func AsMutationError(err error) *MutationError {
	var me *MutationError
	if errors.As(err, &me) {
		return me
	}
	return nil
}
