package domain

import (
	"time"
)

// 操作类型
type OperationKind string

const (
	OperationDeposit    OperationKind = "DEPOSIT"
	OperationWithdrawal OperationKind = "WITHDRAWAL"
)

// 幂等记录状态
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "PENDING"
	RecordStatusCompleted RecordStatus = "COMPLETED"
	RecordStatusFailed    RecordStatus = "FAILED"
)

// IdempotencyRecord 幂等记录
//
// 每个逻辑操作（以客户端幂等键标识）对应一条记录：
// 先登记 PENDING，再执行变更，最后落 COMPLETED / FAILED。
// 键上的唯一约束是同键并发请求之间唯一的同步点。
type IdempotencyRecord struct {
	Key           string
	Operation     OperationKind
	AccountHash   string // 目标账户的查询哈希
	Amount        Money
	Status        RecordStatus
	ResultPayload string // 终态结果，JSON，原样回放
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Matches 校验同键请求的参数是否与首次登记一致
// 不一致说明客户端复用了旧键，必须拒绝而不是静默执行
func (r *IdempotencyRecord) Matches(op OperationKind, accountHash string, amount Money) bool {
	return r.Operation == op &&
		r.AccountHash == accountHash &&
		r.Amount.Equal(amount)
}

// IsTerminal 是否已到终态
func (r *IdempotencyRecord) IsTerminal() bool {
	return r.Status == RecordStatusCompleted || r.Status == RecordStatusFailed
}
