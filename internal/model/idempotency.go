package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	IdempotencyStatusPending   = "PENDING"
	IdempotencyStatusCompleted = "COMPLETED"
	IdempotencyStatusFailed    = "FAILED"
)

// IdempotencyRecord 幂等记录表
//
// 【重要】设计原则：
// 1. idempotency_key 全局唯一 —— 唯一索引是同键并发请求的唯一同步点
// 2. 记录先于变更落库 —— 崩溃后同键重试才能安全续做
// 3. 终态记录只读，到期后由后台任务清理
type IdempotencyRecord struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	IdempotencyKey string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"idempotency_key"`
	OperationType  string          `gorm:"type:varchar(16);not null" json:"operation_type"` // DEPOSIT / WITHDRAWAL
	AccountHash    string          `gorm:"type:varchar(64);index;not null" json:"account_hash"`
	Amount         decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"`
	Currency       string          `gorm:"type:varchar(8);not null" json:"currency"`
	Status         string          `gorm:"type:varchar(16);index;not null;default:PENDING" json:"status"`
	ResponseData   string          `gorm:"type:text" json:"response_data"` // 终态结果 JSON，同键重试原样回放
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt      time.Time       `gorm:"index;not null" json:"expires_at"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_record"
}
