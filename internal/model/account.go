package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 账户表
// 余额与版本号是整个系统的核心数据
//
// 敏感字段（账号、邮箱、手机号）存密文，另存确定性哈希列用于等值查询；
// Version 列配合条件 UPDATE 实现乐观锁
type Account struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNumber string          `gorm:"type:varchar(256);not null" json:"-"`            // 账号密文
	LookupHash    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"` // 账号查询哈希
	HolderName    string          `gorm:"type:varchar(128);not null" json:"holder_name"`
	Email         string          `gorm:"type:varchar(512);not null" json:"-"` // 邮箱密文
	EmailHash     string          `gorm:"type:varchar(64);index" json:"-"`
	Phone         string          `gorm:"type:varchar(256)" json:"-"` // 手机号密文
	PhoneHash     string          `gorm:"type:varchar(64);index" json:"-"`
	Balance       decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance"`
	Currency      string          `gorm:"type:varchar(8);not null" json:"currency"`
	AccountType   string          `gorm:"type:varchar(16);not null" json:"account_type"` // SAVINGS / CHECKING / BUSINESS
	Status        string          `gorm:"type:varchar(16);not null;default:ACTIVE" json:"status"`
	Version       int64           `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
