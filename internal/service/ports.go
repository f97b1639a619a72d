package service

import (
	"context"
	"time"

	"bankledger/internal/domain"
)

// 存储与协作方接口
// 编排逻辑只依赖这些接口，对任意满足约定的实现都必须正确

// AccountStore 账户存储
// CompareAndSwap 是唯一的变更入口：只有存储中的版本号与聚合
// 加载时的版本号一致才写入，否则返回 domain.ErrVersionConflict
type AccountStore interface {
	Load(ctx context.Context, id int64) (*domain.Account, error)
	FindByLookupHash(ctx context.Context, hash string) (*domain.Account, error)
	ExistsByLookupHash(ctx context.Context, hash string) (bool, error)
	ExistsByEmailHash(ctx context.Context, hash string) (bool, error)
	Create(ctx context.Context, acct *domain.Account) (*domain.Account, error)
	CompareAndSwap(ctx context.Context, acct *domain.Account) (*domain.Account, error)
}

// IdempotencyStore 幂等记录存储
// Begin 对已存在的活跃键返回 domain.ErrDuplicateKey；
// Complete / Fail 只允许 PENDING -> 终态 的单向流转
type IdempotencyStore interface {
	FindActive(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Begin(ctx context.Context, rec *domain.IdempotencyRecord) error
	Complete(ctx context.Context, key string, resultPayload string) error
	Fail(ctx context.Context, key string, errorPayload string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// PIICodec 敏感信息编解码器
// Hash 是确定性的（相同输入得到相同哈希，用于等值查询），
// Encrypt 是可逆加密，两者的内部格式对调用方完全不透明
type PIICodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(value string) string
}

// AccountCache 账户详情读缓存，变更成功后失效
type AccountCache interface {
	Get(ctx context.Context, lookupHash string) ([]byte, error)
	Set(ctx context.Context, lookupHash string, payload []byte) error
	Invalidate(ctx context.Context, lookupHash string) error
}
