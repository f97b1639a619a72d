package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"bankledger/internal/domain"
)

// 进程内存储假实现，用互斥锁模拟存储层的原子条件写入语义，
// 编排逻辑对任意满足接口约定的实现都必须正确

type memAccountStore struct {
	mu     sync.Mutex
	byID   map[int64]domain.Account
	nextID int64

	loadCount int // FindByLookupHash 调用计数，用于断言回放不再查账户
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{byID: make(map[int64]domain.Account), nextID: 1}
}

func (s *memAccountStore) Load(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acct, nil
}

func (s *memAccountStore) FindByLookupHash(ctx context.Context, hash string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCount++
	for _, acct := range s.byID {
		if acct.LookupHash == hash {
			copied := acct
			return &copied, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *memAccountStore) ExistsByLookupHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.byID {
		if acct.LookupHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *memAccountStore) ExistsByEmailHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.byID {
		if acct.EmailHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *memAccountStore) Create(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *acct
	copied.ID = s.nextID
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	s.nextID++
	s.byID[copied.ID] = copied
	result := copied
	return &result, nil
}

// CompareAndSwap 模拟条件写入：存储中的版本必须等于聚合加载时的版本
func (s *memAccountStore) CompareAndSwap(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[acct.ID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if current.Version != acct.Version-1 {
		return nil, domain.ErrVersionConflict
	}
	copied := *acct
	s.byID[acct.ID] = copied
	result := copied
	return &result, nil
}

func (s *memAccountStore) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCount
}

func (s *memAccountStore) snapshot(id int64) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

type memLedger struct {
	mu   sync.Mutex
	recs map[string]domain.IdempotencyRecord
}

func newMemLedger() *memLedger {
	return &memLedger{recs: make(map[string]domain.IdempotencyRecord)}
}

func (l *memLedger) FindActive(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.recs[key]
	if !ok || !rec.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	copied := rec
	return &copied, nil
}

// Begin 模拟唯一索引：同键只有一个请求能登记成功；
// 过期但尚未清理的行不算活跃占用，原地重置为新的 PENDING 登记
func (l *memLedger) Begin(ctx context.Context, rec *domain.IdempotencyRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.recs[rec.Key]; ok && existing.ExpiresAt.After(time.Now()) {
		return domain.ErrDuplicateKey
	}
	l.recs[rec.Key] = *rec
	return nil
}

// stubbornLedger 包装幂等账本，让 Begin 永远返回键冲突，
// 模拟插入与重置都竞争失败的极端情况
type stubbornLedger struct {
	IdempotencyStore
}

func (l *stubbornLedger) Begin(ctx context.Context, rec *domain.IdempotencyRecord) error {
	return domain.ErrDuplicateKey
}

func (l *memLedger) Complete(ctx context.Context, key string, resultPayload string) error {
	return l.finalize(key, domain.RecordStatusCompleted, resultPayload)
}

func (l *memLedger) Fail(ctx context.Context, key string, errorPayload string) error {
	return l.finalize(key, domain.RecordStatusFailed, errorPayload)
}

func (l *memLedger) finalize(key string, to domain.RecordStatus, payload string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.recs[key]
	if !ok {
		return domain.ErrInvalidTransition
	}
	if rec.Status != domain.RecordStatusPending {
		if rec.Status == to && rec.ResultPayload == payload {
			return nil
		}
		return domain.ErrInvalidTransition
	}
	rec.Status = to
	rec.ResultPayload = payload
	l.recs[key] = rec
	return nil
}

func (l *memLedger) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var count int64
	for key, rec := range l.recs {
		if rec.ExpiresAt.Before(now) {
			delete(l.recs, key)
			count++
		}
	}
	return count, nil
}

func (l *memLedger) get(key string) (domain.IdempotencyRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.recs[key]
	return rec, ok
}

func (l *memLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}

// plainCodec 可读的编解码假实现
type plainCodec struct{}

func (plainCodec) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (plainCodec) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func (plainCodec) Hash(value string) string { return "hash:" + value }

// conflictStore 包装账户存储，按预设次数注入版本冲突
type conflictStore struct {
	AccountStore
	mu        sync.Mutex
	conflicts int // 剩余注入次数，-1 表示永远冲突
}

func (s *conflictStore) CompareAndSwap(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	if s.conflicts != 0 {
		if s.conflicts > 0 {
			s.conflicts--
		}
		s.mu.Unlock()
		return nil, domain.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.AccountStore.CompareAndSwap(ctx, acct)
}
