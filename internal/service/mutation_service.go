package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bankledger/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 变更编排器
// ============================================================================
//
// 把幂等账本和账户存储协调成一个协议，保证每个逻辑请求
// （以幂等键标识）对账户余额恰好生效一次：
//
//   1. 查幂等账本。已有终态 -> 原样回放；PENDING -> 等待先行请求，
//      超时视为中断的请求接管续做；没有记录 -> 先登记 PENDING 再动账
//   2. 加载账户，在内存里应用业务规则（聚合不可变，返回新版本）
//   3. 按版本号条件写入。版本冲突属于预期情况，重新加载重试，
//      次数有上限；其余失败落 FAILED 后返回
//   4. 成功后把结果写进幂等记录，同键重试直接回放
//
// 全程没有进程内锁：跨请求的同步完全依赖幂等键的唯一约束
// 和账户行的版本号条件写入。

type ExecuteRequest struct {
	IdempotencyKey string
	AccountNumber  string
	Operation      domain.OperationKind
	Amount         decimal.Decimal
	Currency       string // 为空时取配置的默认币种
	Description    string
}

// MutationResult 变更结果，会被序列化进幂等记录并在同键重试时原样返回
type MutationResult struct {
	AccountNumber  string               `json:"account_number"`
	Operation      domain.OperationKind `json:"operation"`
	Amount         string               `json:"amount"`
	Currency       string               `json:"currency"`
	NewBalance     string               `json:"new_balance"`
	Description    string               `json:"description,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
	Timestamp      time.Time            `json:"timestamp"`
}

type MutationConfig struct {
	MaxRetryCount   int           // 版本冲突重试上限
	Retention       time.Duration // 幂等记录保留时长（至少 24h）
	PendingWait     time.Duration // 发现 PENDING 记录时等待先行请求的时长
	PollInterval    time.Duration // 等待期间的轮询间隔
	DefaultCurrency string
}

type MutationService struct {
	accounts AccountStore
	ledger   IdempotencyStore
	codec    PIICodec
	cache    AccountCache // 可为 nil
	cfg      MutationConfig
}

func NewMutationService(accounts AccountStore, ledger IdempotencyStore, codec PIICodec, cache AccountCache, cfg MutationConfig) *MutationService {
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = 3
	}
	// 保留时长下限 24h：同键重试在这个窗口内必须能回放到结果
	if cfg.Retention < 24*time.Hour {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.PendingWait <= 0 {
		cfg.PendingWait = 3 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &MutationService{
		accounts: accounts,
		ledger:   ledger,
		codec:    codec,
		cache:    cache,
		cfg:      cfg,
	}
}

// Execute 执行一次入账或出账
//
// 幂等保证：同一个幂等键无论提交多少次（包括并发提交），
// 余额变更恰好生效一次，后续调用拿到与首次完全相同的结果或错误。
func (s *MutationService) Execute(ctx context.Context, req *ExecuteRequest) (*MutationResult, error) {
	if req.IdempotencyKey == "" {
		return nil, errors.New("幂等键不能为空")
	}
	if req.Operation != domain.OperationDeposit && req.Operation != domain.OperationWithdrawal {
		return nil, fmt.Errorf("不支持的操作类型: %s", req.Operation)
	}

	// 金额校验先于一切账本和账户交互
	if !req.Amount.IsPositive() {
		return nil, domain.NewMutationError(domain.KindInvalidAmount, "金额必须大于零")
	}
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	amount, err := domain.NewMoney(req.Amount, currency)
	if err != nil {
		return nil, domain.NewMutationError(domain.KindInvalidAmount, err.Error())
	}

	lookupHash := s.codec.Hash(req.AccountNumber)

	// ---- 幂等账本协商 ----
	deadline := time.Now().Add(s.cfg.PendingWait)
	for {
		rec, err := s.ledger.FindActive(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("查询幂等记录失败: %w", err)
		}

		if rec == nil {
			newRec := &domain.IdempotencyRecord{
				Key:         req.IdempotencyKey,
				Operation:   req.Operation,
				AccountHash: lookupHash,
				Amount:      amount,
				Status:      domain.RecordStatusPending,
				ExpiresAt:   time.Now().Add(s.cfg.Retention),
			}
			err := s.ledger.Begin(ctx, newRec)
			if errors.Is(err, domain.ErrDuplicateKey) {
				// 并发请求抢先登记，回头重查它的状态。
				// 冲突持续到等待预算用完仍查不到记录时放弃，不允许无界自旋
				if time.Now().After(deadline) {
					return nil, domain.NewMutationError(domain.KindConcurrencyExhausted,
						"幂等记录持续冲突，请稍后重试")
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(s.cfg.PollInterval):
				}
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("登记幂等记录失败: %w", err)
			}
			// 本请求持有 PENDING 记录，进入变更流程
			return s.runMutation(ctx, req, lookupHash, amount)
		}

		// 同键请求的参数必须与首次登记一致，否则是键复用
		if !rec.Matches(req.Operation, lookupHash, amount) {
			return nil, domain.NewMutationError(domain.KindIdempotencyKeyReuse,
				"幂等键已被另一笔参数不同的操作使用")
		}

		switch rec.Status {
		case domain.RecordStatusCompleted:
			return s.replayResult(rec)
		case domain.RecordStatusFailed:
			return nil, s.replayFailure(rec)
		}

		// PENDING：先行请求可能仍在执行，等它出结果；
		// 超过等待预算则视为中断的请求，接管续做
		if time.Now().After(deadline) {
			log.Printf("[MutationService] 幂等键 %s 的 PENDING 记录等待超时，接管续做", req.IdempotencyKey)
			return s.runMutation(ctx, req, lookupHash, amount)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// runMutation 加载-应用-条件写入 循环，调用时幂等记录必须已是本请求持有的 PENDING
func (s *MutationService) runMutation(ctx context.Context, req *ExecuteRequest, lookupHash string, amount domain.Money) (*MutationResult, error) {
	for attempt := 0; attempt <= s.cfg.MaxRetryCount; attempt++ {
		acct, err := s.accounts.FindByLookupHash(ctx, lookupHash)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, s.finalizeFailure(ctx, req.IdempotencyKey,
				domain.NewMutationError(domain.KindAccountNotFound,
					fmt.Sprintf("账号 %s 对应的账户不存在", req.AccountNumber)))
		}
		if err != nil {
			// 基础设施故障：保留 PENDING 记录，同键重试会续做
			return nil, fmt.Errorf("加载账户失败: %w", err)
		}

		applied, err := s.apply(*acct, req.Operation, amount)
		if err != nil {
			if me := domain.AsMutationError(err); me != nil {
				return nil, s.finalizeFailure(ctx, req.IdempotencyKey, me)
			}
			return nil, err
		}

		saved, err := s.accounts.CompareAndSwap(ctx, &applied)
		if errors.Is(err, domain.ErrVersionConflict) {
			// 预期中的并发冲突，重新加载再试
			log.Printf("[MutationService] 幂等键 %s 第 %d 次写入遇到版本冲突，重试", req.IdempotencyKey, attempt+1)
			continue
		}
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, s.finalizeFailure(ctx, req.IdempotencyKey,
				domain.NewMutationError(domain.KindAccountNotFound,
					fmt.Sprintf("账号 %s 对应的账户不存在", req.AccountNumber)))
		}
		if err != nil {
			return nil, fmt.Errorf("写入账户失败: %w", err)
		}

		result := &MutationResult{
			AccountNumber:  req.AccountNumber,
			Operation:      req.Operation,
			Amount:         amount.Amount().StringFixed(2),
			Currency:       amount.Currency(),
			NewBalance:     saved.Balance.Amount().StringFixed(2),
			Description:    req.Description,
			IdempotencyKey: req.IdempotencyKey,
			Timestamp:      time.Now(),
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("序列化变更结果失败: %w", err)
		}
		if err := s.ledger.Complete(ctx, req.IdempotencyKey, string(payload)); err != nil {
			// 记录已被并发执行落了不同终态，属于协议被破坏，不能让调用方误以为本次生效
			if errors.Is(err, domain.ErrInvalidTransition) {
				return nil, fmt.Errorf("幂等记录终态冲突: %w", err)
			}
			log.Printf("[MutationService] 幂等键 %s 标记 COMPLETED 失败: %v", req.IdempotencyKey, err)
		}

		s.invalidateCache(ctx, lookupHash)
		log.Printf("[MutationService] %s 成功: key=%s, 金额=%s, 新余额=%s, 版本=%d",
			req.Operation, req.IdempotencyKey, amount, saved.Balance, saved.Version)
		return result, nil
	}

	return nil, s.finalizeFailure(ctx, req.IdempotencyKey,
		domain.NewMutationError(domain.KindConcurrencyExhausted,
			fmt.Sprintf("版本冲突重试 %d 次仍未成功，请稍后重试", s.cfg.MaxRetryCount)))
}

func (s *MutationService) apply(acct domain.Account, op domain.OperationKind, amount domain.Money) (domain.Account, error) {
	switch op {
	case domain.OperationDeposit:
		return acct.Deposit(amount)
	case domain.OperationWithdrawal:
		return acct.Withdraw(amount)
	default:
		return domain.Account{}, fmt.Errorf("不支持的操作类型: %s", op)
	}
}

// finalizeFailure 把终态错误写入幂等记录后返回它
// 先落账本再返回，保证同键重试回放到相同的失败
func (s *MutationService) finalizeFailure(ctx context.Context, key string, me *domain.MutationError) error {
	payload, err := json.Marshal(me)
	if err != nil {
		log.Printf("[MutationService] 序列化错误信息失败: %v", err)
		return me
	}
	if err := s.ledger.Fail(ctx, key, string(payload)); err != nil {
		log.Printf("[MutationService] 幂等键 %s 标记 FAILED 失败: %v", key, err)
	}
	log.Printf("[MutationService] 操作失败: key=%s, 原因=%s", key, me.Error())
	return me
}

// replayResult 回放 COMPLETED 记录缓存的结果，不再触发任何副作用
func (s *MutationService) replayResult(rec *domain.IdempotencyRecord) (*MutationResult, error) {
	var result MutationResult
	if err := json.Unmarshal([]byte(rec.ResultPayload), &result); err != nil {
		return nil, fmt.Errorf("解析幂等记录缓存结果失败: %w", err)
	}
	log.Printf("[MutationService] 幂等键 %s 命中已完成记录，回放缓存结果", rec.Key)
	return &result, nil
}

// replayFailure 回放 FAILED 记录：同键重试不会重新执行，
// 客户端要重试一笔业务失败的操作必须换新键
func (s *MutationService) replayFailure(rec *domain.IdempotencyRecord) error {
	var cause domain.MutationError
	replay := &domain.MutationError{
		Kind:    domain.KindIdempotencyReplayFailure,
		Message: "该幂等键的首次请求已失败，同键重试只回放失败结果",
	}
	if err := json.Unmarshal([]byte(rec.ResultPayload), &cause); err == nil && cause.Kind != "" {
		replay.Cause = &cause
	}
	return replay
}

func (s *MutationService) invalidateCache(ctx context.Context, lookupHash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, lookupHash); err != nil {
		log.Printf("[MutationService] 缓存失效失败: %v", err)
	}
}
