package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bankledger/internal/domain"
	"bankledger/pkg/idgen"
)

// AccountService 账户开立与生命周期管理
//
// 敏感字段在落库前用 PII 编解码器加密，另生成确定性哈希用于查询；
// 读路径优先走 redis 缓存，任何变更成功后缓存失效
type AccountService struct {
	store    AccountStore
	codec    PIICodec
	cache    AccountCache // 可为 nil
	currency string

	maxCASRetry int
}

func NewAccountService(store AccountStore, codec PIICodec, cache AccountCache, defaultCurrency string) *AccountService {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &AccountService{
		store:       store,
		codec:       codec,
		cache:       cache,
		currency:    defaultCurrency,
		maxCASRetry: 3,
	}
}

type OpenAccountRequest struct {
	HolderName  string
	Email       string
	Phone       string
	AccountType domain.AccountType
	Currency    string
}

// AccountDetail 对外的账户视图，敏感字段已解密
type AccountDetail struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	HolderName    string    `json:"holder_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	AccountType   string    `json:"account_type"`
	Status        string    `json:"status"`
	Balance       string    `json:"balance"`
	Currency      string    `json:"currency"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OpenAccount 开户：生成唯一账号，敏感字段加密 + 哈希，初始余额为零
func (s *AccountService) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*AccountDetail, error) {
	if req.AccountType != domain.TypeSavings && req.AccountType != domain.TypeChecking && req.AccountType != domain.TypeBusiness {
		return nil, domain.NewMutationError(domain.KindInvalidStatus,
			fmt.Sprintf("不支持的账户类型: %s", req.AccountType))
	}

	emailHash := s.codec.Hash(req.Email)
	exists, err := s.store.ExistsByEmailHash(ctx, emailHash)
	if err != nil {
		return nil, fmt.Errorf("检查邮箱是否已注册失败: %w", err)
	}
	if exists {
		return nil, domain.NewMutationError(domain.KindAccountAlreadyExists,
			"该邮箱已开立账户")
	}

	accountNumber, lookupHash, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	encNumber, err := s.codec.Encrypt(accountNumber)
	if err != nil {
		return nil, fmt.Errorf("加密账号失败: %w", err)
	}
	encEmail, err := s.codec.Encrypt(req.Email)
	if err != nil {
		return nil, fmt.Errorf("加密邮箱失败: %w", err)
	}
	encPhone := ""
	phoneHash := ""
	if req.Phone != "" {
		encPhone, err = s.codec.Encrypt(req.Phone)
		if err != nil {
			return nil, fmt.Errorf("加密手机号失败: %w", err)
		}
		phoneHash = s.codec.Hash(req.Phone)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	acct := &domain.Account{
		AccountNumber: encNumber,
		LookupHash:    lookupHash,
		HolderName:    req.HolderName,
		Email:         encEmail,
		EmailHash:     emailHash,
		Phone:         encPhone,
		PhoneHash:     phoneHash,
		Type:          req.AccountType,
		Status:        domain.StatusActive,
		Balance:       domain.ZeroMoney(currency),
		Version:       0,
	}

	saved, err := s.store.Create(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	log.Printf("[AccountService] 开户成功: id=%d, 户名=%s", saved.ID, saved.HolderName)
	return s.toDetail(saved, accountNumber)
}

// GetAccount 按账号查询详情，优先命中缓存
func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*AccountDetail, error) {
	lookupHash := s.codec.Hash(accountNumber)

	if s.cache != nil {
		if payload, err := s.cache.Get(ctx, lookupHash); err == nil && payload != nil {
			var detail AccountDetail
			if err := json.Unmarshal(payload, &detail); err == nil {
				return &detail, nil
			}
		}
	}

	acct, err := s.store.FindByLookupHash(ctx, lookupHash)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.NewMutationError(domain.KindAccountNotFound,
				fmt.Sprintf("账号 %s 对应的账户不存在", accountNumber))
		}
		return nil, err
	}

	detail, err := s.toDetail(acct, accountNumber)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(detail); err == nil {
			if err := s.cache.Set(ctx, lookupHash, payload); err != nil {
				log.Printf("[AccountService] 写入缓存失败: %v", err)
			}
		}
	}

	return detail, nil
}

// CloseAccount 软删除：状态置为 INACTIVE（终态），记录不物理删除
func (s *AccountService) CloseAccount(ctx context.Context, accountNumber string) error {
	_, err := s.changeStatus(ctx, accountNumber, domain.StatusInactive)
	return err
}

// UpdateStatus 状态变更（如冻结 SUSPENDED / 解冻 ACTIVE）
func (s *AccountService) UpdateStatus(ctx context.Context, accountNumber string, target domain.Status) (*AccountDetail, error) {
	return s.changeStatus(ctx, accountNumber, target)
}

// changeStatus 状态变更走与余额变更相同的条件写入，版本号同样 +1
func (s *AccountService) changeStatus(ctx context.Context, accountNumber string, target domain.Status) (*AccountDetail, error) {
	lookupHash := s.codec.Hash(accountNumber)

	for attempt := 0; attempt <= s.maxCASRetry; attempt++ {
		acct, err := s.store.FindByLookupHash(ctx, lookupHash)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return nil, domain.NewMutationError(domain.KindAccountNotFound,
					fmt.Sprintf("账号 %s 对应的账户不存在", accountNumber))
			}
			return nil, err
		}

		changed, err := acct.ChangeStatus(target)
		if err != nil {
			return nil, err
		}

		saved, err := s.store.CompareAndSwap(ctx, &changed)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, lookupHash); err != nil {
				log.Printf("[AccountService] 缓存失效失败: %v", err)
			}
		}
		log.Printf("[AccountService] 账户状态变更成功: id=%d, 状态=%s, 版本=%d", saved.ID, saved.Status, saved.Version)
		return s.toDetail(saved, accountNumber)
	}

	return nil, domain.NewMutationError(domain.KindConcurrencyExhausted,
		"状态变更持续遇到并发冲突，请稍后重试")
}

// generateAccountNumber 生成 10 位账号并保证查询哈希唯一
func (s *AccountService) generateAccountNumber(ctx context.Context) (string, string, error) {
	for {
		accountNumber := idgen.GenerateAccountNumber()
		lookupHash := s.codec.Hash(accountNumber)
		exists, err := s.store.ExistsByLookupHash(ctx, lookupHash)
		if err != nil {
			return "", "", fmt.Errorf("检查账号是否已存在失败: %w", err)
		}
		if !exists {
			return accountNumber, lookupHash, nil
		}
	}
}

// toDetail 构建对外视图
// plainNumber 为调用方已知的明文账号；为空时解密存储中的密文
func (s *AccountService) toDetail(acct *domain.Account, plainNumber string) (*AccountDetail, error) {
	number := plainNumber
	var err error
	if number == "" {
		number, err = s.codec.Decrypt(acct.AccountNumber)
		if err != nil {
			return nil, fmt.Errorf("解密账号失败: %w", err)
		}
	}
	email, err := s.codec.Decrypt(acct.Email)
	if err != nil {
		return nil, fmt.Errorf("解密邮箱失败: %w", err)
	}
	phone := ""
	if acct.Phone != "" {
		phone, err = s.codec.Decrypt(acct.Phone)
		if err != nil {
			return nil, fmt.Errorf("解密手机号失败: %w", err)
		}
	}

	return &AccountDetail{
		ID:            acct.ID,
		AccountNumber: number,
		HolderName:    acct.HolderName,
		Email:         email,
		Phone:         phone,
		AccountType:   string(acct.Type),
		Status:        string(acct.Status),
		Balance:       acct.Balance.Amount().StringFixed(2),
		Currency:      acct.Balance.Currency(),
		Version:       acct.Version,
		CreatedAt:     acct.CreatedAt,
		UpdatedAt:     acct.UpdatedAt,
	}, nil
}
