package repository

import (
	"context"
	"errors"

	"bankledger/internal/domain"
	"bankledger/internal/model"

	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Load(ctx context.Context, id int64) (*domain.Account, error) {
	var row model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&row)
}

func (r *AccountRepository) FindByLookupHash(ctx context.Context, hash string) (*domain.Account, error) {
	var row model.Account
	err := r.db.WithContext(ctx).Where("lookup_hash = ?", hash).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return toDomainAccount(&row)
}

func (r *AccountRepository) ExistsByLookupHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("lookup_hash = ?", hash).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) ExistsByEmailHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("email_hash = ?", hash).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) Create(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	row := toModelAccount(acct)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return toDomainAccount(row)
}

// CompareAndSwap 按版本号条件写入
//
// 聚合的 apply 操作已把 Version 预置为 加载版本+1，因此这里的条件是
// “存储中的版本仍等于加载时的版本”。条件不满足时 RowsAffected 为 0，
// 需再查一次区分“账户不存在”与“版本冲突”。
func (r *AccountRepository) CompareAndSwap(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", acct.ID, acct.Version-1).
		Updates(map[string]interface{}{
			"balance": acct.Balance.Amount(),
			"status":  string(acct.Status),
			"version": acct.Version,
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.Account{}).
			Where("id = ?", acct.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.ErrVersionConflict
	}

	return r.Load(ctx, acct.ID)
}

// ============================================================
// 领域对象与表结构互转
// ============================================================

func toDomainAccount(row *model.Account) (*domain.Account, error) {
	balance, err := domain.NewMoney(row.Balance, row.Currency)
	if err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:            row.ID,
		AccountNumber: row.AccountNumber, // 仍是密文，由 service 解密
		LookupHash:    row.LookupHash,
		HolderName:    row.HolderName,
		Email:         row.Email,
		EmailHash:     row.EmailHash,
		Phone:         row.Phone,
		PhoneHash:     row.PhoneHash,
		Type:          domain.AccountType(row.AccountType),
		Status:        domain.Status(row.Status),
		Balance:       balance,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func toModelAccount(acct *domain.Account) *model.Account {
	return &model.Account{
		ID:            acct.ID,
		AccountNumber: acct.AccountNumber,
		LookupHash:    acct.LookupHash,
		HolderName:    acct.HolderName,
		Email:         acct.Email,
		EmailHash:     acct.EmailHash,
		Phone:         acct.Phone,
		PhoneHash:     acct.PhoneHash,
		Balance:       acct.Balance.Amount(),
		Currency:      acct.Balance.Currency(),
		AccountType:   string(acct.Type),
		Status:        string(acct.Status),
		Version:       acct.Version,
	}
}
