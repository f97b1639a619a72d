package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankledger/internal/domain"
	"bankledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyRepository struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// FindActive 查询未过期的幂等记录，不存在返回 nil
func (r *IdempotencyRepository) FindActive(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var row model.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND expires_at > ?", key, time.Now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainRecord(&row)
}

// Begin 登记 PENDING 记录
//
// 依赖键上的唯一索引：并发同键请求只有一个能插入成功，
// 落败方得到 ErrDuplicateKey，回头重查记录状态。
// 过期但尚未被清理任务删除的行仍占着唯一索引，此时按
// expires_at 条件把它原地重置为新的 PENDING 登记，
// 同键并发竞争者中同样只有一个能重置成功
func (r *IdempotencyRepository) Begin(ctx context.Context, rec *domain.IdempotencyRecord) error {
	row := toModelRecord(rec)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(row)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		return nil
	}

	reset := r.db.WithContext(ctx).
		Model(&model.IdempotencyRecord{}).
		Where("idempotency_key = ? AND expires_at < ?", rec.Key, time.Now()).
		Updates(map[string]interface{}{
			"operation_type": string(rec.Operation),
			"account_hash":   rec.AccountHash,
			"amount":         rec.Amount.Amount(),
			"currency":       rec.Amount.Currency(),
			"status":         model.IdempotencyStatusPending,
			"response_data":  "",
			"expires_at":     rec.ExpiresAt,
		})

	if reset.Error != nil {
		return reset.Error
	}

	if reset.RowsAffected == 0 {
		return domain.ErrDuplicateKey
	}

	return nil
}

// Complete 流转 PENDING -> COMPLETED
// 对已是 COMPLETED 且结果一致的记录幂等（不视为错误）
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, resultPayload string) error {
	return r.finalize(ctx, key, model.IdempotencyStatusCompleted, resultPayload)
}

// Fail 流转 PENDING -> FAILED
func (r *IdempotencyRepository) Fail(ctx context.Context, key string, errorPayload string) error {
	return r.finalize(ctx, key, model.IdempotencyStatusFailed, errorPayload)
}

func (r *IdempotencyRepository) finalize(ctx context.Context, key, toStatus, payload string) error {
	result := r.db.WithContext(ctx).
		Model(&model.IdempotencyRecord{}).
		Where("idempotency_key = ? AND status = ?", key, model.IdempotencyStatusPending).
		Updates(map[string]interface{}{
			"status":        toStatus,
			"response_data": payload,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 没有可流转的 PENDING 记录：区分“已落相同终态”与“非法流转”
		var row model.IdempotencyRecord
		err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("幂等记录不存在: %s", key)
			}
			return err
		}
		if row.Status == toStatus && row.ResponseData == payload {
			return nil
		}
		return domain.ErrInvalidTransition
	}

	return nil
}

// SweepExpired 清理过期记录，返回删除条数
// 纯维护操作，与任何在途执行没有顺序依赖
func (r *IdempotencyRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}

func toDomainRecord(row *model.IdempotencyRecord) (*domain.IdempotencyRecord, error) {
	amount, err := domain.NewMoney(row.Amount, row.Currency)
	if err != nil {
		return nil, err
	}
	return &domain.IdempotencyRecord{
		Key:           row.IdempotencyKey,
		Operation:     domain.OperationKind(row.OperationType),
		AccountHash:   row.AccountHash,
		Amount:        amount,
		Status:        domain.RecordStatus(row.Status),
		ResultPayload: row.ResponseData,
		CreatedAt:     row.CreatedAt,
		ExpiresAt:     row.ExpiresAt,
	}, nil
}

func toModelRecord(rec *domain.IdempotencyRecord) *model.IdempotencyRecord {
	return &model.IdempotencyRecord{
		IdempotencyKey: rec.Key,
		OperationType:  string(rec.Operation),
		AccountHash:    rec.AccountHash,
		Amount:         rec.Amount.Amount(),
		Currency:       rec.Amount.Currency(),
		Status:         string(rec.Status),
		ResponseData:   rec.ResultPayload,
		ExpiresAt:      rec.ExpiresAt,
	}
}
