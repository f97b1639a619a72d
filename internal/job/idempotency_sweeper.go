package job

import (
	"context"
	"log"
	"time"

	"bankledger/internal/service"
)

// IdempotencySweeper 幂等记录清理任务
//
// 周期性删除已过期（expires_at 已过）的幂等记录。
// 纯维护操作：保留窗口内的记录不会被触碰，
// 与在途的变更执行没有任何顺序依赖。
type IdempotencySweeper struct {
	ledger   service.IdempotencyStore
	stopCh   chan struct{}
	interval time.Duration
}

func NewIdempotencySweeper(ledger service.IdempotencyStore, interval time.Duration) *IdempotencySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &IdempotencySweeper{
		ledger:   ledger,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (j *IdempotencySweeper) Start(ctx context.Context) {
	log.Println("[IdempotencySweeper] 幂等记录清理任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[IdempotencySweeper] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[IdempotencySweeper] 任务停止")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *IdempotencySweeper) Stop() {
	close(j.stopCh)
}

func (j *IdempotencySweeper) sweep(ctx context.Context) {
	count, err := j.ledger.SweepExpired(ctx, time.Now())
	if err != nil {
		log.Printf("[IdempotencySweeper] 清理过期幂等记录失败: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[IdempotencySweeper] 本次清理 %d 条过期幂等记录", count)
	}
}
