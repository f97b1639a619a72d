package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bankledger/internal/domain"

	"github.com/stretchr/testify/assert"
)

// countingLedger 只实现清理相关行为的假账本，任务不会触及其他方法
type countingLedger struct {
	mu     sync.Mutex
	sweeps int
}

func (l *countingLedger) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweeps++
	return 2, nil
}

func (l *countingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweeps
}

func (l *countingLedger) FindActive(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	return nil, errors.New("not used")
}

func (l *countingLedger) Begin(ctx context.Context, rec *domain.IdempotencyRecord) error {
	return errors.New("not used")
}

func (l *countingLedger) Complete(ctx context.Context, key string, resultPayload string) error {
	return errors.New("not used")
}

func (l *countingLedger) Fail(ctx context.Context, key string, errorPayload string) error {
	return errors.New("not used")
}

func TestSweeperRunsPeriodically(t *testing.T) {
	ledger := &countingLedger{}
	sweeper := NewIdempotencySweeper(ledger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ledger.count() >= 3 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("任务在上下文取消后没有退出")
	}
}

func TestSweeperStop(t *testing.T) {
	ledger := &countingLedger{}
	sweeper := NewIdempotencySweeper(ledger, time.Hour)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("任务在 Stop 后没有退出")
	}
}
