package service

import (
	"context"
	"testing"

	"bankledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccountService() (*AccountService, *memAccountStore) {
	store := newMemAccountStore()
	return NewAccountService(store, plainCodec{}, nil, "USD"), store
}

func TestOpenAccount(t *testing.T) {
	svc, _ := newTestAccountService()
	ctx := context.Background()

	detail, err := svc.OpenAccount(ctx, &OpenAccountRequest{
		HolderName:  "张三",
		Email:       "zhangsan@example.com",
		Phone:       "13800000000",
		AccountType: domain.TypeSavings,
	})
	require.NoError(t, err)

	assert.Len(t, detail.AccountNumber, 10)
	assert.Equal(t, "张三", detail.HolderName)
	assert.Equal(t, "zhangsan@example.com", detail.Email)
	assert.Equal(t, "0.00", detail.Balance)
	assert.Equal(t, "USD", detail.Currency)
	assert.Equal(t, string(domain.StatusActive), detail.Status)
	assert.Equal(t, int64(0), detail.Version)
}

func TestOpenAccountDuplicateEmail(t *testing.T) {
	svc, _ := newTestAccountService()
	ctx := context.Background()

	req := &OpenAccountRequest{
		HolderName:  "张三",
		Email:       "zhangsan@example.com",
		AccountType: domain.TypeChecking,
	}
	_, err := svc.OpenAccount(ctx, req)
	require.NoError(t, err)

	_, err = svc.OpenAccount(ctx, req)
	me := domain.AsMutationError(err)
	require.NotNil(t, me)
	assert.Equal(t, domain.KindAccountAlreadyExists, me.Kind)
}

func TestGetAccountDecryptsFields(t *testing.T) {
	svc, _ := newTestAccountService()
	ctx := context.Background()

	opened, err := svc.OpenAccount(ctx, &OpenAccountRequest{
		HolderName:  "李四",
		Email:       "lisi@example.com",
		Phone:       "13900000000",
		AccountType: domain.TypeBusiness,
	})
	require.NoError(t, err)

	detail, err := svc.GetAccount(ctx, opened.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, opened.AccountNumber, detail.AccountNumber)
	assert.Equal(t, "lisi@example.com", detail.Email)
	assert.Equal(t, "13900000000", detail.Phone)
}

func TestGetAccountNotFound(t *testing.T) {
	svc, _ := newTestAccountService()

	_, err := svc.GetAccount(context.Background(), "0000000000")
	me := domain.AsMutationError(err)
	require.NotNil(t, me)
	assert.Equal(t, domain.KindAccountNotFound, me.Kind)
}

func TestCloseAccountIsTerminalSoftDelete(t *testing.T) {
	svc, store := newTestAccountService()
	ctx := context.Background()

	opened, err := svc.OpenAccount(ctx, &OpenAccountRequest{
		HolderName:  "王五",
		Email:       "wangwu@example.com",
		AccountType: domain.TypeSavings,
	})
	require.NoError(t, err)

	require.NoError(t, svc.CloseAccount(ctx, opened.AccountNumber))

	// 软删除：记录还在，状态为 INACTIVE，版本 +1
	acct := store.snapshot(opened.ID)
	assert.Equal(t, domain.StatusInactive, acct.Status)
	assert.Equal(t, int64(1), acct.Version)

	// 终态不能再流出
	_, err = svc.UpdateStatus(ctx, opened.AccountNumber, domain.StatusActive)
	me := domain.AsMutationError(err)
	require.NotNil(t, me)
	assert.Equal(t, domain.KindInvalidStatus, me.Kind)
}

func TestSuspendAndReactivate(t *testing.T) {
	svc, _ := newTestAccountService()
	ctx := context.Background()

	opened, err := svc.OpenAccount(ctx, &OpenAccountRequest{
		HolderName:  "赵六",
		Email:       "zhaoliu@example.com",
		AccountType: domain.TypeSavings,
	})
	require.NoError(t, err)

	suspended, err := svc.UpdateStatus(ctx, opened.AccountNumber, domain.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusSuspended), suspended.Status)
	assert.Equal(t, int64(1), suspended.Version)

	reactivated, err := svc.UpdateStatus(ctx, opened.AccountNumber, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusActive), reactivated.Status)
	assert.Equal(t, int64(2), reactivated.Version)
}

func TestMutationRejectedOnClosedAccount(t *testing.T) {
	store := newMemAccountStore()
	accountSvc := NewAccountService(store, plainCodec{}, nil, "USD")
	mutationSvc := NewMutationService(store, newMemLedger(), plainCodec{}, nil, testMutationConfig())
	ctx := context.Background()

	opened, err := accountSvc.OpenAccount(ctx, &OpenAccountRequest{
		HolderName:  "张三",
		Email:       "zhangsan@example.com",
		AccountType: domain.TypeSavings,
	})
	require.NoError(t, err)
	require.NoError(t, accountSvc.CloseAccount(ctx, opened.AccountNumber))

	req := depositRequest("k1", "50.00")
	req.AccountNumber = opened.AccountNumber

	_, err = mutationSvc.Execute(ctx, req)
	me := domain.AsMutationError(err)
	require.NotNil(t, me)
	assert.Equal(t, domain.KindInactiveAccount, me.Kind)
}
