package handler

import (
	"bankledger/internal/domain"
	"bankledger/internal/service"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService  *service.AccountService
	mutationService *service.MutationService
}

// NewHandler 创建处理器实例
func NewHandler(accountService *service.AccountService, mutationService *service.MutationService) *Handler {
	return &Handler{
		accountService:  accountService,
		mutationService: mutationService,
	}
}

// kindToCode 终态错误分类映射到业务响应码
var kindToCode = map[domain.ErrorKind]int{
	domain.KindInvalidAmount:            response.CodeInvalidAmount,
	domain.KindAccountNotFound:          response.CodeAccountNotFound,
	domain.KindInactiveAccount:          response.CodeInactiveAccount,
	domain.KindInsufficientFunds:        response.CodeInsufficientFunds,
	domain.KindCurrencyMismatch:         response.CodeCurrencyMismatch,
	domain.KindConcurrencyExhausted:     response.CodeConcurrencyExhausted,
	domain.KindIdempotencyKeyReuse:      response.CodeIdempotencyKeyReuse,
	domain.KindIdempotencyReplayFailure: response.CodeIdempotencyReplayFailure,
	domain.KindAccountAlreadyExists:     response.CodeAccountAlreadyExists,
	domain.KindInvalidStatus:            response.CodeInvalidStatus,
}

// writeError 业务错误带稳定分类码返回，其余按服务器错误处理
func writeError(c *gin.Context, err error) {
	if me := domain.AsMutationError(err); me != nil {
		code, ok := kindToCode[me.Kind]
		if !ok {
			code = response.CodeBusinessError
		}
		response.BusinessError(c, code, me.Error())
		return
	}
	response.ServerError(c, err.Error())
}

// ============================================================
// 账户生命周期接口
// ============================================================

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	HolderName  string `json:"holder_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
	AccountType string `json:"account_type" binding:"required,oneof=SAVINGS CHECKING BUSINESS"`
	Currency    string `json:"currency"`
}

// OpenAccount 开户
// POST /api/v1/account/open
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	detail, err := h.accountService.OpenAccount(c.Request.Context(), &service.OpenAccountRequest{
		HolderName:  req.HolderName,
		Email:       req.Email,
		Phone:       req.Phone,
		AccountType: domain.AccountType(req.AccountType),
		Currency:    req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetAccount 查询账户详情
// GET /api/v1/account/detail?account_number=xxx
func (h *Handler) GetAccount(c *gin.Context) {
	accountNumber := c.Query("account_number")
	if accountNumber == "" {
		response.ParamError(c, "account_number 参数不能为空")
		return
	}

	detail, err := h.accountService.GetAccount(c.Request.Context(), accountNumber)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// CloseAccount 销户（软删除，状态置为 INACTIVE）
// POST /api/v1/account/close
func (h *Handler) CloseAccount(c *gin.Context) {
	var req struct {
		AccountNumber string `json:"account_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.CloseAccount(c.Request.Context(), req.AccountNumber); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "账户已注销",
	})
}

// UpdateStatusRequest 状态变更请求
type UpdateStatusRequest struct {
	AccountNumber string `json:"account_number" binding:"required"`
	Status        string `json:"status" binding:"required,oneof=ACTIVE INACTIVE SUSPENDED"`
}

// UpdateStatus 账户状态变更
// POST /api/v1/account/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	detail, err := h.accountService.UpdateStatus(c.Request.Context(), req.AccountNumber, domain.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// ============================================================
// 余额变更接口
// ============================================================

// MutationRequest 入账/出账请求
//
// 【关键点】余额变更是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 idempotency_key 无论重试多少次只生效一次
// 2. 并发安全：账户行按版本号条件写入，冲突自动重试
type MutationRequest struct {
	AccountNumber  string          `json:"account_number" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
}

// Deposit 入账
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.executeMutation(c, domain.OperationDeposit)
}

// Withdraw 出账
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.executeMutation(c, domain.OperationWithdrawal)
}

func (h *Handler) executeMutation(c *gin.Context, op domain.OperationKind) {
	var req MutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.mutationService.Execute(c.Request.Context(), &service.ExecuteRequest{
		IdempotencyKey: req.IdempotencyKey,
		AccountNumber:  req.AccountNumber,
		Operation:      op,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, result)
}
