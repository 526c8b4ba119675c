package handler

import (
	"context"
	"errors"
	"net/http"

	"ledger/internal/model"
	"ledger/internal/service"
	"ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService 处理器依赖的服务能力，由 service.TransferService 实现
type LedgerService interface {
	Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal) (*model.TransactionLog, error)
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*model.TransactionLog, error)
	RequestWithdrawal(ctx context.Context, fromAccountID int64, amount decimal.Decimal, address string) (*service.WithdrawalReceipt, error)
	GetWithdrawalRequest(ctx context.Context, withdrawalID string) (*service.WithdrawalView, error)
	GetBalances(ctx context.Context) ([]*model.AccountBalance, error)
}

type Handler struct {
	svc LedgerService
	log *zap.Logger
}

func NewHandler(svc LedgerService, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// TransferRequest amount 支持字符串或数字，建议用字符串避免精度丢失
type TransferRequest struct {
	FromAccountID int64           `json:"from_account_id" binding:"required"`
	ToAccountID   int64           `json:"to_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

// Transfer 账户间转账
// POST /api/v1/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	entry, err := h.svc.Transfer(c.Request.Context(), req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

type DepositRequest struct {
	AccountID int64           `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Deposit 外部入金（简化版，不对接真实渠道）
// POST /api/v1/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	entry, err := h.svc.Deposit(c.Request.Context(), req.AccountID, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, entry)
}

type WithdrawRequest struct {
	FromAccountID int64           `json:"from_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	ToAddress     string          `json:"to_address" binding:"required"`
}

// Withdraw 发起提现，结果由对账任务异步更新
// POST /api/v1/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindError(c, err)
		return
	}

	receipt, err := h.svc.RequestWithdrawal(c.Request.Context(), req.FromAccountID, req.Amount, req.ToAddress)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, receipt)
}

// GetWithdrawal 查询提现详情
// GET /api/v1/withdraw/:withdrawal_id
func (h *Handler) GetWithdrawal(c *gin.Context) {
	view, err := h.svc.GetWithdrawalRequest(c.Request.Context(), c.Param("withdrawal_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, view)
}

// GetBalances 所有账户余额
// GET /api/v1/balances
func (h *Handler) GetBalances(c *gin.Context) {
	balances, err := h.svc.GetBalances(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  balances,
		"total": len(balances),
	})
}

// writeBindError 请求体不合法与服务层参数校验失败共用 CodeValidationError
func (h *Handler) writeBindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, int(service.CodeValidationError), "参数错误: "+err.Error())
}

// writeError 服务层错误码原样放进 body，HTTP 状态码按错误类型映射
func (h *Handler) writeError(c *gin.Context, err error) {
	code := service.CodeOf(err)

	message := "system error"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}

	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	}

	response.Error(c, status, int(code), message)
}

func httpStatus(code service.ErrorCode) int {
	switch code {
	case service.CodeValidationError, service.CodeInsufficientBalance:
		return http.StatusBadRequest
	case service.CodeAccountNotFound, service.CodeResourceNotFound:
		return http.StatusNotFound
	case service.CodeSystemError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
