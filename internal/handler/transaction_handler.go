package handler

import (
	"strconv"

	"gas-station/internal/handler/request"
	"gas-station/internal/handler/response"
	"gas-station/internal/service"
	"gas-station/pkg/errno"

	"github.com/gin-gonic/gin"
)

// CallerHeader 调用方身份。网关层完成认证后注入，这里直接信任。
const CallerHeader = "X-Caller-ID"

type TransactionHandler struct {
	sequences *service.SequenceService
}

func NewTransactionHandler(sequences *service.SequenceService) *TransactionHandler {
	return &TransactionHandler{sequences: sequences}
}

func caller(c *gin.Context) (string, bool) {
	id := c.GetHeader(CallerHeader)
	if id == "" {
		response.Error(c, errno.ErrTokenInvalid)
		return "", false
	}
	return id, true
}

// Create 创建交易序列
// @Summary 创建交易序列
// @Description 提交未签名的外链交易，可选 paymaster 代付 gas
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.CreateTransactionRequest true "Create Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	var req request.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	id, ok := caller(c)
	if !ok {
		return
	}

	result, err := h.sequences.CreateTransaction(c.Request.Context(), id, req.Transaction, req.UsePaymaster, req.Deposit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"sequence_id":   result.Sequence.ID,
		"pending_count": len(result.Sequence.Steps),
		"required":      result.Required,
		"refund":        result.Refund,
	})
}

// Estimate 估算所需充值
// @Summary 估算 use_paymaster 模式所需充值
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.EstimateFeeRequest true "Estimate Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/estimate [post]
func (h *TransactionHandler) Estimate(c *gin.Context) {
	var req request.EstimateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	required, err := h.sequences.RequiredDeposit(c.Request.Context(), req.Transaction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"required": required})
}

// SignNext 推进序列一步
// @Summary 签名序列中的下一步
// @Tags Transaction
// @Produce json
// @Param id path int true "Sequence ID"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/{id}/sign_next [post]
func (h *TransactionHandler) SignNext(c *gin.Context) {
	seqID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	id, ok := caller(c)
	if !ok {
		return
	}

	raw, err := h.sequences.SignNext(c.Request.Context(), id, seqID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"signed_transaction": raw})
}

// Get 查询序列状态
// @Summary 查询交易序列
// @Tags Transaction
// @Produce json
// @Param id path int true "Sequence ID"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	seqID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	seq, err := h.sequences.Get(c.Request.Context(), seqID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, seq)
}

// Remove 撤回序列
// @Summary 撤回未签完的交易序列
// @Tags Transaction
// @Produce json
// @Param id path int true "Sequence ID"
// @Success 200 {object} response.Response
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Remove(c *gin.Context) {
	seqID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	id, ok := caller(c)
	if !ok {
		return
	}

	refund, err := h.sequences.Remove(c.Request.Context(), id, seqID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"refund": refund})
}
