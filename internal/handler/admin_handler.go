package handler

import (
	"strconv"

	"gas-station/internal/handler/request"
	"gas-station/internal/handler/response"
	"gas-station/internal/model"
	"gas-station/internal/service"
	"gas-station/pkg/errno"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// RegisterChain 登记外链
// @Summary 登记或更新一条外链配置
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.RegisterChainRequest true "Chain Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/chains [post]
func (h *AdminHandler) RegisterChain(c *gin.Context) {
	var req request.RegisterChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	chain := &model.ForeignChain{
		ChainID:        req.ChainID,
		NativeDecimals: req.NativeDecimals,
		TransferGas:    req.TransferGas,
		FeeRateNum:     req.FeeRateNum,
		FeeRateDen:     req.FeeRateDen,
		OracleAssetID:  req.OracleAssetID,
	}
	if chain.NativeDecimals == 0 {
		chain.NativeDecimals = 18
	}

	if err := h.admin.RegisterChain(c.Request.Context(), chain); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, chain)
}

// ListChains 外链列表
// @Summary 全部外链配置
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/admin/chains [get]
func (h *AdminHandler) ListChains(c *gin.Context) {
	chains, err := h.admin.ListChains(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, chains)
}

// RemoveChain 下线外链
// @Summary 下线一条外链及其 paymaster
// @Tags Admin
// @Produce json
// @Param chain_id path int true "Chain ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/chains/{chain_id} [delete]
func (h *AdminHandler) RemoveChain(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chain_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.admin.RemoveChain(c.Request.Context(), chainID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AddPaymaster 注册 paymaster
// @Summary 在某条链下注册 paymaster，返回外链地址供打款
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.AddPaymasterRequest true "Paymaster Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/paymasters [post]
func (h *AdminHandler) AddPaymaster(c *gin.Context) {
	var req request.AddPaymasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	view, err := h.admin.AddPaymaster(c.Request.Context(), req.ChainID, req.Balance)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// ListPaymasters paymaster 列表
// @Summary 某条链的 paymaster 列表
// @Tags Admin
// @Produce json
// @Param chain_id query int true "Chain ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/paymasters [get]
func (h *AdminHandler) ListPaymasters(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Query("chain_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	views, err := h.admin.ListPaymasters(c.Request.Context(), chainID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, views)
}

// MutatePaymaster 账本校准
// @Summary 调整 paymaster 余额或 nonce
// @Description action: top_up / set_balance / set_nonce
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Paymaster ID"
// @Param action path string true "Action"
// @Param request body request.MutatePaymasterRequest true "Mutate Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/paymasters/{id}/{action} [post]
func (h *AdminHandler) MutatePaymaster(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	var req request.MutatePaymasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	var p *model.Paymaster
	switch c.Param("action") {
	case "top_up":
		if req.Amount == nil {
			response.Error(c, errno.ErrBind)
			return
		}
		p, err = h.admin.TopUpPaymaster(c.Request.Context(), id, *req.Amount)
	case "set_balance":
		if req.Balance == nil {
			response.Error(c, errno.ErrBind)
			return
		}
		p, err = h.admin.SetPaymasterBalance(c.Request.Context(), id, *req.Balance)
	case "set_nonce":
		if req.Nonce == nil {
			response.Error(c, errno.ErrBind)
			return
		}
		p, err = h.admin.SetPaymasterNonce(c.Request.Context(), id, *req.Nonce)
	default:
		response.Error(c, errno.ErrBind)
		return
	}

	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// AddWhitelistEntry 加白名单
// @Summary 把一个调用方或收款地址加入白名单
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.WhitelistEntryRequest true "Whitelist Entry"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/whitelist [post]
func (h *AdminHandler) AddWhitelistEntry(c *gin.Context) {
	var req request.WhitelistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.admin.AddWhitelistEntry(c.Request.Context(), req.Kind, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveWhitelistEntry 移除白名单条目
// @Summary 把一个条目移出白名单
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.WhitelistEntryRequest true "Whitelist Entry"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/whitelist [delete]
func (h *AdminHandler) RemoveWhitelistEntry(c *gin.Context) {
	var req request.WhitelistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.admin.RemoveWhitelistEntry(c.Request.Context(), req.Kind, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListWhitelist 白名单内容
// @Summary 某个名单的全部条目
// @Tags Admin
// @Produce json
// @Param kind query string true "sender / receiver"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/whitelist [get]
func (h *AdminHandler) ListWhitelist(c *gin.Context) {
	kind := c.Query("kind")
	values, err := h.admin.ListWhitelist(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"kind": kind, "values": values})
}

// ToggleWhitelist 启停白名单
// @Summary 打开或关闭某个名单的校验
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.WhitelistToggleRequest true "Toggle Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/whitelist/toggle [post]
func (h *AdminHandler) ToggleWhitelist(c *gin.Context) {
	var req request.WhitelistToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.admin.SetWhitelistEnabled(c.Request.Context(), req.Kind, req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"kind": req.Kind, "enabled": req.Enabled})
}

// CollectedFee 累计服务费
// @Summary 查询某资产的累计服务费
// @Tags Admin
// @Produce json
// @Param asset_id query string true "Asset ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/fees [get]
func (h *AdminHandler) CollectedFee(c *gin.Context) {
	assetID := c.Query("asset_id")
	if assetID == "" {
		response.Error(c, errno.ErrBind)
		return
	}

	fee, err := h.admin.CollectedFee(c.Request.Context(), assetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"asset_id": assetID, "amount": fee})
}

// Pause 熔断
// @Summary 暂停创建与签名
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/admin/pause [post]
func (h *AdminHandler) Pause(c *gin.Context) {
	h.admin.Pause()
	response.Success(c, gin.H{"paused": true})
}

// Resume 解除熔断
// @Summary 恢复服务
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/admin/resume [post]
func (h *AdminHandler) Resume(c *gin.Context) {
	h.admin.Resume()
	response.Success(c, gin.H{"paused": false})
}
