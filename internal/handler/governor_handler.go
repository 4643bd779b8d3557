package handler

import (
	"gas-station/internal/handler/request"
	"gas-station/internal/handler/response"
	"gas-station/internal/service"
	"gas-station/pkg/errno"

	"github.com/gin-gonic/gin"
)

type GovernorHandler struct {
	auth *service.AuthorizationService
	// 本服务作为候任 governor 时愿意接管的 key path
	governedKeys []string
}

func NewGovernorHandler(auth *service.AuthorizationService, governedKeys []string) *GovernorHandler {
	return &GovernorHandler{auth: auth, governedKeys: governedKeys}
}

// Transfer 发起治理权转移
// @Summary 两阶段转移某个 key path 的治理权
// @Tags Governor
// @Accept json
// @Produce json
// @Param request body request.TransferGovernorshipRequest true "Transfer Request"
// @Success 200 {object} response.Response
// @Router /api/v1/governor/transfer [post]
func (h *GovernorHandler) Transfer(c *gin.Context) {
	var req request.TransferGovernorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	id, ok := caller(c)
	if !ok {
		return
	}

	if err := h.auth.TransferGovernorship(c.Request.Context(), id, req.KeyPath, req.NewGovernor); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"governor": req.NewGovernor})
}

// Release 放弃治理权
// @Summary 放弃治理权，key path 回到 owner 自治
// @Tags Governor
// @Accept json
// @Produce json
// @Param request body request.ReleaseGovernorshipRequest true "Release Request"
// @Success 200 {object} response.Response
// @Router /api/v1/governor/release [post]
func (h *GovernorHandler) Release(c *gin.Context) {
	var req request.ReleaseGovernorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	id, ok := caller(c)
	if !ok {
		return
	}

	if err := h.auth.ReleaseGovernorship(c.Request.Context(), id, req.KeyPath); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Accept 候任方握手应答
// @Summary 作为候任 governor 应答握手
// @Description 其他 gas station 转移治理权时回调本接口; 只接管配置里列出的 key path
// @Tags Governor
// @Accept json
// @Produce json
// @Param request body request.AcceptGovernorshipRequest true "Accept Request"
// @Success 200 {object} response.Response
// @Router /api/v1/governor/accept [post]
func (h *GovernorHandler) Accept(c *gin.Context) {
	var req request.AcceptGovernorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	accepted := h.auth.AcceptGovernorship(h.governedKeys, req.KeyPath)
	response.Success(c, gin.H{"accepted": accepted})
}

// GetKey 查询 key path 的授权状态
// @Summary 查询 key path 的 owner/governor
// @Tags Governor
// @Produce json
// @Param path query string true "Key Path"
// @Success 200 {object} response.Response
// @Router /api/v1/governor/key [get]
func (h *GovernorHandler) GetKey(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		response.Error(c, errno.ErrBind)
		return
	}

	auth, err := h.auth.Get(c.Request.Context(), path)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, auth)
}
