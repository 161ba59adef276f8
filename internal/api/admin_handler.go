package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mine-game/internal/service"
	"github.com/wfunc/mine-game/internal/websocket"
)

// AdminHandler 管理端处理器
type AdminHandler struct {
	adminService *service.AdminService
	hub          *websocket.Hub
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(adminService *service.AdminService, hub *websocket.Hub) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		hub:          hub,
	}
}

// loginRequest 登录请求体
type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login 管理端登录
// @Summary 管理端登录
// @Description 口令换取JWT访问令牌
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录口令"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	token, err := h.adminService.Login(c.Request.Context(), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// issueRequest 发号请求体，不带ID则随机发号
type issueRequest struct {
	GameID string `json:"game_id" binding:"omitempty,len=4,numeric"`
}

// IssueID 发放游戏ID
// @Summary 发放游戏ID
// @Description 发放指定或随机的4位游戏ID
// @Tags Admin
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body issueRequest false "指定ID（可选）"
// @Success 200 {object} models.GameIDView
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/ids [post]
func (h *AdminHandler) IssueID(c *gin.Context) {
	// 空请求体等同于随机发号
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, err)
		return
	}

	var (
		view interface{}
		err  error
	)
	if req.GameID != "" {
		view, err = h.adminService.IssueID(c.Request.Context(), req.GameID)
	} else {
		view, err = h.adminService.IssueRandomID(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// List 游戏ID列表
// @Summary 游戏ID列表
// @Description 按创建时间倒序分页列出全部游戏ID
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/admin/ids [get]
func (h *AdminHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	views, total, err := h.adminService.List(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ids":   views,
		"total": total,
		"page":  page,
	})
}

// CheckStatus 查询游戏ID状态
// @Summary 查询游戏ID状态
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param id path string true "游戏ID"
// @Success 200 {object} models.GameIDView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/ids/{id} [get]
func (h *AdminHandler) CheckStatus(c *gin.Context) {
	view, err := h.adminService.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// DeleteID 删除游戏ID
// @Summary 删除游戏ID
// @Description 硬删除，进行中的会话一并作废
// @Tags Admin
// @Security Bearer
// @Produce json
// @Param id path string true "游戏ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/ids/{id} [delete]
func (h *AdminHandler) DeleteID(c *gin.Context) {
	gameID := c.Param("id")
	if err := h.adminService.DeleteID(c.Request.Context(), gameID); err != nil {
		respondError(c, err)
		return
	}

	// 正在游玩的标签页立即收到失效推送
	if h.hub != nil {
		h.hub.NotifyInvalidated(gameID, "")
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "已删除"})
}
