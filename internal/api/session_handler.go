package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/mine-game/internal/config"
	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/session"
	"github.com/wfunc/mine-game/internal/websocket"
	"go.uber.org/zap"
)

// SessionHandler 玩家会话处理器
type SessionHandler struct {
	manager *session.Manager
	hub     *websocket.Hub
	gameCfg *config.GameConfig
	logger  *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(manager *session.Manager, hub *websocket.Hub, gameCfg *config.GameConfig, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		hub:     hub,
		gameCfg: gameCfg,
		logger:  logger,
	}
}

// claimRequest 认领请求体
type claimRequest struct {
	GameID      string `json:"game_id" binding:"required,len=4"`
	Fingerprint string `json:"fingerprint" binding:"required"`
}

// Claim 认领游戏ID
// @Summary 认领游戏ID
// @Description 用4位游戏ID换取会话令牌，同一ID同时只允许一个浏览器游玩
// @Tags Session
// @Accept json
// @Produce json
// @Param request body claimRequest true "认领信息"
// @Success 200 {object} session.ClaimResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /api/v1/session/claim [post]
func (h *SessionHandler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.manager.Claim(c.Request.Context(), &session.ClaimRequest{
		GameID:      req.GameID,
		Fingerprint: req.Fingerprint,
		UserAgent:   c.GetHeader("User-Agent"),
		IPAddress:   c.ClientIP(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// 把失效推给同ID下的旧标签页，新认领者自己除外
	if h.hub != nil {
		h.hub.NotifyInvalidated(req.GameID, result.SessionToken)
	}

	c.JSON(http.StatusOK, gin.H{
		"session":    result,
		"grid_size":  h.gameCfg.GridSize,
		"mine_count": h.gameCfg.MineCount,
		"max_reward": h.gameCfg.MaxReward,
	})
}

// tokenRequest 携带令牌的请求体
type tokenRequest struct {
	GameID string `json:"game_id" binding:"required,len=4"`
	Token  string `json:"token" binding:"required"`
}

// Validate 校验会话
// @Summary 校验会话
// @Description 校验ID与令牌是否匹配活跃会话，通过时滑动续期
// @Tags Session
// @Accept json
// @Produce json
// @Param request body tokenRequest true "会话信息"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/session/validate [post]
func (h *SessionHandler) Validate(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	sess, err := h.manager.Validate(c.Request.Context(), req.GameID, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":       true,
		"expires_at":  sess.ExpiresAt,
		"board_state": sess.BoardState,
	})
}

// heartbeatRequest 心跳请求体
type heartbeatRequest struct {
	Token string `json:"token" binding:"required"`
}

// Heartbeat 心跳续期
// @Summary 心跳续期
// @Description 续期活跃会话；alive为false表示会话已被接管或结束
// @Tags Session
// @Accept json
// @Produce json
// @Param request body heartbeatRequest true "令牌"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/session/heartbeat [post]
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	alive, err := h.manager.Heartbeat(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"alive": alive})
}

// completeRequest 终局请求体
type completeRequest struct {
	GameID string  `json:"game_id" binding:"required,len=4"`
	Token  string  `json:"token" binding:"required"`
	Result string  `json:"result" binding:"required"`
	Amount float64 `json:"amount"`
}

// Complete 写入游戏结果
// @Summary 写入游戏结果
// @Description 结果写入后不可更改，重复提交同一结果幂等
// @Tags Session
// @Accept json
// @Produce json
// @Param request body completeRequest true "终局信息"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/session/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result := models.GameResult(req.Result)
	if err := h.manager.Complete(c.Request.Context(), req.Token, result, req.Amount); err != nil {
		respondError(c, err)
		return
	}

	if h.hub != nil {
		payload, _ := json.Marshal(gin.H{
			"result": req.Result,
			"amount": fmt.Sprintf("%.2f", req.Amount),
		})
		h.hub.NotifyCompleted(req.GameID, payload)
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "结果已记录"})
}

// Check 按令牌查询会话快照
// @Summary 按令牌查询会话快照
// @Description 心跳失效后用于区分被接管（found为false）和在别处完成（快照带结果和金额）
// @Tags Session
// @Accept json
// @Produce json
// @Param request body heartbeatRequest true "令牌"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/session/check [post]
func (h *SessionHandler) Check(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	sess, err := h.manager.CheckStatus(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}

	resp := gin.H{
		"found":      true,
		"game_id":    sess.ID,
		"status":     sess.Status,
		"amount":     sess.Amount,
		"expires_at": sess.ExpiresAt,
	}
	if sess.GameResult != nil {
		resp["game_result"] = *sess.GameResult
	}
	c.JSON(http.StatusOK, resp)
}

// Status 查询游戏ID状态
// @Summary 查询游戏ID状态
// @Description 只读查询，已结束的游戏返回结果和金额，供刷新后的页面重现终局
// @Tags Session
// @Produce json
// @Param id query string true "4位游戏ID"
// @Success 200 {object} models.GameIDView
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/session/status [get]
func (h *SessionHandler) Status(c *gin.Context) {
	gameID := c.Query("id")
	view, err := h.manager.IDView(c.Request.Context(), gameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// boardRequest 棋盘同步请求体
type boardRequest struct {
	Token string         `json:"token" binding:"required"`
	State models.JSONMap `json:"state" binding:"required"`
}

// SyncBoard 同步棋盘状态
// @Summary 同步棋盘状态
// @Description 仅在开启棋盘持久化时可用，刷新页面后可恢复进度
// @Tags Session
// @Accept json
// @Produce json
// @Param request body boardRequest true "棋盘状态"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/session/board [post]
func (h *SessionHandler) SyncBoard(c *gin.Context) {
	if !h.gameCfg.PersistBoard {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    int(apperrors.ErrNotFound),
			Message: "棋盘持久化未开启",
		})
		return
	}

	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.manager.SyncBoard(c.Request.Context(), req.Token, req.State); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "棋盘已保存"})
}
