package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wfunc/mine-game/internal/config"
)

// Handler WebSocket握手处理器
type Handler struct {
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler 创建握手处理器
func NewHandler(hub *Hub, cfg *config.WebSocketConfig, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// 玩家页面与服务不同源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve 升级连接并启动读写循环
// GET /ws?game_id=1234&token=<session_token>
func (h *Handler) Serve(c *gin.Context) {
	gameID := c.Query("game_id")
	token := c.Query("token")
	if gameID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "缺少game_id参数"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), gameID, token, h.hub, conn, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
