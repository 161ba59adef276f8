package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client WebSocket客户端连接
type Client struct {
	ID           string
	GameID       string
	SessionToken string
	Hub          *Hub
	Conn         *websocket.Conn
	Send         chan []byte
	logger       *zap.Logger
}

// NewClient 创建客户端连接
func NewClient(id, gameID, sessionToken string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:           id,
		GameID:       gameID,
		SessionToken: sessionToken,
		Hub:          hub,
		Conn:         conn,
		Send:         make(chan []byte, 64),
		logger:       logger,
	}
}

// ReadPump 读循环
// 推送通道基本是单向的，入站只处理pong应答，其余消息忽略。
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket读取异常",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
}

// WritePump 写循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
