package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Hub WebSocket连接管理中心
// 按游戏ID维护连接，用于把会话失效和终局事件推给打开的标签页。
// 推送只是对心跳轮询的加速，断连的客户端仍由心跳发现失效。
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 游戏ID到客户端的映射，同一ID可能有多个标签页
	gameClients map[string][]*Client
	gameMu      sync.RWMutex

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	GameID    string          `json:"game_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"

	// 当前令牌失效：会话被接管、过期或ID被删除
	MessageTypeSessionInvalidated = "session_invalidated"
	// 游戏终局：结果已写入
	MessageTypeGameCompleted = "game_completed"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		gameClients: make(map[string][]*Client),
		broadcast:   make(chan *Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	go h.runHeartbeat()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	if client.GameID != "" {
		h.gameMu.Lock()
		h.gameClients[client.GameID] = append(h.gameClients[client.GameID], client)
		h.gameMu.Unlock()
	}

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("game_id", client.GameID))

	msg := &Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
	}
	h.SendToClient(client.ID, msg)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	if client.GameID != "" {
		h.gameMu.Lock()
		clients := h.gameClients[client.GameID]
		for i, c := range clients {
			if c.ID == client.ID {
				h.gameClients[client.GameID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.gameClients[client.GameID]) == 0 {
			delete(h.gameClients, client.GameID)
		}
		h.gameMu.Unlock()
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("game_id", client.GameID))
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID))
		}
	}
	h.clientsMu.RUnlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// 注销方在持有写锁时才关闭Send，发送全程持读锁即可排除并发关闭
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToGame 发送消息给指定游戏ID的所有客户端
// exceptToken 不为空时跳过持有该令牌的客户端（新的认领者自己不需要被踢）。
func (h *Hub) SendToGame(gameID string, message *Message, exceptToken string) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.gameMu.RLock()
	clients := append([]*Client(nil), h.gameClients[gameID]...)
	h.gameMu.RUnlock()

	// 发送期间持读锁：关闭Send只发生在写锁内，已注销的客户端也已从clients移除
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range clients {
		if exceptToken != "" && client.SessionToken == exceptToken {
			continue
		}
		if _, ok := h.clients[client.ID]; !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("game_id", gameID))
		}
	}
}

// NotifyInvalidated 通知某个游戏ID下的旧标签页会话已失效
func (h *Hub) NotifyInvalidated(gameID, exceptToken string) {
	h.SendToGame(gameID, &Message{
		Type:      MessageTypeSessionInvalidated,
		GameID:    gameID,
		Timestamp: time.Now().Unix(),
	}, exceptToken)
}

// NotifyCompleted 通知某个游戏ID下的标签页游戏已终局
func (h *Hub) NotifyCompleted(gameID string, data json.RawMessage) {
	h.SendToGame(gameID, &Message{
		Type:      MessageTypeGameCompleted,
		GameID:    gameID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}, "")
}

// OnlineCount 当前连接数
func (h *Hub) OnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// runHeartbeat 周期性广播ping
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		<-ticker.C
		h.broadcast <- &Message{
			Type:      MessageTypePing,
			Timestamp: time.Now().Unix(),
		}
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
