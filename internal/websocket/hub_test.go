package websocket

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHubClient(id, gameID, token string, hub *Hub) *Client {
	return &Client{
		ID:           id,
		GameID:       gameID,
		SessionToken: token,
		Hub:          hub,
		Send:         make(chan []byte, 64),
		logger:       zap.NewNop(),
	}
}

func recvMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("等待消息超时")
		return nil
	}
}

func startHub(t *testing.T) *Hub {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	return hub
}

func TestHub_RegisterSendsConnected(t *testing.T) {
	hub := startHub(t)
	c := newHubClient("c1", "1234", "token-1", hub)

	hub.Register(c)

	msg := recvMessage(t, c)
	assert.Equal(t, MessageTypeConnected, msg.Type)
	assert.Equal(t, 1, hub.OnlineCount())
}

func TestHub_NotifyInvalidated_SkipsNewClaimant(t *testing.T) {
	hub := startHub(t)
	oldTab := newHubClient("c1", "1234", "token-old", hub)
	newTab := newHubClient("c2", "1234", "token-new", hub)
	otherGame := newHubClient("c3", "5678", "token-x", hub)

	hub.Register(oldTab)
	hub.Register(newTab)
	hub.Register(otherGame)
	recvMessage(t, oldTab)
	recvMessage(t, newTab)
	recvMessage(t, otherGame)

	// 新认领者自己不该被踢，其他游戏的连接不受影响
	hub.NotifyInvalidated("1234", "token-new")

	msg := recvMessage(t, oldTab)
	assert.Equal(t, MessageTypeSessionInvalidated, msg.Type)
	assert.Equal(t, "1234", msg.GameID)

	select {
	case raw := <-newTab.Send:
		t.Fatalf("新认领者不应收到失效消息: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case raw := <-otherGame.Send:
		t.Fatalf("其他游戏的连接不应收到失效消息: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_NotifyCompleted(t *testing.T) {
	hub := startHub(t)
	tab1 := newHubClient("c1", "1234", "token-1", hub)
	tab2 := newHubClient("c2", "1234", "token-2", hub)

	hub.Register(tab1)
	hub.Register(tab2)
	recvMessage(t, tab1)
	recvMessage(t, tab2)

	// 终局广播给该ID下所有标签页
	hub.NotifyCompleted("1234", json.RawMessage(`{"result":"cashed_out","amount":14.50}`))

	for _, c := range []*Client{tab1, tab2} {
		msg := recvMessage(t, c)
		assert.Equal(t, MessageTypeGameCompleted, msg.Type)
		assert.NotEmpty(t, msg.Data)
	}
}

func TestHub_NotifyDuringUnregister(t *testing.T) {
	hub := startHub(t)

	// 推送与注销并发进行，发送方不能碰到已关闭的Send通道
	for i := 0; i < 50; i++ {
		c := newHubClient(fmt.Sprintf("c%d", i), "1234", fmt.Sprintf("t%d", i), hub)
		hub.Register(c)
		recvMessage(t, c)

		done := make(chan struct{})
		go func() {
			hub.Unregister(c)
			close(done)
		}()
		hub.NotifyInvalidated("1234", "")
		<-done

		// 等待注销完成并排干通道
		for range c.Send {
		}
	}
	assert.Equal(t, 0, hub.OnlineCount())
}

func TestHub_Unregister(t *testing.T) {
	hub := startHub(t)
	c := newHubClient("c1", "1234", "token-1", hub)

	hub.Register(c)
	recvMessage(t, c)

	hub.Unregister(c)

	// 注销后Send通道关闭，连接数归零
	deadline := time.Now().Add(time.Second)
	for hub.OnlineCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.OnlineCount())

	_, open := <-c.Send
	assert.False(t, open)
}
