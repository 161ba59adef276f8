package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
)

// Client 游戏服务HTTP客户端
// 玩家终端用它认领ID、发心跳和提交结果。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ClaimResult 认领响应
type ClaimResult struct {
	GameID       string    `json:"game_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Resumed      bool      `json:"resumed"`
}

// GameParams 服务端下发的游戏参数
type GameParams struct {
	GridSize  int     `json:"grid_size"`
	MineCount int     `json:"mine_count"`
	MaxReward float64 `json:"max_reward"`
}

// claimResponse 认领响应体
type claimResponse struct {
	Session   *ClaimResult `json:"session"`
	GridSize  int          `json:"grid_size"`
	MineCount int          `json:"mine_count"`
	MaxReward float64      `json:"max_reward"`
}

// Claim 认领游戏ID
func (c *Client) Claim(ctx context.Context, gameID, fingerprint string) (*ClaimResult, *GameParams, error) {
	var resp claimResponse
	err := c.post(ctx, "/api/v1/session/claim", map[string]interface{}{
		"game_id":     gameID,
		"fingerprint": fingerprint,
	}, &resp)
	if err != nil {
		return nil, nil, err
	}
	params := &GameParams{
		GridSize:  resp.GridSize,
		MineCount: resp.MineCount,
		MaxReward: resp.MaxReward,
	}
	return resp.Session, params, nil
}

// Validate 校验会话
func (c *Client) Validate(ctx context.Context, gameID, token string) (models.JSONMap, error) {
	var resp struct {
		Valid      bool           `json:"valid"`
		BoardState models.JSONMap `json:"board_state"`
	}
	err := c.post(ctx, "/api/v1/session/validate", map[string]interface{}{
		"game_id": gameID,
		"token":   token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.BoardState, nil
}

// Heartbeat 心跳续期，实现 heartbeat.Beater
func (c *Client) Heartbeat(ctx context.Context, token string) (bool, error) {
	var resp struct {
		Alive bool `json:"alive"`
	}
	err := c.post(ctx, "/api/v1/session/heartbeat", map[string]interface{}{
		"token": token,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Alive, nil
}

// SessionSnapshot 按令牌查到的会话快照
type SessionSnapshot struct {
	Found      bool               `json:"found"`
	GameID     string             `json:"game_id"`
	Status     string             `json:"status"`
	GameResult *models.GameResult `json:"game_result"`
	Amount     float64            `json:"amount"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// Check 按令牌查询会话快照
// 心跳失效后调用：Found为false说明会话被接管或删除，
// GameResult非空说明游戏在别处已经结束。
func (c *Client) Check(ctx context.Context, token string) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	err := c.post(ctx, "/api/v1/session/check", map[string]interface{}{
		"token": token,
	}, &snap)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Complete 提交游戏结果
func (c *Client) Complete(ctx context.Context, gameID, token string, result models.GameResult, amount float64) error {
	return c.post(ctx, "/api/v1/session/complete", map[string]interface{}{
		"game_id": gameID,
		"token":   token,
		"result":  string(result),
		"amount":  amount,
	}, nil)
}

// SyncBoard 同步棋盘状态
func (c *Client) SyncBoard(ctx context.Context, token string, state models.JSONMap) error {
	return c.post(ctx, "/api/v1/session/board", map[string]interface{}{
		"token": token,
		"state": state,
	}, nil)
}

// errorBody 服务端错误响应体
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// post 发送JSON请求并解析响应
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "请求服务端失败")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Code != 0 {
			return apperrors.New(apperrors.ErrorCode(eb.Code), eb.Details)
		}
		return fmt.Errorf("服务端返回 %d: %s", resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}
