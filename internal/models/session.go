package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SessionStatus 会话生命周期状态（区别于游戏结果）
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"    // 已被某个浏览器认领
	SessionStatusCompleted SessionStatus = "completed" // 游戏已结束
	SessionStatusExpired   SessionStatus = "expired"   // 未认领或已超时
)

// GameResult 游戏终局结果
type GameResult string

const (
	GameResultCashedOut GameResult = "cashed_out" // 已兑奖
	GameResultBusted    GameResult = "busted"     // 已踩雷
)

// JSONMap 用于存储JSON格式的数据
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("无法将值转换为JSONMap")
	}

	return json.Unmarshal(data, j)
}

// GameSession 游戏会话表（每个4位游戏ID对应唯一一行）
//
// 行的生命周期：管理员签发ID时插入一条已过期的占位记录；玩家认领时
// 整行被原子覆盖为active并换发新令牌；心跳滑动续期；终局后game_result
// 一旦写入即不可变，仅允许管理员硬删除。
type GameSession struct {
	ID                 string        `gorm:"primaryKey;size:4" json:"id"`
	SessionToken       string        `gorm:"uniqueIndex;size:64;not null" json:"session_token"`
	Status             SessionStatus `gorm:"size:20;not null;default:'expired';index" json:"status"`
	BrowserFingerprint string        `gorm:"size:64" json:"browser_fingerprint"`
	IPAddress          string        `gorm:"size:50" json:"ip_address"`
	UserAgent          string        `gorm:"size:255" json:"user_agent"`
	LastHeartbeat      time.Time     `json:"last_heartbeat"`
	ExpiresAt          time.Time     `gorm:"index" json:"expires_at"`
	GameResult         *GameResult   `gorm:"size:20" json:"game_result,omitempty"`
	Amount             float64       `gorm:"default:0" json:"amount"`
	BoardState         JSONMap       `gorm:"type:json" json:"board_state,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (GameSession) TableName() string {
	return "game_sessions"
}

// IsTerminal 判断是否已进入终局（结果一旦写入不可变）
func (s *GameSession) IsTerminal() bool {
	return s.GameResult != nil
}

// IsActiveAt 判断在指定时刻会话是否处于活跃且未过期状态
func (s *GameSession) IsActiveAt(now time.Time) bool {
	return s.Status == SessionStatusActive && s.ExpiresAt.After(now)
}

// GameIDStatus 管理端视图状态（由会话状态和游戏结果推导）
type GameIDStatus string

const (
	GameIDUnused     GameIDStatus = "unused"
	GameIDInProgress GameIDStatus = "in_progress"
	GameIDCashedOut  GameIDStatus = "cashed_out"
	GameIDBusted     GameIDStatus = "busted"
)

// GameIDView 管理端投影：把一行会话映射为ID的展示状态
type GameIDView struct {
	ID        string       `json:"id"`
	Status    GameIDStatus `json:"status"`
	Amount    float64      `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

// View 计算管理端投影
// 活跃但已过期的会话视为未使用：玩家掉线后ID可以被重新认领。
func (s *GameSession) View(now time.Time) GameIDView {
	view := GameIDView{
		ID:        s.ID,
		Amount:    s.Amount,
		CreatedAt: s.CreatedAt,
	}

	switch {
	case s.GameResult != nil && *s.GameResult == GameResultCashedOut:
		view.Status = GameIDCashedOut
	case s.GameResult != nil && *s.GameResult == GameResultBusted:
		view.Status = GameIDBusted
	case s.IsActiveAt(now):
		view.Status = GameIDInProgress
	default:
		view.Status = GameIDUnused
	}

	return view
}
