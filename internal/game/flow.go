package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FlowState 客户端游玩流程状态枚举
type FlowState string

const (
	FlowLoggedOut FlowState = "logged_out" // 未登录，等待输入游戏ID
	FlowClaiming  FlowState = "claiming"   // 认领中，等待服务端响应
	FlowPlaying   FlowState = "playing"    // 游玩中，持有有效会话
	FlowCashedOut FlowState = "cashed_out" // 终局：已提现
	FlowBusted    FlowState = "busted"     // 终局：踩雷
	FlowInvalid   FlowState = "invalidated" // 终局：会话被接管或失效
)

// 流程事件
const (
	EventSubmitID    = "submit_id"
	EventClaimOK     = "claim_ok"
	EventClaimFailed = "claim_failed"
	EventCashOut     = "cash_out"
	EventBust        = "bust"
	EventFullClear   = "full_clear"
	EventSessionLost = "session_lost"
	EventReset       = "reset"
)

// FlowTransition 流程状态转换定义
type FlowTransition struct {
	From   FlowState
	Event  string
	To     FlowState
	Action func(ctx context.Context, f *Flow) error
}

// Flow 客户端游玩流程状态机
// 登录 → 认领 → 游玩 → 终局。终局状态只能通过 reset 回到未登录。
type Flow struct {
	mu           sync.RWMutex
	currentState FlowState
	gameID       string
	transitions  map[string][]FlowTransition
	logger       *zap.Logger

	// 流程数据
	sessionToken string
	finalAmount  float64
	startTime    time.Time
	lastUpdate   time.Time

	onStateChange func(from, to FlowState)
}

// NewFlow 创建游玩流程状态机
func NewFlow(logger *zap.Logger) *Flow {
	f := &Flow{
		currentState: FlowLoggedOut,
		transitions:  make(map[string][]FlowTransition),
		logger:       logger,
		lastUpdate:   time.Now(),
	}
	f.initTransitions()
	return f
}

// initTransitions 初始化流程转换规则
func (f *Flow) initTransitions() {
	// 未登录 -> 认领中（提交游戏ID）
	f.addTransition(FlowTransition{
		From:  FlowLoggedOut,
		Event: EventSubmitID,
		To:    FlowClaiming,
		Action: func(ctx context.Context, f *Flow) error {
			if len(f.gameID) != 4 {
				return fmt.Errorf("游戏ID格式无效: %s", f.gameID)
			}
			f.logger.Info("提交游戏ID", zap.String("game_id", f.gameID))
			return nil
		},
	})

	// 认领中 -> 游玩中（认领成功）
	f.addTransition(FlowTransition{
		From:  FlowClaiming,
		Event: EventClaimOK,
		To:    FlowPlaying,
		Action: func(ctx context.Context, f *Flow) error {
			if f.sessionToken == "" {
				return fmt.Errorf("缺少会话令牌")
			}
			f.startTime = time.Now()
			f.logger.Info("认领成功，开始游戏", zap.String("game_id", f.gameID))
			return nil
		},
	})

	// 认领中 -> 未登录（认领被拒）
	f.addTransition(FlowTransition{
		From:  FlowClaiming,
		Event: EventClaimFailed,
		To:    FlowLoggedOut,
		Action: func(ctx context.Context, f *Flow) error {
			f.logger.Info("认领失败", zap.String("game_id", f.gameID))
			f.gameID = ""
			f.sessionToken = ""
			return nil
		},
	})

	// 游玩中 -> 已提现
	f.addTransition(FlowTransition{
		From:  FlowPlaying,
		Event: EventCashOut,
		To:    FlowCashedOut,
		Action: func(ctx context.Context, f *Flow) error {
			f.logger.Info("提现结算",
				zap.String("game_id", f.gameID),
				zap.Float64("amount", f.finalAmount),
				zap.Duration("duration", time.Since(f.startTime)))
			return nil
		},
	})

	// 游玩中 -> 已提现（翻完全部安全格）
	f.addTransition(FlowTransition{
		From:  FlowPlaying,
		Event: EventFullClear,
		To:    FlowCashedOut,
		Action: func(ctx context.Context, f *Flow) error {
			f.logger.Info("全盘通关",
				zap.String("game_id", f.gameID),
				zap.Float64("amount", f.finalAmount))
			return nil
		},
	})

	// 游玩中 -> 踩雷
	f.addTransition(FlowTransition{
		From:  FlowPlaying,
		Event: EventBust,
		To:    FlowBusted,
		Action: func(ctx context.Context, f *Flow) error {
			f.finalAmount = 0
			f.logger.Info("踩雷出局", zap.String("game_id", f.gameID))
			return nil
		},
	})

	// 游玩中 -> 会话失效（被接管、过期或ID被删除）
	f.addTransition(FlowTransition{
		From:  FlowPlaying,
		Event: EventSessionLost,
		To:    FlowInvalid,
		Action: func(ctx context.Context, f *Flow) error {
			f.logger.Warn("会话失效", zap.String("game_id", f.gameID))
			f.sessionToken = ""
			return nil
		},
	})

	// 终局 -> 未登录（重新开始）
	for _, state := range []FlowState{FlowCashedOut, FlowBusted, FlowInvalid} {
		f.addTransition(FlowTransition{
			From:  state,
			Event: EventReset,
			To:    FlowLoggedOut,
			Action: func(ctx context.Context, f *Flow) error {
				f.gameID = ""
				f.sessionToken = ""
				f.finalAmount = 0
				f.startTime = time.Time{}
				return nil
			},
		})
	}
}

// addTransition 添加流程转换
func (f *Flow) addTransition(transition FlowTransition) {
	key := f.transitionKey(transition.From, transition.Event)
	f.transitions[key] = append(f.transitions[key], transition)
}

// transitionKey 生成转换键
func (f *Flow) transitionKey(state FlowState, event string) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// Trigger 触发流程事件
func (f *Flow) Trigger(ctx context.Context, event string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.transitionKey(f.currentState, event)
	transitions, exists := f.transitions[key]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("无效的流程转换: 状态=%s, 事件=%s", f.currentState, event)
	}

	transition := transitions[0]
	oldState := f.currentState

	if transition.Action != nil {
		if err := transition.Action(ctx, f); err != nil {
			return fmt.Errorf("流程转换失败: %w", err)
		}
	}

	f.currentState = transition.To
	f.lastUpdate = time.Now()

	if f.onStateChange != nil {
		f.onStateChange(oldState, f.currentState)
	}

	f.logger.Debug("流程转换",
		zap.String("from", string(oldState)),
		zap.String("to", string(f.currentState)),
		zap.String("event", event))

	return nil
}

// GetState 获取当前流程状态
func (f *Flow) GetState() FlowState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.currentState
}

// IsTerminal 是否处于终局状态
func (f *Flow) IsTerminal() bool {
	state := f.GetState()
	return state == FlowCashedOut || state == FlowBusted || state == FlowInvalid
}

// SetGameID 设置游戏ID
func (f *Flow) SetGameID(gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameID = gameID
}

// GameID 获取游戏ID
func (f *Flow) GameID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gameID
}

// SetSessionToken 设置会话令牌
func (f *Flow) SetSessionToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionToken = token
}

// SessionToken 获取会话令牌
func (f *Flow) SessionToken() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sessionToken
}

// SetFinalAmount 设置终局金额
func (f *Flow) SetFinalAmount(amount float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalAmount = amount
}

// FinalAmount 获取终局金额
func (f *Flow) FinalAmount() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.finalAmount
}

// OnStateChange 设置状态变更回调
func (f *Flow) OnStateChange(fn func(from, to FlowState)) {
	f.onStateChange = fn
}

// CanTrigger 检查当前状态能否触发事件
func (f *Flow) CanTrigger(event string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	key := f.transitionKey(f.currentState, event)
	transitions, exists := f.transitions[key]
	return exists && len(transitions) > 0
}
