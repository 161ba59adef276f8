package heartbeat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Beater 心跳执行接口
// 返回 false 表示会话已失效（被接管、完成或过期），监视器应触发失效回调。
type Beater interface {
	Heartbeat(ctx context.Context, token string) (bool, error)
}

// BeaterFunc 函数适配器
type BeaterFunc func(ctx context.Context, token string) (bool, error)

// Heartbeat 实现 Beater
func (f BeaterFunc) Heartbeat(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// Monitor 会话心跳监视器
// 按固定间隔对当前令牌发送心跳；心跳返回失效时恰好调用一次失效回调。
// 页面切后台时 Suspend 暂停心跳，Resume 立即补发一次检查。
type Monitor struct {
	mu        sync.Mutex
	beater    Beater
	logger    *zap.Logger
	interval  time.Duration
	token     string
	onInvalid func()

	running     bool
	suspended   bool
	invalidated bool
	resumeCh    chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// Config 监视器配置
type Config struct {
	Beater    Beater
	Logger    *zap.Logger
	Interval  time.Duration
	OnInvalid func() // 会话失效回调，至多调用一次
}

// NewMonitor 创建心跳监视器
func NewMonitor(config *Config) *Monitor {
	interval := config.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		beater:    config.Beater,
		logger:    logger,
		interval:  interval,
		onInvalid: config.OnInvalid,
	}
}

// Start 绑定令牌并启动心跳循环
// 已运行时先停止旧循环再以新令牌重启，失效标记随之重置。
func (m *Monitor) Start(ctx context.Context, token string) {
	m.Stop()

	m.mu.Lock()
	m.token = token
	m.running = true
	m.suspended = false
	m.invalidated = false
	m.resumeCh = make(chan struct{}, 1)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh := m.stopCh
	doneCh := m.doneCh
	resumeCh := m.resumeCh
	m.mu.Unlock()

	go m.loop(ctx, token, stopCh, doneCh, resumeCh)
}

// loop 心跳循环
func (m *Monitor) loop(ctx context.Context, token string, stopCh, doneCh chan struct{}, resumeCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if m.isSuspended() {
				continue
			}
			if !m.beat(ctx, token) {
				return
			}
		case <-resumeCh:
			// 恢复时立即补发一次检查
			if !m.beat(ctx, token) {
				return
			}
		}
	}
}

// beat 发送一次心跳，返回 false 表示循环应结束
func (m *Monitor) beat(ctx context.Context, token string) bool {
	alive, err := m.beater.Heartbeat(ctx, token)
	if err != nil {
		// 网络或存储错误不视为失效，下一个周期重试
		m.logger.Warn("心跳发送失败", zap.Error(err))
		return true
	}
	if alive {
		return true
	}

	m.logger.Info("会话已失效，停止心跳")
	m.fireInvalid()
	return false
}

// fireInvalid 触发失效回调，保证至多一次
func (m *Monitor) fireInvalid() {
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	m.invalidated = true
	m.running = false
	fn := m.onInvalid
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Suspend 暂停心跳（页面切后台）
func (m *Monitor) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
}

// Resume 恢复心跳并立即补发一次检查
func (m *Monitor) Resume() {
	m.mu.Lock()
	if !m.running || !m.suspended {
		m.mu.Unlock()
		return
	}
	m.suspended = false
	resumeCh := m.resumeCh
	m.mu.Unlock()

	select {
	case resumeCh <- struct{}{}:
	default:
	}
}

// Stop 停止心跳循环，不触发失效回调
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Running 是否正在运行
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) isSuspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}
