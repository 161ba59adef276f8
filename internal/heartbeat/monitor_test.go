package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBeater 可编程的心跳桩
type fakeBeater struct {
	mu    sync.Mutex
	alive bool
	err   error
	beats []string
}

func newFakeBeater() *fakeBeater {
	return &fakeBeater{alive: true}
}

func (f *fakeBeater) Heartbeat(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats = append(f.beats, token)
	return f.alive, f.err
}

func (f *fakeBeater) setAlive(alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = alive
}

func (f *fakeBeater) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeBeater) beatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beats)
}

func (f *fakeBeater) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.beats) == 0 {
		return ""
	}
	return f.beats[len(f.beats)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "等待条件超时")
}

func TestMonitor_SendsHeartbeats(t *testing.T) {
	beater := newFakeBeater()
	m := NewMonitor(&Config{
		Beater:   beater,
		Logger:   zap.NewNop(),
		Interval: 10 * time.Millisecond,
	})

	m.Start(context.Background(), "token-1")
	defer m.Stop()

	waitFor(t, time.Second, func() bool { return beater.beatCount() >= 3 })
	assert.Equal(t, "token-1", beater.lastToken())
}

func TestMonitor_InvalidCallbackExactlyOnce(t *testing.T) {
	beater := newFakeBeater()
	var calls int32
	m := NewMonitor(&Config{
		Beater:    beater,
		Logger:    zap.NewNop(),
		Interval:  10 * time.Millisecond,
		OnInvalid: func() { atomic.AddInt32(&calls, 1) },
	})

	beater.setAlive(false)
	m.Start(context.Background(), "token-1")

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&calls) >= 1 })

	// 循环结束后不再有心跳，回调只触发一次
	count := beater.beatCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, beater.beatCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, m.Running())
}

func TestMonitor_StopDoesNotFireCallback(t *testing.T) {
	beater := newFakeBeater()
	var calls int32
	m := NewMonitor(&Config{
		Beater:    beater,
		Logger:    zap.NewNop(),
		Interval:  10 * time.Millisecond,
		OnInvalid: func() { atomic.AddInt32(&calls, 1) },
	})

	m.Start(context.Background(), "token-1")
	waitFor(t, time.Second, func() bool { return beater.beatCount() >= 1 })

	m.Stop()
	assert.False(t, m.Running())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	// 停止后没有新的心跳
	count := beater.beatCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, beater.beatCount())
}

func TestMonitor_ErrorDoesNotInvalidate(t *testing.T) {
	beater := newFakeBeater()
	beater.setErr(assert.AnError)
	var calls int32
	m := NewMonitor(&Config{
		Beater:    beater,
		Logger:    zap.NewNop(),
		Interval:  10 * time.Millisecond,
		OnInvalid: func() { atomic.AddInt32(&calls, 1) },
	})

	m.Start(context.Background(), "token-1")
	defer m.Stop()

	// 出错时继续重试，不触发失效
	waitFor(t, time.Second, func() bool { return beater.beatCount() >= 3 })
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.True(t, m.Running())
}

func TestMonitor_SuspendResume(t *testing.T) {
	beater := newFakeBeater()
	m := NewMonitor(&Config{
		Beater:   beater,
		Logger:   zap.NewNop(),
		Interval: 10 * time.Millisecond,
	})

	m.Start(context.Background(), "token-1")
	defer m.Stop()

	waitFor(t, time.Second, func() bool { return beater.beatCount() >= 1 })

	// 暂停后心跳停止
	m.Suspend()
	time.Sleep(30 * time.Millisecond)
	count := beater.beatCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, beater.beatCount())

	// 恢复立即补发一次检查
	m.Resume()
	waitFor(t, time.Second, func() bool { return beater.beatCount() > count })
}

func TestMonitor_RestartWithNewToken(t *testing.T) {
	beater := newFakeBeater()
	m := NewMonitor(&Config{
		Beater:   beater,
		Logger:   zap.NewNop(),
		Interval: 10 * time.Millisecond,
	})

	m.Start(context.Background(), "token-1")
	waitFor(t, time.Second, func() bool { return beater.beatCount() >= 1 })

	// 以新令牌重启，后续心跳全部携带新令牌
	m.Start(context.Background(), "token-2")
	defer m.Stop()

	waitFor(t, time.Second, func() bool { return beater.lastToken() == "token-2" })
}
