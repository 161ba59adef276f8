package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFlow() *Flow {
	return NewFlow(zap.NewNop())
}

func TestFlow_HappyPath_CashOut(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	assert.Equal(t, FlowLoggedOut, f.GetState())

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	assert.Equal(t, FlowClaiming, f.GetState())

	f.SetSessionToken("token-1")
	require.NoError(t, f.Trigger(ctx, EventClaimOK))
	assert.Equal(t, FlowPlaying, f.GetState())

	f.SetFinalAmount(14.5)
	require.NoError(t, f.Trigger(ctx, EventCashOut))
	assert.Equal(t, FlowCashedOut, f.GetState())
	assert.True(t, f.IsTerminal())
	assert.Equal(t, 14.5, f.FinalAmount())
}

func TestFlow_Bust(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	f.SetSessionToken("token-1")
	require.NoError(t, f.Trigger(ctx, EventClaimOK))

	f.SetFinalAmount(42) // 踩雷时金额归零
	require.NoError(t, f.Trigger(ctx, EventBust))
	assert.Equal(t, FlowBusted, f.GetState())
	assert.Equal(t, float64(0), f.FinalAmount())
}

func TestFlow_ClaimFailed(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	require.NoError(t, f.Trigger(ctx, EventClaimFailed))

	// 认领失败回到未登录，流程数据清空
	assert.Equal(t, FlowLoggedOut, f.GetState())
	assert.Empty(t, f.GameID())
}

func TestFlow_SessionLost(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	f.SetSessionToken("token-1")
	require.NoError(t, f.Trigger(ctx, EventClaimOK))

	require.NoError(t, f.Trigger(ctx, EventSessionLost))
	assert.Equal(t, FlowInvalid, f.GetState())
	assert.True(t, f.IsTerminal())
	assert.Empty(t, f.SessionToken())
}

func TestFlow_InvalidTransitions(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	// 未登录状态不能直接提现
	assert.Error(t, f.Trigger(ctx, EventCashOut))

	// ID格式无效时提交被拒，状态不变
	f.SetGameID("12")
	assert.Error(t, f.Trigger(ctx, EventSubmitID))
	assert.Equal(t, FlowLoggedOut, f.GetState())

	// 令牌缺失时认领成功被拒
	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	assert.Error(t, f.Trigger(ctx, EventClaimOK))
	assert.Equal(t, FlowClaiming, f.GetState())
}

func TestFlow_TerminalRequiresReset(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	f.SetSessionToken("token-1")
	require.NoError(t, f.Trigger(ctx, EventClaimOK))
	require.NoError(t, f.Trigger(ctx, EventBust))

	// 终局后不能继续游玩事件
	assert.Error(t, f.Trigger(ctx, EventCashOut))
	assert.False(t, f.CanTrigger(EventSubmitID))

	// reset 回到未登录
	require.NoError(t, f.Trigger(ctx, EventReset))
	assert.Equal(t, FlowLoggedOut, f.GetState())
	assert.Empty(t, f.GameID())
	assert.Equal(t, float64(0), f.FinalAmount())
}

func TestFlow_StateChangeCallback(t *testing.T) {
	f := newTestFlow()
	ctx := context.Background()

	var transitions [][2]FlowState
	f.OnStateChange(func(from, to FlowState) {
		transitions = append(transitions, [2]FlowState{from, to})
	})

	f.SetGameID("1234")
	require.NoError(t, f.Trigger(ctx, EventSubmitID))
	f.SetSessionToken("token-1")
	require.NoError(t, f.Trigger(ctx, EventClaimOK))

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]FlowState{FlowLoggedOut, FlowClaiming}, transitions[0])
	assert.Equal(t, [2]FlowState{FlowClaiming, FlowPlaying}, transitions[1])
}
