package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoard_MinePlacement(t *testing.T) {
	// 多次布雷验证：雷数恒定且全部落在棋盘内
	for i := 0; i < 100; i++ {
		b := NewDefaultBoard()
		mines := b.Mines()
		require.Len(t, mines, DefaultMineCount)

		seen := make(map[int]bool)
		for _, idx := range mines {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, DefaultGridSize)
			assert.False(t, seen[idx], "雷位重复: %d", idx)
			seen[idx] = true
		}
	}
}

func TestBoard_RewardForProgress(t *testing.T) {
	b := NewDefaultBoard()

	tests := []struct {
		safeCount int
		expected  float64
	}{
		{0, 0},
		{1, 0.12},   // 58 * (1/22)^2
		{11, 14.5},  // 58 * (1/2)^2
		{22, 58.0},  // 全开恰好是最大奖金
		{23, 58.0},  // 超出范围封顶
		{-1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.RewardForProgress(tt.safeCount),
			"safeCount=%d", tt.safeCount)
	}
}

func TestBoard_Reveal_SafeTile(t *testing.T) {
	b := NewDefaultBoard()
	safe := firstSafeTile(b)

	outcome, err := b.Reveal(safe)
	require.NoError(t, err)
	assert.False(t, outcome.Mine)
	assert.Equal(t, 1, outcome.SafeCount)
	assert.False(t, outcome.Finished)
	assert.Equal(t, b.RewardForProgress(1), outcome.CurrentReward)
}

func TestBoard_Reveal_Duplicate(t *testing.T) {
	b := NewDefaultBoard()
	safe := firstSafeTile(b)

	_, err := b.Reveal(safe)
	require.NoError(t, err)

	// 重复翻开同一格是无操作
	outcome, err := b.Reveal(safe)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.SafeCount)
	assert.False(t, outcome.Finished)
}

func TestBoard_Reveal_Mine(t *testing.T) {
	b := NewDefaultBoard()
	mine := b.Mines()[0]

	outcome, err := b.Reveal(mine)
	require.NoError(t, err)
	assert.True(t, outcome.Mine)
	assert.True(t, outcome.Finished)
	assert.True(t, outcome.Busted)
	assert.Equal(t, float64(0), outcome.CurrentReward)
	// 踩雷后全部格子翻开
	assert.Len(t, outcome.Revealed, DefaultGridSize)

	// 终局后不能继续翻格
	_, err = b.Reveal(firstSafeTile(b))
	assert.Error(t, err)
}

func TestBoard_Reveal_Mine_KeepsPreBustProgress(t *testing.T) {
	b := NewDefaultBoard()

	// 先翻开5个安全格再踩雷
	count := 0
	for i := 0; i < b.GridSize && count < 5; i++ {
		if b.IsMine(i) {
			continue
		}
		_, err := b.Reveal(i)
		require.NoError(t, err)
		count++
	}

	outcome, err := b.Reveal(b.Mines()[0])
	require.NoError(t, err)
	assert.True(t, outcome.Busted)
	// 全盘翻开不影响进度计数
	assert.Len(t, outcome.Revealed, DefaultGridSize)
	assert.Equal(t, 5, outcome.SafeCount)
	assert.Equal(t, 5, b.SafeCount())
	assert.Equal(t, float64(0), outcome.CurrentReward)
}

func TestBoard_Reveal_FullClear(t *testing.T) {
	b := NewDefaultBoard()

	var last *RevealOutcome
	for i := 0; i < b.GridSize; i++ {
		if b.IsMine(i) {
			continue
		}
		outcome, err := b.Reveal(i)
		require.NoError(t, err)
		last = outcome
	}

	// 第22个安全格触发满额终局
	require.NotNil(t, last)
	assert.True(t, last.Finished)
	assert.False(t, last.Busted)
	assert.Equal(t, DefaultMaxReward, last.CurrentReward)
	assert.Equal(t, DefaultGridSize-DefaultMineCount, last.SafeCount)
}

func TestBoard_CashOut(t *testing.T) {
	b := NewDefaultBoard()

	// 翻开11个安全格后提现应得14.50
	count := 0
	for i := 0; i < b.GridSize && count < 11; i++ {
		if b.IsMine(i) {
			continue
		}
		_, err := b.Reveal(i)
		require.NoError(t, err)
		count++
	}

	amount, err := b.CashOut()
	require.NoError(t, err)
	assert.Equal(t, 14.5, amount)

	// 终局后不能再提现
	_, err = b.CashOut()
	assert.Error(t, err)
}

func TestBoard_CashOut_NoProgress(t *testing.T) {
	b := NewDefaultBoard()

	amount, err := b.CashOut()
	require.NoError(t, err)
	assert.Equal(t, float64(0), amount)
}

func TestRestoreBoard(t *testing.T) {
	b := RestoreBoard(DefaultGridSize, DefaultMineCount, DefaultMaxReward,
		[]int{3, 7, 21}, []int{0, 1, 2})

	assert.Equal(t, 3, b.SafeCount())
	assert.False(t, b.Finished())
	assert.True(t, b.IsMine(7))
	assert.True(t, b.IsRevealed(1))

	// 恢复后继续游戏
	outcome, err := b.Reveal(4)
	require.NoError(t, err)
	assert.Equal(t, 4, outcome.SafeCount)
}

func TestRestoreBoard_Busted(t *testing.T) {
	// 已踩雷的状态恢复后保持终局
	b := RestoreBoard(DefaultGridSize, DefaultMineCount, DefaultMaxReward,
		[]int{3, 7, 21}, []int{0, 3})

	assert.True(t, b.Finished())
	assert.True(t, b.Busted())
	assert.Equal(t, float64(0), b.CurrentReward())

	_, err := b.Reveal(1)
	assert.Error(t, err)
}

// firstSafeTile 返回第一个非雷格
func firstSafeTile(b *Board) int {
	for i := 0; i < b.GridSize; i++ {
		if !b.IsMine(i) {
			return i
		}
	}
	return -1
}
