package game

import (
	"math"
	"math/rand"

	apperrors "github.com/wfunc/mine-game/internal/errors"
)

// 棋盘常量：5x5 共25格，3颗雷，翻开全部22个安全格可获得最大奖金
const (
	DefaultGridSize  = 25
	DefaultMineCount = 3
	DefaultMaxReward = 58.0
)

// TileState 格子状态
type TileState string

const (
	TileHidden   TileState = "hidden"
	TileRevealed TileState = "revealed"
)

// Board 单局棋盘
// 纯内存状态，不做任何IO，并发控制由调用方负责。
type Board struct {
	GridSize  int
	MineCount int
	MaxReward float64

	mines    map[int]bool
	revealed map[int]bool
	// 踩雷前翻开的安全格数。踩雷会把全部格子标记为已翻开，
	// 进度必须从这里读而不是数revealed。
	safeRevealed int
	finished     bool
	busted       bool
}

// RevealOutcome 翻格结果
type RevealOutcome struct {
	Index         int     `json:"index"`
	Mine          bool    `json:"mine"`
	SafeCount     int     `json:"safe_count"`
	CurrentReward float64 `json:"current_reward"`
	Finished      bool    `json:"finished"` // 踩雷或翻完全部安全格
	Busted        bool    `json:"busted"`
	Revealed      []int   `json:"revealed"` // 终局时返回全部已翻开的格子
}

// NewBoard 创建一局新棋盘并随机布雷
func NewBoard(gridSize, mineCount int, maxReward float64) *Board {
	b := &Board{
		GridSize:  gridSize,
		MineCount: mineCount,
		MaxReward: maxReward,
		mines:     make(map[int]bool, mineCount),
		revealed:  make(map[int]bool),
	}
	b.placeMines()
	return b
}

// NewDefaultBoard 以默认参数创建棋盘
func NewDefaultBoard() *Board {
	return NewBoard(DefaultGridSize, DefaultMineCount, DefaultMaxReward)
}

// placeMines 随机布雷，重复落点重试直到放满
func (b *Board) placeMines() {
	for len(b.mines) < b.MineCount {
		idx := rand.Intn(b.GridSize)
		if !b.mines[idx] {
			b.mines[idx] = true
		}
	}
}

// RestoreBoard 从持久化状态恢复棋盘
func RestoreBoard(gridSize, mineCount int, maxReward float64, mines, revealed []int) *Board {
	b := &Board{
		GridSize:  gridSize,
		MineCount: mineCount,
		MaxReward: maxReward,
		mines:     make(map[int]bool, len(mines)),
		revealed:  make(map[int]bool, len(revealed)),
	}
	for _, idx := range mines {
		b.mines[idx] = true
	}
	for _, idx := range revealed {
		b.revealed[idx] = true
		if b.mines[idx] {
			b.finished = true
			b.busted = true
		} else {
			b.safeRevealed++
		}
	}
	if b.SafeCount() >= b.totalSafe() {
		b.finished = true
	}
	return b
}

// RewardForProgress 根据已翻开的安全格数计算当前奖金
// 奖金随进度平方增长：reward = max * (n / totalSafe)^2，保留两位小数。
// 22格全开时恰好等于最大奖金。
func (b *Board) RewardForProgress(safeCount int) float64 {
	total := b.totalSafe()
	if safeCount <= 0 || total <= 0 {
		return 0
	}
	if safeCount >= total {
		return b.MaxReward
	}
	ratio := float64(safeCount) / float64(total)
	return math.Round(b.MaxReward*ratio*ratio*100) / 100
}

// Reveal 翻开一格
// 重复翻开同一格是无操作；踩雷翻开全部格子并终局；
// 翻开第22个安全格自动以最大奖金终局。
func (b *Board) Reveal(index int) (*RevealOutcome, error) {
	if b.finished {
		return nil, apperrors.New(apperrors.ErrGameFinished)
	}
	if index < 0 || index >= b.GridSize {
		return nil, apperrors.New(apperrors.ErrInvalidTile)
	}

	if b.revealed[index] {
		// 重复点击无操作，返回当前进度
		return b.outcome(index), nil
	}

	b.revealed[index] = true

	if b.mines[index] {
		// 踩雷：全部格子翻开，终局。进度停留在踩雷前。
		for i := 0; i < b.GridSize; i++ {
			b.revealed[i] = true
		}
		b.finished = true
		b.busted = true
		return b.outcome(index), nil
	}

	b.safeRevealed++
	if b.SafeCount() >= b.totalSafe() {
		// 全部安全格翻完，自动结算最大奖金
		b.finished = true
	}
	return b.outcome(index), nil
}

// CashOut 以当前进度结算
// 终局后不能再提现；没有翻开任何安全格时结算为0。
func (b *Board) CashOut() (float64, error) {
	if b.finished {
		return 0, apperrors.New(apperrors.ErrGameFinished)
	}
	b.finished = true
	return b.RewardForProgress(b.SafeCount()), nil
}

// SafeCount 已翻开的安全格数，踩雷后保持踩雷前的进度
func (b *Board) SafeCount() int {
	return b.safeRevealed
}

// CurrentReward 当前可提现金额
func (b *Board) CurrentReward() float64 {
	if b.busted {
		return 0
	}
	return b.RewardForProgress(b.SafeCount())
}

// Finished 是否已终局
func (b *Board) Finished() bool {
	return b.finished
}

// Busted 是否踩雷
func (b *Board) Busted() bool {
	return b.busted
}

// IsMine 指定格是否为雷
func (b *Board) IsMine(index int) bool {
	return b.mines[index]
}

// IsRevealed 指定格是否已翻开
func (b *Board) IsRevealed(index int) bool {
	return b.revealed[index]
}

// Mines 返回全部雷位（排序不保证）
func (b *Board) Mines() []int {
	out := make([]int, 0, len(b.mines))
	for idx := range b.mines {
		out = append(out, idx)
	}
	return out
}

// RevealedTiles 返回全部已翻开的格子（排序不保证）
func (b *Board) RevealedTiles() []int {
	out := make([]int, 0, len(b.revealed))
	for idx := range b.revealed {
		out = append(out, idx)
	}
	return out
}

func (b *Board) totalSafe() int {
	return b.GridSize - b.MineCount
}

func (b *Board) outcome(index int) *RevealOutcome {
	o := &RevealOutcome{
		Index:         index,
		Mine:          b.mines[index],
		SafeCount:     b.SafeCount(),
		CurrentReward: b.CurrentReward(),
		Finished:      b.finished,
		Busted:        b.busted,
	}
	if b.finished {
		o.Revealed = b.RevealedTiles()
		if !b.busted {
			o.CurrentReward = b.MaxReward
		}
	}
	return o
}
