package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager 会话管理器
// 负责游戏ID的发放、认领、校验、心跳续期和结果落库。
// 并发控制基于数据库的条件更新：心跳和结果写入都以 WHERE 条件守护，
// 认领流程是先查后写的尽力而为检查（见 Claim 的说明）。
type Manager struct {
	repo   repository.SessionRepository
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
}

// Config 会话管理器配置
type Config struct {
	Repo   repository.SessionRepository
	Logger *zap.Logger
	TTL    time.Duration
}

// NewManager 创建会话管理器
func NewManager(config *Config) *Manager {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		repo:   config.Repo,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ClaimRequest 认领请求
type ClaimRequest struct {
	GameID      string `json:"game_id" binding:"required,len=4"`
	Fingerprint string `json:"fingerprint" binding:"required"`
	UserAgent   string `json:"user_agent"`
	IPAddress   string `json:"ip_address"`
}

// ClaimResult 认领结果
type ClaimResult struct {
	GameID       string    `json:"game_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Resumed      bool      `json:"resumed"` // 是否为同一浏览器的恢复
}

// IssueID 发放一个新的游戏ID
// 插入一条占位行：状态为 expired、过期时间在过去，
// 任何校验都无法通过，直到玩家认领后才被激活。
func (m *Manager) IssueID(ctx context.Context, gameID string) (*models.GameSession, error) {
	if err := validateGameID(gameID); err != nil {
		return nil, err
	}

	now := m.now()
	session := &models.GameSession{
		ID:            gameID,
		SessionToken:  uuid.New().String(),
		Status:        models.SessionStatusExpired,
		LastHeartbeat: now,
		ExpiresAt:     now.Add(-time.Second),
	}

	if err := m.repo.Insert(ctx, session); err != nil {
		if isDuplicateKeyError(err) {
			return nil, apperrors.New(apperrors.ErrDuplicateID, fmt.Sprintf("游戏ID已存在: %s", gameID))
		}
		m.logger.Error("发放游戏ID失败", zap.String("game_id", gameID), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "发放游戏ID失败")
	}

	m.logger.Info("发放游戏ID", zap.String("game_id", gameID))
	return session, nil
}

// Claim 认领游戏ID，建立新会话
// 流程（先查后写，窗口内的并发认领以后到者为准）：
//  1. 该ID存在活跃且未过期、且指纹不同的会话 → 冲突
//  2. ID不存在 → 未找到
//  3. 结果已写入 → 已使用，不可再玩
//  4. 覆盖整行：新令牌、激活状态、新指纹、重置过期时间
//
// 同一浏览器（指纹相同）重新认领视为恢复，同样签发新令牌，
// 旧令牌随之失效——先前标签页的心跳会开始失败。
func (m *Manager) Claim(ctx context.Context, req *ClaimRequest) (*ClaimResult, error) {
	if err := validateGameID(req.GameID); err != nil {
		return nil, err
	}

	now := m.now()

	// 1. 活跃会话检查
	active, err := m.repo.FindActiveUnexpired(ctx, req.GameID, now)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询活跃会话失败")
	}
	resumed := false
	if active != nil {
		if active.BrowserFingerprint != req.Fingerprint {
			m.logger.Warn("会话冲突",
				zap.String("game_id", req.GameID),
				zap.String("holder_fingerprint", active.BrowserFingerprint),
				zap.String("claim_fingerprint", req.Fingerprint))
			return nil, apperrors.New(apperrors.ErrSessionConflict, "该游戏ID正在其他浏览器中进行")
		}
		resumed = true
	}

	// 2. 存在性检查
	existing, err := m.repo.FindByID(ctx, req.GameID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询游戏ID失败")
	}
	if existing == nil {
		return nil, apperrors.New(apperrors.ErrIDNotFound, fmt.Sprintf("游戏ID不存在: %s", req.GameID))
	}

	// 3. 结果不可变：已出结果的ID不能重新认领，把历史结果带回去供页面展示
	if existing.GameResult != nil {
		return nil, apperrors.New(apperrors.ErrAlreadyUsed,
			fmt.Sprintf("该游戏ID已使用，结果: %s，金额: %.2f", *existing.GameResult, existing.Amount))
	}

	// 4. 覆盖整行，签发新令牌
	token := uuid.New().String()
	expiresAt := now.Add(m.ttl)
	updates := map[string]interface{}{
		"session_token":       token,
		"status":              models.SessionStatusActive,
		"browser_fingerprint": req.Fingerprint,
		"user_agent":          req.UserAgent,
		"ip_address":          req.IPAddress,
		"last_heartbeat":      now,
		"expires_at":          expiresAt,
		"game_result":         nil,
		"amount":              float64(0),
	}
	if err := m.repo.ClaimUpdate(ctx, req.GameID, updates); err != nil {
		m.logger.Error("认领更新失败", zap.String("game_id", req.GameID), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "认领游戏ID失败")
	}

	m.logger.Info("认领游戏ID",
		zap.String("game_id", req.GameID),
		zap.Bool("resumed", resumed),
		zap.Time("expires_at", expiresAt))

	return &ClaimResult{
		GameID:       req.GameID,
		SessionToken: token,
		ExpiresAt:    expiresAt,
		Resumed:      resumed,
	}, nil
}

// Validate 校验ID与令牌是否匹配一个活跃且未过期的会话
// 校验通过时滑动续期：过期时间推后一个TTL。
func (m *Manager) Validate(ctx context.Context, gameID, token string) (*models.GameSession, error) {
	if err := validateGameID(gameID); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.New(apperrors.ErrSessionInvalid, "缺少会话令牌")
	}

	session, err := m.repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询会话失败")
	}
	if session == nil {
		return nil, apperrors.New(apperrors.ErrIDNotFound, fmt.Sprintf("游戏ID不存在: %s", gameID))
	}
	if session.SessionToken != token || session.Status != models.SessionStatusActive {
		return nil, apperrors.New(apperrors.ErrSessionInvalid, "会话令牌无效")
	}

	now := m.now()
	if !session.ExpiresAt.After(now) {
		return nil, apperrors.New(apperrors.ErrSessionExpired, "会话已过期")
	}

	// 滑动续期
	expiresAt := now.Add(m.ttl)
	if _, err := m.repo.TouchHeartbeat(ctx, token, now, expiresAt); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "会话续期失败")
	}
	session.LastHeartbeat = now
	session.ExpiresAt = expiresAt

	return session, nil
}

// Heartbeat 心跳续期
// 条件更新：只有令牌仍然指向活跃会话时才生效。
// 返回 false 表示会话已被接管、已完成或已过期，调用方应停止游戏。
func (m *Manager) Heartbeat(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	now := m.now()
	alive, err := m.repo.TouchHeartbeat(ctx, token, now, now.Add(m.ttl))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "心跳更新失败")
	}
	if !alive {
		m.logger.Info("心跳失效", zap.String("token_prefix", tokenPrefix(token)))
	}
	return alive, nil
}

// Complete 写入游戏结果
// 条件更新守护：WHERE game_result IS NULL，先写者赢。
// 重复提交同一结果视为幂等成功；结果不同则报告已使用。
func (m *Manager) Complete(ctx context.Context, token string, result models.GameResult, amount float64) error {
	if token == "" {
		return apperrors.New(apperrors.ErrSessionInvalid, "缺少会话令牌")
	}
	if result != models.GameResultCashedOut && result != models.GameResultBusted {
		return apperrors.New(apperrors.ErrInvalidParam, fmt.Sprintf("无效的游戏结果: %s", result))
	}
	if result == models.GameResultBusted {
		amount = 0
	}

	ok, err := m.repo.CompleteByToken(ctx, token, result, amount)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "写入游戏结果失败")
	}
	if ok {
		m.logger.Info("游戏结束",
			zap.String("token_prefix", tokenPrefix(token)),
			zap.String("result", string(result)),
			zap.Float64("amount", amount))
		return nil
	}

	// 条件更新未命中：要么令牌无效，要么结果已写入
	session, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询会话失败")
	}
	if session == nil {
		return apperrors.New(apperrors.ErrSessionInvalid, "会话令牌无效")
	}
	if session.GameResult != nil {
		// 同一结果的重复提交是幂等的
		if *session.GameResult == result && session.Amount == amount {
			return nil
		}
		return apperrors.New(apperrors.ErrAlreadyUsed,
			fmt.Sprintf("结果已写入，不可更改: %s", *session.GameResult))
	}
	return apperrors.New(apperrors.ErrSessionInvalid, "会话状态异常")
}

// SyncBoard 同步棋盘状态
// 仅在开启棋盘持久化时由处理层调用，失败不影响游戏进行。
func (m *Manager) SyncBoard(ctx context.Context, token string, state models.JSONMap) error {
	ok, err := m.repo.UpdateBoardState(ctx, token, state)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "同步棋盘状态失败")
	}
	if !ok {
		return apperrors.New(apperrors.ErrSessionInvalid, "会话已失效，棋盘状态未保存")
	}
	return nil
}

// CheckStatus 按令牌查询会话快照
// 只读，不续期。令牌不再指向任何行时返回 nil——会话已被接管或删除。
// 快照带有终局结果时（在别处被完成），页面应展示历史结果而不是报错。
func (m *Manager) CheckStatus(ctx context.Context, token string) (*models.GameSession, error) {
	if token == "" {
		return nil, nil
	}

	session, err := m.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询会话失败")
	}
	return session, nil
}

// IDView 查询游戏ID的状态视图
func (m *Manager) IDView(ctx context.Context, gameID string) (*models.GameIDView, error) {
	if err := validateGameID(gameID); err != nil {
		return nil, err
	}

	session, err := m.repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询游戏ID失败")
	}
	if session == nil {
		return nil, apperrors.New(apperrors.ErrIDNotFound, fmt.Sprintf("游戏ID不存在: %s", gameID))
	}

	view := session.View(m.now())
	return &view, nil
}

// DeleteID 删除游戏ID
// 硬删除，进行中的会话一并作废，其心跳会开始失败。
func (m *Manager) DeleteID(ctx context.Context, gameID string) error {
	if err := validateGameID(gameID); err != nil {
		return err
	}

	ok, err := m.repo.Delete(ctx, gameID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "删除游戏ID失败")
	}
	if !ok {
		return apperrors.New(apperrors.ErrIDNotFound, fmt.Sprintf("游戏ID不存在: %s", gameID))
	}

	m.logger.Info("删除游戏ID", zap.String("game_id", gameID))
	return nil
}

// List 分页列出所有游戏ID，最新的在前
func (m *Manager) List(ctx context.Context, p *repository.Pagination) ([]models.GameIDView, error) {
	sessions, err := m.repo.List(ctx, p)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "查询游戏ID列表失败")
	}

	now := m.now()
	views := make([]models.GameIDView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View(now))
	}
	return views, nil
}

// validateGameID 游戏ID必须是4位数字
func validateGameID(gameID string) error {
	if len(gameID) != 4 {
		return apperrors.New(apperrors.ErrIDNotFound, "游戏ID必须是4位数字")
	}
	for _, c := range gameID {
		if c < '0' || c > '9' {
			return apperrors.New(apperrors.ErrIDNotFound, "游戏ID必须是4位数字")
		}
	}
	return nil
}

// tokenPrefix 日志中只记录令牌前缀
func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

// isDuplicateKeyError 判断是否为主键冲突
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	// sqlite/mysql 驱动不一定映射到 gorm.ErrDuplicatedKey
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
