package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/mine-game/internal/models"
	"gorm.io/gorm"
)

// SessionRepository 游戏会话仓储接口
//
// 这是会话核心面向记录存储的全部契约：按主键的单行读写、按会话令牌
// 的条件更新。存储只保证单行原子性，不提供跨行事务或行锁，并发认领
// 的防护由上层的再校验完成。
type SessionRepository interface {
	BaseRepository
	Insert(ctx context.Context, session *models.GameSession) error
	FindByID(ctx context.Context, id string) (*models.GameSession, error)
	FindByToken(ctx context.Context, token string) (*models.GameSession, error)
	FindActiveUnexpired(ctx context.Context, id string, now time.Time) (*models.GameSession, error)
	ClaimUpdate(ctx context.Context, id string, updates map[string]interface{}) error
	TouchHeartbeat(ctx context.Context, token string, now, expiresAt time.Time) (bool, error)
	CompleteByToken(ctx context.Context, token string, result models.GameResult, amount float64) (bool, error)
	UpdateBoardState(ctx context.Context, token string, state models.JSONMap) (bool, error)
	List(ctx context.Context, p *Pagination) ([]*models.GameSession, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// sessionRepo 游戏会话仓储实现
type sessionRepo struct {
	*BaseRepo
}

// NewSessionRepository 创建游戏会话仓储
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Insert 插入新的会话行（主键冲突时返回错误）
func (r *sessionRepo) Insert(ctx context.Context, session *models.GameSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindByID 根据游戏ID查找（不存在时返回 nil, nil）
func (r *sessionRepo) FindByID(ctx context.Context, id string) (*models.GameSession, error) {
	var session models.GameSession
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByToken 根据会话令牌查找（不存在时返回 nil, nil）
func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*models.GameSession, error) {
	var session models.GameSession
	err := r.db.WithContext(ctx).
		Where("session_token = ?", token).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveUnexpired 查找指定ID的活跃且未过期的会话（不存在时返回 nil, nil）
func (r *sessionRepo) FindActiveUnexpired(ctx context.Context, id string, now time.Time) (*models.GameSession, error) {
	var session models.GameSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ? AND expires_at > ?", id, models.SessionStatusActive, now).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ClaimUpdate 按主键整行覆盖（认领时的唯一写入点，依赖存储的单行原子性）
func (r *sessionRepo) ClaimUpdate(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TouchHeartbeat 条件续期：仅当会话仍为active时刷新心跳和过期时间，
// 返回是否确实更新了行（false 表示会话已不在任何地方活跃）
func (r *sessionRepo) TouchHeartbeat(ctx context.Context, token string, now, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("session_token = ? AND status = ?", token, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"last_heartbeat": now,
			"expires_at":     expiresAt,
		})

	return result.RowsAffected > 0, result.Error
}

// CompleteByToken 终局写入：仅当尚无结果时写入，先写者胜。
// 结果一旦写入即不可变，重复调用不会产生新的可见副作用。
func (r *sessionRepo) CompleteByToken(ctx context.Context, token string, result models.GameResult, amount float64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("session_token = ? AND game_result IS NULL", token).
		Updates(map[string]interface{}{
			"status":      models.SessionStatusCompleted,
			"game_result": result,
			"amount":      amount,
		})

	return res.RowsAffected > 0, res.Error
}

// UpdateBoardState 保存棋盘状态（仅活跃会话）
func (r *sessionRepo) UpdateBoardState(ctx context.Context, token string, state models.JSONMap) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("session_token = ? AND status = ?", token, models.SessionStatusActive).
		Update("board_state", state)

	return result.RowsAffected > 0, result.Error
}

// List 列出所有会话行（最新的在前，分页）
func (r *sessionRepo) List(ctx context.Context, p *Pagination) ([]*models.GameSession, error) {
	var sessions []*models.GameSession

	// 查询总数
	if err := r.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Count(&p.Total).Error; err != nil {
		return nil, err
	}

	// 查询数据
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Scopes(Paginate(p)).
		Find(&sessions).Error

	return sessions, err
}

// Delete 按ID硬删除（任何状态都允许，包括终局记录）
func (r *sessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.GameSession{})

	return result.RowsAffected > 0, result.Error
}

// WithTx 使用事务
func (r *sessionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &sessionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
