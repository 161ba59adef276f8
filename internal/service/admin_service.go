package service

import (
	"context"
	"crypto/subtle"

	"github.com/wfunc/mine-game/internal/config"
	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/repository"
	"github.com/wfunc/mine-game/internal/session"
	"github.com/wfunc/mine-game/internal/utils"
	"go.uber.org/zap"
)

// 随机发号时的最大重试次数，号池耗尽前碰撞概率很低
const maxIssueRetries = 20

// AdminService 管理端服务
// 登录换取JWT，之后可以发号、查状态、列表和删除。
type AdminService struct {
	manager    *session.Manager
	jwtManager *utils.JWTManager
	cfg        *config.AdminConfig
	logger     *zap.Logger
}

// NewAdminService 创建管理端服务
func NewAdminService(manager *session.Manager, jwtManager *utils.JWTManager, cfg *config.AdminConfig, logger *zap.Logger) *AdminService {
	return &AdminService{
		manager:    manager,
		jwtManager: jwtManager,
		cfg:        cfg,
		logger:     logger,
	}
}

// Login 管理端登录
// 优先校验argon2哈希，未配置哈希时回退到明文口令的恒定时间比较。
func (s *AdminService) Login(ctx context.Context, password string) (string, error) {
	ok := false
	if s.cfg.PasswordHash != "" {
		verified, err := utils.VerifyPassword(password, s.cfg.PasswordHash)
		if err != nil {
			s.logger.Error("密码哈希校验失败", zap.Error(err))
			return "", apperrors.Wrap(err, apperrors.ErrAuthentication, "密码校验失败")
		}
		ok = verified
	} else {
		ok = subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	}

	if !ok {
		s.logger.Warn("管理端登录失败")
		return "", apperrors.New(apperrors.ErrAuthentication, "密码错误")
	}

	token, err := s.jwtManager.GenerateAdminToken()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrAuthentication, "签发令牌失败")
	}

	s.logger.Info("管理端登录成功")
	return token, nil
}

// IssueID 发放指定的游戏ID
func (s *AdminService) IssueID(ctx context.Context, gameID string) (*models.GameIDView, error) {
	sess, err := s.manager.IssueID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	view := sess.View(sess.CreatedAt)
	return &view, nil
}

// IssueRandomID 发放随机4位游戏ID，碰撞时重试
func (s *AdminService) IssueRandomID(ctx context.Context) (*models.GameIDView, error) {
	for i := 0; i < maxIssueRetries; i++ {
		gameID, err := utils.GenerateGameID()
		if err != nil {
			return nil, err
		}
		view, err := s.IssueID(ctx, gameID)
		if err == nil {
			return view, nil
		}
		if appErr, ok := err.(*apperrors.AppError); ok && appErr.Code == apperrors.ErrDuplicateID {
			continue
		}
		return nil, err
	}
	return nil, apperrors.New(apperrors.ErrDuplicateID, "号池接近耗尽，发号重试次数用完")
}

// CheckStatus 查询游戏ID状态
func (s *AdminService) CheckStatus(ctx context.Context, gameID string) (*models.GameIDView, error) {
	return s.manager.IDView(ctx, gameID)
}

// List 分页列出全部游戏ID
func (s *AdminService) List(ctx context.Context, page, pageSize int) ([]models.GameIDView, int64, error) {
	p := repository.NewPagination(page, pageSize)
	views, err := s.manager.List(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	return views, p.Total, nil
}

// DeleteID 删除游戏ID
func (s *AdminService) DeleteID(ctx context.Context, gameID string) error {
	return s.manager.DeleteID(ctx, gameID)
}
