package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/mine-game/internal/config"
	apperrors "github.com/wfunc/mine-game/internal/errors"
	"github.com/wfunc/mine-game/internal/models"
	"github.com/wfunc/mine-game/internal/repository"
	"github.com/wfunc/mine-game/internal/session"
	"github.com/wfunc/mine-game/internal/utils"
	"go.uber.org/zap"
)

func newTestAdminService(t *testing.T, cfg *config.AdminConfig) *AdminService {
	db := repository.TestDB(t)
	manager := session.NewManager(&session.Config{
		Repo:   repository.NewSessionRepository(db),
		Logger: zap.NewNop(),
		TTL:    time.Hour,
	})
	jwtManager := utils.NewJWTManager("test-secret", time.Hour)
	return NewAdminService(manager, jwtManager, cfg, zap.NewNop())
}

func TestAdminService_Login_Plaintext(t *testing.T) {
	s := newTestAdminService(t, &config.AdminConfig{Password: "qixi"})
	ctx := context.Background()

	token, err := s.Login(ctx, "qixi")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = s.Login(ctx, "wrong")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrAuthentication, appErr.Code)
}

func TestAdminService_Login_Hash(t *testing.T) {
	hash, err := utils.HashPassword("qixi")
	require.NoError(t, err)

	// 配置了哈希时忽略明文口令
	s := newTestAdminService(t, &config.AdminConfig{
		Password:     "other",
		PasswordHash: hash,
	})
	ctx := context.Background()

	token, err := s.Login(ctx, "qixi")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = s.Login(ctx, "other")
	assert.Error(t, err)
}

func TestAdminService_IssueID(t *testing.T) {
	s := newTestAdminService(t, &config.AdminConfig{Password: "qixi"})
	ctx := context.Background()

	view, err := s.IssueID(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", view.ID)
	assert.Equal(t, models.GameIDUnused, view.Status)

	_, err = s.IssueID(ctx, "1234")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrDuplicateID, appErr.Code)
}

func TestAdminService_IssueRandomID(t *testing.T) {
	s := newTestAdminService(t, &config.AdminConfig{Password: "qixi"})
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		view, err := s.IssueRandomID(ctx)
		require.NoError(t, err)
		require.Len(t, view.ID, 4)
		assert.False(t, seen[view.ID], "随机发号重复: %s", view.ID)
		seen[view.ID] = true
	}
}

func TestAdminService_ListAndDelete(t *testing.T) {
	s := newTestAdminService(t, &config.AdminConfig{Password: "qixi"})
	ctx := context.Background()

	for _, id := range []string{"1111", "2222"} {
		_, err := s.IssueID(ctx, id)
		require.NoError(t, err)
	}

	views, total, err := s.List(ctx, 1, 50)
	require.NoError(t, err)
	assert.Len(t, views, 2)
	assert.Equal(t, int64(2), total)

	require.NoError(t, s.DeleteID(ctx, "1111"))

	views, total, err = s.List(ctx, 1, 50)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "2222", views[0].ID)

	err = s.DeleteID(ctx, "1111")
	assert.Error(t, err)
}
