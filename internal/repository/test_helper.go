package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/mine-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 创建测试数据库
func TestDB(t *testing.T) *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 自动迁移所有模型
	err = db.AutoMigrate(&models.GameSession{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// CreateTestSession 创建一条可认领的占位会话行（管理员签发后的初始形态）
func CreateTestSession(id string) *models.GameSession {
	past := time.Now().Add(-time.Second)
	return &models.GameSession{
		ID:            id,
		SessionToken:  uuid.NewString(),
		Status:        models.SessionStatusExpired,
		Amount:        0,
		LastHeartbeat: past,
		ExpiresAt:     past,
	}
}

// CreateActiveTestSession 创建一条活跃会话行
func CreateActiveTestSession(id, fingerprint string) *models.GameSession {
	now := time.Now()
	return &models.GameSession{
		ID:                 id,
		SessionToken:       uuid.NewString(),
		Status:             models.SessionStatusActive,
		BrowserFingerprint: fingerprint,
		Amount:             0,
		LastHeartbeat:      now,
		ExpiresAt:          now.Add(time.Hour),
	}
}

// AssertSession 验证会话关键字段
func AssertSession(t *testing.T, expected, actual *models.GameSession) {
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.SessionToken, actual.SessionToken)
	assert.Equal(t, expected.Status, actual.Status)
	assert.Equal(t, expected.BrowserFingerprint, actual.BrowserFingerprint)
}
