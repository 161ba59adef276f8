package database

import (
	"fmt"

	"github.com/wfunc/mine-game/internal/logger"
	"github.com/wfunc/mine-game/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 文件型sqlite需要跨进程互斥，内存库和server型数据库跳过
	if dbPath := getDBPath(); dbPath != "" {
		lock, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer lock.release()
	}

	logger.Info("开始数据库迁移...")

	if err := DB.AutoMigrate(&models.GameSession{}); err != nil {
		logger.Error("迁移失败",
			zap.String("model", fmt.Sprintf("%T", &models.GameSession{})),
			zap.Error(err),
		)
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}
