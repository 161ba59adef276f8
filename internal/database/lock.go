package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wfunc/mine-game/internal/logger"
	"go.uber.org/zap"
)

// 迁移锁参数。锁文件超过staleAfter视为残留（进程崩溃未清理），直接接管。
const (
	lockWait   = 30 * time.Second
	lockPoll   = time.Second
	staleAfter = 5 * time.Minute
	lockPerm   = 0644
)

// migrationLock sqlite场景下的跨进程迁移互斥。
// 同一数据库文件被多个server实例同时AutoMigrate会损坏表结构，
// 用O_EXCL锁文件把迁移串行化。
type migrationLock struct {
	path string
	file *os.File
}

// acquireMigrationLock 获取迁移锁
func acquireMigrationLock(dbPath string) (*migrationLock, error) {
	lockPath := dbPath + ".migration.lock"
	deadline := time.Now().Add(lockWait)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, lockPerm)
		if err == nil {
			logger.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return &migrationLock{path: lockPath, file: f}, nil
		}

		// 残留锁：持有者已不在，接管
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleAfter {
			logger.Warn("迁移锁文件过期，接管", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("等待迁移锁超时: %s", lockPath)
		}
		time.Sleep(lockPoll)
	}
}

// release 释放迁移锁
func (l *migrationLock) release() {
	if l == nil {
		return
	}
	l.file.Close()
	os.Remove(l.path)
	logger.Debug("释放迁移锁", zap.String("lock", l.path))
}

// getDBPath 取sqlite数据库文件路径，非sqlite返回空（无需文件锁）
func getDBPath() string {
	if DB == nil {
		return ""
	}

	switch DB.Dialector.Name() {
	case "sqlite", "sqlite3":
		if sqlDB, err := DB.DB(); err == nil {
			row := sqlDB.QueryRow("PRAGMA database_list")
			var seq int
			var name, file string
			if err := row.Scan(&seq, &name, &file); err == nil && file != "" {
				return file
			}
		}
		return ""
	default:
		return ""
	}
}

// CleanupStaleLocks 启动时清理数据目录下的残留锁文件
func CleanupStaleLocks() {
	for _, pattern := range []string{"./data/*.lock", "./*.lock"} {
		matches, _ := filepath.Glob(pattern)
		for _, lock := range matches {
			info, err := os.Stat(lock)
			if err != nil || time.Since(info.ModTime()) <= staleAfter {
				continue
			}
			logger.Info("清理过期锁文件", zap.String("file", lock))
			os.Remove(lock)
		}
	}
}
