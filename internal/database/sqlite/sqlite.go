package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"astro/internal/config"
	"astro/internal/models"
)

var (
	dbInstance *gorm.DB
	once       sync.Once
	initErr    error
)

// Open 打开指定路径的 SQLite 数据库，完成迁移并写入种子数据。
// 测试可以直接用内存路径调用它，绕过单例。
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("无法创建数据目录 '%s': %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("无法打开 SQLite 数据库: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	if err := seed(db); err != nil {
		return nil, err
	}
	return db, nil
}

// GetDB 使用单例模式初始化并返回一个 GORM 数据库实例。
// 它确保数据库连接在整个应用生命周期中只被建立一次。
func GetDB(cfg *config.AppConfig) (*gorm.DB, error) {
	once.Do(func() {
		path := cfg.Storage.DatabasePath()
		if cfg.Databases.SQLite.BusyTimeout > 0 {
			path = fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, cfg.Databases.SQLite.BusyTimeout)
		}
		dbInstance, initErr = Open(path)
	})
	return dbInstance, initErr
}

// migrate 同步所有表结构。
func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Universe{},
		&models.Category{},
		&models.Note{},
		&models.NoteImage{},
		&models.Link{},
		&models.ActionItem{},
		&models.ActionItemLink{},
		&models.Document{},
		&models.Feed{},
		&models.FeedArtifact{},
		&models.Setting{},
		&models.TeamMember{},
		&models.Activity{},
		&models.ActivityTask{},
		&models.ActivityRun{},
		&models.ActivityResponse{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// seed 保证至少存在一个 Universe，新安装时创建默认的 "Main"。
func seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Universe{}).Count(&count).Error; err != nil {
		return fmt.Errorf("检查 Universe 数量失败: %w", err)
	}
	if count == 0 {
		if err := db.Create(&models.Universe{Name: "Main"}).Error; err != nil {
			return fmt.Errorf("创建默认 Universe 失败: %w", err)
		}
	}
	return nil
}

// Close 安全地关闭单例的数据库连接。
func Close() error {
	if dbInstance != nil {
		sqlDB, err := dbInstance.DB()
		if err != nil {
			return fmt.Errorf("获取底层 SQL DB 实例失败: %w", err)
		}
		return sqlDB.Close()
	}
	return nil
}

// HealthCheck 检查数据库连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if dbInstance == nil {
		return fmt.Errorf("数据库连接未初始化")
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return fmt.Errorf("无法获取底层 SQL DB 实例进行健康检查: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
