package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"AgentFeed/pkg/config"
	"AgentFeed/pkg/model"
)

// Database 数据库连接
type Database struct {
	db  *gorm.DB
	now func() time.Time
}

// Open 按配置打开 postgres 或 sqlite
func Open(cfg *config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		if dir := filepath.Dir(cfg.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建数据库目录失败: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}

	return New(db), nil
}

// New 包装已有的 gorm 连接
func New(db *gorm.DB) *Database {
	return &Database{db: db, now: time.Now}
}

// WithClock 替换时钟，去重窗口和过期清理都以它为准
func (d *Database) WithClock(now func() time.Time) *Database {
	d.now = now
	return d
}

func (d *Database) clock() time.Time {
	return d.now().UTC()
}

// AutoMigrate 建表
func (d *Database) AutoMigrate() error {
	if err := d.db.AutoMigrate(&model.HotTopic{}, &model.Note{}, &model.Comment{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// Ping 检查连接
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) HotTopics() *HotTopicDB {
	return &HotTopicDB{db: d.db, now: d.clock}
}

func (d *Database) Notes() *NoteDB {
	return &NoteDB{db: d.db}
}

func (d *Database) Comments() *CommentDB {
	return &CommentDB{db: d.db}
}
