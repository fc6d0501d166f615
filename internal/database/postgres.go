package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"room-monitor/internal/config"

	_ "github.com/lib/pq"
)

const connMaxLifetime = 30 * time.Minute

// NewPostgresDB 打开房间历史库并确认可用
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database, err)
	}
	applyPool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s@%s:%d: %w", cfg.Database, cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// applyPool 设置连接池参数
func applyPool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(connMaxLifetime)
}

// Close 关闭数据库连接，db 为 nil 时无操作
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
