package mysql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultConnectRetries       = 10
	defaultConnectRetryInterval = 2 * time.Second
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 參數:
//
//	ctx: 取消時停止重試
//	cfg: Config - MySQL 連線配置
//	log: 連線重試時使用的 logger
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	return open(ctx, mysql.Open(cfg.DSN()), cfg, log)
}

// open 以指定的 dialector 連線，直到 Ping 成功或用完重試次數
func open(ctx context.Context, dialector gorm.Dialector, cfg Config, log *zap.Logger) (*Client, error) {
	gormConfig := &gorm.Config{
		// 帳本的寫入一律自行開 Transaction，跳過預設的單筆事務
		SkipDefaultTransaction: true,
		// 將 duplicate key 等錯誤轉為 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         newLogger(cfg.LogLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	retries, interval := cfg.retryPolicy()
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		db, err := gorm.Open(dialector, gormConfig)
		if err == nil {
			if err = ping(ctx, db); err == nil {
				if err = configurePool(db, cfg); err != nil {
					return nil, err
				}
				return &Client{db: db}, nil
			}
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		lastErr = err
		if attempt == retries {
			break
		}

		log.Warn("failed to connect to mysql, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries),
			zap.Duration("retry_in", interval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mysql connect cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", retries, lastErr)
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// configurePool 設定底層 sql.DB 的連線池
func configurePool(db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error // 預設只記錄錯誤
	}

	return logger.Default.LogMode(logLevel)
}
