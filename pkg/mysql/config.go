package mysql

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// Config 定義 MySQL 連線與連線池的配置
type Config struct {
	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 3306)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"dbname"`   // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"maxIdleConns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"` // 連線最大存活時間

	// LockWaitTimeout InnoDB 等待列鎖的上限，逾時回傳 1205
	LockWaitTimeout time.Duration `yaml:"lockWaitTimeout"`
	// Isolation 提交單元的隔離等級: "serializable" (預設), "repeatable-read", "read-committed", "default"
	Isolation string `yaml:"isolation"`

	// 啟動時的連線重試 (等待資料庫容器就緒)
	ConnectRetries       int           `yaml:"connectRetries"`       // 預設 10 次
	ConnectRetryInterval time.Duration `yaml:"connectRetryInterval"` // 預設 2s

	// GORM 設定
	LogLevel string `yaml:"logLevel"` // Log 等級: "silent", "error", "warn", "info"
}

// DSN (Data Source Name) 產生連線字串
// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC&innodb_lock_wait_timeout=30
func (c *Config) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{
		"charset": "utf8mb4",
	}
	if c.LockWaitTimeout > 0 {
		cfg.Params["innodb_lock_wait_timeout"] = fmt.Sprintf("%d", int(c.LockWaitTimeout.Seconds()))
	}
	return cfg.FormatDSN()
}

// IsolationLevel 將設定字串轉成 sql.IsolationLevel
func (c *Config) IsolationLevel() sql.IsolationLevel {
	switch strings.ToLower(strings.TrimSpace(c.Isolation)) {
	case "default":
		return sql.LevelDefault
	case "read-committed":
		return sql.LevelReadCommitted
	case "repeatable-read":
		return sql.LevelRepeatableRead
	default:
		return sql.LevelSerializable
	}
}

// retryPolicy 回傳連線重試次數與間隔，未設定時套用預設值
func (c *Config) retryPolicy() (int, time.Duration) {
	retries, interval := c.ConnectRetries, c.ConnectRetryInterval
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	if interval <= 0 {
		interval = defaultConnectRetryInterval
	}
	return retries, interval
}
