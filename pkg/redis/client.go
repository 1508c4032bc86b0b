package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config 定義 Redis 連線配置
type Config struct {
	Addr     string `yaml:"addr"`     // host:port，空字串代表不啟用
	Password string `yaml:"password"` // 密碼
	DB       int    `yaml:"db"`       // 資料庫編號
	// ChannelPrefix 事件頻道前綴，頻道名稱為 <prefix>:<event type>
	ChannelPrefix string        `yaml:"channelPrefix"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
}

// Enabled 是否有設定 Redis
func (c *Config) Enabled() bool {
	return c.Addr != ""
}

// NewClient 建立 Redis 客戶端並確認連線
//
// 參數:
//
//	ctx: 上下文 (用於 PING)
//	cfg: Redis 配置
//	log: logger
//
// 回傳值:
//
//	*goredis.Client: 已連線的客戶端
//	error: 連線失敗
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	log.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
