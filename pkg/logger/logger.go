package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 定義 logger 配置
type Config struct {
	Level    string `yaml:"level"`    // debug, info, warn, error (預設 info)
	Encoding string `yaml:"encoding"` // json (預設), console
}

// New 依配置建立 zap logger
//
// 參數:
//
//	cfg: logger 配置
//
// 回傳值:
//
//	*zap.Logger: logger 實例
//	error: 等級或編碼不合法
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = zap.NewAtomicLevelAt(parsed)
	}

	zapConfig := zap.NewProductionConfig()
	switch strings.ToLower(cfg.Encoding) {
	case "", "json":
		zapConfig.Encoding = "json"
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Encoding = "console"
	default:
		return nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}
	zapConfig.Level = level
	zapConfig.DisableStacktrace = true
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapConfig.Build()
}
