package mysql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpen_ConfiguresPool(t *testing.T) {
	cfg := Config{MaxOpenConns: 3, MaxIdleConns: 1, LogLevel: "silent"}

	client, err := open(context.Background(), sqlite.Open(filepath.Join(t.TempDir(), "ok.db")), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_RetriesThenFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := Config{ConnectRetries: 3, ConnectRetryInterval: time.Millisecond, LogLevel: "silent"}
	missing := filepath.Join(t.TempDir(), "no-such-dir", "ledger.db")

	_, err := open(context.Background(), sqlite.Open(missing), cfg, zap.New(core))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	// 最後一次失敗不再記錄重試
	assert.Equal(t, 2, logs.FilterMessage("failed to connect to mysql, retrying").Len())
}

func TestOpen_StopsRetryingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{ConnectRetries: 5, ConnectRetryInterval: time.Hour, LogLevel: "silent"}
	missing := filepath.Join(t.TempDir(), "no-such-dir", "ledger.db")

	_, err := open(ctx, sqlite.Open(missing), cfg, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "after 1 attempts")
}

func TestConfig_RetryPolicyDefaults(t *testing.T) {
	retries, interval := (&Config{}).retryPolicy()
	assert.Equal(t, defaultConnectRetries, retries)
	assert.Equal(t, defaultConnectRetryInterval, interval)

	retries, interval = (&Config{ConnectRetries: 2, ConnectRetryInterval: time.Second}).retryPolicy()
	assert.Equal(t, 2, retries)
	assert.Equal(t, time.Second, interval)
}
