package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "ledger:ping", "pong", 0).Err())
	got, err := mr.Get("ledger:ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Config{Addr: addr}, zap.NewNop())
	require.Error(t, err)
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, (&Config{}).Enabled())
	assert.True(t, (&Config{Addr: "localhost:6379"}).Enabled())
}
