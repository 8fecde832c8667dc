package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "PONG", client.Ping(context.Background()).Val())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Config{Addr: addr, DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 50, cfg.PoolSize)
	assert.Equal(t, "ledger", cfg.KeyPrefix)
}
