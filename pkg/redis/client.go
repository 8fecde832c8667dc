// Package redis 建立 go-redis 客戶端並確認連線可用。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config Redis 連線配置
type Config struct {
	Addr         string        `yaml:"addr" envconfig:"ADDR"`
	Password     string        `yaml:"password" envconfig:"PASSWORD"`
	DB           int           `yaml:"db" envconfig:"DB"`
	PoolSize     int           `yaml:"pool_size" envconfig:"POOL_SIZE"`
	DialTimeout  time.Duration `yaml:"dial_timeout" envconfig:"DIAL_TIMEOUT"`
	KeyPrefix    string        `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// SetDefaults 補全預設配置
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 50
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ledger"
	}
}

// NewClient 建立 Redis 客戶端並 Ping 一次
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
