package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrEmptyURI      = errors.New("mongo uri cannot be empty")
	ErrEmptyDatabase = errors.New("mongo database cannot be empty")
)

// Config MongoDB 連線設定
type Config struct {
	URI                    string        `yaml:"uri" envconfig:"URI"`
	Database               string        `yaml:"database" envconfig:"DATABASE"`
	Collection             string        `yaml:"collection" envconfig:"COLLECTION"`
	MaxPoolSize            uint64        `yaml:"max_pool_size" envconfig:"MAX_POOL_SIZE"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout" envconfig:"SERVER_SELECTION_TIMEOUT"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
}

// SetDefaults 填入未設定的欄位
func (c *Config) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "users"
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 100
	}
	if c.ServerSelectionTimeout <= 0 {
		c.ServerSelectionTimeout = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return ErrEmptyURI
	}
	if strings.TrimSpace(c.Database) == "" {
		return ErrEmptyDatabase
	}
	return nil
}

// NewClient 建立 MongoDB 連線並 Ping 確認可用
//
// 參數:
//
//	ctx: 控制連線與 Ping 的逾時
//	cfg: 連線設定
//	logger: 紀錄連線狀態
//
// 回傳值:
//
//	*mongo.Client: 已連線的 client，呼叫端負責 Disconnect
//	error: 設定錯誤或連線失敗
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*mongo.Client, error) {
	cfg.SetDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("mongo connected",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return client, nil
}
