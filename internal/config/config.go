// Package config 載入服務設定：YAML 檔 → .env → 環境變數 (前綴 LEDGER)，最後補上預設值。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
	"github.com/JoeShih716/go-credit-ledger/pkg/mongo"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
	"github.com/JoeShih716/go-credit-ledger/pkg/redis"
)

const EnvPrefix = "LEDGER"

// 帳戶儲存後端
const (
	DriverMemory    = "memory"
	DriverSequenced = "sequenced"
	DriverMySQL     = "mysql"
	DriverRedis     = "redis"
	DriverMongo     = "mongo"
)

type Config struct {
	Log    logger.Config `yaml:"log" envconfig:"LOG"`
	HTTP   HTTPConfig    `yaml:"http" envconfig:"HTTP"`
	GRPC   GRPCConfig    `yaml:"grpc" envconfig:"GRPC"`
	Auth   AuthConfig    `yaml:"auth" envconfig:"AUTH"`
	Ledger LedgerConfig  `yaml:"ledger" envconfig:"LEDGER"`
	Store  StoreConfig   `yaml:"store" envconfig:"STORE"`
	MySQL  mysql.Config  `yaml:"mysql" envconfig:"MYSQL"`
	Redis  redis.Config  `yaml:"redis" envconfig:"REDIS"`
	Mongo  mongo.Config  `yaml:"mongo" envconfig:"MONGO"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

type GRPCConfig struct {
	Addr       string `yaml:"addr" envconfig:"ADDR"`
	Reflection bool   `yaml:"reflection" envconfig:"REFLECTION"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL"`
	BcryptCost int           `yaml:"bcrypt_cost" envconfig:"BCRYPT_COST"`
}

// LedgerConfig 轉帳入帳失敗時的回沖策略
type LedgerConfig struct {
	CompensationRetries int           `yaml:"compensation_retries" envconfig:"COMPENSATION_RETRIES"`
	CompensationBackoff time.Duration `yaml:"compensation_backoff" envconfig:"COMPENSATION_BACKOFF"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver" envconfig:"DRIVER"`
	WALPath   string `yaml:"wal_path" envconfig:"WAL_PATH"` // 空字串表示不寫 WAL (僅 memory/sequenced)
	QueueSize int    `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
}

// Load 依序讀取 YAML 設定檔、.env 與環境變數
//
// 參數:
//
//	path: YAML 檔路徑，空字串表示只用環境變數
//	envFiles: 要載入的 .env 檔，未指定時嘗試目前目錄的 .env (不存在則略過)
//
// 回傳值:
//
//	*Config: 已補上預設值並驗證過的設定
//	error: 檔案無法讀取、格式錯誤或驗證失敗
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults 補全預設配置
func (c *Config) SetDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Ledger.CompensationRetries == 0 {
		c.Ledger.CompensationRetries = 5
	}
	if c.Ledger.CompensationBackoff == 0 {
		c.Ledger.CompensationBackoff = 10 * time.Millisecond
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.QueueSize == 0 {
		c.Store.QueueSize = 4096
	}
	c.MySQL.SetDefaults()
	c.Redis.SetDefaults()
	c.Mongo.SetDefaults()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSequenced, DriverMySQL, DriverRedis, DriverMongo:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Ledger.CompensationRetries < 0 {
		return errors.New("ledger.compensation_retries must not be negative")
	}
	return nil
}
