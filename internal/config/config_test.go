package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: debug
  format: console
http:
  addr: ":9000"
auth:
  jwt_secret: from-yaml
  token_ttl: 30m
ledger:
  compensation_retries: 3
  compensation_backoff: 50ms
store:
  driver: redis
redis:
  addr: "redis:6379"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, "from-yaml", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Ledger.CompensationRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.CompensationBackoff)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "ledger", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, "users", cfg.Mongo.Collection)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
auth:
  jwt_secret: from-yaml
store:
  driver: memory
`)
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "from-env")
	t.Setenv("LEDGER_STORE_DRIVER", "mysql")
	t.Setenv("LEDGER_MYSQL_HOST", "db")
	t.Setenv("LEDGER_LEDGER_COMPENSATION_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, DriverMySQL, cfg.Store.Driver)
	assert.Equal(t, "db", cfg.MySQL.Host)
	assert.Equal(t, 7, cfg.Ledger.CompensationRetries)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "LEDGER_AUTH_JWT_SECRET=from-dotenv\n")
	// godotenv 不覆寫已存在的變數，先確保測試環境沒有設定
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("LEDGER_AUTH_JWT_SECRET"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "auth: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "nosecret.yaml", "store:\n  driver: memory\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = Load(writeFile(t, "driver.yaml", "auth:\n  jwt_secret: s\nstore:\n  driver: cassandra\n"))
	assert.ErrorContains(t, err, "unknown store driver")
}
