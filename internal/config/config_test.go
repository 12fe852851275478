package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/shopdesk/internal/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
origin: https://shop.example.com
storage: redis
redis:
  addr: 127.0.0.1:6379
  db: 2
  prefix: "ops:"
timeout: 3s
log_level: debug
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", cfg.Origin)
	assert.Equal(t, storage.BackendRedis, cfg.Storage)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout())
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, path, cfg.File())

	opts := cfg.StorageOptions()
	assert.Equal(t, "127.0.0.1:6379", opts.Redis.Addr)
	assert.Equal(t, "ops:", opts.Redis.Prefix)
}

func TestLoadFromMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultOrigin, cfg.Origin)
	assert.Equal(t, storage.BackendFile, cfg.Storage)
	assert.Equal(t, DefaultTimeout, cfg.RequestTimeout())
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvOrigin, "http://proxy.local:9000")
	t.Setenv(EnvStorage, "redis")
	t.Setenv(EnvRedisAddr, "redis.local:6379")

	cfg, err := LoadFrom(writeConfig(t, "origin: http://ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://proxy.local:9000", cfg.Origin)
	assert.Equal(t, storage.BackendRedis, cfg.Storage)
	assert.Equal(t, "redis.local:6379", cfg.Redis.Addr)
}

func TestLoadHonorsConfigEnv(t *testing.T) {
	path := writeConfig(t, "origin: http://from-env-path\n")
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env-path", cfg.Origin)
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "origin: [", "parsing config"},
		{"unknown storage", "storage: etcd", "unknown storage"},
		{"redis without addr", "storage: redis", "redis.addr is empty"},
		{"bad timeout", "timeout: soon", "invalid timeout"},
		{"bad level", "log_level: loud", "invalid log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("origin", "http://shop.test/"))
	require.NoError(t, cfg.Set("redis.db", "4"))
	require.NoError(t, Save(cfg))

	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "http://shop.test", again.Origin)
	assert.Equal(t, 4, again.Redis.DB)
}

func TestSetRejectsUnknownAndInvalid(t *testing.T) {
	cfg := defaultConfig()
	assert.ErrorContains(t, cfg.Set("colour", "blue"), "unknown config key")
	assert.ErrorContains(t, cfg.Set("redis.db", "x"), "must be an integer")
	assert.ErrorContains(t, cfg.Set("storage", "s3"), "unknown storage")
}
