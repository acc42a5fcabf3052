// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "imageflow:", cfg.Redis.KeyPrefix)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins:
    - https://a.example.com
    - https://b.example.com

auth:
  jwt_secret: "s3cret"
  allow_anonymous: true

catalog:
  path: /etc/imageflow/catalog.yaml

providers:
  openai:
    api_key: "sk-yaml"
    timeout: 45s
  doubao:
    api_key: "ak"
    api_secret: "sk"
    endpoint_id: "ep-123"
    watermark: true

rehost:
  enabled: true
  endpoint: https://img.example.com/upload
  cache_enabled: true
  cache_ttl: 2h

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSAllowedOrigins)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, "/etc/imageflow/catalog.yaml", cfg.Catalog.Path)

	assert.Equal(t, "sk-yaml", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Providers.OpenAI.Timeout)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, "https://api.openai.com", cfg.Providers.OpenAI.BaseURL)
	assert.Equal(t, "ep-123", cfg.Providers.Doubao.EndpointID)
	assert.True(t, cfg.Providers.Doubao.Watermark)

	assert.True(t, cfg.Rehost.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Rehost.CacheTTL)
	assert.Equal(t, "image", cfg.Rehost.FieldName)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("IMAGEFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("IMAGEFLOW_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("IMAGEFLOW_SERVER_RATE_LIMIT_RPS", "2.5")
	t.Setenv("IMAGEFLOW_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("IMAGEFLOW_PROVIDERS_OPENAI_API_KEY", "sk-env")
	t.Setenv("IMAGEFLOW_PROVIDERS_DOUBAO_WATERMARK", "true")
	t.Setenv("IMAGEFLOW_REHOST_MAX_BYTES", "1024")
	t.Setenv("IMAGEFLOW_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "sk-env", cfg.Providers.OpenAI.APIKey)
	assert.True(t, cfg.Providers.Doubao.Watermark)
	assert.Equal(t, int64(1024), cfg.Rehost.MaxBytes)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 0.001)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o644))

	t.Setenv("IMAGEFLOW_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("IMGTEST_REDIS_ADDR", "redis:6380")
	t.Setenv("IMAGEFLOW_REDIS_ADDR", "ignored:6379")

	cfg, err := NewLoader().WithEnvPrefix("IMGTEST").Load()
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"int", "IMAGEFLOW_SERVER_HTTP_PORT", "not-a-port"},
		{"duration", "IMAGEFLOW_SERVER_READ_TIMEOUT", "soon"},
		{"bool", "IMAGEFLOW_AUTH_ALLOW_ANONYMOUS", "maybe"},
		{"float", "IMAGEFLOW_TELEMETRY_SAMPLE_RATE", "half"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := NewLoader().Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return assert.AnError }).
		Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/imageflow.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"bad metrics port", func(c *Config) { c.Server.MetricsPort = 70000 }, "invalid metrics port"},
		{"metrics disabled", func(c *Config) { c.Server.MetricsPort = 0 }, ""},
		{"same ports", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "must differ"},
		{"negative rps", func(c *Config) { c.Server.RateLimitRPS = -1 }, "rate_limit_rps"},
		{"rehost without endpoint", func(c *Config) { c.Rehost.Enabled = true }, "rehost.endpoint"},
		{"cache without redis", func(c *Config) {
			c.Rehost.CacheEnabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation errors")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_JoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port; log.format")
}

// --- 辅助函数测试 ---

func TestMustLoad(t *testing.T) {
	assert.NotPanics(t, func() {
		cfg := MustLoad("")
		assert.NotNil(t, cfg)
	})

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o644))
	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("IMAGEFLOW_LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}
