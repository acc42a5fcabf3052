// =============================================================================
// 📦 ImageFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Auth:      AuthConfig{},
		Catalog:   CatalogConfig{},
		Providers: DefaultProvidersConfig(),
		Rehost:    DefaultRehostConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultProvidersConfig 返回默认服务商配置
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com",
			Size:    "1024x1024",
			Timeout: 2 * time.Minute,
		},
		Doubao: DoubaoConfig{
			BaseURL: "https://ark.cn-beijing.volces.com",
			Size:    "1024x1024",
			Timeout: 2 * time.Minute,
		},
	}
}

// DefaultRehostConfig 返回默认转存配置
func DefaultRehostConfig() RehostConfig {
	return RehostConfig{
		Enabled:   false,
		FieldName: "image",
		MaxBytes:  20 << 20,
		Timeout:   time.Minute,
		CacheTTL:  24 * time.Hour,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		DB:        0,
		PoolSize:  10,
		KeyPrefix: "imageflow:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "imageflow",
		SampleRate:   0.1,
	}
}
