// =============================================================================
// 📦 CacheFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/cacheflow/cache"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Redis:      DefaultRedisConfig(),
		Resilience: DefaultResilienceConfig(),
		Log:        DefaultLogConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Mode:             cache.ModeStandalone,
		Disabled:         false,
		DevMode:          false,
		Addr:             "localhost:6379",
		Password:         "",
		DB:               0,
		MaxRetries:       3,
		DialTimeout:      5 * time.Second,
		ReadTimeout:      3 * time.Second,
		WriteTimeout:     3 * time.Second,
		PoolSize:         10,
		MinIdleConns:     2,
		DefaultTTL:       5 * time.Minute,
		OperationTimeout: 3 * time.Second,
	}
}

// DefaultResilienceConfig 返回默认故障恢复配置
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold:        5,
		RecoveryTimeout:         30 * time.Second,
		ReconnectBackoffFloor:   1 * time.Second,
		ReconnectBackoffCeiling: 60 * time.Second,
		MaxReconnectAttempts:    10,
		HealthCheckInterval:     30 * time.Second,
		HealthCheckTimeout:      5 * time.Second,
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

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "cacheflow",
	}
}
