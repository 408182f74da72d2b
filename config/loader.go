// =============================================================================
// 📦 CacheFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CACHEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/cacheflow/cache"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CacheFlow 的完整配置结构
type Config struct {
	// Redis 连接配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Resilience 故障恢复配置
	Resilience ResilienceConfig `yaml:"resilience" env:"RESILIENCE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 运行模式: disabled, standalone, shared
	Mode string `yaml:"mode" env:"MODE"`
	// 硬性停用开关（优先于 mode，便于运维一键关闭）
	Disabled bool `yaml:"disabled" env:"DISABLED"`
	// 开发模式（无地址时静默降级为禁用）
	DevMode bool `yaml:"dev_mode" env:"DEV_MODE"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 客户端内部最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 建连超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 默认缓存过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// 单次操作超时
	OperationTimeout time.Duration `yaml:"operation_timeout" env:"OPERATION_TIMEOUT"`
}

// ResilienceConfig 故障恢复配置
type ResilienceConfig struct {
	// 熔断失败阈值
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	// 熔断恢复等待时间
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	// 重连退避下限
	ReconnectBackoffFloor time.Duration `yaml:"reconnect_backoff_floor" env:"RECONNECT_BACKOFF_FLOOR"`
	// 重连退避上限
	ReconnectBackoffCeiling time.Duration `yaml:"reconnect_backoff_ceiling" env:"RECONNECT_BACKOFF_CEILING"`
	// 最大重连次数（超过后按上限间隔继续，0 表示不限）
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
	// 健康检查超时
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" env:"HEALTH_CHECK_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Prometheus 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "CACHEFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证运行模式
	switch c.Redis.Mode {
	case cache.ModeDisabled, cache.ModeStandalone, cache.ModeShared:
	default:
		errs = append(errs, fmt.Sprintf("invalid mode %q", c.Redis.Mode))
	}

	// 验证连接配置
	if c.Redis.Mode != cache.ModeDisabled && !c.Redis.Disabled && c.Redis.Addr == "" && !c.Redis.DevMode {
		errs = append(errs, "redis addr is required outside dev mode")
	}
	if c.Redis.DB < 0 {
		errs = append(errs, "redis db must not be negative")
	}

	// 验证故障恢复配置
	if c.Resilience.FailureThreshold <= 0 {
		errs = append(errs, "failure_threshold must be positive")
	}
	if c.Resilience.ReconnectBackoffFloor > c.Resilience.ReconnectBackoffCeiling {
		errs = append(errs, "reconnect_backoff_floor must not exceed reconnect_backoff_ceiling")
	}
	if c.Resilience.HealthCheckTimeout >= c.Resilience.HealthCheckInterval {
		errs = append(errs, "health_check_timeout must be below health_check_interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CacheConfig 展开为缓存管理器使用的扁平配置
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Mode:                    c.Redis.Mode,
		Disabled:                c.Redis.Disabled,
		DevMode:                 c.Redis.DevMode,
		Addr:                    c.Redis.Addr,
		Password:                c.Redis.Password,
		DB:                      c.Redis.DB,
		MaxRetries:              c.Redis.MaxRetries,
		DialTimeout:             c.Redis.DialTimeout,
		ReadTimeout:             c.Redis.ReadTimeout,
		WriteTimeout:            c.Redis.WriteTimeout,
		PoolSize:                c.Redis.PoolSize,
		MinIdleConns:            c.Redis.MinIdleConns,
		DefaultTTL:              c.Redis.DefaultTTL,
		OperationTimeout:        c.Redis.OperationTimeout,
		FailureThreshold:        c.Resilience.FailureThreshold,
		RecoveryTimeout:         c.Resilience.RecoveryTimeout,
		ReconnectBackoffFloor:   c.Resilience.ReconnectBackoffFloor,
		ReconnectBackoffCeiling: c.Resilience.ReconnectBackoffCeiling,
		MaxReconnectAttempts:    c.Resilience.MaxReconnectAttempts,
		HealthCheckInterval:     c.Resilience.HealthCheckInterval,
		HealthCheckTimeout:      c.Resilience.HealthCheckTimeout,
	}
}
