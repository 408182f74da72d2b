package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/cacheflow/internal/metrics"
)

// =============================================================================
// 💾 韧性缓存管理器
// =============================================================================

// 运行模式
const (
	// ModeDisabled 禁用缓存
	ModeDisabled = "disabled"
	// ModeStandalone 独立连接
	ModeStandalone = "standalone"
	// ModeShared 共享连接（进程内唯一实例）
	ModeShared = "shared"
)

// Config 韧性缓存层配置
type Config struct {
	// 运行模式: disabled / standalone / shared
	Mode string `yaml:"mode" json:"mode"`

	// 禁用开关（优先于 Mode）
	Disabled bool `yaml:"disabled" json:"disabled"`

	// 开发模式（未配置地址时自动降级为禁用）
	DevMode bool `yaml:"dev_mode" json:"dev_mode"`

	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 客户端内部重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 拨号超时
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// 读超时
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// 写超时
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 单次操作超时
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout"`

	// 熔断连续失败阈值
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`

	// 熔断恢复等待时间
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`

	// 重连退避下限
	ReconnectBackoffFloor time.Duration `yaml:"reconnect_backoff_floor" json:"reconnect_backoff_floor"`

	// 重连退避上限
	ReconnectBackoffCeiling time.Duration `yaml:"reconnect_backoff_ceiling" json:"reconnect_backoff_ceiling"`

	// 最大重连尝试次数（超过后按上限间隔继续，0 表示不限）
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`

	// 健康检查超时（必须小于检查间隔）
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" json:"health_check_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeStandalone,
		Addr:                    "localhost:6379",
		Password:                "",
		DB:                      0,
		MaxRetries:              3,
		DialTimeout:             5 * time.Second,
		ReadTimeout:             3 * time.Second,
		WriteTimeout:            3 * time.Second,
		PoolSize:                10,
		MinIdleConns:            2,
		DefaultTTL:              5 * time.Minute,
		OperationTimeout:        3 * time.Second,
		FailureThreshold:        5,
		RecoveryTimeout:         30 * time.Second,
		ReconnectBackoffFloor:   time.Second,
		ReconnectBackoffCeiling: 60 * time.Second,
		MaxReconnectAttempts:    10,
		HealthCheckInterval:     30 * time.Second,
		HealthCheckTimeout:      5 * time.Second,
	}
}

// normalize 校正非法配置值
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = def.DefaultTTL
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.ReconnectBackoffFloor <= 0 {
		c.ReconnectBackoffFloor = def.ReconnectBackoffFloor
	}
	if c.ReconnectBackoffCeiling < c.ReconnectBackoffFloor {
		c.ReconnectBackoffCeiling = def.ReconnectBackoffCeiling
	}
	if c.ReconnectBackoffCeiling < c.ReconnectBackoffFloor {
		c.ReconnectBackoffCeiling = c.ReconnectBackoffFloor
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	// 探测超时必须严格小于间隔，避免探测堆积
	if c.HealthCheckTimeout <= 0 || c.HealthCheckTimeout >= c.HealthCheckInterval {
		c.HealthCheckTimeout = c.HealthCheckInterval / 2
	}
}

// Manager 韧性缓存管理器。
// 进程内应只存在一个实例，由所有请求协程共享；持有唯一的传输句柄、
// 熔断器和两个后台循环（重连、健康监控）。任何存储故障都降级为
// 零值结果，绝不向调用方抛出"存储不可用"。
type Manager struct {
	config  Config
	logger  *zap.Logger
	metrics *metrics.Collector

	enabled bool
	breaker *CircuitBreaker
	dialer  Dialer

	// transport 是唯一的共享可变句柄：失败路径按原句柄比较后置 nil，
	// 重连路径整体替换，二者都不会原地修改
	transportMu sync.RWMutex
	transport   Transport

	consecutiveFailures atomic.Int64

	// stateMu 保护重连退避与健康检查的记账字段
	stateMu           sync.Mutex
	retryDelay        time.Duration
	reconnectAttempts int
	lastHealthCheck   time.Time

	// 并发拨号合并（ForceReconnect 与重连循环共用）
	dialGroup singleflight.Group

	reconnectActive atomic.Bool
	monitorActive   atomic.Bool

	// 生命周期
	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option Manager 可选项
type Option func(*Manager)

// WithDialer 注入自定义拨号器（测试或非默认客户端）
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithMetrics 启用 Prometheus 指标并注册到给定 Registry。
// namespace 为空时使用 "cacheflow"，reg 为 nil 时使用默认注册表。
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if namespace == "" {
			namespace = "cacheflow"
		}
		m.metrics = metrics.NewCollector(namespace, reg, m.logger)
	}
}

// NewManager 创建韧性缓存管理器。
// 构造不拨号；Initialize 负责首次连接与后台循环的启动。
// enabled 在此一次性判定，之后不再变化。
func NewManager(config Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.normalize()

	enabled := !config.Disabled && config.Mode != ModeDisabled
	if config.DevMode && config.Addr == "" {
		enabled = false
	}

	m := &Manager{
		config:     config,
		logger:     logger,
		enabled:    enabled,
		retryDelay: config.ReconnectBackoffFloor,
	}
	m.breaker = NewCircuitBreaker(config.FailureThreshold, config.RecoveryTimeout, logger)

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "cache"))

	if m.dialer == nil {
		m.dialer = NewRedisDialer(config)
	}
	if m.metrics != nil {
		m.breaker.onStateChange = m.onBreakerStateChange
	}

	return m
}

// =============================================================================
// 🎯 生命周期
// =============================================================================

// Initialize 初始化管理器（幂等）。
// 禁用模式下仅记录日志；启用时尝试一次初始连接，失败不报错，
// 交给重连循环处理。后台循环只会启动一次。
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("cache manager is closed")
	}
	if m.started {
		return nil
	}

	if !m.enabled {
		m.logger.Info("缓存已禁用，跳过初始化",
			zap.String("mode", m.config.Mode),
			zap.Bool("disabled", m.config.Disabled),
			zap.Bool("dev_mode", m.config.DevMode),
		)
		m.started = true
		return nil
	}

	// 首次连接失败不是错误：句柄保持为 nil，重连循环接管
	if t, err := m.dial(ctx); err != nil {
		m.logger.Warn("初始连接失败，转入后台重连",
			zap.String("addr", m.config.Addr),
			zap.Error(err),
		)
	} else {
		m.install(t)
		m.logger.Info("缓存管理器已连接",
			zap.String("addr", m.config.Addr),
			zap.String("mode", m.config.Mode),
			zap.Int("pool_size", m.config.PoolSize),
		)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(2)
	go m.reconnectLoop(loopCtx)
	go m.healthMonitorLoop(loopCtx)

	m.started = true
	return nil
}

// Shutdown 关闭管理器（幂等）。
// 取消两个后台循环并等待其退出（受调用方 ctx 约束），然后释放句柄。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info("正在关闭缓存管理器")

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("等待后台任务退出超时", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	m.transportMu.Lock()
	t := m.transport
	m.transport = nil
	m.transportMu.Unlock()
	if t != nil {
		_ = t.Close()
	}

	m.logger.Info("缓存管理器已关闭")
	return nil
}

// Enabled 返回管理器是否处于启用状态
func (m *Manager) Enabled() bool {
	return m.enabled
}

// =============================================================================
// 🔌 传输句柄管理
// =============================================================================

// dial 通过 singleflight 合并并发拨号，避免重复建连
func (m *Manager) dial(ctx context.Context) (Transport, error) {
	v, err, _ := m.dialGroup.Do("dial", func() (interface{}, error) {
		return m.dialer(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(Transport), nil
}

// currentTransport 读取当前句柄（可能为 nil）
func (m *Manager) currentTransport() Transport {
	m.transportMu.RLock()
	defer m.transportMu.RUnlock()
	return m.transport
}

// install 安装新句柄并替换旧句柄；关闭中的管理器拒绝安装
func (m *Manager) install(t Transport) bool {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		_ = t.Close()
		return false
	}

	m.transportMu.Lock()
	old := m.transport
	m.transport = t
	m.transportMu.Unlock()

	if old != nil && old != t {
		_ = old.Close()
	}
	if m.metrics != nil {
		m.metrics.SetConnected(true)
	}
	return true
}

// discard 丢弃句柄。只有当句柄仍是调用方看到的那一个时才置 nil，
// 避免两个并发失败路径把重连循环刚换上的新句柄一并丢掉。
func (m *Manager) discard(dead Transport) {
	m.transportMu.Lock()
	if m.transport != dead {
		m.transportMu.Unlock()
		return
	}
	m.transport = nil
	m.transportMu.Unlock()

	_ = dead.Close()
	if m.metrics != nil {
		m.metrics.SetConnected(false)
	}
	m.logger.Warn("传输句柄已丢弃，等待后台重连")
}

// =============================================================================
// 🚦 门控 → 调用 → 记录
// =============================================================================

// execute 所有数据操作共用的执行管道：
// 熔断器放行 → 取句柄 → 限时调用 → 结果回写熔断器。
// 瞬时错误保留句柄等待重试；连接级错误丢弃句柄并交给重连循环。
// 返回调用是否成功；失败从不向上抛错。
func (m *Manager) execute(ctx context.Context, op string, fn func(ctx context.Context, t Transport) error) bool {
	if !m.enabled {
		return false
	}

	if !m.breaker.Allow() {
		m.logger.Debug("操作被熔断器拦截", zap.String("op", op))
		if m.metrics != nil {
			m.metrics.RecordRejected(op, "circuit_open")
		}
		return false
	}

	t := m.currentTransport()
	if t == nil {
		m.logger.Debug("无可用传输句柄", zap.String("op", op))
		if m.metrics != nil {
			m.metrics.RecordRejected(op, "no_transport")
		}
		return false
	}

	opCtx, cancel := context.WithTimeout(ctx, m.config.OperationTimeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx, t)
	elapsed := time.Since(start)

	if err != nil {
		m.recordFailure(op, t, err)
		return false
	}

	m.recordSuccess(op, elapsed)
	return true
}

// recordSuccess 成功路径：清零失败计数并上报指标
func (m *Manager) recordSuccess(op string, elapsed time.Duration) {
	m.breaker.RecordSuccess()
	m.consecutiveFailures.Store(0)
	if m.metrics != nil {
		m.metrics.RecordOperation(op, "ok", elapsed)
		m.metrics.SetConsecutiveFailures(0)
	}
}

// recordFailure 失败路径：计数、分类，连接级错误丢弃句柄
func (m *Manager) recordFailure(op string, t Transport, err error) {
	kind := classifyError(err)
	m.breaker.RecordFailure()
	failures := m.consecutiveFailures.Add(1)

	if m.metrics != nil {
		m.metrics.RecordOperation(op, kind.String(), 0)
		m.metrics.SetConsecutiveFailures(failures)
	}

	m.logger.Warn("缓存操作失败",
		zap.String("op", op),
		zap.String("kind", kind.String()),
		zap.Int64("consecutive_failures", failures),
		zap.Error(err),
	)

	if kind == errKindConnectionLost {
		m.discard(t)
	}
}

// onBreakerStateChange 熔断器状态变更回调（指标上报）
func (m *Manager) onBreakerStateChange(from, to State) {
	if m.metrics != nil {
		m.metrics.RecordBreakerTransition(from.String(), to.String())
		m.metrics.SetBreakerState(int(to))
	}
}

// =============================================================================
// 🔧 运维操作
// =============================================================================

// ForceReconnect 跳过退避计划立即重建传输句柄。
// 成功时重置连续失败计数与退避间隔；返回本次尝试是否成功。
func (m *Manager) ForceReconnect(ctx context.Context) bool {
	if !m.enabled {
		return false
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return false
	}

	t, err := m.dial(ctx)
	if err != nil {
		m.logger.Warn("强制重连失败", zap.Error(err))
		if m.metrics != nil {
			m.metrics.RecordReconnect(false)
		}
		return false
	}
	if !m.install(t) {
		return false
	}

	m.consecutiveFailures.Store(0)
	m.stateMu.Lock()
	m.retryDelay = m.config.ReconnectBackoffFloor
	m.reconnectAttempts = 0
	m.stateMu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordReconnect(true)
		m.metrics.SetConsecutiveFailures(0)
	}
	m.logger.Info("强制重连成功", zap.String("addr", m.config.Addr))
	return true
}

// ResetCircuitBreaker 手动复位熔断器
func (m *Manager) ResetCircuitBreaker() {
	m.breaker.Reset()
}

// Healthcheck 返回可注册到就绪探针的探测函数。
// 禁用模式视为健康（应用本就按无缓存运行）。
func (m *Manager) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if !m.enabled {
			return nil
		}
		t := m.currentTransport()
		if t == nil {
			return ErrNoTransport
		}
		pingCtx, cancel := context.WithTimeout(ctx, m.config.HealthCheckTimeout)
		defer cancel()
		return t.Ping(pingCtx).Err()
	}
}

// Status 组装即时状态快照（无 I/O、不缓存）
func (m *Manager) Status() Status {
	available := m.currentTransport() != nil
	breaker := m.breaker.Status()

	m.stateMu.Lock()
	retryDelay := m.retryDelay
	lastCheck := m.lastHealthCheck
	m.stateMu.Unlock()

	return Status{
		Connected:            available && breaker.State != StateOpen.String(),
		ClientAvailable:      available,
		ConsecutiveFailures:  m.consecutiveFailures.Load(),
		CurrentRetryDelay:    retryDelay.String(),
		MaxReconnectAttempts: m.config.MaxReconnectAttempts,
		LastHealthCheck:      lastCheck,
		BackgroundTasks: BackgroundTasks{
			ReconnectTaskActive: m.reconnectActive.Load(),
			HealthMonitorActive: m.monitorActive.Load(),
		},
		CircuitBreaker: breaker,
	}
}
