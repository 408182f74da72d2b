package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 操作指标
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	operationsRejected *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 熔断器指标
	breakerState       prometheus.Gauge
	breakerTransitions *prometheus.CounterVec

	// 连接指标
	connected           prometheus.Gauge
	consecutiveFailures prometheus.Gauge
	reconnectsTotal     *prometheus.CounterVec

	// 健康检查指标
	healthChecksTotal   *prometheus.CounterVec
	healthCheckDuration prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 操作指标
	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Cache operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
		[]string{"operation"},
	)

	c.operationsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_rejected_total",
			Help:      "Total number of operations rejected before reaching the store",
		},
		[]string{"operation", "reason"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"operation"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"operation"},
	)

	// 熔断器指标
	c.breakerState = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// 连接指标
	c.connected = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether a store connection is currently held (1) or not (0)",
		},
	)

	c.consecutiveFailures = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Current count of consecutive operation failures",
		},
	)

	c.reconnectsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		},
		[]string{"status"},
	)

	// 健康检查指标
	c.healthChecksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Total number of background health checks",
		},
		[]string{"status"},
	)

	c.healthCheckDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_check_duration_seconds",
			Help:      "Background health check duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 操作指标记录
// =============================================================================

// RecordOperation 记录一次到达存储的操作
func (c *Collector) RecordOperation(operation, status string, duration time.Duration) {
	c.operationsTotal.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRejected 记录一次未到达存储的操作
func (c *Collector) RecordRejected(operation, reason string) {
	c.operationsRejected.WithLabelValues(operation, reason).Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(operation string) {
	c.cacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(operation string) {
	c.cacheMisses.WithLabelValues(operation).Inc()
}

// =============================================================================
// 🚦 熔断器指标记录
// =============================================================================

// SetBreakerState 记录熔断器当前状态
func (c *Collector) SetBreakerState(state int) {
	c.breakerState.Set(float64(state))
}

// RecordBreakerTransition 记录熔断器状态转换
func (c *Collector) RecordBreakerTransition(fromState, toState string) {
	c.breakerTransitions.WithLabelValues(fromState, toState).Inc()
}

// =============================================================================
// 🔌 连接指标记录
// =============================================================================

// SetConnected 记录连接持有状态
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.connected.Set(1)
	} else {
		c.connected.Set(0)
	}
}

// SetConsecutiveFailures 记录连续失败次数
func (c *Collector) SetConsecutiveFailures(n int64) {
	c.consecutiveFailures.Set(float64(n))
}

// RecordReconnect 记录重连尝试
func (c *Collector) RecordReconnect(success bool) {
	c.reconnectsTotal.WithLabelValues(boolStatus(success)).Inc()
}

// =============================================================================
// 🏥 健康检查指标记录
// =============================================================================

// RecordHealthCheck 记录后台健康检查
func (c *Collector) RecordHealthCheck(success bool, duration time.Duration) {
	c.healthChecksTotal.WithLabelValues(boolStatus(success)).Inc()
	c.healthCheckDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// boolStatus 将布尔结果转换为标签值
func boolStatus(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
