package cache

import "time"

// =============================================================================
// 📊 状态快照
// =============================================================================

// BackgroundTasks 后台任务的调度状态
type BackgroundTasks struct {
	// 重连循环是否在运行
	ReconnectTaskActive bool `json:"reconnect_task_active"`
	// 健康监控循环是否在运行
	HealthMonitorActive bool `json:"health_monitor_active"`
}

// Status Manager 的即时状态快照。
// 按需组装、从不缓存，不做任何 I/O，可直接序列化给就绪探针使用。
type Status struct {
	// 当前是否可用（有句柄且熔断器未打开）
	Connected bool `json:"connected"`
	// 传输句柄是否存在
	ClientAvailable bool `json:"client_available"`
	// 连续失败次数
	ConsecutiveFailures int64 `json:"consecutive_failures"`
	// 当前重连退避间隔
	CurrentRetryDelay string `json:"current_retry_delay"`
	// 最大重连尝试次数（0 表示不限）
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`
	// 最近一次健康检查时间
	LastHealthCheck time.Time `json:"last_health_check"`
	// 后台任务状态
	BackgroundTasks BackgroundTasks `json:"background_tasks"`
	// 熔断器状态
	CircuitBreaker BreakerStatus `json:"circuit_breaker"`
}
