package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常放行）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中，拒绝调用）
	StateOpen
	// StateHalfOpen 半开状态（只允许一次试探调用）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerStatus 熔断器只读快照
type BreakerStatus struct {
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
}

// CircuitBreaker 熔断器：在任何网络调用之前廉价地判定是否放行。
// 连续失败达到阈值后打开；恢复窗口过后进入半开状态，
// 半开状态只放行一次试探调用，成功则关闭，失败则立即重新打开。
type CircuitBreaker struct {
	threshold       int
	recoveryTimeout time.Duration
	logger          *zap.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	openedAt      time.Time
	halfOpenCalls int

	// 状态变更回调（指标上报用），构造后、启用前设置
	onStateChange func(from, to State)
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(threshold int, recoveryTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	// 参数校验
	if threshold <= 0 {
		threshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CircuitBreaker{
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
		logger:          logger.With(zap.String("component", "breaker")),
		state:           StateClosed,
	}
}

// Allow 判定当前是否允许发起一次调用。
// O(1)、仅持锁、无任何 I/O。OPEN→HALF_OPEN 的转换在锁内完成，
// 并发调用时只有一个调用者能抢到半开试探名额，其余一律拒绝。
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		// 恢复窗口已过，转入半开并把唯一的试探名额给当前调用者
		if time.Since(b.openedAt) >= b.recoveryTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenCalls = 1
			b.logger.Info("熔断器进入半开状态",
				zap.Duration("recovery_timeout", b.recoveryTimeout),
			)
			return true
		}
		return false

	case StateHalfOpen:
		// 试探调用尚未定论，不再放行第二个
		if b.halfOpenCalls >= 1 {
			return false
		}
		b.halfOpenCalls = 1
		return true

	default:
		return false
	}
}

// RecordSuccess 记录一次成功调用
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0

	case StateHalfOpen:
		b.logger.Info("熔断器恢复正常")
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenCalls = 0

	case StateOpen:
		// 健康探测可能在打开期间上报成功：只清零计数，恢复仍走半开试探
		b.failureCount = 0
	}
}

// RecordFailure 记录一次失败调用
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.threshold {
			b.logger.Warn("熔断器打开",
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.threshold),
			)
			b.setState(StateOpen)
			b.openedAt = time.Now()
		}

	case StateHalfOpen:
		// 半开试探失败，立即重新打开并重置恢复窗口
		b.logger.Warn("熔断器半开试探失败，重新打开",
			zap.Int("failure_count", b.failureCount),
		)
		b.setState(StateOpen)
		b.openedAt = time.Now()
		b.halfOpenCalls = 0

	case StateOpen:
		// 已打开：仅累计计数，不重置恢复窗口
	}
}

// State 获取当前状态
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status 返回只读状态快照
func (b *CircuitBreaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStatus{
		State:        b.state.String(),
		FailureCount: b.failureCount,
	}
}

// Reset 强制恢复到关闭状态（运维手动恢复或测试复位）
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenCalls = 0

	b.logger.Info("熔断器已重置",
		zap.String("from_state", oldState.String()),
	)

	if b.onStateChange != nil {
		go b.onStateChange(oldState, StateClosed)
	}
}

// setState 设置状态并触发回调
func (b *CircuitBreaker) setState(newState State) {
	oldState := b.state
	b.state = newState

	if b.onStateChange != nil {
		go b.onStateChange(oldState, newState)
	}
}
