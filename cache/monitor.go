package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 后台健康监控
// =============================================================================

// healthMonitorLoop 周期性探测传输句柄，发现无流量期间的静默断连。
// 探测结果独立于用户流量回写熔断器；探测失败即丢弃句柄，交给
// 重连循环重建。探测超时严格小于间隔，探测不会堆积。
func (m *Manager) healthMonitorLoop(ctx context.Context) {
	defer m.wg.Done()

	m.monitorActive.Store(true)
	defer m.monitorActive.Store(false)

	logger := m.logger.With(zap.String("task", "health_monitor"))
	logger.Debug("健康监控已启动",
		zap.Duration("interval", m.config.HealthCheckInterval),
		zap.Duration("timeout", m.config.HealthCheckTimeout),
	)
	defer logger.Debug("健康监控已退出")

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx, logger)
		}
	}
}

// probe 执行单次限时 PING 探测
func (m *Manager) probe(ctx context.Context, logger *zap.Logger) {
	t := m.currentTransport()
	if t == nil {
		// 句柄缺失时恢复由重连循环负责，这里只记录探测时刻
		m.stateMu.Lock()
		m.lastHealthCheck = time.Now()
		m.stateMu.Unlock()
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, m.config.HealthCheckTimeout)
	start := time.Now()
	err := t.Ping(pingCtx).Err()
	elapsed := time.Since(start)
	cancel()

	m.stateMu.Lock()
	m.lastHealthCheck = time.Now()
	m.stateMu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordHealthCheck(err == nil, elapsed)
	}

	if err != nil {
		m.breaker.RecordFailure()
		failures := m.consecutiveFailures.Add(1)
		if m.metrics != nil {
			m.metrics.SetConsecutiveFailures(failures)
		}

		logger.Warn("健康检查失败",
			zap.String("kind", classifyError(err).String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)

		// 无论错误类别，探测失败都视为句柄不可信
		m.discard(t)
		return
	}

	m.breaker.RecordSuccess()
	m.consecutiveFailures.Store(0)
	if m.metrics != nil {
		m.metrics.SetConsecutiveFailures(0)
	}
	logger.Debug("健康检查通过", zap.Duration("elapsed", elapsed))
}
