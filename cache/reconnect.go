package cache

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🔄 后台重连循环
// =============================================================================

// reconnectLoop 在连接丢失后自动恢复传输句柄。
// 句柄存在时按健康检查间隔空转；句柄缺失时拨号重试，失败后退避
// 间隔翻倍直至上限。超过最大尝试次数不退出，按上限间隔继续等待
// 存储恢复。所有睡眠点都响应取消，保证 Shutdown 及时返回。
func (m *Manager) reconnectLoop(ctx context.Context) {
	defer m.wg.Done()

	m.reconnectActive.Store(true)
	defer m.reconnectActive.Store(false)

	logger := m.logger.With(zap.String("task", "reconnect"))
	logger.Debug("重连循环已启动")
	defer logger.Debug("重连循环已退出")

	for {
		if m.currentTransport() != nil {
			// 句柄健在，空转等待
			if !m.sleep(ctx, m.config.HealthCheckInterval) {
				return
			}
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.config.DialTimeout)
		t, err := m.dial(attemptCtx)
		cancel()

		if err == nil {
			if !m.install(t) {
				return
			}
			m.stateMu.Lock()
			m.retryDelay = m.config.ReconnectBackoffFloor
			m.reconnectAttempts = 0
			m.stateMu.Unlock()
			m.consecutiveFailures.Store(0)
			m.breaker.RecordSuccess()

			if m.metrics != nil {
				m.metrics.RecordReconnect(true)
				m.metrics.SetConsecutiveFailures(0)
			}
			logger.Info("重连成功", zap.String("addr", m.config.Addr))

			if !m.sleep(ctx, m.config.HealthCheckInterval) {
				return
			}
			continue
		}

		// 失败：退避翻倍，封顶后保持
		m.stateMu.Lock()
		m.reconnectAttempts++
		attempts := m.reconnectAttempts
		next := m.retryDelay * 2
		if next > m.config.ReconnectBackoffCeiling {
			next = m.config.ReconnectBackoffCeiling
		}
		m.retryDelay = next
		m.stateMu.Unlock()

		if m.metrics != nil {
			m.metrics.RecordReconnect(false)
		}

		if max := m.config.MaxReconnectAttempts; max > 0 && attempts > max {
			m.stateMu.Lock()
			m.retryDelay = m.config.ReconnectBackoffCeiling
			m.stateMu.Unlock()
			next = m.config.ReconnectBackoffCeiling
			logger.Warn("已超过最大重连次数，按退避上限继续重试",
				zap.Int("attempts", attempts),
				zap.Int("max_attempts", max),
				zap.Duration("delay", next),
			)
		} else {
			logger.Warn("重连失败，退避后重试",
				zap.Int("attempt", attempts),
				zap.Duration("next_delay", next),
				zap.Error(err),
			)
		}

		if !m.sleep(ctx, withJitter(next)) {
			return
		}
	}
}

// sleep 可取消的睡眠；返回 false 表示循环应当退出
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// withJitter 加 ±25% 抖动，避免多副本同时重连造成惊群
func withJitter(d time.Duration) time.Duration {
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(float64(d) + jitter)
}
