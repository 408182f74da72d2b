package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 重连循环测试
// =============================================================================

func TestReconnect_RecoversAfterOutage(t *testing.T) {
	mr, m := setupTestRedis(t)
	defer mr.Close()
	defer shutdownManager(t, m)

	ctx := context.Background()
	require.True(t, m.Set(ctx, "k", "v", time.Minute))

	mr.Close()
	_, found := m.Get(ctx, "k")
	require.False(t, found)
	require.False(t, m.Status().ClientAvailable)

	require.NoError(t, mr.Restart())

	// 后台循环自动重建句柄
	assert.Eventually(t, func() bool {
		return m.Status().ClientAvailable
	}, 2*time.Second, 10*time.Millisecond)

	value, found := m.Get(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, "v", value)

	st := m.Status()
	assert.Equal(t, int64(0), st.ConsecutiveFailures)
	assert.Equal(t, m.config.ReconnectBackoffFloor.String(), st.CurrentRetryDelay)
}

func TestReconnect_BackoffDoublesOnFailedDials(t *testing.T) {
	var dials atomic.Int64
	dialer := func(ctx context.Context) (Transport, error) {
		dials.Add(1)
		return nil, errors.New("dial refused")
	}

	cfg := testConfig("")
	cfg.ReconnectBackoffFloor = 20 * time.Millisecond
	cfg.ReconnectBackoffCeiling = 80 * time.Millisecond

	m := NewManager(cfg, zap.NewNop(), WithDialer(dialer))
	require.NoError(t, m.Initialize(context.Background()))
	defer shutdownManager(t, m)

	require.Eventually(t, func() bool {
		return dials.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	// 20ms 起步翻倍，封顶 80ms
	assert.Contains(t, []string{"40ms", "80ms"}, m.Status().CurrentRetryDelay)

	require.Eventually(t, func() bool {
		return dials.Load() >= 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "80ms", m.Status().CurrentRetryDelay)
}

func TestReconnect_MaxAttemptsKeepsRetryingAtCeiling(t *testing.T) {
	var dials atomic.Int64
	dialer := func(ctx context.Context) (Transport, error) {
		dials.Add(1)
		return nil, errors.New("dial refused")
	}

	cfg := testConfig("")
	cfg.ReconnectBackoffFloor = 10 * time.Millisecond
	cfg.ReconnectBackoffCeiling = 40 * time.Millisecond
	cfg.MaxReconnectAttempts = 2

	m := NewManager(cfg, zap.NewNop(), WithDialer(dialer))
	require.NoError(t, m.Initialize(context.Background()))
	defer shutdownManager(t, m)

	// 超过最大次数后循环不退出，按上限间隔继续等待存储恢复
	require.Eventually(t, func() bool {
		return dials.Load() >= 6
	}, 3*time.Second, 10*time.Millisecond)

	st := m.Status()
	assert.Equal(t, "40ms", st.CurrentRetryDelay)
	assert.True(t, st.BackgroundTasks.ReconnectTaskActive)
}

func TestReconnect_StopsOnShutdown(t *testing.T) {
	dialer := func(ctx context.Context) (Transport, error) {
		return nil, errors.New("dial refused")
	}

	// 长退避让循环停留在睡眠点，验证取消能即时打断
	m := NewManager(slowLoopConfig(), zap.NewNop(), WithDialer(dialer))
	require.NoError(t, m.Initialize(context.Background()))

	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)

	st := m.Status()
	assert.False(t, st.BackgroundTasks.ReconnectTaskActive)
	assert.False(t, st.BackgroundTasks.HealthMonitorActive)
}

func TestWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := withJitter(base)
		assert.GreaterOrEqual(t, got, 75*time.Millisecond)
		assert.LessOrEqual(t, got, 125*time.Millisecond)
	}
}
