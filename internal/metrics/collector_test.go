package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func newTestCollector() *Collector {
	return NewCollector("cacheflow", prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.operationsTotal)
	assert.NotNil(t, collector.operationDuration)
	assert.NotNil(t, collector.operationsRejected)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.cacheMisses)
	assert.NotNil(t, collector.breakerState)
	assert.NotNil(t, collector.breakerTransitions)
	assert.NotNil(t, collector.connected)
	assert.NotNil(t, collector.reconnectsTotal)
	assert.NotNil(t, collector.healthChecksTotal)
}

func TestNewCollector_NilLogger(t *testing.T) {
	collector := NewCollector("cacheflow", prometheus.NewRegistry(), nil)
	assert.NotNil(t, collector)
}

func TestNewCollector_DefaultRegistry(t *testing.T) {
	// reg 为 nil 时注册到默认注册表，命名空间唯一避免冲突
	collector := NewCollector(nextTestNamespace(), nil, zap.NewNop())
	assert.NotNil(t, collector)

	collector.RecordOperation("get", "success", 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.operationsTotal.WithLabelValues("get", "success")))
}

func TestCollector_RecordOperation(t *testing.T) {
	collector := newTestCollector()

	collector.RecordOperation("get", "success", 5*time.Millisecond)
	collector.RecordOperation("get", "success", 8*time.Millisecond)
	collector.RecordOperation("set", "failure", 100*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.operationsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.operationsTotal.WithLabelValues("set", "failure")))

	// 时延直方图有样本
	count := testutil.CollectAndCount(collector.operationDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordRejected(t *testing.T) {
	collector := newTestCollector()

	collector.RecordRejected("get", "circuit_open")
	collector.RecordRejected("get", "circuit_open")
	collector.RecordRejected("set", "no_transport")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.operationsRejected.WithLabelValues("get", "circuit_open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.operationsRejected.WithLabelValues("set", "no_transport")))
}

func TestCollector_CacheHitMiss(t *testing.T) {
	collector := newTestCollector()

	collector.RecordCacheHit("get")
	collector.RecordCacheHit("get")
	collector.RecordCacheMiss("get")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.cacheHits.WithLabelValues("get")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("get")))
}

func TestCollector_BreakerMetrics(t *testing.T) {
	collector := newTestCollector()

	collector.SetBreakerState(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.breakerState))

	collector.SetBreakerState(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.breakerState))

	collector.RecordBreakerTransition("CLOSED", "OPEN")
	collector.RecordBreakerTransition("OPEN", "HALF_OPEN")
	collector.RecordBreakerTransition("CLOSED", "OPEN")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.breakerTransitions.WithLabelValues("CLOSED", "OPEN")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.breakerTransitions.WithLabelValues("OPEN", "HALF_OPEN")))
}

func TestCollector_ConnectionMetrics(t *testing.T) {
	collector := newTestCollector()

	collector.SetConnected(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.connected))

	collector.SetConnected(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.connected))

	collector.SetConsecutiveFailures(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(collector.consecutiveFailures))

	collector.RecordReconnect(true)
	collector.RecordReconnect(false)
	collector.RecordReconnect(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.reconnectsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.reconnectsTotal.WithLabelValues("failure")))
}

func TestCollector_HealthCheckMetrics(t *testing.T) {
	collector := newTestCollector()

	collector.RecordHealthCheck(true, 2*time.Millisecond)
	collector.RecordHealthCheck(false, 50*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.healthChecksTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.healthChecksTotal.WithLabelValues("failure")))

	count := testutil.CollectAndCount(collector.healthCheckDuration)
	assert.Greater(t, count, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := newTestCollector()

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordOperation("get", "success", time.Millisecond)
			collector.RecordCacheHit("get")
			collector.RecordReconnect(true)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.operationsTotal.WithLabelValues("get", "success")))
	assert.Equal(t, float64(10), testutil.ToFloat64(collector.cacheHits.WithLabelValues("get")))
	assert.Equal(t, float64(10), testutil.ToFloat64(collector.reconnectsTotal.WithLabelValues("success")))
}

func TestBoolStatus(t *testing.T) {
	assert.Equal(t, "success", boolStatus(true))
	assert.Equal(t, "failure", boolStatus(false))
}
