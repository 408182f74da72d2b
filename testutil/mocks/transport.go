// MockTransport 的缓存传输层测试模拟实现。
//
// 支持错误注入、调用计数与极简键值行为，用于验证降级路径
// 与熔断门控（不触达真实存储）。
package mocks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// --- MockTransport 结构 ---

// MockTransport 是缓存传输句柄的模拟实现
type MockTransport struct {
	mu sync.Mutex

	// 错误注入
	opErr         error
	pingErr       error
	failPingAfter int // 第 N 次成功 Ping 之后开始失败（0 禁用）

	// 调用记录
	opCalls   int
	pingCalls int
	closed    bool

	// 极简键值存储
	data map[string]string
}

// --- 构造函数和 Builder 方法 ---

// NewMockTransport 创建新的 MockTransport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		data: make(map[string]string),
	}
}

// WithOpError 设置所有数据命令返回的错误
func (m *MockTransport) WithOpError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opErr = err
	return m
}

// WithPingError 设置 Ping 返回的错误
func (m *MockTransport) WithPingError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
	return m
}

// WithFailPingAfter 在第 n 次成功 Ping 之后开始失败
func (m *MockTransport) WithFailPingAfter(n int) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPingAfter = n
	return m
}

// SetOpError 运行中切换数据命令错误（nil 恢复正常）
func (m *MockTransport) SetOpError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opErr = err
}

// --- 调用记录访问 ---

// OpCalls 返回数据命令调用次数
func (m *MockTransport) OpCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opCalls
}

// PingCalls 返回 Ping 调用次数
func (m *MockTransport) PingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingCalls
}

// Closed 返回句柄是否已被关闭
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// --- Transport 实现 ---

func (m *MockTransport) Ping(ctx context.Context) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingCalls++

	if m.failPingAfter > 0 && m.pingCalls > m.failPingAfter {
		err := m.pingErr
		if err == nil {
			err = errors.New("ping failed")
		}
		return redis.NewStatusResult("", err)
	}
	if m.pingErr != nil {
		return redis.NewStatusResult("", m.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (m *MockTransport) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewStringResult("", m.opErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *MockTransport) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewStatusResult("", m.opErr)
	}
	m.data[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *MockTransport) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewIntResult(0, m.opErr)
	}
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *MockTransport) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewIntResult(0, m.opErr)
	}
	var found int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			found++
		}
	}
	return redis.NewIntResult(found, nil)
}

func (m *MockTransport) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewStringSliceResult(nil, m.opErr)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.data {
		if pattern == "*" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return redis.NewStringSliceResult(keys, nil)
}

func (m *MockTransport) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewBoolResult(false, m.opErr)
	}
	_, ok := m.data[key]
	return redis.NewBoolResult(ok, nil)
}

func (m *MockTransport) TTL(ctx context.Context, key string) *redis.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewDurationResult(0, m.opErr)
	}
	if _, ok := m.data[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	// 模拟实现不跟踪过期时间
	return redis.NewDurationResult(-1, nil)
}

func (m *MockTransport) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewIntResult(0, m.opErr)
	}
	n, err := strconv.ParseInt(m.data[key], 10, 64)
	if m.data[key] != "" && err != nil {
		return redis.NewIntResult(0, errors.New("value is not an integer"))
	}
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (m *MockTransport) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return m.sliceOp()
}

func (m *MockTransport) LLen(ctx context.Context, key string) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewStringResult("", m.opErr)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *MockTransport) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewMapStringStringResult(nil, m.opErr)
	}
	return redis.NewMapStringStringResult(map[string]string{}, nil)
}

func (m *MockTransport) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return m.sliceOp()
}

func (m *MockTransport) ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	return m.sliceOp()
}

func (m *MockTransport) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	return m.listOp()
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// --- 内部辅助 ---

// listOp 集合类写命令的共享实现：只注入错误与计数
func (m *MockTransport) listOp() *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewIntResult(0, m.opErr)
	}
	return redis.NewIntResult(0, nil)
}

// sliceOp 集合类读命令的共享实现：只注入错误与计数
func (m *MockTransport) sliceOp() *redis.StringSliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCalls++

	if m.opErr != nil {
		return redis.NewStringSliceResult(nil, m.opErr)
	}
	return redis.NewStringSliceResult(nil, nil)
}

// toString 将任意值转换为字符串存储
func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
