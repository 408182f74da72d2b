package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 🎯 键值操作
// =============================================================================
// 所有操作走统一的 execute 管道：存储不可用时返回零值，从不抛错。
// =============================================================================

// Get 获取字符串值；未命中或存储不可用时返回 ("", false)
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	var val string
	found := false
	ok := m.execute(ctx, "get", func(ctx context.Context, t Transport) error {
		v, err := t.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		val = v
		found = true
		return nil
	})
	if !ok {
		return "", false
	}
	m.recordLookup("get", found)
	return val, found
}

// GetBytes 获取原始字节值
func (m *Manager) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	found := false
	ok := m.execute(ctx, "get", func(ctx context.Context, t Transport) error {
		v, err := t.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		val = v
		found = true
		return nil
	})
	if !ok {
		return nil, false
	}
	m.recordLookup("get", found)
	return val, found
}

// Set 写入键值；ttl 为 0 时使用配置的默认过期时间
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	return m.execute(ctx, "set", func(ctx context.Context, t Transport) error {
		return t.Set(ctx, key, value, ttl).Err()
	})
}

// SetJSON 序列化后写入。
// 只有序列化失败会返回 error（调用方数据问题）；存储不可用仅返回 false。
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.Set(ctx, key, data, ttl), nil
}

// GetJSON 读取并反序列化到 dest。
// 未命中或存储不可用返回 (false, nil)；载荷损坏返回反序列化错误。
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found := m.GetBytes(ctx, key)
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Delete 删除键，返回实际删除数量
func (m *Manager) Delete(ctx context.Context, keys ...string) int64 {
	if len(keys) == 0 {
		return 0
	}
	var deleted int64
	m.execute(ctx, "delete", func(ctx context.Context, t Transport) error {
		n, err := t.Del(ctx, keys...).Result()
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	return deleted
}

// Exists 检查键是否存在
func (m *Manager) Exists(ctx context.Context, key string) bool {
	var exists bool
	m.execute(ctx, "exists", func(ctx context.Context, t Transport) error {
		n, err := t.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		exists = n > 0
		return nil
	})
	return exists
}

// Keys 按模式枚举键。
// 仅限运维与测试场景使用，生产键空间大时开销显著。
func (m *Manager) Keys(ctx context.Context, pattern string) []string {
	var keys []string
	m.execute(ctx, "keys", func(ctx context.Context, t Transport) error {
		ks, err := t.Keys(ctx, pattern).Result()
		if err != nil {
			return err
		}
		keys = ks
		return nil
	})
	return keys
}

// Expire 重设键的过期时间
func (m *Manager) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	var set bool
	ok := m.execute(ctx, "expire", func(ctx context.Context, t Transport) error {
		v, err := t.Expire(ctx, key, ttl).Result()
		if err != nil {
			return err
		}
		set = v
		return nil
	})
	return ok && set
}

// TTL 查询键的剩余生存期；键不存在或不可用时返回 (0, false)。
// 键存在但未设置过期时间时返回 (0, true)。
func (m *Manager) TTL(ctx context.Context, key string) (time.Duration, bool) {
	var ttl time.Duration
	found := false
	ok := m.execute(ctx, "ttl", func(ctx context.Context, t Transport) error {
		d, err := t.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		// go-redis 约定：-2 键不存在，-1 存在但无过期时间
		switch d {
		case -2:
			return nil
		case -1:
			found = true
			return nil
		}
		ttl = d
		found = true
		return nil
	})
	if !ok {
		return 0, false
	}
	return ttl, found
}

// Incr 自增计数器，返回自增后的值
func (m *Manager) Incr(ctx context.Context, key string) (int64, bool) {
	var val int64
	ok := m.execute(ctx, "incr", func(ctx context.Context, t Transport) error {
		v, err := t.Incr(ctx, key).Result()
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if !ok {
		return 0, false
	}
	return val, true
}

// =============================================================================
// 📝 列表操作
// =============================================================================

// LPush 从左侧压入元素，返回列表新长度
func (m *Manager) LPush(ctx context.Context, key string, values ...interface{}) int64 {
	var length int64
	m.execute(ctx, "lpush", func(ctx context.Context, t Transport) error {
		n, err := t.LPush(ctx, key, values...).Result()
		if err != nil {
			return err
		}
		length = n
		return nil
	})
	return length
}

// RPush 从右侧压入元素，返回列表新长度
func (m *Manager) RPush(ctx context.Context, key string, values ...interface{}) int64 {
	var length int64
	m.execute(ctx, "rpush", func(ctx context.Context, t Transport) error {
		n, err := t.RPush(ctx, key, values...).Result()
		if err != nil {
			return err
		}
		length = n
		return nil
	})
	return length
}

// LRange 读取列表区间；不可用时返回空切片
func (m *Manager) LRange(ctx context.Context, key string, start, stop int64) []string {
	var items []string
	m.execute(ctx, "lrange", func(ctx context.Context, t Transport) error {
		vs, err := t.LRange(ctx, key, start, stop).Result()
		if err != nil {
			return err
		}
		items = vs
		return nil
	})
	return items
}

// LLen 返回列表长度
func (m *Manager) LLen(ctx context.Context, key string) int64 {
	var length int64
	m.execute(ctx, "llen", func(ctx context.Context, t Transport) error {
		n, err := t.LLen(ctx, key).Result()
		if err != nil {
			return err
		}
		length = n
		return nil
	})
	return length
}

// =============================================================================
// 🗂️ 哈希操作
// =============================================================================

// HSet 写入哈希字段（field, value 成对出现）
func (m *Manager) HSet(ctx context.Context, key string, values ...interface{}) bool {
	return m.execute(ctx, "hset", func(ctx context.Context, t Transport) error {
		return t.HSet(ctx, key, values...).Err()
	})
}

// HGet 读取哈希字段；字段缺失或不可用时返回 ("", false)
func (m *Manager) HGet(ctx context.Context, key, field string) (string, bool) {
	var val string
	found := false
	ok := m.execute(ctx, "hget", func(ctx context.Context, t Transport) error {
		v, err := t.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		val = v
		found = true
		return nil
	})
	if !ok {
		return "", false
	}
	m.recordLookup("hget", found)
	return val, found
}

// HGetAll 读取整个哈希；不可用时返回空 map
func (m *Manager) HGetAll(ctx context.Context, key string) map[string]string {
	result := map[string]string{}
	m.execute(ctx, "hgetall", func(ctx context.Context, t Transport) error {
		vs, err := t.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		result = vs
		return nil
	})
	return result
}

// HDel 删除哈希字段，返回实际删除数量
func (m *Manager) HDel(ctx context.Context, key string, fields ...string) int64 {
	if len(fields) == 0 {
		return 0
	}
	var deleted int64
	m.execute(ctx, "hdel", func(ctx context.Context, t Transport) error {
		n, err := t.HDel(ctx, key, fields...).Result()
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	return deleted
}

// =============================================================================
// 🏆 有序集合操作
// =============================================================================

// ZAdd 添加有序集合成员
func (m *Manager) ZAdd(ctx context.Context, key string, score float64, member interface{}) bool {
	return m.execute(ctx, "zadd", func(ctx context.Context, t Transport) error {
		return t.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
}

// ZRange 按排名区间读取成员；不可用时返回空切片
func (m *Manager) ZRange(ctx context.Context, key string, start, stop int64) []string {
	var members []string
	m.execute(ctx, "zrange", func(ctx context.Context, t Transport) error {
		vs, err := t.ZRange(ctx, key, start, stop).Result()
		if err != nil {
			return err
		}
		members = vs
		return nil
	})
	return members
}

// ZRangeByScore 按分数区间读取成员（min/max 为 Redis 语法，如 "-inf"、"(1"）
func (m *Manager) ZRangeByScore(ctx context.Context, key, min, max string) []string {
	var members []string
	m.execute(ctx, "zrangebyscore", func(ctx context.Context, t Transport) error {
		vs, err := t.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
		if err != nil {
			return err
		}
		members = vs
		return nil
	})
	return members
}

// ZRem 移除有序集合成员，返回实际移除数量
func (m *Manager) ZRem(ctx context.Context, key string, members ...interface{}) int64 {
	if len(members) == 0 {
		return 0
	}
	var removed int64
	m.execute(ctx, "zrem", func(ctx context.Context, t Transport) error {
		n, err := t.ZRem(ctx, key, members...).Result()
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	return removed
}

// recordLookup 读取命中率指标上报
func (m *Manager) recordLookup(op string, found bool) {
	if m.metrics == nil {
		return
	}
	if found {
		m.metrics.RecordCacheHit(op)
	} else {
		m.metrics.RecordCacheMiss(op)
	}
}
