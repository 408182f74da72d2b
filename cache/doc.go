// Package cache 提供带故障恢复能力的 Redis 缓存管理功能。
//
// 核心是 Manager：持有单一共享连接，所有操作经过熔断器（CLOSED /
// OPEN / HALF_OPEN）守门，连接断开后由后台重连循环按指数退避恢复，
// 后台健康监控持续探测连接健康。存储不可用时操作降级为零值，
// 调用方永远不会因为缓存故障而收到错误。
package cache
