// Package testutil 提供 CacheFlow 测试的共享工具和辅助函数。
//
// 包含上下文辅助（自动注册 Cleanup 防止泄漏）、异步断言
// （超时轮询等待条件满足）和 JSON 数据工具。
// Mock 实现位于 testutil/mocks 子包。
package testutil
