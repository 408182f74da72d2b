// Package metrics 提供基于 Prometheus 的指标采集能力，覆盖缓存操作、
// 熔断器、连接管理与后台健康检查四个维度。
//
// Collector 通过 promauto 按命名空间注册 Counter、Histogram 与 Gauge，
// 默认注册表或调用方传入的 Registerer 均可。指标记录路径无锁竞争，
// 可以安全地在操作热路径上调用。
package metrics
