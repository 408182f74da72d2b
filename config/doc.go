// Package config 提供 CacheFlow 的配置管理功能。
//
// 包含配置加载与校验，支持从文件和环境变量加载配置，
// 并负责根据日志配置构建 zap logger。
package config
