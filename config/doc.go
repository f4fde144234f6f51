// Package config 提供 CoordFlow 的统一配置加载。
//
// 配置来源按优先级叠加: 内置默认值 → YAML 文件 → 环境变量。
// 环境变量使用 COORDFLOW 前缀，按结构体嵌套展开，例如
// COORDFLOW_DURABLE_MAX_ATTEMPTS 覆盖 Durable.MaxAttempts。
package config
