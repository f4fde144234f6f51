/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖运行、阶段、
命令与快照四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 主要能力

  - 运行指标：启动/结束计数（按结果分组）、运行耗时、活跃运行 Gauge。
  - 阶段指标：执行计数（按 stage/status 分组）、阶段耗时、重试计数。
  - 命令指标：执行计数，按 kind/status 分组。
  - 快照指标：持久化操作计数，按 operation/status 分组。
*/
package metrics
