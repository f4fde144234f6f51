// Command coordflow 是多智能体工作流协调引擎的命令行入口。
//
// 提供三类操作: 执行一次协调运行（run）、归档库迁移管理（migrate）
// 以及版本查询（version）。运行时通过 --config 指定 YAML 配置，
// 环境变量使用 COORDFLOW 前缀覆盖。
package main
