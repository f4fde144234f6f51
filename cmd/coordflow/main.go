// =============================================================================
// CoordFlow 主入口
// =============================================================================
// 多智能体工作流协调引擎的命令行入口
//
// 使用方法:
//
//	coordflow run                         # 使用模拟工作者执行一次运行
//	coordflow run --config config.yaml    # 指定配置文件
//	coordflow version                     # 显示版本信息
//	coordflow migrate up                  # 运行归档库迁移
//	coordflow migrate down                # 回滚最后一次迁移
//	coordflow migrate status              # 查看迁移状态
// =============================================================================
package main

import (
	"fmt"
	"os"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("CoordFlow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`CoordFlow - Multi-Agent Workflow Coordination Engine

Usage:
  coordflow <command> [options]

Commands:
  run       Execute a coordination run with mock workers
  migrate   Archive database migration commands
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>    Path to configuration file (YAML)
  --context <k=v>    Initial execution context entry (repeatable)
  --pause            Start the run paused

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version

Examples:
  coordflow run
  coordflow run --config /etc/coordflow/config.yaml --context campaign=spring
  coordflow migrate up
  coordflow migrate status --db-type sqlite --db-url "file:archive.db?mode=rwc"
  coordflow version`)
}
