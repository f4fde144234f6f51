/*
包 migration 管理运行归档数据库的 Schema 迁移，支持 PostgreSQL、
MySQL 与 SQLite 三种方言，基于 golang-migrate 实现。

迁移 SQL 通过 embed.FS 内嵌在二进制中，每个方言一个子目录，
文件名遵循 golang-migrate 约定（000001_name.up.sql / .down.sql）。
当前 Schema 覆盖 runs 与 run_commands 两张归档表。

核心类型：

  - Migrator / DefaultMigrator：迁移器接口与默认实现，提供
    Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info 操作。
  - Config / Dialect：迁移配置与方言枚举。
  - CLI：coordflow migrate 子命令使用的格式化输出层。

SQLite 使用 modernc 纯 Go 驱动，归档与迁移均无 cgo 依赖。
*/
package migration
