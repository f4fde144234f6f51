package migration

import (
	"fmt"

	appconfig "github.com/BaSui01/coordflow/config"
)

// NewFromArchiveConfig 从归档配置创建迁移器。
// ArchiveConfig.DSN 已经是完整连接串，按 Driver 选择方言后直接使用。
func NewFromArchiveConfig(cfg appconfig.ArchiveConfig) (*DefaultMigrator, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid archive driver: %w", err)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive DSN is required")
	}

	return New(&Config{
		Dialect: dialect,
		URL:     cfg.DSN,
	})
}

// NewFromURL 从方言名与连接串创建迁移器。
func NewFromURL(dialect, url string) (*DefaultMigrator, error) {
	d, err := ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	return New(&Config{Dialect: d, URL: url})
}
