package persistence

import (
	"fmt"
)

// NewSnapshotStore creates a SnapshotStore based on the configuration.
func NewSnapshotStore(cfg Config) (SnapshotStore, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemorySnapshotStore(), nil
	case StoreTypeFile:
		return NewFileSnapshotStore(cfg)
	case StoreTypeRedis:
		return NewRedisSnapshotStore(cfg)
	case StoreTypeMongo:
		return NewMongoSnapshotStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", cfg.Type)
	}
}
