// Package persistence stores run state snapshots for crash recovery and
// resumption.
//
// Supported backends:
// - Memory: for development and testing (default)
// - File: for single-node production deployments
// - Redis: for distributed production deployments
// - Mongo: for deployments that already run a document store
package persistence

import (
	"context"
	"errors"

	"github.com/BaSui01/coordflow/state"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeMongo  StoreType = "mongo"
)

// Store is the base contract all backends satisfy.
type Store interface {
	// Close releases the backend's resources.
	Close() error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// SnapshotStore persists one serialized state per run. Saving overwrites the
// previous snapshot; a run has at most one.
type SnapshotStore interface {
	Store

	// SaveSnapshot persists the state for a run, replacing any prior snapshot.
	SaveSnapshot(ctx context.Context, runID string, st *state.State) error

	// LoadSnapshot returns the stored state for a run, or ErrNotFound.
	LoadSnapshot(ctx context.Context, runID string) (*state.State, error)

	// DeleteSnapshot removes a run's snapshot. Deleting a missing run is not
	// an error.
	DeleteSnapshot(ctx context.Context, runID string) error

	// ListRuns returns the ids of all runs with a stored snapshot.
	ListRuns(ctx context.Context) ([]string, error)
}

// Config selects and configures a snapshot backend.
type Config struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Mongo configuration (only used when Type is "mongo")
	Mongo MongoConfig `json:"mongo" yaml:"mongo"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	// Host is the Redis server host
	Host string `json:"host" yaml:"host"`

	// Port is the Redis server port
	Port int `json:"port" yaml:"port"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// MongoConfig contains MongoDB-specific configuration
type MongoConfig struct {
	// URI is the MongoDB connection string
	URI string `json:"uri" yaml:"uri"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Collection is the snapshot collection name
	Collection string `json:"collection" yaml:"collection"`
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		Type:    StoreTypeMemory,
		BaseDir: "./data/snapshots",
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "coordflow:",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "coordflow",
			Collection: "snapshots",
		},
	}
}
