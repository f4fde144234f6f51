package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/BaSui01/coordflow/state"
)

// MongoSnapshotStore is a MongoDB-based implementation of SnapshotStore.
// One document per run, keyed by _id = run id; saves upsert.
type MongoSnapshotStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// snapshotDoc is the stored document shape. State stays opaque JSON so the
// document schema never chases the state schema.
type snapshotDoc struct {
	RunID     string    `bson:"_id"`
	State     []byte    `bson:"state"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoSnapshotStore connects to MongoDB and verifies the connection.
func NewMongoSnapshotStore(cfg Config) (*MongoSnapshotStore, error) {
	if cfg.Mongo.URI == "" || cfg.Mongo.Database == "" {
		return nil, fmt.Errorf("mongo snapshot store: %w: uri and database required", ErrInvalidInput)
	}
	collection := cfg.Mongo.Collection
	if collection == "" {
		collection = "snapshots"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoSnapshotStore{
		client: client,
		coll:   client.Database(cfg.Mongo.Database).Collection(collection),
	}, nil
}

// SaveSnapshot upserts the run's document.
func (s *MongoSnapshotStore) SaveSnapshot(ctx context.Context, runID string, st *state.State) error {
	if runID == "" || st == nil {
		return ErrInvalidInput
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	doc := snapshotDoc{RunID: runID, State: data, UpdatedAt: time.Now()}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": runID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored state for a run.
func (s *MongoSnapshotStore) LoadSnapshot(ctx context.Context, runID string) (*state.State, error) {
	var doc snapshotDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return state.Unmarshal(doc.State)
}

// DeleteSnapshot removes a run's document.
func (s *MongoSnapshotStore) DeleteSnapshot(ctx context.Context, runID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": runID}); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListRuns projects the ids of all stored documents.
func (s *MongoSnapshotStore) ListRuns(ctx context.Context) ([]string, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []string
	for cursor.Next(ctx) {
		var doc struct {
			RunID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode snapshot id: %w", err)
		}
		runs = append(runs, doc.RunID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return runs, nil
}

// Close disconnects the client.
func (s *MongoSnapshotStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks if the store is healthy.
func (s *MongoSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}
