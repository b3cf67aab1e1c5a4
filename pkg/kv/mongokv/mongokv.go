// Package mongokv implements kv.Backend on a MongoDB collection, one document
// per key.
package mongokv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// DefaultCollection is used when Options.Collection is empty.
const DefaultCollection = "board_kv"

type document struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Options configures Connect.
type Options struct {
	URI        string
	Database   string
	Collection string
}

// Store is a kv.Backend over a mongo collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ kv.Backend = (*Store)(nil)

// Connect dials MongoDB, pings it, and returns a store that owns the client.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, errors.New("mongokv: uri is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongokv: database is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("mongokv: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongokv: ping: %w", err)
	}
	store := New(client.Database(opts.Database), opts.Collection)
	store.client = client
	return store, nil
}

// New wraps a database handle owned by the caller.
func New(db *mongo.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{collection: db.Collection(collection)}
}

func (s *Store) Get(ctx context.Context, key string) (kv.Record, bool, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return kv.Record{}, false, nil
	}
	if err != nil {
		return kv.Record{}, false, fmt.Errorf("mongokv: get %s: %w", key, err)
	}
	return kv.Record{Value: []byte(doc.Value), Version: doc.Version}, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	update := bson.M{
		"$set": bson.M{"value": string(value), "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": int64(1)},
	}
	if expectedVersion > 0 {
		res, err := s.collection.UpdateOne(ctx, bson.M{"_id": key, "version": expectedVersion}, update)
		if err != nil {
			return 0, fmt.Errorf("mongokv: put %s: %w", key, err)
		}
		if res.MatchedCount == 0 {
			return 0, fmt.Errorf("mongokv: expected version %d for %s: %w", expectedVersion, key, kv.ErrVersionMismatch)
		}
		return expectedVersion + 1, nil
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc document
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": key}, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("mongokv: put %s: %w", key, err)
	}
	return doc.Version, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongokv: delete %s: %w", key, err)
	}
	return nil
}

// Close disconnects the client when Connect created it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
