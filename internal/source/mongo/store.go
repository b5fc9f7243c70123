// Package mongo is a MongoDB backend: one MongoDB collection per remote
// collection, document ids in _id, and change streams driving snapshots.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"atelier/internal/source"
	"atelier/pkg/model"
)

// Options tune a Store.
type Options struct {
	// FetchTimeout bounds one full-collection listing.
	FetchTimeout time.Duration
	// RetryInterval is the pause before reopening a failed change stream.
	RetryInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
}

// Store implements source.Backend on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

var _ source.Backend = (*Store)(nil)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, dbName string, opts Options) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if clientOpts.ConnectTimeout == nil {
		clientOpts.SetConnectTimeout(10 * time.Second)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return NewStore(client, dbName, opts), nil
}

// NewStore wraps a connected client.
func NewStore(client *mongo.Client, dbName string, opts Options) *Store {
	opts.applyDefaults()
	return &Store{
		client: client,
		db:     client.Database(dbName),
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With("component", "mongo-source", "database", dbName),
	}
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Get implements source.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	var raw bson.M
	err := s.coll(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return fromBSON(raw), nil
}

// List implements source.Store.
func (s *Store) List(ctx context.Context, collection string, order model.Order) ([]model.Document, error) {
	cursor, err := s.coll(collection).Find(ctx, bson.M{}, options.Find().SetSort(sortSpec(order)))
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	docs := make([]model.Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, fromBSON(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	return docs, nil
}

// Create implements source.Store.
func (s *Store) Create(ctx context.Context, collection string, doc model.Document) error {
	id := doc.GetID()
	if id == "" {
		return fmt.Errorf("%w: missing id", model.ErrInvalidDocument)
	}
	now := s.now().UnixMilli()
	raw := toBSON(doc)
	raw["_id"] = id
	raw["createdAt"] = now
	raw["updatedAt"] = now

	_, err := s.coll(collection).InsertOne(ctx, raw)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrExists
	}
	return model.WrapError(err)
}

// Update implements source.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fields model.Document) error {
	set := toBSON(fields)
	set["updatedAt"] = s.now().UnixMilli()

	result, err := s.coll(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return model.WrapError(err)
	}
	if result.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Delete implements source.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.coll(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return model.WrapError(err)
	}
	if result.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
