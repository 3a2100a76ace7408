package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taoharvest/taoharvest/internal/types"
)

// MongoSink mirrors index rows and product records into two MongoDB
// collections: <collection> for records, <collection>_index for rows.
type MongoSink struct {
	client  *mongo.Client
	records *mongo.Collection
	index   *mongo.Collection
	mu      sync.Mutex
	count   int
	logger  *slog.Logger
}

// NewMongoSink connects and pings the server before returning.
func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	db := client.Database(database)
	return &MongoSink{
		client:  client,
		records: db.Collection(collection),
		index:   db.Collection(collection + "_index"),
		logger:  logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

// Append inserts one index row.
func (s *MongoSink) Append(row types.BatchIndexRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := toDocument(row)
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	if _, err := s.index.InsertOne(ctx, doc); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert index row: %w", err)}
	}
	return nil
}

// StoreRecord upserts a product record keyed by product ID, so a
// re-crawled product replaces its earlier document.
func (s *MongoSink) StoreRecord(rec *types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{"product_id": rec.ID}
	if rec.ID == "" {
		filter = bson.M{"url": rec.URL}
	}
	doc, err := toDocument(rec)
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	_, err = s.records.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("upsert record: %w", err)}
	}

	s.count++
	s.logger.Debug("record mirrored", "id", rec.ID, "total", s.count)
	return nil
}

// toDocument round-trips a value through its JSON encoding so the
// stored document keys match the on-disk JSON field names.
func toDocument(v any) (bson.M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc bson.M
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: err}
	}
	return nil
}
