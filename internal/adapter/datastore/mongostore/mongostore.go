// Package mongostore is an ordered key-value datastore on a MongoDB
// collection keyed by _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/effect-network.net/internal/adapter/datastore"
	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ secondary.Datastore = (*Datastore)(nil)

const collectionName = "kv_entries"

type document struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

type Datastore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger primary.Logger
}

// Connect opens a client for uri and uses the kv collection of dbName
func Connect(ctx context.Context, uri, dbName string, logger primary.Logger) (*Datastore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Datastore{
		client: client,
		coll:   client.Database(dbName).Collection(collectionName),
		logger: logger,
	}, nil
}

func (d *Datastore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := d.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		d.logger.Error("Failed to get entry", "key", key, "error", err)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return doc.Value, nil
}

func (d *Datastore) Put(ctx context.Context, key string, value []byte) error {
	_, err := d.coll.ReplaceOne(ctx, bson.M{"_id": key}, document{Key: key, Value: value}, options.Replace().SetUpsert(true))
	if err != nil {
		d.logger.Error("Failed to put entry", "key", key, "error", err)
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (d *Datastore) Delete(ctx context.Context, key string) error {
	if _, err := d.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (d *Datastore) Has(ctx context.Context, key string) (bool, error) {
	n, err := d.coll.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return n > 0, nil
}

func rangeFilter(prefix string) bson.M {
	if prefix == "" {
		return bson.M{}
	}
	bounds := bson.M{"$gte": prefix}
	if end := datastore.PrefixEnd(prefix); end != "" {
		bounds["$lt"] = end
	}
	return bson.M{"_id": bounds}
}

func findOptions(q secondary.Query) *options.FindOptions {
	dir := 1
	if q.Order == secondary.OrderDesc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: dir}})
	if len(q.Filters) == 0 && q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func (d *Datastore) Query(ctx context.Context, q secondary.Query) ([]secondary.Entry, error) {
	cursor, err := d.coll.Find(ctx, rangeFilter(q.Prefix), findOptions(q))
	if err != nil {
		d.logger.Error("Failed to query entries", "prefix", q.Prefix, "error", err)
		return nil, fmt.Errorf("query %s: %w", q.Prefix, err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Prefix, err)
	}

	entries := make([]secondary.Entry, len(docs))
	for i, doc := range docs {
		entries[i] = secondary.Entry{Key: doc.Key, Value: doc.Value}
	}
	return datastore.Collect(q, entries), nil
}

func (d *Datastore) QueryKeys(ctx context.Context, q secondary.Query) ([]string, error) {
	if len(q.Filters) > 0 {
		entries, err := d.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return datastore.Keys(entries), nil
	}

	opts := findOptions(q).SetProjection(bson.M{"_id": 1})
	cursor, err := d.coll.Find(ctx, rangeFilter(q.Prefix), opts)
	if err != nil {
		return nil, fmt.Errorf("query keys %s: %w", q.Prefix, err)
	}
	defer cursor.Close(ctx)

	keys := make([]string, 0)
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	return keys, cursor.Err()
}

func (d *Datastore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
