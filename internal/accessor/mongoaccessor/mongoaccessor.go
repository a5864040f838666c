// Package mongoaccessor implements accessor.Port against a real MongoDB
// deployment via the official driver. This is the one component of the
// repository not patterned directly on teacher code — the teacher never
// imports go.mongodb.org/mongo-driver, only declares it — so its shape
// follows the driver's own idiomatic usage (mongo.Client, bson.M query
// translation, context-aware calls) rather than an in-pack example.
package mongoaccessor

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"passgate/internal/accessor"
)

// Config configures the connection. Address is a full mongodb:// URI;
// Database is the database name docs live under, with each accessor.Port
// collection mapping to a same-named Mongo collection.
type Config struct {
	Address  string
	Database string
	Timeout  time.Duration
}

// Accessor adapts a *mongo.Client to accessor.Port.
type Accessor struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect dials Address and pings the deployment before returning, so a
// misconfigured connection string fails at startup instead of on first use.
func Connect(ctx context.Context, cfg Config) (*Accessor, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("mongoaccessor: address required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongoaccessor: database required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Address))
	if err != nil {
		return nil, fmt.Errorf("mongoaccessor: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongoaccessor: ping: %w", err)
	}

	return &Accessor{client: client, db: client.Database(cfg.Database), timeout: timeout}, nil
}

// Close disconnects the underlying client.
func (a *Accessor) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func (a *Accessor) Get(ctx context.Context, collection string, query map[string]any) (map[string]any, bool, error) {
	var doc bson.M
	err := a.db.Collection(collection).FindOne(ctx, bson.M(query)).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mongoaccessor: get: %w", err)
	}
	return map[string]any(doc), true, nil
}

func (a *Accessor) Add(ctx context.Context, collection string, docs []map[string]any) ([]string, error) {
	toInsert := make([]any, len(docs))
	for i, d := range docs {
		toInsert[i] = bson.M(d)
	}
	res, err := a.db.Collection(collection).InsertMany(ctx, toInsert)
	if err != nil {
		return nil, fmt.Errorf("mongoaccessor: add: %w", err)
	}
	ids := make([]string, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return ids, nil
}

func (a *Accessor) Read(ctx context.Context, collection string, query map[string]any, opts accessor.ReadOptions) ([]map[string]any, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if len(opts.Order) > 0 {
		sort := bson.D{}
		for _, o := range opts.Order {
			dir := 1
			if o.Direction == "desc" {
				dir = -1
			}
			sort = append(sort, bson.E{Key: o.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if len(opts.Projection) > 0 {
		proj := bson.M{}
		for field, flag := range opts.Projection {
			proj[field] = flag
		}
		findOpts.SetProjection(proj)
	}

	cursor, err := a.db.Collection(collection).Find(ctx, bson.M(query), findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongoaccessor: read: %w", err)
	}
	defer cursor.Close(ctx)

	var out []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongoaccessor: decode: %w", err)
		}
		out = append(out, map[string]any(doc))
	}
	return out, cursor.Err()
}

func (a *Accessor) Update(ctx context.Context, collection string, query map[string]any, data map[string]any, opts accessor.UpdateOptions) (int64, error) {
	update := bson.M(data)
	if !hasOperatorKey(update) {
		update = bson.M{"$set": data}
	}
	updateOpts := options.Update().SetUpsert(opts.Upsert)
	if opts.Multi {
		res, err := a.db.Collection(collection).UpdateMany(ctx, bson.M(query), update, updateOpts)
		if err != nil {
			return 0, fmt.Errorf("mongoaccessor: update many: %w", err)
		}
		return res.ModifiedCount + res.UpsertedCount, nil
	}
	res, err := a.db.Collection(collection).UpdateOne(ctx, bson.M(query), update, updateOpts)
	if err != nil {
		return 0, fmt.Errorf("mongoaccessor: update one: %w", err)
	}
	return res.ModifiedCount + res.UpsertedCount, nil
}

func (a *Accessor) Remove(ctx context.Context, collection string, query map[string]any, multi bool) (int64, error) {
	if multi {
		res, err := a.db.Collection(collection).DeleteMany(ctx, bson.M(query))
		if err != nil {
			return 0, fmt.Errorf("mongoaccessor: delete many: %w", err)
		}
		return res.DeletedCount, nil
	}
	res, err := a.db.Collection(collection).DeleteOne(ctx, bson.M(query))
	if err != nil {
		return 0, fmt.Errorf("mongoaccessor: delete one: %w", err)
	}
	return res.DeletedCount, nil
}

func (a *Accessor) Count(ctx context.Context, collection string, query map[string]any) (int64, error) {
	n, err := a.db.Collection(collection).CountDocuments(ctx, bson.M(query))
	if err != nil {
		return 0, fmt.Errorf("mongoaccessor: count: %w", err)
	}
	return n, nil
}

func hasOperatorKey(m bson.M) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}
	return false
}
