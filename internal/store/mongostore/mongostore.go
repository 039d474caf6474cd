// Package mongostore adapts MongoDB collections to store.Collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/store"
)

// DefaultTimeout bounds the initial connect and ping.
const DefaultTimeout = 10 * time.Second

// Client wraps a connected mongo.Client and the database in use.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the primary. The database name is taken from
// database, or from the URI path when database is empty.
// Failures wrap store.ErrUnavailable.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	opts := options.Client().ApplyURI(uri)
	if opts.ServerSelectionTimeout == nil {
		opts.SetServerSelectionTimeout(DefaultTimeout)
	}

	if database == "" {
		cs, err := parseDatabase(uri)
		if err != nil {
			return nil, err
		}
		database = cs
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w: %w", store.ErrUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w: %w", store.ErrUnavailable, err)
	}

	return &Client{client: client, db: client.Database(database)}, nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Collection returns a handle on the named collection.
func (c *Client) Collection(name string) *Collection {
	return &Collection{coll: c.db.Collection(name)}
}

// Collection implements store.Collection on a mongo.Collection.
type Collection struct {
	coll *mongo.Collection
}

// FindAll returns every document in natural order.
func (c *Collection) FindAll(ctx context.Context) ([]doc.Object, error) {
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.Name(), err)
	}
	defer cur.Close(ctx)

	var out []doc.Object
	for cur.Next(ctx) {
		var d bson.D
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
		}
		o, err := FromBSON(d)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", c.coll.Name(), err)
		}
		out = append(out, o)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

// FindOne returns the first document matching f.
func (c *Collection) FindOne(ctx context.Context, f store.Filter) (doc.Object, error) {
	var d bson.D
	err := c.coll.FindOne(ctx, filterD(f)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s in %s: %w", f, c.coll.Name(), err)
	}
	return FromBSON(d)
}

// UpdateOne issues updateOne with a $set of the patch fields.
func (c *Collection) UpdateOne(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filterD(f), setD(p))
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update one %s in %s: %w", f, c.coll.Name(), err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// UpdateMany issues updateMany with a $set of the patch fields.
func (c *Collection) UpdateMany(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, filterD(f), setD(p))
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update many %s in %s: %w", f, c.coll.Name(), err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// InsertMany inserts docs in order.
func (c *Collection) InsertMany(ctx context.Context, docs []doc.Object) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = ToBSON(d)
	}
	res, err := c.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return len(res.InsertedIDs), nil
}

// ErrNoDatabase is returned when neither the URI nor the caller names a database.
var ErrNoDatabase = errors.New("no database name in mongo uri")

func parseDatabase(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("parse mongo uri: %w", err)
	}
	if cs.Database == "" {
		return "", ErrNoDatabase
	}
	return cs.Database, nil
}

func filterD(f store.Filter) bson.D {
	return bson.D{{Key: f.Field, Value: ToBSONValue(f.Value)}}
}

func setD(p store.Patch) bson.D {
	return bson.D{{Key: "$set", Value: ToBSON(p.Set)}}
}
