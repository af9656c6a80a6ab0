// Package mongostore persists documents in MongoDB. Every collection group
// name maps to one Mongo collection; a stored document keeps its full path
// as _id, its parent collection path, and its fields under data.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unify/internal/docstore"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type record struct {
	ID     string `bson:"_id"`
	Parent string `bson:"parent"`
	DocID  string `bson:"docId"`
	Data   bson.M `bson:"data"`
}

// Store implements docstore.Store on a Mongo database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	groups []string
}

// Connect dials uri and pings the server.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return New(client, database), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// EnsureIndexes creates the parent/docId indexes plus one data.<field>
// index per (group, field) pair that is queried by equality.
func (s *Store) EnsureIndexes(ctx context.Context, fields map[string][]string) error {
	for group, names := range fields {
		models := []mongo.IndexModel{
			{Keys: bson.D{{Key: "parent", Value: 1}, {Key: "docId", Value: 1}}},
		}
		for _, f := range names {
			models = append(models, mongo.IndexModel{
				Keys: bson.D{{Key: "data." + f, Value: 1}, {Key: "parent", Value: 1}},
			})
		}
		if _, err := s.db.Collection(group).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongostore: indexes for %s: %w", group, err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) coll(c docstore.CollectionRef) *mongo.Collection {
	return s.db.Collection(c.Name())
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	if !ref.Valid() {
		return docstore.Snapshot{}, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	var rec record
	err := s.coll(ref.Parent()).FindOne(ctx, bson.M{"_id": ref.Path()}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return toSnapshot(rec)
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, data docstore.Data) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	return s.set(ctx, ref, docstore.Clone(data))
}

func (s *Store) set(ctx context.Context, ref docstore.DocRef, data docstore.Data) error {
	rec := record{
		ID:     ref.Path(),
		Parent: ref.Parent().Path(),
		DocID:  ref.ID(),
		Data:   bson.M(data),
	}
	_, err := s.coll(ref.Parent()).ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Delete(ctx context.Context, ref docstore.DocRef) error {
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, ref.Path())
	}
	_, err := s.coll(ref.Parent()).DeleteOne(ctx, bson.M{"_id": ref.Path()})
	return err
}

func (s *Store) List(ctx context.Context, col docstore.CollectionRef) ([]docstore.Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	return s.find(ctx, s.coll(col), bson.M{"parent": col.Path()})
}

func (s *Store) Where(ctx context.Context, col docstore.CollectionRef, field string, value any) ([]docstore.Snapshot, error) {
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	if _, ok := docstore.IndexKey(value); !ok {
		return nil, fmt.Errorf("mongostore: field %q: value of type %T is not queryable", field, value)
	}
	return s.find(ctx, s.coll(col), bson.M{"parent": col.Path(), "data." + field: queryValue(value)})
}

func (s *Store) WhereIDIn(ctx context.Context, col docstore.CollectionRef, ids []string) ([]docstore.Snapshot, error) {
	if len(ids) > docstore.MaxIDsPerQuery {
		return nil, docstore.ErrTooManyIDs
	}
	if !col.Valid() {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, col.Path())
	}
	if len(ids) == 0 {
		return []docstore.Snapshot{}, nil
	}
	return s.find(ctx, s.coll(col), bson.M{"parent": col.Path(), "docId": bson.M{"$in": ids}})
}

func (s *Store) CollectionGroup(ctx context.Context, name, field string, value any) ([]docstore.Snapshot, error) {
	if _, ok := docstore.IndexKey(value); !ok {
		return nil, fmt.Errorf("mongostore: field %q: value of type %T is not queryable", field, value)
	}
	return s.find(ctx, s.db.Collection(name), bson.M{"data." + field: queryValue(value)})
}

func (s *Store) find(ctx context.Context, coll *mongo.Collection, filter bson.M) ([]docstore.Snapshot, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	out := make([]docstore.Snapshot, 0, len(recs))
	for _, rec := range recs {
		snap, err := toSnapshot(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type batch struct {
	docstore.Ops
	store *Store
}

func (b *batch) Set(ref docstore.DocRef, data docstore.Data) docstore.Batch {
	b.AddSet(ref, data)
	return b
}

func (b *batch) Delete(ref docstore.DocRef) docstore.Batch {
	b.AddDelete(ref)
	return b
}

func (b *batch) Len() int { return len(b.List) }

// Commit applies the batch inside a multi-document transaction, which
// requires a replica set or sharded cluster.
func (b *batch) Commit(ctx context.Context) error {
	if err := b.Validate(); err != nil {
		return err
	}
	sess, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		for _, op := range b.List {
			var opErr error
			switch op.Kind {
			case docstore.OpSet:
				opErr = b.store.set(txCtx, op.Ref, op.Data)
			case docstore.OpDelete:
				_, opErr = b.store.coll(op.Ref.Parent()).DeleteOne(txCtx, bson.M{"_id": op.Ref.Path()})
			}
			if opErr != nil {
				return nil, opErr
			}
		}
		return nil, nil
	})
	return err
}

func queryValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return v
}

func toSnapshot(rec record) (docstore.Snapshot, error) {
	ref, ok := docstore.DocRefFromPath(rec.ID)
	if !ok {
		return docstore.Snapshot{}, fmt.Errorf("%w: stored path %q", docstore.ErrInvalidPath, rec.ID)
	}
	data := make(docstore.Data, len(rec.Data))
	for k, v := range rec.Data {
		data[k] = fromBSON(v)
	}
	return docstore.Snapshot{Ref: ref, Data: data}, nil
}

// fromBSON converts driver container types back to plain maps and slices.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bson.DateTime:
		return float64(t)
	}
	return v
}
