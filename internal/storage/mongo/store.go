// Package mongo maps each collection onto a MongoDB collection of the same
// name, keyed by _id. With change streams enabled (replica sets only),
// writes from other processes also refresh local subscriptions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerly/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Options struct {
	URI      string
	Database string
	// Watch enables a database change stream feeding subscriptions.
	Watch bool
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	hub    *storage.Hub

	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(ctx context.Context, opts Options) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	watchCtx, stop := context.WithCancel(context.Background())
	s := &Store{
		client: client,
		db:     client.Database(opts.Database),
		hub:    storage.NewHub(),
		stop:   stop,
	}
	if opts.Watch {
		s.wg.Add(1)
		go s.watch(watchCtx)
	}

	slog.InfoContext(ctx, "MongoDB document store ready", "database", opts.Database, "watch", opts.Watch)
	return s, nil
}

func (s *Store) watch(ctx context.Context) {
	defer s.wg.Done()
	attempt := 0
	for ctx.Err() == nil {
		err := s.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		attempt++
		delay := min(time.Second<<min(attempt-1, 5), 30*time.Second)
		slog.Warn("MongoDB change stream interrupted", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Store) watchOnce(ctx context.Context) error {
	stream, err := s.db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event struct {
			NS struct {
				Coll string `bson:"coll"`
			} `bson:"ns"`
		}
		if err := stream.Decode(&event); err != nil {
			slog.Warn("Undecodable change event", "error", err)
			continue
		}
		s.hub.Notify(event.NS.Coll)
	}
	return stream.Err()
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	var raw bson.D
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return toDocument(id, raw)
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc any) error {
	body, err := storage.Marshal(doc)
	if err != nil {
		return err
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(body, false, &d); err != nil {
		return fmt.Errorf("convert %s/%s to bson: %w", collection, id, err)
	}
	d = append(bson.D{{Key: "_id", Value: id}}, withoutID(d)...)

	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	s.hub.Notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	s.hub.Notify(collection)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filter storage.Filter) ([]storage.Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	q := bson.M{}
	for k, v := range filter {
		q[k] = v
	}

	cursor, err := s.db.Collection(collection).Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]storage.Document, 0)
	for cursor.Next(ctx) {
		var raw bson.D
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		id, _ := idOf(raw)
		doc, err := toDocument(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter storage.Filter) (*storage.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, func(ctx context.Context) ([]storage.Document, error) {
		return s.Query(ctx, collection, filter)
	}), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	s.stop()
	s.wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toDocument(id string, raw bson.D) (storage.Document, error) {
	body, err := bson.MarshalExtJSON(withoutID(raw), false, false)
	if err != nil {
		return storage.Document{}, fmt.Errorf("convert %s to json: %w", id, err)
	}
	return storage.Document{ID: id, Data: body}, nil
}

func idOf(d bson.D) (string, bool) {
	for _, e := range d {
		if e.Key == "_id" {
			id, ok := e.Value.(string)
			return id, ok
		}
	}
	return "", false
}

func withoutID(d bson.D) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out
}
