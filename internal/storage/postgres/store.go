// Package postgres stores documents as JSONB. Writes are announced with
// NOTIFY so subscriptions in every process connected to the same database
// see changes made by the others.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledgerly/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel carrying the changed collection name.
const Channel = "docstore_changes"

type Store struct {
	pool *pgxpool.Pool
	hub  *storage.Hub

	stop context.CancelFunc
	wg   sync.WaitGroup
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	s := &Store{pool: pool, hub: storage.NewHub(), stop: stop}
	s.wg.Add(1)
	go s.listen(listenCtx)

	slog.InfoContext(ctx, "Postgres document store ready")
	return s, nil
}

// listen forwards NOTIFY payloads to the hub, reconnecting with backoff.
func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()
	attempt := 0
	for ctx.Err() == nil {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		attempt++
		delay := backoff(attempt)
		slog.Warn("Postgres listener disconnected", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.Notify(n.Payload)
	}
}

func backoff(attempt int) time.Duration {
	d := time.Second << min(attempt-1, 5)
	return min(d, 30*time.Second)
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return storage.Document{ID: id, Data: body}, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc any) error {
	body, err := storage.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, body, updated_at) VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	s.announce(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	s.announce(ctx, collection)
	return nil
}

// announce wakes local subscribers at once and tells other processes via NOTIFY.
func (s *Store) announce(ctx context.Context, collection string) {
	s.hub.Notify(collection)
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, collection); err != nil {
		slog.WarnContext(ctx, "pg_notify failed", "collection", collection, "error", err)
	}
}

func (s *Store) Query(ctx context.Context, collection string, filter storage.Filter) ([]storage.Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT id, body FROM documents WHERE collection = $1`)
	args := []any{collection}
	for _, k := range filter.Keys() {
		b.WriteString(` AND body->>$` + strconv.Itoa(len(args)+1) + ` = $` + strconv.Itoa(len(args)+2))
		args = append(args, k, filter[k])
	}
	b.WriteString(` ORDER BY id`)

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]storage.Document, 0)
	for rows.Next() {
		var d storage.Document
		var body []byte
		if err := rows.Scan(&d.ID, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		d.Data = body
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
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
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.stop()
	s.wg.Wait()
	s.pool.Close()
	return nil
}
