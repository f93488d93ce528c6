package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
)

// Compile-time interface check.
var _ job.Store = (*Store)(nil)

// maxTxRetries bounds optimistic-lock retries in SetStatus.
const maxTxRetries = 8

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNamespace sets the key prefix.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements job.Store backed by Redis.
type Store struct {
	client    goredis.UniversalClient
	logger    *slog.Logger
	namespace string
	now       func() time.Time
	owned     bool
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		logger:    slog.Default(),
		namespace: DefaultNamespace,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open parses a redis:// or rediss:// URL and returns a store that owns
// its client. Open does not contact the server; call Ping for that.
func Open(url string, opts ...Option) (*Store, error) {
	ropts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sodmaster/redis: parse url: %w", err)
	}
	s := New(goredis.NewClient(ropts), opts...)
	s.owned = true
	return s, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client when the store built it in Open.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Create stores a pending record with SETNX.
func (s *Store) Create(ctx context.Context, id string, payload job.Document) error {
	data, err := encodeRecord(job.NewRecord(id, payload, s.now()))
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.jobKey(id), data, 0).Result()
	if err != nil {
		return unavailable("create job", err)
	}
	if !ok {
		return sodmaster.ErrJobAlreadyExists
	}
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*job.Record, error) {
	return s.get(ctx, s.client, id)
}

// SetStatus reads, validates and rewrites a record inside a WATCH
// transaction, retrying when another writer touched the key first.
func (s *Store) SetStatus(ctx context.Context, id string, status job.Status, result job.Document) error {
	key := s.jobKey(id)

	txf := func(tx *goredis.Tx) error {
		r, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !job.CanTransition(r.Status, status) {
			return sodmaster.ErrInvalidTransition
		}
		r.Status = status
		r.Result = result.Clone()
		r.UpdatedAt = s.now()

		data, err := encodeRecord(r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			s.logger.Debug("redis set_status conflict, retrying",
				slog.String("job_id", id),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if errors.Is(err, sodmaster.ErrJobNotFound) || errors.Is(err, sodmaster.ErrInvalidTransition) ||
			errors.Is(err, sodmaster.ErrStoreUnavailable) {
			return err
		}
		return unavailable("set status", err)
	}
	return fmt.Errorf("sodmaster/redis: set status %s: %w", id, goredis.TxFailedErr)
}

func (s *Store) get(ctx context.Context, c goredis.Cmdable, id string) (*job.Record, error) {
	data, err := c.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, sodmaster.ErrJobNotFound
		}
		return nil, unavailable("get job", err)
	}
	return decodeRecord(data)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("sodmaster/redis: %s: %w: %w", op, sodmaster.ErrStoreUnavailable, err)
}
