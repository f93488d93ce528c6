package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/store/memory"
	"github.com/sodmaster111/sodmaster/store/postgres"
	redisstore "github.com/sodmaster111/sodmaster/store/redis"
)

// Backend names a job store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Selection is the outcome of Open: the store in use, which backend it is
// and, when the configured backend could not be used, why.
type Selection struct {
	Store     job.Store
	Backend   Backend
	Requested Backend
	Degraded  bool
	Reason    string
}

type options struct {
	logger         *slog.Logger
	redisNamespace string
	pingTimeout    time.Duration
	migrate        bool
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used for selection messages and handed to
// the chosen backend.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRedisNamespace sets the key prefix of the redis backend.
func WithRedisNamespace(ns string) Option {
	return func(o *options) { o.redisNamespace = ns }
}

// WithPingTimeout bounds the startup probe.
func WithPingTimeout(d time.Duration) Option {
	return func(o *options) { o.pingTimeout = d }
}

// WithMigrate controls whether SQL backends run their migrations on open.
// Enabled by default.
func WithMigrate(enabled bool) Option {
	return func(o *options) { o.migrate = enabled }
}

func newOptions(opts []Option) options {
	o := options{
		logger:         slog.Default(),
		redisNamespace: redisstore.DefaultNamespace,
		pingTimeout:    3 * time.Second,
		migrate:        true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Open returns a usable store for rawURL. It never fails: any problem with
// the configured backend degrades to memory and is recorded in the result.
func Open(ctx context.Context, rawURL string, opts ...Option) Selection {
	o := newOptions(opts)

	if strings.TrimSpace(rawURL) == "" {
		o.logger.Info("job store selected", slog.String("backend", string(BackendMemory)))
		return Selection{Store: memory.New(), Backend: BackendMemory, Requested: BackendMemory}
	}

	s, backend, err := Dial(ctx, rawURL, opts...)
	if err != nil {
		o.logger.Warn("job store degraded to memory",
			slog.String("event", "job_store_degraded"),
			slog.String("requested", string(backend)),
			slog.String("url", redact(rawURL)),
			slog.String("error", err.Error()),
		)
		return Selection{
			Store:     memory.New(),
			Backend:   BackendMemory,
			Requested: backend,
			Degraded:  true,
			Reason:    err.Error(),
		}
	}

	o.logger.Info("job store selected",
		slog.String("backend", string(backend)),
		slog.String("url", redact(rawURL)),
	)
	return Selection{Store: s, Backend: backend, Requested: backend}
}

// Dial opens the backend named by rawURL's scheme and pings it. Unlike
// Open it does not fall back; the returned Backend is the requested one
// even on error.
func Dial(ctx context.Context, rawURL string, opts ...Option) (job.Store, Backend, error) {
	o := newOptions(opts)

	backend, err := backendFor(rawURL)
	if err != nil {
		return nil, backend, err
	}

	var s job.Store
	switch backend {
	case BackendRedis:
		rs, openErr := redisstore.Open(rawURL,
			redisstore.WithLogger(o.logger),
			redisstore.WithNamespace(o.redisNamespace),
		)
		if openErr != nil {
			return nil, backend, openErr
		}
		s = rs
	case BackendPostgres:
		ps, openErr := postgres.New(ctx, rawURL, postgres.WithLogger(o.logger))
		if openErr != nil {
			return nil, backend, openErr
		}
		s = ps
	case BackendMemory:
		return memory.New(), backend, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = s.Close()
		return nil, backend, err
	}

	if ps, ok := s.(*postgres.Store); ok && o.migrate {
		if err := ps.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, backend, err
		}
	}
	return s, backend, nil
}

func backendFor(rawURL string) (Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("sodmaster/store: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		return BackendRedis, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	default:
		return Backend(u.Scheme), fmt.Errorf("%w: %q", sodmaster.ErrUnsupportedBackend, u.Scheme)
	}
}

// redact hides the password of a connection URL for logging.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
