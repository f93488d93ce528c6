// Package api is the HTTP surface of sodmaster.
//
// Routes:
//
//	POST /{feature}/run              submit a command, 202 or 200 on replay
//	POST /{feature}/command          alias of run
//	GET  /{feature}/jobs/{job_id}    poll a job
//	GET  /health, HEAD /health       liveness, always healthy
//	GET  /ready                      readiness checks
//	GET  /metrics                    Prometheus exposition
//	GET  /ops/audit                  recent audit history
package api

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/mux"

	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/command"
	"github.com/sodmaster111/sodmaster/health"
	"github.com/sodmaster111/sodmaster/runner"
)

// Readiness reports dependency checks. *health.Monitor satisfies it.
type Readiness interface {
	Report() health.Report
}

// AuditSource exposes recent audit history. *trail.Trail satisfies it.
type AuditSource interface {
	History() []audit.Event
	CUnits() []audit.CUnit
}

// Feature is one mounted command surface.
type Feature struct {
	Name     string
	Runner   *runner.Runner
	Commands *command.Registry
	// Secret, when set, requires an HMAC-SHA256 signature of the request
	// body in the SignatureHeader header.
	Secret string
}

// API routes requests to features and operational endpoints.
type API struct {
	mu       sync.RWMutex
	features map[string]Feature

	readiness Readiness
	audit     AuditSource
	metrics   http.Handler
	logger    *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithFeature mounts f under /{f.Name}.
func WithFeature(f Feature) Option {
	return func(a *API) { a.features[f.Name] = f }
}

// WithReadiness sets the source of /ready.
func WithReadiness(r Readiness) Option {
	return func(a *API) { a.readiness = r }
}

// WithAudit sets the source of /ops/audit.
func WithAudit(s AuditSource) Option {
	return func(a *API) { a.audit = s }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New returns an API.
func New(opts ...Option) *API {
	a := &API{features: make(map[string]Feature), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mount adds or replaces a feature after construction.
func (a *API) Mount(f Feature) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.features[f.Name] = f
}

// Features returns the mounted feature names, sorted.
func (a *API) Features() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.features))
	for name := range a.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *API) feature(name string) (Feature, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.features[name]
	return f, ok
}

// Handler returns the assembled router.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, a.recoverer, a.logRequests)

	r.HandleFunc("/health", a.health).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ready", a.ready).Methods(http.MethodGet)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/ops/audit", a.auditHistory).Methods(http.MethodGet)

	r.HandleFunc("/{feature}/run", a.run).Methods(http.MethodPost)
	r.HandleFunc("/{feature}/command", a.run).Methods(http.MethodPost)
	r.HandleFunc("/{feature}/jobs/{job_id}", a.getJob).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}
