package sodmaster

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds process-wide configuration. Fields carry env tags so the
// whole struct can be filled from the environment with LoadConfig.
type Config struct {
	// HTTPAddr is the listen address of the HTTP surface.
	HTTPAddr string `env:"HTTP_ADDR"`

	// JobStoreURL selects the job store backend by scheme. Empty or
	// unreachable means the in-memory store.
	JobStoreURL string `env:"JOB_STORE_URL"`

	// RedisURL is accepted as an alias when JobStoreURL is empty.
	RedisURL string `env:"REDIS_URL"`

	// RedisNamespace prefixes every key written by the redis store.
	RedisNamespace string `env:"REDIS_NAMESPACE"`

	// SLOJobSec is the job latency objective in seconds. Zero disables it.
	SLOJobSec float64 `env:"SLO_JOB_SEC"`

	// JobMaxAttempts bounds how many times a unit of work is tried.
	JobMaxAttempts int `env:"JOB_MAX_ATTEMPTS"`

	// JobBackoffInitial and JobBackoffMax shape the exponential retry delay.
	JobBackoffInitial time.Duration `env:"JOB_BACKOFF_INITIAL"`
	JobBackoffMax     time.Duration `env:"JOB_BACKOFF_MAX"`

	// JobAttemptTimeout bounds a single attempt. Zero means no limit.
	JobAttemptTimeout time.Duration `env:"JOB_ATTEMPT_TIMEOUT"`

	// WorkerConcurrency is the maximum number of jobs executing at once.
	WorkerConcurrency int `env:"WORKER_CONCURRENCY"`

	// AuditHistoryLimit is the capacity of the in-memory audit history.
	AuditHistoryLimit int `env:"AUDIT_HISTORY_LIMIT"`

	// GuardrailsFile optionally points at a YAML file of extra guardrails.
	GuardrailsFile string `env:"GUARDRAILS_FILE"`

	// Alert destinations.
	TelegramWebhook string        `env:"TELEGRAM_WEBHOOK"`
	SlackWebhook    string        `env:"SLACK_WEBHOOK"`
	AlertWebhooks   string        `env:"ALERT_WEBHOOKS"`
	AlertTimeout    time.Duration `env:"ALERT_TIMEOUT"`
	AlertRatePerSec float64       `env:"ALERT_RATE_PER_SEC"`

	// A2ASecret, when set, requires signed submissions on the a2a feature.
	A2ASecret string `env:"A2A_SECRET"`

	// HealthProbeSpec is the cron spec for periodic store probes.
	HealthProbeSpec string `env:"HEALTH_PROBE_SPEC"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          ":8080",
		RedisNamespace:    "sodmaster",
		SLOJobSec:         60,
		JobMaxAttempts:    3,
		JobBackoffInitial: 200 * time.Millisecond,
		JobBackoffMax:     5 * time.Second,
		WorkerConcurrency: 16,
		AuditHistoryLimit: 100,
		AlertTimeout:      5 * time.Second,
		AlertRatePerSec:   5,
		HealthProbeSpec:   "@every 30s",
		ShutdownTimeout:   30 * time.Second,
		LogLevel:          "info",
	}
}

// LoadConfig starts from DefaultConfig and overrides every field whose
// environment variable is set.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("sodmaster: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	switch {
	case c.SLOJobSec < 0:
		return fmt.Errorf("sodmaster: SLO_JOB_SEC must not be negative, got %v", c.SLOJobSec)
	case c.JobMaxAttempts < 1:
		return fmt.Errorf("sodmaster: JOB_MAX_ATTEMPTS must be at least 1, got %d", c.JobMaxAttempts)
	case c.WorkerConcurrency < 1:
		return fmt.Errorf("sodmaster: WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	case c.AuditHistoryLimit < 1:
		return fmt.Errorf("sodmaster: AUDIT_HISTORY_LIMIT must be at least 1, got %d", c.AuditHistoryLimit)
	}
	return nil
}

// StoreURL returns the job store URL, falling back to RedisURL.
func (c Config) StoreURL() string {
	if c.JobStoreURL != "" {
		return c.JobStoreURL
	}
	return c.RedisURL
}

// SLO returns the latency objective as a duration.
func (c Config) SLO() time.Duration {
	return time.Duration(c.SLOJobSec * float64(time.Second))
}

// Webhooks returns every configured alert destination, in order:
// telegram, slack, then the ALERT_WEBHOOKS list. Blank entries and
// duplicates are dropped.
func (c Config) Webhooks() []string {
	candidates := []string{c.TelegramWebhook, c.SlackWebhook}
	candidates = append(candidates, strings.Split(c.AlertWebhooks, ",")...)

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, raw := range candidates {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
