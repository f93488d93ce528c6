package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/alert"
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/backoff"
	"github.com/sodmaster111/sodmaster/id"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/middleware"
)

// Work is a unit of work. It receives a copy of the job payload and
// returns the job result.
type Work func(ctx context.Context, payload job.Document) (job.Document, error)

// Request describes one submission.
type Request struct {
	// JobID is the caller-chosen idempotency key. Empty means a fresh id.
	JobID   string
	Command string
	Payload job.Document
}

// Submission is the outcome of Submit.
type Submission struct {
	JobID    string
	Status   job.Status
	Result   job.Document
	Replayed bool
}

// Metrics receives job tallies. *observability.Metrics satisfies it.
type Metrics interface {
	JobTransition(feature, status string)
	JobFinished(feature, status string, d time.Duration)
}

// Alert names raised by the runner.
const (
	AlertJobFailed = "job_failed"
	AlertSLOMiss   = "latency_slo_miss"
)

// Runner owns the lifecycle of the jobs it submits.
type Runner struct {
	store     job.Store
	scheduler audit.Scheduler
	policy    backoff.Policy
	slo       time.Duration
	alerter   alert.Sender
	metrics   Metrics
	emitter   audit.Emitter
	cunit     string
	feature   string
	actor     string
	mw        middleware.Middleware
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Runner writing to store.
func New(store job.Store, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, sodmaster.ErrNoStore
	}
	r := &Runner{
		store:   store,
		policy:  backoff.DefaultPolicy(),
		cunit:   DefaultCUnit,
		feature: DefaultFeature,
		actor:   DefaultActor,
		logger:  slog.Default(),
		now:     time.Now,
	}
	var mws []middleware.Middleware
	for _, opt := range opts {
		opt(r, &mws)
	}
	r.mw = middleware.Chain(mws...)
	return r, nil
}

// Feature returns the feature label of r.
func (r *Runner) Feature() string { return r.feature }

// Store returns the store r writes to.
func (r *Runner) Store() job.Store { return r.store }

// Get returns the current record of a job.
func (r *Runner) Get(ctx context.Context, jobID string) (*job.Record, error) {
	return r.store.Get(ctx, jobID)
}

// Submit starts work for req unless req.JobID names an existing job, in
// which case the existing job is reported and work is not invoked.
func (r *Runner) Submit(ctx context.Context, req Request, work Work) (Submission, error) {
	if req.JobID != "" {
		rec, err := r.store.Get(ctx, req.JobID)
		switch {
		case err == nil:
			return r.replay(ctx, rec), nil
		case !errors.Is(err, sodmaster.ErrJobNotFound):
			return Submission{}, fmt.Errorf("sodmaster/runner: lookup %s: %w", req.JobID, err)
		}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = id.NewJobID()
	}
	payload := req.Payload.Clone()
	if payload == nil {
		payload = job.Document{}
	}

	if err := r.store.Create(ctx, jobID, payload); err != nil {
		if !errors.Is(err, sodmaster.ErrJobAlreadyExists) {
			return Submission{}, fmt.Errorf("sodmaster/runner: create %s: %w", jobID, err)
		}
		// Lost a create race with a concurrent submission of the same key.
		rec, getErr := r.store.Get(ctx, jobID)
		if getErr != nil {
			return Submission{}, fmt.Errorf("sodmaster/runner: lookup %s: %w", jobID, getErr)
		}
		return r.replay(ctx, rec), nil
	}

	if err := r.store.SetStatus(ctx, jobID, job.StatusAccepted, nil); err != nil {
		r.abandon(ctx, jobID, req, "accepted", err)
		return Submission{}, fmt.Errorf("sodmaster/runner: accept %s: %w", jobID, err)
	}

	r.logger.InfoContext(ctx, "job accepted",
		slog.String("event", "job_accepted"),
		slog.String("job_id", jobID),
		slog.String("feature", r.feature),
		slog.String("command", req.Command),
	)
	r.tally(job.StatusAccepted)
	r.emit(ctx, audit.ActionJobAccepted, jobID, req, audit.SeverityInfo, nil)

	bg := context.WithoutCancel(ctx)
	task := func(ctx context.Context) { r.execute(ctx, jobID, req.Command, payload, work) }
	switch {
	case r.scheduler == nil:
		go task(bg)
	case !r.scheduler.Go(bg, task):
		r.fail(bg, jobID, req.Command, "scheduler refused job: shutting down", 0, false)
	}

	return Submission{JobID: jobID, Status: job.StatusAccepted}, nil
}

func (r *Runner) replay(ctx context.Context, rec *job.Record) Submission {
	r.logger.InfoContext(ctx, "job replayed",
		slog.String("event", "job_replayed"),
		slog.String("job_id", rec.ID),
		slog.String("status", string(rec.Status)),
	)
	return Submission{
		JobID:    rec.ID,
		Status:   rec.Status,
		Result:   rec.Result,
		Replayed: true,
	}
}

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

func (r *Runner) execute(ctx context.Context, jobID, command string, payload job.Document, work Work) {
	req := Request{JobID: jobID, Command: command}

	if err := r.store.SetStatus(ctx, jobID, job.StatusRunning, nil); err != nil {
		r.abandon(ctx, jobID, req, "running", err)
		return
	}
	start := r.now()

	r.logger.InfoContext(ctx, "job running",
		slog.String("event", "job_running"),
		slog.String("job_id", jobID),
		slog.String("feature", r.feature),
	)
	r.tally(job.StatusRunning)
	r.emit(ctx, audit.ActionJobRunning, jobID, req, audit.SeverityInfo, nil)

	result, attempts, err := r.attempt(ctx, jobID, command, payload, work)
	elapsed := r.now().Sub(start)

	if err != nil {
		if !r.fail(ctx, jobID, command, err.Error(), attempts, true) {
			return
		}
		if attempts > 1 {
			err = fmt.Errorf("%w: %w", sodmaster.ErrMaxRetriesExceeded, err)
		}
		r.logger.WarnContext(ctx, "job failed",
			slog.String("event", "job_failed"),
			slog.String("job_id", jobID),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		r.finished(job.StatusFailed, elapsed)
	} else {
		if storeErr := r.store.SetStatus(ctx, jobID, job.StatusDone, result); storeErr != nil {
			r.abandon(ctx, jobID, req, "done", storeErr)
			return
		}
		r.logger.InfoContext(ctx, "job done",
			slog.String("event", "job_done"),
			slog.String("job_id", jobID),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", elapsed),
		)
		r.tally(job.StatusDone)
		r.finished(job.StatusDone, elapsed)
		r.emit(ctx, audit.ActionJobDone, jobID, req, audit.SeverityInfo, job.Document{
			"attempts":     attempts,
			"duration_sec": elapsed.Seconds(),
		})
	}

	r.observeSLO(ctx, jobID, elapsed)
}

// attempt runs work under the retry policy and returns the result of the
// last attempt and how many attempts ran.
func (r *Runner) attempt(ctx context.Context, jobID, command string, payload job.Document, work Work) (job.Document, int, error) {
	maxAttempts := r.policy.Attempts()
	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		a := middleware.Attempt{
			JobID:       jobID,
			Feature:     r.feature,
			Command:     command,
			Number:      n,
			MaxAttempts: maxAttempts,
		}
		var result job.Document
		err := r.mw(ctx, a, func(ctx context.Context) error {
			res, err := safeCall(ctx, work, payload.Clone())
			result = res
			return err
		})
		if err == nil {
			return result, n, nil
		}
		lastErr = err

		if !r.policy.ShouldRetry(n) {
			return nil, n, lastErr
		}
		delay := r.policy.Delay(n)
		r.logger.WarnContext(ctx, "job attempt failed, retrying",
			slog.String("event", "job_retry"),
			slog.String("job_id", jobID),
			slog.Int("attempt", n),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		r.tally("retrying")
		r.emit(ctx, audit.ActionJobRetrying, jobID, Request{JobID: jobID, Command: command}, audit.SeverityWarn, job.Document{
			"attempt": n,
			"error":   err.Error(),
		})
		if waitErr := r.policy.Wait(ctx, n); waitErr != nil {
			return nil, n, fmt.Errorf("%w (retry wait: %v)", lastErr, waitErr)
		}
	}
	return nil, maxAttempts, lastErr
}

// safeCall runs work and turns a panic into an error.
func safeCall(ctx context.Context, work Work, payload job.Document) (res job.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return work(ctx, payload)
}

// fail writes the terminal failed status with reason and raises the
// failure event and alert. It reports whether the write succeeded.
func (r *Runner) fail(ctx context.Context, jobID, command, reason string, attempts int, logStore bool) bool {
	if err := r.store.SetStatus(ctx, jobID, job.StatusFailed, job.Document{"error": reason}); err != nil {
		if logStore {
			r.abandon(ctx, jobID, Request{JobID: jobID, Command: command}, "failed", err)
		} else {
			r.logger.ErrorContext(ctx, "job could not be marked failed",
				slog.String("event", "job_store_unavailable"),
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	r.tally(job.StatusFailed)
	payload := job.Document{"error": reason}
	if attempts > 0 {
		payload["attempts"] = attempts
	}
	r.emit(ctx, audit.ActionJobFailed, jobID, Request{JobID: jobID, Command: command}, audit.SeverityWarn, payload)
	r.alert(ctx, AlertJobFailed, map[string]any{"job_id": jobID, "error": reason})
	return true
}

// abandon handles a store failure while moving jobID to stage. The job is
// not retried; the runner tries once to leave it failed.
func (r *Runner) abandon(ctx context.Context, jobID string, req Request, stage string, cause error) {
	r.logger.ErrorContext(ctx, "job store unavailable",
		slog.String("event", "job_store_unavailable"),
		slog.String("job_id", jobID),
		slog.String("stage", stage),
		slog.String("error", cause.Error()),
	)
	if stage == string(job.StatusFailed) {
		return
	}
	reason := fmt.Sprintf("job store unavailable while marking %s: %v", stage, cause)
	if err := r.store.SetStatus(ctx, jobID, job.StatusFailed, job.Document{"error": reason}); err != nil {
		r.logger.ErrorContext(ctx, "job could not be marked failed",
			slog.String("event", "job_store_unavailable"),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	} else {
		r.tally(job.StatusFailed)
	}
	r.emit(ctx, audit.ActionJobFailed, jobID, req, audit.SeverityHigh, job.Document{"error": reason})
	r.alert(ctx, AlertJobFailed, map[string]any{"job_id": jobID, "error": reason})
}

func (r *Runner) observeSLO(ctx context.Context, jobID string, elapsed time.Duration) {
	if r.slo <= 0 || elapsed <= r.slo {
		return
	}
	r.logger.WarnContext(ctx, "job exceeded latency objective",
		slog.String("event", "latency_slo_miss"),
		slog.String("job_id", jobID),
		slog.Float64("duration_sec", elapsed.Seconds()),
		slog.Float64("threshold_sec", r.slo.Seconds()),
	)
	r.alert(ctx, AlertSLOMiss, map[string]any{
		"job_id":        jobID,
		"duration_sec":  elapsed.Seconds(),
		"threshold_sec": r.slo.Seconds(),
	})
}

// ──────────────────────────────────────────────────
// Side effects
// ──────────────────────────────────────────────────

func (r *Runner) emit(ctx context.Context, name, jobID string, req Request, sev audit.Severity, payload job.Document) {
	if r.emitter == nil {
		return
	}
	doc := job.Document{"job_id": jobID, "feature": r.feature}
	if req.Command != "" {
		doc["command"] = req.Command
	}
	evt := audit.NewEvent(name, r.cunit,
		audit.WithActor(r.actor),
		audit.WithSubject(jobID),
		audit.WithSeverity(sev),
		audit.WithPayload(doc.Merge(payload)),
		audit.WithTags(r.feature),
	)
	if err := r.emitter.Emit(ctx, evt); err != nil {
		r.logger.ErrorContext(ctx, "audit emit failed",
			slog.String("event", name),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Runner) alert(ctx context.Context, name string, payload map[string]any) {
	if r.alerter == nil {
		return
	}
	r.alerter.Send(ctx, name, payload)
}

func (r *Runner) tally(status job.Status) {
	if r.metrics != nil {
		r.metrics.JobTransition(r.feature, string(status))
	}
}

func (r *Runner) finished(status job.Status, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.JobFinished(r.feature, string(status), elapsed)
	}
}
