package runner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/alert"
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/backoff"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/runner"
	"github.com/sodmaster111/sodmaster/store/memory"
)

// inline runs scheduled tasks before Go returns.
type inline struct{}

func (inline) Go(ctx context.Context, task func(context.Context)) bool {
	task(ctx)
	return true
}

// refusing rejects every task, like a stopped pool.
type refusing struct{}

func (refusing) Go(context.Context, func(context.Context)) bool { return false }

type alerts struct {
	mu   sync.Mutex
	sent []sentAlert
}

type sentAlert struct {
	event   string
	payload map[string]any
}

func (a *alerts) sender() alert.Sender {
	return alert.SenderFunc(func(_ context.Context, event string, payload map[string]any) bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.sent = append(a.sent, sentAlert{event, payload})
		return true
	})
}

func (a *alerts) named(event string) []sentAlert {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []sentAlert
	for _, s := range a.sent {
		if s.event == event {
			out = append(out, s)
		}
	}
	return out
}

type events struct {
	mu    sync.Mutex
	names []string
}

func (e *events) emitter() audit.Emitter {
	return audit.EmitterFunc(func(_ context.Context, evt audit.Event) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.names = append(e.names, evt.Name())
		return nil
	})
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func noWait(attempts int) backoff.Policy {
	return backoff.Policy{MaxAttempts: attempts, Strategy: backoff.NewConstant(0)}
}

func newRunner(t *testing.T, store job.Store, opts ...runner.Option) *runner.Runner {
	t.Helper()
	base := []runner.Option{runner.WithScheduler(inline{}), runner.WithPolicy(noWait(3))}
	r, err := runner.New(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := runner.New(nil); !errors.Is(err, sodmaster.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestSubmit_Success(t *testing.T) {
	store := memory.New()
	ev := &events{}
	r := newRunner(t, store, runner.WithEmitter(ev.emitter()))
	ctx := context.Background()

	sub, err := r.Submit(ctx, runner.Request{Payload: job.Document{"value": 42}}, func(_ context.Context, p job.Document) (job.Document, error) {
		return job.Document{"echo": p["value"]}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Status != job.StatusAccepted || sub.Replayed || sub.JobID == "" {
		t.Fatalf("submission = %+v", sub)
	}

	rec, err := r.Get(ctx, sub.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != job.StatusDone || rec.Result["echo"] != 42 {
		t.Errorf("record = %+v", rec)
	}

	want := []string{audit.ActionJobAccepted, audit.ActionJobRunning, audit.ActionJobDone}
	if got := ev.list(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestSubmit_IdempotentReplay(t *testing.T) {
	store := memory.New()
	r := newRunner(t, store)
	ctx := context.Background()

	var calls atomic.Int32
	work := func(context.Context, job.Document) (job.Document, error) {
		calls.Add(1)
		return job.Document{"ok": true}, nil
	}

	first, err := r.Submit(ctx, runner.Request{JobID: "order-1"}, work)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := r.Submit(ctx, runner.Request{JobID: "order-1"}, work)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("work invoked %d times, want 1", calls.Load())
	}
	if first.JobID != "order-1" || second.JobID != "order-1" {
		t.Errorf("job ids = %s, %s", first.JobID, second.JobID)
	}
	if !second.Replayed || second.Status != job.StatusDone || second.Result["ok"] != true {
		t.Errorf("replay = %+v", second)
	}
}

// racingStore reports a missing record on the first Get so Submit proceeds
// to Create and loses the race.
type racingStore struct {
	*memory.Store
	misses atomic.Int32
}

func (s *racingStore) Get(ctx context.Context, id string) (*job.Record, error) {
	if s.misses.Add(1) == 1 {
		return nil, sodmaster.ErrJobNotFound
	}
	return s.Store.Get(ctx, id)
}

func TestSubmit_CreateRaceReplays(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()
	if err := inner.Create(ctx, "k", nil); err != nil {
		t.Fatal(err)
	}

	r := newRunner(t, &racingStore{Store: inner})
	sub, err := r.Submit(ctx, runner.Request{JobID: "k"}, func(context.Context, job.Document) (job.Document, error) {
		t.Error("work must not run on a lost create race")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !sub.Replayed || sub.Status != job.StatusPending {
		t.Errorf("submission = %+v", sub)
	}
}

func TestSubmit_RetryThenSucceed(t *testing.T) {
	r := newRunner(t, memory.New())
	ctx := context.Background()

	var calls atomic.Int32
	sub, err := r.Submit(ctx, runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("flaky")
		}
		return job.Document{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec, _ := r.Get(ctx, sub.JobID)
	if rec.Status != job.StatusDone {
		t.Errorf("status = %s, want done", rec.Status)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
}

func TestSubmit_RetryExhaustion(t *testing.T) {
	al := &alerts{}
	ev := &events{}
	r := newRunner(t, memory.New(), runner.WithAlerter(al.sender()), runner.WithEmitter(ev.emitter()))
	ctx := context.Background()

	var calls atomic.Int32
	sub, err := r.Submit(ctx, runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		n := calls.Add(1)
		return nil, fmt.Errorf("attempt %d failed", n)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec, _ := r.Get(ctx, sub.JobID)
	if rec.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if rec.Result["error"] != "attempt 3 failed" {
		t.Errorf("result = %v", rec.Result)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}

	failed := al.named(runner.AlertJobFailed)
	if len(failed) != 1 || failed[0].payload["job_id"] != sub.JobID || failed[0].payload["error"] != "attempt 3 failed" {
		t.Errorf("job_failed alerts = %+v", failed)
	}

	retries := 0
	for _, name := range ev.list() {
		if name == audit.ActionJobRetrying {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("job.retrying events = %d, want 2", retries)
	}
}

func TestSubmit_PanicIsRetried(t *testing.T) {
	r := newRunner(t, memory.New(), runner.WithPolicy(noWait(2)))
	ctx := context.Background()

	var calls atomic.Int32
	sub, _ := r.Submit(ctx, runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		if calls.Add(1) == 1 {
			panic("kaboom")
		}
		return job.Document{}, nil
	})

	rec, _ := r.Get(ctx, sub.JobID)
	if rec.Status != job.StatusDone || calls.Load() != 2 {
		t.Errorf("status = %s after %d calls", rec.Status, calls.Load())
	}
}

// steppingClock returns start on the first call and start+step afterwards.
func steppingClock(step time.Duration) func() time.Time {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	return func() time.Time {
		if calls.Add(1) == 1 {
			return start
		}
		return start.Add(step)
	}
}

func TestSubmit_SLO(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		slo     time.Duration
		want    int
	}{
		{"breach", 5 * time.Second, 2 * time.Second, 1},
		{"within", time.Second, 2 * time.Second, 0},
		{"equal", 2 * time.Second, 2 * time.Second, 0},
		{"disabled", time.Hour, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			al := &alerts{}
			r := newRunner(t, memory.New(),
				runner.WithSLO(tt.slo),
				runner.WithAlerter(al.sender()),
				runner.WithClock(steppingClock(tt.elapsed)),
			)
			sub, _ := r.Submit(context.Background(), runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
				return job.Document{}, nil
			})

			misses := al.named(runner.AlertSLOMiss)
			if len(misses) != tt.want {
				t.Fatalf("latency_slo_miss alerts = %d, want %d", len(misses), tt.want)
			}
			if tt.want == 1 {
				p := misses[0].payload
				if p["job_id"] != sub.JobID || p["duration_sec"] != tt.elapsed.Seconds() || p["threshold_sec"] != tt.slo.Seconds() {
					t.Errorf("payload = %v", p)
				}
			}
		})
	}
}

func TestSubmit_SLOIndependentOfFailure(t *testing.T) {
	al := &alerts{}
	r := newRunner(t, memory.New(),
		runner.WithPolicy(noWait(1)),
		runner.WithSLO(time.Second),
		runner.WithAlerter(al.sender()),
		runner.WithClock(steppingClock(3*time.Second)),
	)
	_, _ = r.Submit(context.Background(), runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		return nil, errors.New("boom")
	})

	if n := len(al.named(runner.AlertJobFailed)); n != 1 {
		t.Errorf("job_failed alerts = %d, want 1", n)
	}
	if n := len(al.named(runner.AlertSLOMiss)); n != 1 {
		t.Errorf("latency_slo_miss alerts = %d, want 1", n)
	}
}

// failingStore fails SetStatus for one status.
type failingStore struct {
	*memory.Store
	failOn job.Status
}

func (s *failingStore) SetStatus(ctx context.Context, id string, status job.Status, result job.Document) error {
	if status == s.failOn {
		return fmt.Errorf("%w: connection reset", sodmaster.ErrStoreUnavailable)
	}
	return s.Store.SetStatus(ctx, id, status, result)
}

func TestSubmit_StoreFailureIsNotRetried(t *testing.T) {
	store := &failingStore{Store: memory.New(), failOn: job.StatusDone}
	al := &alerts{}
	r := newRunner(t, store, runner.WithAlerter(al.sender()))
	ctx := context.Background()

	var calls atomic.Int32
	sub, err := r.Submit(ctx, runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		calls.Add(1)
		return job.Document{}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("work invoked %d times, want 1", calls.Load())
	}

	rec, _ := r.Get(ctx, sub.JobID)
	if rec.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if msg, _ := rec.Result["error"].(string); msg == "" {
		t.Errorf("missing failure reason: %v", rec.Result)
	}
	if n := len(al.named(runner.AlertJobFailed)); n != 1 {
		t.Errorf("job_failed alerts = %d, want 1", n)
	}
}

func TestSubmit_AcceptFailureReturnsError(t *testing.T) {
	store := &failingStore{Store: memory.New(), failOn: job.StatusAccepted}
	r := newRunner(t, store)

	_, err := r.Submit(context.Background(), runner.Request{JobID: "j"}, func(context.Context, job.Document) (job.Document, error) {
		t.Error("work must not run")
		return nil, nil
	})
	if !errors.Is(err, sodmaster.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	rec, _ := store.Get(context.Background(), "j")
	if rec.Status != job.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
}

func TestSubmit_RefusedBySchedulerFails(t *testing.T) {
	store := memory.New()
	r, err := runner.New(store, runner.WithScheduler(refusing{}))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := r.Submit(context.Background(), runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		t.Error("work must not run")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec, _ := store.Get(context.Background(), sub.JobID)
	if rec.Status != job.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
}

func TestSubmit_DetachedFromRequestContext(t *testing.T) {
	store := memory.New()
	r, err := runner.New(store, runner.WithPolicy(noWait(1)))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	sub, err := r.Submit(ctx, runner.Request{}, func(ctx context.Context, _ job.Document) (job.Document, error) {
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return job.Document{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := store.Get(context.Background(), sub.JobID)
		if rec.Status.IsTerminal() {
			if rec.Status != job.StatusDone {
				t.Fatalf("status = %s, result %v", rec.Status, rec.Result)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish")
}

func TestSubmit_MonotonicStatus(t *testing.T) {
	store := memory.New()
	r, err := runner.New(store, runner.WithPolicy(noWait(3)))
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	sub, err := r.Submit(context.Background(), runner.Request{}, func(context.Context, job.Document) (job.Document, error) {
		time.Sleep(2 * time.Millisecond)
		if calls.Add(1) < 3 {
			return nil, errors.New("again")
		}
		return job.Document{}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rank := map[job.Status]int{job.StatusPending: 0, job.StatusAccepted: 1, job.StatusRunning: 2, job.StatusDone: 3, job.StatusFailed: 3}
	last := -1
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ := store.Get(context.Background(), sub.JobID)
		if rank[rec.Status] < last {
			t.Fatalf("status went backwards to %s", rec.Status)
		}
		last = rank[rec.Status]
		if rec.Status.IsTerminal() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("job did not finish")
}

func TestSubmit_FailureLogNamesExhaustedRetries(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     bool
	}{
		{"single attempt", 1, false},
		{"retried", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			r := newRunner(t, memory.New(), runner.WithPolicy(noWait(tt.attempts)), runner.WithLogger(logger))

			_, err := r.Submit(context.Background(), runner.Request{Command: "x"}, func(context.Context, job.Document) (job.Document, error) {
				return nil, errors.New("boom")
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if got := strings.Contains(buf.String(), sodmaster.ErrMaxRetriesExceeded.Error()); got != tt.want {
				t.Errorf("log mentions exhausted retries = %v, want %v\n%s", got, tt.want, buf.String())
			}
		})
	}
}
