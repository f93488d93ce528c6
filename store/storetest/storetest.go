// Package storetest is a conformance suite shared by every job.Store
// backend. Each backend's tests call Run with a factory returning a fresh,
// empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
)

// Factory returns an empty store. The suite closes it when a test ends.
type Factory func(t *testing.T) job.Store

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s job.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetUnknown", testGetUnknown},
		{"SetStatusUnknown", testSetStatusUnknown},
		{"Lifecycle", testLifecycle},
		{"TerminalIsFinal", testTerminalIsFinal},
		{"BackwardRejected", testBackwardRejected},
		{"GetReturnsCopy", testGetReturnsCopy},
		{"PayloadRoundTrip", testPayloadRoundTrip},
		{"ConcurrentCreate", testConcurrentCreate},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testCreateAndGet(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "job-1", job.Document{"command": "ping"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.ID != "job-1" {
		t.Errorf("ID = %q, want job-1", r.ID)
	}
	if r.Status != job.StatusPending {
		t.Errorf("Status = %q, want pending", r.Status)
	}
	if r.Result != nil {
		t.Errorf("Result = %v, want nil", r.Result)
	}
	if r.Payload["command"] != "ping" {
		t.Errorf("Payload = %v", r.Payload)
	}
}

func testCreateDuplicate(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "dup", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "dup", job.Document{"x": "y"}); !errors.Is(err, sodmaster.ErrJobAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrJobAlreadyExists", err)
	}
}

func testGetUnknown(t *testing.T, s job.Store) {
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, sodmaster.ErrJobNotFound) {
		t.Fatalf("Get err = %v, want ErrJobNotFound", err)
	}
}

func testSetStatusUnknown(t *testing.T, s job.Store) {
	ctx := context.Background()
	err := s.SetStatus(ctx, "ghost", job.StatusDone, job.Document{"x": "y"})
	if !errors.Is(err, sodmaster.ErrJobNotFound) {
		t.Fatalf("SetStatus err = %v, want ErrJobNotFound", err)
	}
	if _, err := s.Get(ctx, "ghost"); !errors.Is(err, sodmaster.ErrJobNotFound) {
		t.Fatalf("SetStatus on unknown id created a record: %v", err)
	}
}

func testLifecycle(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "life", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, st := range []job.Status{job.StatusAccepted, job.StatusRunning} {
		if err := s.SetStatus(ctx, "life", st, nil); err != nil {
			t.Fatalf("SetStatus(%s): %v", st, err)
		}
	}
	if err := s.SetStatus(ctx, "life", job.StatusDone, job.Document{"status": "pong"}); err != nil {
		t.Fatalf("SetStatus(done): %v", err)
	}
	r, err := s.Get(ctx, "life")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Status != job.StatusDone || r.Result["status"] != "pong" {
		t.Errorf("got %s %v, want done {status: pong}", r.Status, r.Result)
	}
}

func testTerminalIsFinal(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "term", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetStatus(ctx, "term", job.StatusFailed, job.Document{"error": "boom"}); err != nil {
		t.Fatalf("SetStatus(failed): %v", err)
	}
	for _, st := range []job.Status{job.StatusDone, job.StatusRunning, job.StatusFailed} {
		if err := s.SetStatus(ctx, "term", st, nil); !errors.Is(err, sodmaster.ErrInvalidTransition) {
			t.Errorf("SetStatus(%s) after failed err = %v, want ErrInvalidTransition", st, err)
		}
	}
	r, err := s.Get(ctx, "term")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Status != job.StatusFailed || r.Result["error"] != "boom" {
		t.Errorf("terminal record changed: %s %v", r.Status, r.Result)
	}
}

func testBackwardRejected(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "back", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetStatus(ctx, "back", job.StatusRunning, nil); err != nil {
		t.Fatalf("SetStatus(running): %v", err)
	}
	if err := s.SetStatus(ctx, "back", job.StatusAccepted, nil); !errors.Is(err, sodmaster.ErrInvalidTransition) {
		t.Fatalf("backward SetStatus err = %v, want ErrInvalidTransition", err)
	}
}

func testGetReturnsCopy(t *testing.T, s job.Store) {
	ctx := context.Background()
	if err := s.Create(ctx, "copy", job.Document{"k": "v"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r, err := s.Get(ctx, "copy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.Payload["k"] = "mutated"
	r.Status = job.StatusDone

	again, err := s.Get(ctx, "copy")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Payload["k"] != "v" || again.Status != job.StatusPending {
		t.Errorf("store state changed through returned copy: %+v", again)
	}
}

func testPayloadRoundTrip(t *testing.T, s job.Store) {
	ctx := context.Background()
	payload := job.Document{
		"command": "ping",
		"payload": map[string]any{"value": 42, "tags": []any{"a", "b"}},
		"flag":    true,
		"none":    nil,
	}
	if err := s.Create(ctx, "rt", payload); err != nil {
		t.Fatalf("Create: %v", err)
	}
	r, err := s.Get(ctx, "rt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	inner, ok := asMap(r.Payload["payload"])
	if !ok {
		t.Fatalf("nested payload type %T", r.Payload["payload"])
	}
	if fmt.Sprint(inner["value"]) != "42" {
		t.Errorf("value = %v, want 42", inner["value"])
	}
	if r.Payload["flag"] != true {
		t.Errorf("flag = %v, want true", r.Payload["flag"])
	}
	if v, ok := r.Payload["none"]; !ok || v != nil {
		t.Errorf("none = %v (present %v), want nil", v, ok)
	}
}

func testConcurrentCreate(t *testing.T, s job.Store) {
	ctx := context.Background()
	const n = 16

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Create(ctx, "race", nil)
			switch {
			case err == nil:
				winners.Add(1)
			case !errors.Is(err, sodmaster.ErrJobAlreadyExists):
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := winners.Load(); got != 1 {
		t.Fatalf("%d creates succeeded, want exactly 1", got)
	}
}

func testPing(t *testing.T, s job.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case job.Document:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}
