package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/store/memory"
	"github.com/sodmaster111/sodmaster/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(_ *testing.T) job.Store { return memory.New() })
}

func TestCreate_CopiesPayload(t *testing.T) {
	s := memory.New()
	payload := job.Document{"k": "v"}
	if err := s.Create(context.Background(), "j", payload); err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload["k"] = "mutated"

	r, err := s.Get(context.Background(), "j")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Payload["k"] != "v" {
		t.Errorf("caller mutation leaked into store: %v", r.Payload)
	}
}

func TestWithClock(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := created
	s := memory.New(memory.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := s.Create(ctx, "j", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = created.Add(time.Minute)
	if err := s.SetStatus(ctx, "j", job.StatusAccepted, nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	r, _ := s.Get(ctx, "j")
	if !r.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, created)
	}
	if !r.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", r.UpdatedAt, now)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
