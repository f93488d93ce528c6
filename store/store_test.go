package store_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/store"
	"github.com/sodmaster111/sodmaster/store/memory"
)

func TestOpen_EmptyURLUsesMemory(t *testing.T) {
	sel := store.Open(context.Background(), "")
	if sel.Backend != store.BackendMemory || sel.Degraded {
		t.Fatalf("got %+v, want non-degraded memory", sel)
	}
	if _, ok := sel.Store.(*memory.Store); !ok {
		t.Fatalf("store type %T, want *memory.Store", sel.Store)
	}
}

func TestOpen_UnreachableRedisDegrades(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sel := store.Open(context.Background(), "redis://:secret@127.0.0.1:1/0",
		store.WithLogger(logger),
		store.WithPingTimeout(2*time.Second),
	)

	if sel.Backend != store.BackendMemory {
		t.Fatalf("Backend = %s, want memory", sel.Backend)
	}
	if !sel.Degraded || sel.Requested != store.BackendRedis {
		t.Fatalf("got %+v, want degraded from redis", sel)
	}
	if sel.Reason == "" {
		t.Error("Reason is empty")
	}
	if err := sel.Store.Ping(context.Background()); err != nil {
		t.Fatalf("fallback store ping: %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "job_store_degraded") {
		t.Errorf("degradation not logged: %s", logged)
	}
	if strings.Contains(logged, "secret") {
		t.Errorf("password leaked into log: %s", logged)
	}
}

func TestOpen_UnknownSchemeDegrades(t *testing.T) {
	sel := store.Open(context.Background(), "mongodb://localhost")
	if !sel.Degraded || sel.Backend != store.BackendMemory {
		t.Fatalf("got %+v, want degraded memory", sel)
	}
}

func TestDial_UnsupportedScheme(t *testing.T) {
	_, backend, err := store.Dial(context.Background(), "ftp://host")
	if !errors.Is(err, sodmaster.ErrUnsupportedBackend) {
		t.Fatalf("err = %v, want ErrUnsupportedBackend", err)
	}
	if backend != "ftp" {
		t.Errorf("backend = %q, want ftp", backend)
	}
}

func TestDial_MemoryScheme(t *testing.T) {
	s, backend, err := store.Dial(context.Background(), "memory://")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if backend != store.BackendMemory {
		t.Errorf("backend = %s, want memory", backend)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("store type %T, want *memory.Store", s)
	}
}
