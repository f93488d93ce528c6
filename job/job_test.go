package job_test

import (
	"testing"
	"time"

	"github.com/sodmaster111/sodmaster/job"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to job.Status
		want     bool
	}{
		{job.StatusPending, job.StatusAccepted, true},
		{job.StatusPending, job.StatusRunning, true},
		{job.StatusAccepted, job.StatusRunning, true},
		{job.StatusRunning, job.StatusDone, true},
		{job.StatusRunning, job.StatusFailed, true},
		{job.StatusAccepted, job.StatusFailed, true},
		{job.StatusRunning, job.StatusRunning, false},
		{job.StatusRunning, job.StatusAccepted, false},
		{job.StatusDone, job.StatusFailed, false},
		{job.StatusFailed, job.StatusDone, false},
		{job.StatusDone, job.StatusRunning, false},
		{job.StatusPending, job.Status("bogus"), false},
	}
	for _, tt := range tests {
		if got := job.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range []job.Status{job.StatusPending, job.StatusAccepted, job.StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	for _, s := range []job.Status{job.StatusDone, job.StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
}

func TestDocument_CloneIsDeep(t *testing.T) {
	orig := job.Document{
		"name":   "x",
		"nested": map[string]any{"k": "v"},
		"list":   []any{map[string]any{"a": 1}},
	}
	cp := orig.Clone()

	cp["name"] = "y"
	cp["nested"].(job.Document)["k"] = "changed"
	cp["list"].([]any)[0].(job.Document)["a"] = 2

	if orig["name"] != "x" {
		t.Error("top-level key leaked")
	}
	if orig["nested"].(map[string]any)["k"] != "v" {
		t.Error("nested map leaked")
	}
	if orig["list"].([]any)[0].(map[string]any)["a"] != 1 {
		t.Error("nested slice leaked")
	}

	var nilDoc job.Document
	if nilDoc.Clone() != nil {
		t.Error("nil document should clone to nil")
	}
}

func TestDocument_Merge(t *testing.T) {
	base := job.Document{"a": 1, "event": "original"}
	merged := base.Merge(job.Document{"event": "job.failed", "b": 2})

	if merged["event"] != "job.failed" || merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("unexpected merge result: %v", merged)
	}
	if base["event"] != "original" {
		t.Error("merge mutated receiver")
	}

	var empty job.Document
	if got := empty.Merge(job.Document{"x": true}); got["x"] != true {
		t.Errorf("merge into nil document: %v", got)
	}
}

func TestRecord_Clone(t *testing.T) {
	r := job.NewRecord("j1", job.Document{"v": 1}, time.Unix(0, 0))
	if r.Status != job.StatusPending || r.Result != nil {
		t.Fatalf("unexpected new record: %+v", r)
	}
	cp := r.Clone()
	cp.Payload["v"] = 2
	cp.Status = job.StatusDone
	if r.Payload["v"] != 1 || r.Status != job.StatusPending {
		t.Error("clone shares state with original")
	}

	var nilRec *job.Record
	if nilRec.Clone() != nil {
		t.Error("nil record should clone to nil")
	}
}
