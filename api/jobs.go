package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/job"
	"github.com/sodmaster111/sodmaster/runner"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-A2A-Signature"

const maxBodyBytes = 1 << 20

// RunRequest is the body of POST /{feature}/run.
type RunRequest struct {
	Command        string       `json:"command"`
	Payload        job.Document `json:"payload,omitempty"`
	JobID          string       `json:"job_id,omitempty"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	Source         string       `json:"source,omitempty"`
	Target         string       `json:"target,omitempty"`
}

// AcceptedResponse is returned for a fresh submission.
type AcceptedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// ReplayResponse is returned when the job id already exists.
type ReplayResponse struct {
	JobID  string       `json:"job_id"`
	Status job.Status   `json:"status"`
	Result job.Document `json:"result,omitempty"`
}

// JobResponse is the body of GET /{feature}/jobs/{job_id}.
type JobResponse struct {
	JobID  string       `json:"job_id"`
	Status job.Status   `json:"status"`
	Result job.Document `json:"result"`
}

func (a *API) run(w http.ResponseWriter, r *http.Request) {
	f, ok := a.feature(mux.Vars(r)["feature"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown feature")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if f.Secret != "" {
		if msg, ok := verifySignature(f.Secret, r.Header.Get(SignatureHeader), body); !ok {
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
	}

	var req RunRequest
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = req.IdempotencyKey
	}
	envelope := job.Document{"command": req.Command, "payload": req.Payload.Clone()}
	if req.Source != "" {
		envelope["source"] = req.Source
	}
	if req.Target != "" {
		envelope["target"] = req.Target
	}

	work := commandWork(f, req.Command)
	sub, err := f.Runner.Submit(r.Context(), runner.Request{JobID: jobID, Command: req.Command, Payload: envelope}, work)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "job submission failed",
			slog.String("feature", f.Name),
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "Job store unavailable")
		return
	}

	if sub.Replayed {
		writeJSON(w, http.StatusOK, ReplayResponse{JobID: sub.JobID, Status: sub.Status, Result: sub.Result})
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: string(sub.Status), JobID: sub.JobID})
}

// commandWork resolves the command when the job runs and feeds it the
// inner payload of the stored envelope.
func commandWork(f Feature, name string) runner.Work {
	inner := f.Commands.Work(name)
	return func(ctx context.Context, envelope job.Document) (job.Document, error) {
		var args job.Document
		switch p := envelope["payload"].(type) {
		case job.Document:
			args = p
		case map[string]any:
			args = job.Document(p)
		}
		if args == nil {
			args = job.Document{}
		}
		return inner(ctx, args)
	}
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, ok := a.feature(vars["feature"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown feature")
		return
	}

	rec, err := f.Runner.Get(r.Context(), vars["job_id"])
	if err != nil {
		if errors.Is(err, sodmaster.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, statusFor(err), "Job store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{JobID: rec.ID, Status: rec.Status, Result: rec.Result})
}

func verifySignature(secret, signature string, body []byte) (string, bool) {
	if signature == "" {
		return "Missing A2A signature", false
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(secret, body))) {
		return "Invalid A2A signature", false
	}
	return "", true
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func statusFor(err error) int {
	if errors.Is(err, sodmaster.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
