package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/health"
)

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

type readyResponse struct {
	Status string                  `json:"status"`
	Checks map[string]health.Check `json:"checks"`
}

func (a *API) ready(w http.ResponseWriter, _ *http.Request) {
	if a.readiness == nil {
		writeJSON(w, http.StatusOK, readyResponse{Status: "ready", Checks: map[string]health.Check{}})
		return
	}
	rep := a.readiness.Report()
	if !rep.Ready {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "not_ready", Checks: rep.Checks})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready", Checks: rep.Checks})
}

type auditResponse struct {
	Events []audit.Event `json:"events"`
	CUnits []audit.CUnit `json:"c_units"`
}

func (a *API) auditHistory(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeJSON(w, http.StatusOK, auditResponse{Events: []audit.Event{}, CUnits: []audit.CUnit{}})
		return
	}

	events := a.audit.History()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}
	writeJSON(w, http.StatusOK, auditResponse{Events: events, CUnits: a.audit.CUnits()})
}
