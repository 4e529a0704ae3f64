// Package httpapi serves the read-only run index API: recent runs, their
// per-walker stats, and live server status.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"walkabout.dev/internal/persistence/indexdb"
	"walkabout.dev/internal/protocol"
)

// Status is the live server state reported by GET /api/v1/status.
type Status struct {
	Scenario   string             `json:"scenario"`
	RunID      string             `json:"run_id"`
	State      string             `json:"state"`
	Tick       uint64             `json:"tick"`
	Ticks      int                `json:"ticks"`
	TickRateHz int                `json:"tick_rate_hz"`
	Observers  int                `json:"observers"`
	Index      indexdb.QueueStats `json:"index"`
}

type Server struct {
	idx    *indexdb.SQLiteIndex
	status func() Status
	log    *log.Logger
}

// NewServer wires the API over a run index. status supplies the live
// server state and must be safe for concurrent calls.
func NewServer(idx *indexdb.SQLiteIndex, status func() Status, logger *log.Logger) *Server {
	return &Server{idx: idx, status: status, log: logger}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Get("/runs/{id}/stats", s.getRunStats)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.log != nil {
			s.log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
		}
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.status())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.indexReady(w) {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, protocol.ErrBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.idx.ListRuns(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	if runs == nil {
		runs = []indexdb.RunSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) getRunStats(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	walkers, err := s.idx.RunStats(run.RunID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	if walkers == nil {
		walkers = []indexdb.WalkerRow{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"run": run, "walkers": walkers})
}

// indexReady rejects index-backed requests when the server runs with the
// index disabled.
func (s *Server) indexReady(w http.ResponseWriter) bool {
	if s.idx == nil {
		respondError(w, http.StatusServiceUnavailable, protocol.ErrIndexDisabled, "run index disabled")
		return false
	}
	return true
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (indexdb.RunSummary, bool) {
	if !s.indexReady(w) {
		return indexdb.RunSummary{}, false
	}
	id := chi.URLParam(r, "id")
	run, err := s.idx.GetRun(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, protocol.ErrRunNotFound, "run not indexed: "+id)
		} else {
			respondError(w, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		}
		return indexdb.RunSummary{}, false
	}
	return run, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"code": code, "error": message})
}
