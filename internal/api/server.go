// Package api exposes the scheduling facade over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"deferq/internal/domain"
	"deferq/internal/scheduler"
)

type Options struct {
	AuthToken string // empty disables the capability check
	Debug     bool   // mounts pprof
}

type Server struct {
	svc *scheduler.Service
}

func NewServer(svc *scheduler.Service, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{svc: svc}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)

	r.Route("/api/tasks", func(r chi.Router) {
		if opts.AuthToken != "" {
			r.Use(requireToken(opts.AuthToken))
		}
		r.Post("/", s.schedule)
		r.Get("/", s.list)
		r.Get("/pending", s.pending)
		r.Get("/completed", s.completed)
		r.Post("/clear-completed", s.clearCompleted)
		r.Get("/{id}", s.get)
		r.Post("/{id}/cancel", s.cancel)
		r.Delete("/{id}", s.delete)
	})

	if opts.Debug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

// requireToken is the capability check: callers without the operator token
// cannot touch the task surface.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", 401)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	counts := map[domain.Status]int{}
	for _, t := range s.svc.List() {
		counts[t.Status]++
	}
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "deferq_up 1\n")
	for _, st := range []domain.Status{
		domain.StatusPending, domain.StatusExecuting, domain.StatusCompleted,
		domain.StatusFailed, domain.StatusCancelled,
	} {
		fmt.Fprintf(w, "deferq_tasks{status=%q} %d\n", strings.ToLower(string(st)), counts[st])
	}
}

type scheduleReq struct {
	Type          string          `json:"type"`
	TargetType    string          `json:"target_type"`
	TargetIDs     []string        `json:"target_ids"`
	TargetCount   int             `json:"target_count"`
	TargetDetails json.RawMessage `json:"target_details"`
	ScheduledFor  time.Time       `json:"scheduled_for"`
	Parameters    json.RawMessage `json:"parameters"`
	CreatedBy     string          `json:"created_by"`
	CreatedByName string          `json:"created_by_name"`
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	t, err := s.svc.Schedule(r.Context(), domain.TaskInput{
		Type:          domain.TaskType(req.Type),
		TargetType:    req.TargetType,
		TargetIDs:     req.TargetIDs,
		TargetCount:   req.TargetCount,
		TargetDetails: req.TargetDetails,
		ScheduledFor:  req.ScheduledFor,
		Parameters:    req.Parameters,
		CreatedBy:     req.CreatedBy,
		CreatedByName: req.CreatedByName,
	})
	if err != nil {
		var ve *scheduler.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, ve.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if typ := r.URL.Query().Get("type"); typ != "" {
		writeJSON(w, 200, s.svc.QueryByType(domain.TaskType(typ)))
		return
	}
	if st := r.URL.Query().Get("status"); st != "" {
		writeJSON(w, 200, s.svc.QueryByStatus(domain.Status(st)))
		return
	}
	writeJSON(w, 200, s.svc.List())
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.svc.PendingTasks())
}

func (s *Server) completed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.svc.CompletedTasks())
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	t, ok := s.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", 404)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	// idempotent: cancelling a finished or unknown task is a no-op
	s.svc.Cancel(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Delete(r.Context(), chi.URLParam(r, "id")) {
		http.Error(w, "not found", 404)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearCompleted(w http.ResponseWriter, r *http.Request) {
	n := s.svc.ClearCompleted(r.Context())
	writeJSON(w, 200, map[string]int{"removed": n})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
