// Package api serves encounter statistics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raidframer/raidlog-go/pkg/raidlog"
)

// Engine is the query surface the server reads from. *raidlog.Engine
// satisfies it.
type Engine interface {
	CurrentSnapshot() (raidlog.EncounterStats, bool)
	Snapshot(id string) (raidlog.EncounterStats, bool)
	History() []raidlog.EncounterStats
	SetFilterRules(rules []raidlog.FilterRule) error
	FilterRules() []raidlog.FilterRule
	Diagnostics() raidlog.Diagnostics
}

// EncounterSummary is one entry of the encounter list.
type EncounterSummary struct {
	ID           string                 `json:"id"`
	State        raidlog.EncounterState `json:"state"`
	Start        time.Time              `json:"start"`
	End          time.Time              `json:"end"`
	DurationMS   int64                  `json:"duration_ms"`
	TotalDamage  int64                  `json:"total_damage"`
	TotalHealing int64                  `json:"total_healing"`
	EventCount   int                    `json:"event_count"`
	Participants int                    `json:"participants"`
}

// Summarize reduces a snapshot to its list entry.
func Summarize(s raidlog.EncounterStats) EncounterSummary {
	return EncounterSummary{
		ID:           s.ID,
		State:        s.State,
		Start:        s.Start,
		End:          s.End,
		DurationMS:   s.Duration.Milliseconds(),
		TotalDamage:  s.TotalDamage,
		TotalHealing: s.TotalHealing,
		EventCount:   s.EventCount,
		Participants: len(s.Participants),
	}
}

type Server struct {
	router *chi.Mux
	engine Engine
	logger *slog.Logger
}

func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		engine: engine,
		logger: logger,
	}
	router.Use(s.logRequests)

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/encounters", s.listEncounters)
		r.Get("/encounters/current", s.currentEncounter)
		r.Get("/encounters/{id}", s.getEncounter)
		r.Get("/filters", s.getFilters)
		r.Put("/filters", s.putFilters)
		r.Get("/diagnostics", s.diagnostics)
	})

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.engine.Diagnostics().Running,
	})
}

func (s *Server) listEncounters(w http.ResponseWriter, r *http.Request) {
	out := []EncounterSummary{}
	if cur, ok := s.engine.CurrentSnapshot(); ok && cur.Active() {
		out = append(out, Summarize(cur))
	}
	for _, h := range s.engine.History() {
		out = append(out, Summarize(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) currentEncounter(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.engine.CurrentSnapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no encounter yet")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) getEncounter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.engine.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("encounter %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getFilters(w http.ResponseWriter, r *http.Request) {
	rules := s.engine.FilterRules()
	if rules == nil {
		rules = []raidlog.FilterRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) putFilters(w http.ResponseWriter, r *http.Request) {
	var rules []raidlog.FilterRule
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rules); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err := s.engine.SetFilterRules(rules); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, raidlog.ErrInvalidRule) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	s.logger.Info("filter rules replaced", "rules", len(rules))
	s.getFilters(w, r)
}

func (s *Server) diagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Diagnostics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
