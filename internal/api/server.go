// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillmap/harvester/internal/harvest"
	"github.com/skillmap/harvester/internal/metrics"
	"github.com/skillmap/harvester/internal/store"
)

// SiteCatalog resolves and enumerates the configured job boards.
type SiteCatalog interface {
	Lookup(site string) (harvest.SourceAdapter, bool)
	Names() []string
}

// Config controls request defaults.
type Config struct {
	MaxRecordsDefault int
	DefaultPriority   int
}

// Server wires HTTP handlers to the queue and stores.
type Server struct {
	router  chi.Router
	queue   harvest.Queue
	runs    harvest.RunStore
	catalog SiteCatalog
	judge   harvest.Judge
	clock   harvest.Clock
	cfg     Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. judge may be
// nil; keyword expansion is then unavailable.
func NewServer(
	queue harvest.Queue,
	runs harvest.RunStore,
	catalog SiteCatalog,
	judge harvest.Judge,
	clock harvest.Clock,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if clock == nil {
		clock = harvest.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRecordsDefault <= 0 {
		cfg.MaxRecordsDefault = 50
	}
	s := &Server{
		queue:   queue,
		runs:    runs,
		catalog: catalog,
		judge:   judge,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.submitCrawl)
		r.Get("/sites", s.listSites)
		r.Get("/runs/{run_id}", s.getRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	names := s.catalog.Names()
	sort.Strings(names)
	writeJSON(s.logger, w, http.StatusOK, map[string][]string{"sites": names})
}

type crawlRequest struct {
	Sites          []string `json:"sites"`
	Keywords       []string `json:"keywords"`
	MaxRecords     *int     `json:"max_records"`
	Priority       *int     `json:"priority"`
	ExpandKeywords bool     `json:"expand_keywords"`
	Category       string   `json:"category"`
	AI             struct {
		Enabled  bool `json:"enabled"`
		MinScore int  `json:"min_score"`
	} `json:"ai"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Sites) == 0 {
		req.Sites = s.catalog.Names()
		sort.Strings(req.Sites)
	}
	if len(req.Keywords) == 0 {
		writeError(s.logger, w, http.StatusBadRequest, "keywords required")
		return
	}
	for _, site := range req.Sites {
		if _, ok := s.catalog.Lookup(site); !ok {
			writeError(s.logger, w, http.StatusBadRequest, fmt.Sprintf("unknown site %q", site))
			return
		}
	}

	keywords := req.Keywords
	if req.ExpandKeywords {
		keywords = s.expandKeywords(r.Context(), keywords, req.Category)
	}

	runID := uuid.NewString()
	now := s.clock.Now()
	summary := harvest.RunSummary{
		RunID:     runID,
		Status:    harvest.RunPending,
		Sites:     req.Sites,
		Keywords:  keywords,
		Pending:   len(req.Sites),
		StartedAt: now,
	}
	if err := s.runs.SetSummary(r.Context(), summary); err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("create run: %v", err))
		return
	}

	maxRecords := s.cfg.MaxRecordsDefault
	if req.MaxRecords != nil && *req.MaxRecords > 0 {
		maxRecords = *req.MaxRecords
	}
	priority := s.cfg.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	enqueueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for i, site := range req.Sites {
		item := harvest.CrawlRequest{
			RunID:      runID,
			Site:       site,
			Keywords:   keywords,
			MaxRecords: maxRecords,
			Priority:   priority,
			AIFilter:   harvest.AIFilter{Enabled: req.AI.Enabled, MinScore: req.AI.MinScore},
			Submitted:  now,
		}
		if err := s.queue.Enqueue(enqueueCtx, item); err != nil {
			s.failRun(r.Context(), summary, i, fmt.Sprintf("enqueue %s: %v", site, err))
			writeError(s.logger, w, http.StatusInternalServerError, fmt.Sprintf("enqueue %s: %v", site, err))
			return
		}
	}

	writeJSON(s.logger, w, http.StatusAccepted, map[string]any{
		"run_id":   runID,
		"sites":    req.Sites,
		"keywords": keywords,
	})
}

// failRun records a run whose enqueue loop stopped partway so it does not
// read as running until its TTL expires. Pending is cut down to what was
// actually enqueued; those requests still run and drain it to zero.
func (s *Server) failRun(ctx context.Context, summary harvest.RunSummary, enqueued int, reason string) {
	summary.Status = harvest.RunFailed
	summary.Error = reason
	summary.Pending = enqueued
	if enqueued == 0 {
		now := s.clock.Now()
		summary.FinishedAt = &now
	}
	if err := s.runs.SetSummary(ctx, summary); err != nil {
		s.logger.Warn("failed-run summary store failed",
			zap.String("run_id", summary.RunID),
			zap.Error(err),
		)
	}
}

// expandKeywords grows the keyword list through the AI service. Failures
// leave the original keywords untouched; expansion is best effort.
func (s *Server) expandKeywords(ctx context.Context, keywords []string, category string) []string {
	if s.judge == nil {
		return keywords
	}
	seen := make(map[string]bool, len(keywords))
	var expanded []string
	for _, base := range keywords {
		related, err := s.judge.ExpandKeywords(ctx, base, category)
		if err != nil {
			s.logger.Warn("keyword expansion failed",
				zap.String("keyword", base),
				zap.Error(err),
			)
			related = []string{base}
		}
		for _, k := range related {
			if !seen[k] {
				seen[k] = true
				expanded = append(expanded, k)
			}
		}
	}
	return expanded
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	summary, err := s.runs.GetSummary(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "run not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, summary)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
