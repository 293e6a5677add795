// Package server exposes a code map over HTTP: the map itself for browser
// overlays, plus lookup and element matching endpoints for tooling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mvp-joe/see-the-code/internal/codemap"
	"github.com/mvp-joe/see-the-code/internal/match"
)

// MaxMatchBody bounds POST /match request bodies.
const MaxMatchBody = 1 << 20

// Server serves one code map. The map can be replaced while serving.
type Server struct {
	mu        sync.RWMutex
	codeMap   *codemap.CodeMap
	matcher   *match.Matcher
	matchOpts match.Options
	loadedAt  time.Time

	logger *slog.Logger
	router *chi.Mux
}

// New creates a server over cm. opts configures the /match tiers.
func New(cm *codemap.CodeMap, opts match.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger

	s := &Server{
		matchOpts: opts,
		logger:    logger,
	}
	s.SetCodeMap(cm)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/healthz", s.handleHealth)
	r.Get("/code-map.json", s.handleCodeMap)
	r.Get("/lookup", s.handleLookup)
	r.Post("/match", s.handleMatch)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetCodeMap replaces the served map.
func (s *Server) SetCodeMap(cm *codemap.CodeMap) {
	if cm == nil {
		cm = codemap.New()
	}
	m := match.New(cm, s.matchOpts)

	s.mu.Lock()
	s.codeMap = cm
	s.matcher = m
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("code map loaded", "selectors", cm.Len())
}

func (s *Server) snapshot() (*codemap.CodeMap, *match.Matcher, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codeMap, s.matcher, s.loadedAt
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving code map", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Selectors int       `json:"selectors"`
	LoadedAt  time.Time `json:"loadedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cm, _, loadedAt := s.snapshot()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Selectors: cm.Len(), LoadedAt: loadedAt})
}

func (s *Server) handleCodeMap(w http.ResponseWriter, r *http.Request) {
	cm, _, _ := s.snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := codemap.Encode(w, cm); err != nil {
		s.logger.Error("failed to write code map", "error", err)
	}
}

type lookupResponse struct {
	Selector string         `json:"selector"`
	Record   codemap.Record `json:"record"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("selector")
	if key == "" {
		writeError(w, http.StatusBadRequest, "selector query parameter required")
		return
	}

	cm, _, _ := s.snapshot()
	rec, ok := cm.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("selector %q not found", key))
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Selector: key, Record: rec})
}

// MatchRequest is the body of POST /match.
type MatchRequest struct {
	HTML string `json:"html"`
}

// MatchResponse reports the matched record and the tier that found it.
type MatchResponse struct {
	Matched  bool            `json:"matched"`
	Selector string          `json:"selector,omitempty"`
	Record   *codemap.Record `json:"record,omitempty"`
	Tier     string          `json:"tier,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxMatchBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HTML == "" {
		writeError(w, http.StatusBadRequest, "html required")
		return
	}

	_, matcher, _ := s.snapshot()
	res, ok, err := matcher.MatchHTML(req.HTML)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, MatchResponse{Matched: false})
		return
	}

	rec := res.Record
	writeJSON(w, http.StatusOK, MatchResponse{
		Matched:  true,
		Selector: res.Key,
		Record:   &rec,
		Tier:     res.Tier.String(),
	})
}

// cors allows overlays on any dev origin to fetch the map.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
