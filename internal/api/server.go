// Package api exposes the administrative HTTP surface: a shared-secret
// scrape trigger and a health probe.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"animesync/pkg/types"
)

// Runner executes one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (types.RunReport, error)
}

// Server wires handlers onto an HTTP mux.
type Server struct {
	runner Runner
	secret string
	logger *slog.Logger
	mux    *http.ServeMux

	running atomic.Bool
}

// NewServer builds the admin server. The secret must be non-empty; an
// empty secret would let any request trigger a scrape.
func NewServer(runner Runner, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runner: runner,
		secret: secret,
		logger: logger.With("component", "api"),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/scrape", s.handleScrape)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleScrape runs one pipeline pass. The original trigger was hit from
// cron over GET, so both GET and POST are accepted.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	key := r.URL.Query().Get("key")
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.secret)) != 1 {
		s.logger.Warn("unauthorized scrape trigger", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		http.Error(w, "a scrape is already running", http.StatusConflict)
		return
	}
	defer s.running.Store(false)

	s.logger.Info("scrape triggered", "remote", r.RemoteAddr)
	report, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("scrape failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
