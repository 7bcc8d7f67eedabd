// Package api provides the HTTP API over stored semester runs.
// GET endpoints are public (read-only).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/semester-sim/internal/config"
	"github.com/talgya/semester-sim/internal/entropy"
	"github.com/talgya/semester-sim/internal/llm"
	"github.com/talgya/semester-sim/internal/persistence"
	"github.com/talgya/semester-sim/internal/report"
)

// Server serves stored runs over HTTP and launches new ones.
type Server struct {
	DB          *persistence.DB
	LLM         *llm.Client
	Seeds       *entropy.Client
	Defaults    config.Config // base for POST /runs bodies
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins []string

	startedAt time.Time
	hub       *Hub
	jobs      *jobTable

	// Cached bulletins (run ID → bulletin).
	bulletinMu sync.Mutex
	bulletins  map[string]*llm.Bulletin
}

// Handler builds the routed handler. Start calls it; tests use it directly.
func (s *Server) Handler() http.Handler {
	s.startedAt = time.Now()
	s.hub = NewHub(maxStreamConns)
	s.jobs = newJobTable()
	s.bulletins = make(map[string]*llm.Bulletin)

	// Rate limiters for LLM-consuming endpoints.
	adviceLimiter := NewRateLimiter(20, time.Hour)
	bulletinLimiter := NewRateLimiter(30, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.adminOnly(s.handleRuns))
	mux.HandleFunc("/api/v1/runs/", s.handleRunRoutes(adviceLimiter, bulletinLimiter))
	mux.HandleFunc("/api/v1/jobs/", s.handleJob)

	// Live progress of admin-launched runs.
	mux.HandleFunc("/api/v1/stream", s.hub.ServeWS)

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "llm", s.LLM.Enabled())

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no SEMSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":         "semester-sim",
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"running_jobs": s.jobs.running(),
		"stream_conns": s.hub.Conns(),
		"llm":          s.LLM.Enabled(),
		"llm_usage":    s.LLM.Usage(),
		"admin":        s.AdminKey != "",
	}
	if s.DB != nil {
		if last, err := s.DB.GetMeta("last_run"); err == nil {
			status["last_run"] = last
		}
	}
	writeJSON(w, status)
}

// handleRuns lists stored runs (GET) or launches a new one (POST).
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.requireDB(w) {
			return
		}
		limit := queryInt(r, "limit", 20)
		runs, err := s.DB.ListRuns(limit)
		if err != nil {
			slog.Error("list runs failed", "error", err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, runs)
	case http.MethodPost:
		s.handleLaunch(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunRoutes dispatches /api/v1/runs/:id[/results|/bulletin|/agents/:index[/weekly|/advice]].
func (s *Server) handleRunRoutes(adviceLimiter, bulletinLimiter *RateLimiter) http.HandlerFunc {
	rateLimitedAdvice := RateLimitMiddleware(adviceLimiter, s.handleAdvice)
	rateLimitedBulletin := RateLimitMiddleware(bulletinLimiter, s.handleBulletin)

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.requireDB(w) {
			return
		}
		// parts: "", api, v1, runs, :id, ...
		parts := strings.Split(strings.TrimSuffix(r.URL.Path, "/"), "/")
		if len(parts) < 5 || parts[4] == "" {
			http.Error(w, "missing run id", http.StatusBadRequest)
			return
		}
		runID := parts[4]

		switch {
		case len(parts) == 5:
			s.handleRunDetail(w, runID)
		case len(parts) == 6 && parts[5] == "results":
			s.handleResults(w, r, runID)
		case len(parts) == 6 && parts[5] == "bulletin":
			rateLimitedBulletin(w, r)
		case len(parts) >= 7 && parts[5] == "agents":
			index, err := strconv.Atoi(parts[6])
			if err != nil || index < 0 {
				http.Error(w, "invalid agent index", http.StatusBadRequest)
				return
			}
			switch {
			case len(parts) == 7:
				s.handleAgent(w, runID, index)
			case parts[7] == "weekly":
				s.handleWeekly(w, runID, index)
			case parts[7] == "advice":
				rateLimitedAdvice(w, r)
			default:
				http.NotFound(w, r)
			}
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleRunDetail(w http.ResponseWriter, runID string) {
	run, err := s.DB.GetRun(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	results, err := s.DB.Results(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"run":     run,
		"summary": summarize(run.Policy, results),
	})
}

// handleResults returns results ordered by index, or ?top=N / ?bottom=N
// leaderboards, optionally per archetype with ?by=archetype.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, runID string) {
	results, err := s.DB.Results(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	q := r.URL.Query()
	switch {
	case q.Get("by") == "archetype":
		writeJSON(w, report.TopByArchetype(results, queryInt(r, "top", 3)))
	case q.Has("top"):
		writeJSON(w, report.Top(results, queryInt(r, "top", 10)))
	case q.Has("bottom"):
		writeJSON(w, report.Bottom(results, queryInt(r, "bottom", 10)))
	default:
		writeJSON(w, results)
	}
}

func (s *Server) handleAgent(w http.ResponseWriter, runID string, index int) {
	res, err := s.DB.Result(runID, index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleWeekly(w http.ResponseWriter, runID string, index int) {
	weekly, err := s.DB.Weekly(runID, index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, weekly)
}

// handleAdvice writes advice for one agent: ?week=N after that week (needs
// a weekly log), otherwise end-of-semester advice.
func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimSuffix(r.URL.Path, "/"), "/")
	runID := parts[4]
	index, _ := strconv.Atoi(parts[6])

	res, err := s.DB.Result(runID, index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	res.Weekly, err = s.DB.Weekly(runID, index)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if week := queryInt(r, "week", 0); week > 0 {
		snap, err := llm.WeeklySnapshot(res, week)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, llm.WeeklyAdvice(r.Context(), s.LLM, snap))
		return
	}
	writeJSON(w, llm.FinalAdvice(r.Context(), s.LLM, llm.FinalSnapshot(res)))
}

func (s *Server) handleBulletin(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimSuffix(r.URL.Path, "/"), "/")
	runID := parts[4]

	s.bulletinMu.Lock()
	cached, ok := s.bulletins[runID]
	s.bulletinMu.Unlock()
	if ok && r.URL.Query().Get("refresh") != "true" {
		writeJSON(w, cached)
		return
	}

	run, err := s.DB.GetRun(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	results, err := s.DB.Results(runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	data := bulletinData(run, results)
	b := llm.GenerateBulletin(r.Context(), s.LLM, data)

	s.bulletinMu.Lock()
	s.bulletins[runID] = b
	s.bulletinMu.Unlock()
	writeJSON(w, b)
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error("store query failed", "error", err)
	http.Error(w, "query failed", http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
