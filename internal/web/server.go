// Package web exposes the scanner over HTTP: trigger a cycle, read
// repository stats, and list recent cycle history.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sponsorscan/sponsorscan/internal/history"
	"github.com/sponsorscan/sponsorscan/internal/pipeline"
	"github.com/sponsorscan/sponsorscan/internal/store"
)

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute

	recentCycles = 20
)

type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	n := 0
	for _, t := range times {
		if t.After(windowStart) {
			times[n] = t
			n++
		}
	}
	return times[:n]
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := rl.filterRecent(rl.requests[key], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

// StatsProvider is the slice of the sponsor repository the server
// needs.
type StatsProvider interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

type Server struct {
	orchestrator *pipeline.Orchestrator
	sponsors     StatsProvider
	historyStore *history.Store
	rateLimiter  *RateLimiter
	httpServer   *http.Server

	// Cycles are strictly sequential; concurrent run requests get 409.
	runMu sync.Mutex
}

func NewServer(addr string, orch *pipeline.Orchestrator, sponsors StatsProvider, historyStore *history.Store) *Server {
	s := &Server{
		orchestrator: orch,
		sponsors:     sponsors,
		historyStore: historyStore,
		rateLimiter:  NewRateLimiter(defaultRateLimit, defaultRateWindow),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Get("/stats", s.handleStats)
		r.Get("/cycles", s.handleCycles)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// runResponse is the wire shape of a cycle trigger.
type runResponse struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	DurationSeconds float64          `json:"durationSeconds"`
	Stats           *pipeline.Result `json:"stats,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimiter.Allow(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if !s.runMu.TryLock() {
		writeError(w, http.StatusConflict, "a cycle is already running")
		return
	}
	defer s.runMu.Unlock()

	result := s.orchestrator.RunCycle(r.Context())

	resp := runResponse{
		Success:         result.Error == "",
		DurationSeconds: result.DurationSeconds,
		Stats:           result,
		Timestamp:       time.Now().UTC(),
	}
	if result.Error != "" {
		resp.Message = result.Error
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.Message = fmt.Sprintf("processed %d emails, %d new sponsors",
		result.EmailsProcessed, result.NewSponsorsAdded)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.sponsors.Stats(r.Context())
	if err != nil {
		log.Printf("Stats query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		writeJSON(w, http.StatusOK, []history.Record{})
		return
	}
	records, err := s.historyStore.Recent(recentCycles)
	if err != nil {
		log.Printf("History query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load cycle history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
