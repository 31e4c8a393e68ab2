// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat backend HTTP API.
//
// Endpoints:
//   - POST /api/chat           - Generate a reply from the selected provider
//   - GET  /api/conversations  - List stored conversations (admin)
//   - POST /api/training       - Add a training example (admin)
//   - GET  /health             - Health check
//   - GET  /stats              - Usage statistics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/generation"
	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/tasks"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "1.0.0"

	// healthTimeout bounds the store ping in /health.
	healthTimeout = 2 * time.Second

	unexpectedError = "An unexpected error occurred"
)

// ============================================================================
// ERRORS
// ============================================================================

// ValidationError reports a request that failed input validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ErrorResponse maps err to an HTTP status and the "Error: ..." text the endpoint
// returns. The upstream status is used when one is known.
func ErrorResponse(err error) (int, string) {
	status := http.StatusInternalServerError
	detail := ""

	var validation *ValidationError
	var upstream *generation.UpstreamError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "Error: " + validation.Message
	case errors.Is(err, generation.ErrNoResponse):
		detail = generation.ErrNoResponse.Error()
	case errors.As(err, &upstream):
		if upstream.Status >= 400 && upstream.Status < 600 {
			status = upstream.Status
		}
		detail = upstream.Detail
		if detail == "" && upstream.Err != nil {
			detail = upstream.Err.Error()
		}
	}

	// An exhausted fallback reports its last failure, not the summary.
	var exhausted *generation.ExhaustedError
	if detail == "" && errors.As(err, &exhausted) && exhausted.Last != nil {
		detail = exhausted.Last.Error()
	}
	if detail == "" && err != nil {
		detail = err.Error()
	}
	if strings.TrimSpace(detail) == "" {
		detail = unexpectedError
	}
	return status, "Error: " + detail
}

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage statistics.
type ServerStats struct {
	TotalRequests    int64
	Succeeded        int64
	Failed           int64
	FallbackAttempts int64
	FallbackFailures int64
	StartTime        time.Time

	byProvider map[string]int64
	mu         sync.Mutex
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{
		StartTime:  time.Now(),
		byProvider: make(map[string]int64),
	}
}

// RecordRequest counts one chat request for provider.
func (s *ServerStats) RecordRequest(provider string, ok bool) {
	atomic.AddInt64(&s.TotalRequests, 1)
	if ok {
		atomic.AddInt64(&s.Succeeded, 1)
	} else {
		atomic.AddInt64(&s.Failed, 1)
	}

	if provider == "" {
		provider = "unknown"
	}
	s.mu.Lock()
	s.byProvider[provider]++
	s.mu.Unlock()
}

// RecordAttempt counts one fallback candidate attempt. It matches the
// generation.FallbackGenerator observer signature.
func (s *ServerStats) RecordAttempt(a generation.Attempt) {
	atomic.AddInt64(&s.FallbackAttempts, 1)
	if a.Err != nil {
		atomic.AddInt64(&s.FallbackFailures, 1)
	}
}

// ByProvider returns a copy of the per-provider request counts.
func (s *ServerStats) ByProvider() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byProvider))
	for k, v := range s.byProvider {
		out[k] = v
	}
	return out
}

// Uptime returns the server uptime duration.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the chat backend.
type Server struct {
	addr   string
	router *http.ServeMux
	server *http.Server

	generators *generation.Registry
	store      storage.Store
	queue      *tasks.Queue
	stats      *ServerStats
	auth       *AuthConfig
	cors       *CORSConfig
	limiter    *RateLimiter

	mu sync.RWMutex
}

// New creates a Server that generates with registry and persists to store.
// When queue is nil, persistence runs inline after the response is written.
func New(registry *generation.Registry, store storage.Store, queue *tasks.Queue) *Server {
	s := &Server{
		addr:       DefaultAddr,
		router:     http.NewServeMux(),
		generators: registry,
		store:      store,
		queue:      queue,
		stats:      NewServerStats(),
		auth:       &AuthConfig{},
		cors:       NewCORSConfig(nil),
	}
	s.setupRoutes()
	return s
}

// WithAddr sets the listen address.
func (s *Server) WithAddr(addr string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != "" {
		s.addr = addr
	}
	return s
}

// WithAuth sets the admin authentication configuration.
func (s *Server) WithAuth(config *AuthConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = config
	return s
}

// WithCORS sets the CORS configuration.
func (s *Server) WithCORS(config *CORSConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cors = config
	return s
}

// WithRateLimiter enables per-IP rate limiting.
func (s *Server) WithRateLimiter(limiter *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = limiter
	return s
}

// Stats returns the live statistics.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// Registry returns the provider registry requests are dispatched to.
func (s *Server) Registry() *generation.Registry {
	return s.generators
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)

	s.router.Handle("GET /api/conversations", s.admin(s.handleConversations))
	s.router.Handle("POST /api/training", s.admin(s.handleTraining))

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// admin wraps h with the auth configuration current at request time.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		auth := s.auth
		s.mu.RUnlock()
		AuthMiddleware(auth)(h).ServeHTTP(w, r)
	})
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if s.cors != nil {
		middlewares = append(middlewares, CORSMiddleware(s.cors))
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
	UserID   string `json:"userId,omitempty"`
}

// MessageResponse is the body of every chat response, success or failure.
type MessageResponse struct {
	Message string `json:"message"`
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	message := util.NormalizeText(req.Message)
	if message == "" {
		status, text := ErrorResponse(&ValidationError{Field: "message", Message: "message is required"})
		writeMessage(w, status, text)
		return
	}

	if s.generators == nil {
		writeMessage(w, http.StatusInternalServerError, "Error: "+generation.ErrNoResponse.Error())
		return
	}
	provider, reply, err := s.generators.Generate(r.Context(), req.Provider, message)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = generation.ErrNoResponse
	}
	if err != nil {
		s.stats.RecordRequest(provider.String(), false)
		status, text := ErrorResponse(err)
		log.Printf("REQUEST_FAILED | provider=%s status=%d latency=%dms error=%v",
			req.Provider, status, time.Since(start).Milliseconds(), err)
		writeMessage(w, status, text)
		return
	}

	s.stats.RecordRequest(provider.String(), true)
	log.Printf("REQUEST_COMPLETE | provider=%s latency=%dms", provider, time.Since(start).Milliseconds())
	writeMessage(w, http.StatusOK, reply)

	s.persist(storage.Record{
		UserMessage: message,
		AIResponse:  reply,
		Provider:    provider.String(),
		UserID:      strings.TrimSpace(req.UserID),
		Timestamp:   time.Now(),
	})
}

// persist writes rec best effort. Failures are logged and never reach the
// client.
func (s *Server) persist(rec storage.Record) {
	if s.store == nil {
		return
	}
	write := func(ctx context.Context) error {
		_, err := s.store.Append(ctx, rec)
		return err
	}

	if s.queue == nil {
		ctx, cancel := context.WithTimeout(context.Background(), tasks.DefaultTaskTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			log.Printf("PERSIST_FAILED | provider=%s error=%v", rec.Provider, err)
		}
		return
	}

	if _, err := s.queue.Submit("persist:"+rec.Provider, write); err != nil {
		log.Printf("PERSIST_SKIPPED | provider=%s error=%v", rec.Provider, err)
	}
}

// ============================================================================
// ADMIN HANDLERS
// ============================================================================

// handleConversations handles GET /api/conversations[?userId=].
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Error: storage not configured")
		return
	}

	var (
		records []storage.Record
		err     error
	)
	if userID := strings.TrimSpace(r.URL.Query().Get("userId")); userID != "" {
		records, err = s.store.QueryByUser(r.Context(), userID)
	} else {
		records, err = s.store.QueryAll(r.Context())
	}
	if err != nil {
		log.Printf("QUERY_FAILED | error=%v", err)
		writeMessage(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	storage.SortNewestFirst(records)
	writeJSON(w, http.StatusOK, records)
}

// TrainingResponse is the body of a successful POST /api/training.
type TrainingResponse struct {
	ID string `json:"id"`
}

// handleTraining handles POST /api/training.
func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Error: storage not configured")
		return
	}

	var ex storage.TrainingExample
	if !s.decode(w, r, &ex) {
		return
	}
	ex.UserMessage = util.NormalizeText(ex.UserMessage)
	ex.AIResponse = util.NormalizeText(ex.AIResponse)
	if ex.UserMessage == "" || ex.AIResponse == "" {
		status, text := ErrorResponse(&ValidationError{Field: "aiResponse", Message: "userMessage and aiResponse are required"})
		writeMessage(w, status, text)
		return
	}

	id, err := s.store.AppendTraining(r.Context(), ex)
	if err != nil {
		log.Printf("TRAINING_FAILED | error=%v", err)
		writeMessage(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	log.Printf("TRAINING_ADDED | id=%s client_ip=%s", id, GetClientIP(r))
	writeJSON(w, http.StatusCreated, TrainingResponse{ID: id})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Providers []string `json:"providers"`
	Store     string   `json:"store"`
	Queue     string   `json:"queue,omitempty"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Version:   Version,
		Providers: make([]string, 0),
		Store:     "not_configured",
	}

	if s.generators != nil {
		for _, p := range s.generators.Providers() {
			health.Providers = append(health.Providers, p.String())
		}
	}
	if len(health.Providers) == 0 {
		health.Status = "degraded"
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.Printf("HEALTH_STORE_FAILED | error=%v", err)
			health.Store = "unavailable"
			health.Status = "degraded"
		} else {
			health.Store = "ok"
		}
	}

	if s.queue != nil {
		health.Queue = s.queue.Summary()
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// STATS HANDLER
// ============================================================================

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	TotalRequests    int64            `json:"total_requests"`
	Succeeded        int64            `json:"succeeded"`
	Failed           int64            `json:"failed"`
	ByProvider       map[string]int64 `json:"by_provider"`
	FallbackAttempts int64            `json:"fallback_attempts"`
	FallbackFailures int64            `json:"fallback_failures"`
	Persistence      *tasks.Stats     `json:"persistence,omitempty"`
	LostWrites       []LostWrite      `json:"lost_writes,omitempty"`
	UptimeSeconds    int64            `json:"uptime_seconds"`
}

// LostWrite describes a persistence task that failed or was dropped.
type LostWrite struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	WaitMS     int64  `json:"wait_ms"`
	DurationMS int64  `json:"duration_ms"`
	Summary    string `json:"summary"`
}

// maxLostWrites bounds the lost_writes list in /stats.
const maxLostWrites = 10

// lostWrites returns the most recent failed or dropped writes, newest first.
func lostWrites(queue *tasks.Queue) []LostWrite {
	var out []LostWrite
	for _, task := range queue.Recent() {
		status := task.GetStatus()
		if status != tasks.TaskStatusFailed && status != tasks.TaskStatusDropped {
			continue
		}
		out = append(out, LostWrite{
			ID:         task.ID,
			Status:     status.String(),
			Error:      task.GetError(),
			WaitMS:     task.Wait().Milliseconds(),
			DurationMS: task.Duration().Milliseconds(),
			Summary:    task.Summary(),
		})
		if len(out) == maxLostWrites {
			break
		}
	}
	return out
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		TotalRequests:    atomic.LoadInt64(&s.stats.TotalRequests),
		Succeeded:        atomic.LoadInt64(&s.stats.Succeeded),
		Failed:           atomic.LoadInt64(&s.stats.Failed),
		ByProvider:       s.stats.ByProvider(),
		FallbackAttempts: atomic.LoadInt64(&s.stats.FallbackAttempts),
		FallbackFailures: atomic.LoadInt64(&s.stats.FallbackFailures),
		UptimeSeconds:    int64(s.stats.Uptime().Seconds()),
	}
	if s.queue != nil {
		qs := s.queue.Stats()
		resp.Persistence = &qs
		resp.LostWrites = lostWrites(s.queue)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	addr := s.Addr()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()
	srv.Handler = s.Handler()

	log.Printf("SERVER_START | addr=%s version=%s providers=%s", addr, Version, providerList(s.generators))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// drains the persistence queue.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	limiter := s.limiter
	s.mu.RUnlock()

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if limiter != nil {
		limiter.Stop()
	}
	if s.queue != nil {
		if err := s.queue.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain persistence queue: %w", err))
		}
		log.Printf("PERSIST_QUEUE_CLOSED | %s", s.queue.Summary())
	}
	return errors.Join(errs...)
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into v, writing a 400 or 413 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Error: request body exceeds %d bytes", MaxRequestBodySize))
			return false
		}
		log.Printf("INVALID_BODY | path=%s error=%v", r.URL.Path, err)
		writeMessage(w, http.StatusBadRequest, "Error: invalid request body")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_WRITE_FAILED | error=%v", err)
	}
}

// writeMessage writes {"message": text}.
func writeMessage(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, MessageResponse{Message: text})
}

func providerList(r *generation.Registry) string {
	if r == nil {
		return ""
	}
	names := make([]string, 0)
	for _, p := range r.Providers() {
		names = append(names, p.String())
	}
	return strings.Join(names, ",")
}
