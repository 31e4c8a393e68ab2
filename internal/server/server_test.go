// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rizkirmdhn1215/chatbot/internal/cloud"
	"github.com/rizkirmdhn1215/chatbot/internal/generation"
	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/tasks"
)

// =============================================================================
// FIXTURES
// =============================================================================

// failingStore rejects every write.
type failingStore struct {
	storage.Store
}

func (failingStore) Append(context.Context, storage.Record) (string, error) {
	return "", errors.New("database unavailable")
}

func (failingStore) Ping(context.Context) error {
	return errors.New("database unavailable")
}

func openStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func staticRegistry(reply string, err error) *generation.Registry {
	gen := generation.GeneratorFunc(func(ctx context.Context, message string) (string, error) {
		return reply, err
	})
	return generation.NewRegistry().
		Register(generation.ProviderHuggingFace, gen).
		Register(generation.ProviderCohere, gen)
}

func post(t *testing.T, h http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Message
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_FallbackThroughHuggingFace(t *testing.T) {
	var calls []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch r.URL.Path {
		case "/models/model-a":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model is loading"}`))
		case "/models/model-b":
			w.Write([]byte(`[{"generated_text":"  hi there  "}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer upstream.Close()

	hf := cloud.NewHuggingFaceClient("hf-key").WithBaseURL(upstream.URL)
	store := openStore(t)
	queue := tasks.NewQueue(8, 1)

	srv := New(generation.NewRegistry(), store, queue)
	fallback := generation.NewFallbackGenerator(hf, []generation.ModelCandidate{
		{Model: "model-a", MaxLength: 100, Temperature: 0.7, TopP: 0.95},
		{Model: "model-b", MaxLength: 100, Temperature: 0.7, TopP: 0.95},
	}).WithObserver(srv.Stats().RecordAttempt)
	srv.generators.Register(generation.ProviderHuggingFace, fallback)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"hello","provider":"huggingface","userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi there", messageOf(t, rec))
	assert.Equal(t, []string{"/models/model-a", "/models/model-b"}, calls)

	require.NoError(t, queue.Close(context.Background()))

	records, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "huggingface", records[0].Provider)
	assert.Equal(t, "hello", records[0].UserMessage)
	assert.Equal(t, "hi there", records[0].AIResponse)
	assert.Equal(t, "u1", records[0].UserID)

	assert.Equal(t, int64(2), srv.Stats().FallbackAttempts)
	assert.Equal(t, int64(1), srv.Stats().FallbackFailures)
}

func TestChat_Validation(t *testing.T) {
	srv := New(staticRegistry("reply", nil), nil, nil)
	h := srv.Handler()

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"missing message", `{"provider":"cohere"}`, http.StatusBadRequest, "Error: message is required"},
		{"blank message", `{"message":"   ","provider":"cohere"}`, http.StatusBadRequest, "Error: message is required"},
		{"malformed json", `{"message":`, http.StatusBadRequest, "Error: invalid request body"},
		{"unknown provider", `{"message":"hi","provider":"openai"}`, http.StatusInternalServerError, "Error: No response generated"},
		{"missing provider", `{"message":"hi"}`, http.StatusInternalServerError, "Error: No response generated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/chat", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, messageOf(t, rec))
		})
	}
}

func TestChat_UnregisteredProvider(t *testing.T) {
	registry := generation.NewRegistry().Register(generation.ProviderHuggingFace,
		generation.GeneratorFunc(func(ctx context.Context, m string) (string, error) { return "x", nil }))
	srv := New(registry, nil, nil)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"hi","provider":"cohere"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error: No response generated", messageOf(t, rec))
}

func TestChat_UpstreamErrorStatus(t *testing.T) {
	upstreamErr := &generation.UpstreamError{
		Provider: "cohere",
		Status:   http.StatusTooManyRequests,
		Detail:   "rate limit exceeded",
	}
	srv := New(staticRegistry("", upstreamErr), nil, nil)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"hi","provider":"cohere"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Error: rate limit exceeded", messageOf(t, rec))
}

func TestChat_EmptyReply(t *testing.T) {
	srv := New(staticRegistry("   ", nil), nil, nil)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"hi","provider":"cohere"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error: No response generated", messageOf(t, rec))
}

func TestChat_PersistenceFailureStillSucceeds(t *testing.T) {
	queue := tasks.NewQueue(4, 1)
	srv := New(staticRegistry("fine", nil), failingStore{}, queue)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"hi","provider":"cohere"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", messageOf(t, rec))

	require.NoError(t, queue.Close(context.Background()))
	assert.Equal(t, int64(1), queue.Stats().Failed)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(get(t, srv.Handler(), "/stats").Body.Bytes(), &stats))
	require.Len(t, stats.LostWrites, 1)
	lost := stats.LostWrites[0]
	assert.Equal(t, "Failed", lost.Status)
	assert.Equal(t, "database unavailable", lost.Error)
	assert.Contains(t, lost.Summary, "persist:cohere - Failed")
	assert.GreaterOrEqual(t, lost.WaitMS, int64(0))
}

func TestStats_LostWritesSkipsCompleted(t *testing.T) {
	queue := tasks.NewQueue(4, 1)
	srv := New(staticRegistry("fine", nil), openStore(t), queue)

	post(t, srv.Handler(), "/api/chat", `{"message":"hi","provider":"cohere"}`)
	require.NoError(t, queue.Close(context.Background()))

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(get(t, srv.Handler(), "/stats").Body.Bytes(), &stats))
	require.NotNil(t, stats.Persistence)
	assert.Equal(t, int64(1), stats.Persistence.Completed)
	assert.Empty(t, stats.LostWrites)
}

func TestChat_InlinePersistence(t *testing.T) {
	store := openStore(t)
	srv := New(staticRegistry("reply", nil), store, nil)

	rec := post(t, srv.Handler(), "/api/chat", `{"message":"café","provider":"Cohere"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "café", records[0].UserMessage)
	assert.Equal(t, "cohere", records[0].Provider)
	assert.Empty(t, records[0].UserID)
}

func TestChat_BodyTooLarge(t *testing.T) {
	srv := New(staticRegistry("reply", nil), nil, nil)
	body := `{"message":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`

	rec := post(t, srv.Handler(), "/api/chat", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestErrorResponse(t *testing.T) {
	status, text := ErrorResponse(&generation.ExhaustedError{
		Attempts: 2,
		Last:     &generation.UpstreamError{Provider: "huggingface", Model: "b", Status: 503, Detail: "Model is loading"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Error: Model is loading", text)

	status, text = ErrorResponse(&generation.ExhaustedError{
		Attempts: 2,
		Last:     &generation.UpstreamError{Provider: "huggingface", Model: "b", Status: 500, Err: errors.New("not json")},
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error: not json", text)

	status, text = ErrorResponse(&generation.ExhaustedError{Attempts: 1, Last: errors.New("dial tcp: connection refused")})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error: dial tcp: connection refused", text)

	status, text = ErrorResponse(errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error: connection refused", text)

	status, text = ErrorResponse(errors.New(""))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Error: An unexpected error occurred", text)
}

// =============================================================================
// ADMIN ROUTE TESTS
// =============================================================================

func TestConversations(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_, err := store.Append(ctx, storage.Record{UserMessage: "first", AIResponse: "a", Provider: "cohere", UserID: "u1"})
	require.NoError(t, err)
	_, err = store.Append(ctx, storage.Record{UserMessage: "second", AIResponse: "b", Provider: "cohere", UserID: "u2"})
	require.NoError(t, err)

	srv := New(staticRegistry("", nil), store, nil).
		WithAuth(NewAuthConfig("admin-secret", "", nil))
	h := srv.Handler()

	t.Run("requires token", func(t *testing.T) {
		rec := get(t, h, "/api/conversations")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = get(t, h, "/api/conversations", "Authorization", "Bearer wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("filters by user", func(t *testing.T) {
		rec := get(t, h, "/api/conversations?userId=u1", "Authorization", "Bearer admin-secret")
		require.Equal(t, http.StatusOK, rec.Code)

		var records []storage.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, "first", records[0].UserMessage)
	})

	t.Run("unknown user is empty", func(t *testing.T) {
		rec := get(t, h, "/api/conversations?userId=ghost", "Authorization", "Bearer admin-secret")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("all records", func(t *testing.T) {
		rec := get(t, h, "/api/conversations", "Authorization", "Bearer admin-secret")
		require.Equal(t, http.StatusOK, rec.Code)

		var records []storage.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		assert.Len(t, records, 2)
	})
}

func TestTraining(t *testing.T) {
	store := openStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	srv := New(staticRegistry("", nil), store, nil).
		WithAuth(NewAuthConfig("", string(hash), nil))
	h := srv.Handler()
	auth := []string{"Authorization", "Bearer hashed-secret"}

	rec := post(t, h, "/api/training", `{"userMessage":"What is 2+2?","aiResponse":"4"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, "/api/training", `{"userMessage":"What is 2+2?"}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Error: userMessage and aiResponse are required", messageOf(t, rec))

	rec = post(t, h, "/api/training", `{"userMessage":"What is 2+2?","aiResponse":"4"}`, auth...)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp TrainingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)

	records, err := store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsTrainingData)
	assert.Equal(t, storage.ProviderManual, records[0].Provider)
}

func TestAdminRoutesOpenWithoutToken(t *testing.T) {
	srv := New(staticRegistry("", nil), openStore(t), nil)
	rec := get(t, srv.Handler(), "/api/conversations")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// HEALTH AND STATS TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	srv := New(staticRegistry("", nil), openStore(t), tasks.NewQueue(1, 1))
	rec := get(t, srv.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{"cohere", "huggingface"}, health.Providers)
	assert.Equal(t, "ok", health.Store)
	assert.Contains(t, health.Queue, "Pending: 0")

	srv = New(generation.NewRegistry(), failingStore{}, nil)
	rec = get(t, srv.Handler(), "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.Store)
}

func TestStats(t *testing.T) {
	srv := New(staticRegistry("ok", nil), nil, nil)
	h := srv.Handler()

	post(t, h, "/api/chat", `{"message":"a","provider":"cohere"}`)
	post(t, h, "/api/chat", `{"message":"b","provider":"huggingface"}`)
	post(t, h, "/api/chat", `{"message":"c","provider":"nope"}`)

	rec := get(t, h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.ByProvider["cohere"])
	assert.Equal(t, int64(1), stats.ByProvider["unknown"])
	assert.Nil(t, stats.Persistence)
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	defer limiter.Stop()

	srv := New(staticRegistry("", nil), nil, nil).WithRateLimiter(limiter)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/stats").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/stats").Code)

	rec := get(t, h, "/stats")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCORSMiddleware(t *testing.T) {
	srv := New(staticRegistry("", nil), nil, nil).
		WithCORS(NewCORSConfig([]string{"http://localhost:3000", "*.example.com"}))
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/health", "Origin", "https://app.example.com")
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/health", "Origin", "https://evil.test")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Chain(RecoveryMiddleware(), SecurityHeadersMiddleware())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAuthIPAllowlist(t *testing.T) {
	config := NewAuthConfig("token", "", []string{"10.0.0.0/8", "192.168.1.5"})
	h := AuthMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.RemoteAddr = "192.168.1.5:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.9:80", "", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:80", "1.2.3.4", "203.0.113.9"},
		{"trusted proxy", "127.0.0.1:80", "1.2.3.4, 10.0.0.1", "1.2.3.4"},
		{"trusted proxy bad header", "127.0.0.1:80", "not-an-ip", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
	assert.False(t, ValidateBearerToken("abc", ""))
}

func TestShutdownDrainsQueue(t *testing.T) {
	queue := tasks.NewQueue(4, 1)
	srv := New(staticRegistry("", nil), nil, queue)

	var buf bytes.Buffer
	_, err := queue.Submit("noop", func(ctx context.Context) error {
		buf.WriteString("ran")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, "ran", buf.String())
	assert.Equal(t, int64(1), queue.Stats().Completed)
}
