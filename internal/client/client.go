// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client talks to the chat backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/server"
	"github.com/rizkirmdhn1215/chatbot/internal/storage"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeUnauthorized
	ErrTypeAPI
	ErrTypeInvalidResponse
)

// ClientError represents a failed call to the backend.
type ClientError struct {
	Type ErrorType

	// Status is the HTTP status, 0 when no response arrived.
	Status int

	// Message is the backend's message when it sent one.
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same Type so sentinels work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Status == 0 && t.Cause == nil
}

// Sentinel errors for easy checking.
var (
	ErrUnavailable  = &ClientError{Type: ErrTypeConnection, Message: "chat server is not reachable"}
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrUnauthorized = &ClientError{Type: ErrTypeUnauthorized, Message: "admin token rejected"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is the address of a locally running backend.
	DefaultBaseURL = "http://127.0.0.1:8787"

	// DefaultTimeout covers the whole fallback sequence on the server.
	DefaultTimeout = 120 * time.Second

	maxResponseSize = 10 * 1024 * 1024
)

// Config holds configuration options for the client.
type Config struct {
	// BaseURL is the backend address (default: http://127.0.0.1:8787)
	BaseURL string

	// Timeout for each request (default: 120s)
	Timeout time.Duration

	// AdminToken is sent as a bearer token on admin routes.
	AdminToken string
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a client, filling zero config fields with defaults.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Chat sends one message and returns the AI reply.
func (c *Client) Chat(ctx context.Context, req server.ChatRequest) (string, error) {
	var resp server.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, false, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ListConversations returns stored records newest first. An empty userID
// lists every record.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]storage.Record, error) {
	path := "/api/conversations"
	if userID != "" {
		path += "?userId=" + url.QueryEscape(userID)
	}
	records := make([]storage.Record, 0)
	if err := c.do(ctx, http.MethodGet, path, nil, true, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// AddTrainingExample stores ex and returns its id.
func (c *Client) AddTrainingExample(ctx context.Context, ex storage.TrainingExample) (string, error) {
	var resp server.TrainingResponse
	if err := c.do(ctx, http.MethodPost, "/api/training", ex, true, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Health fetches the backend health report.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	var resp server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, body any, admin bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if admin && c.config.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AdminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: ErrUnavailable.Message, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Status: resp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode >= 400 {
		return apiError(resp, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// apiError builds an error carrying the server's message text.
func apiError(resp *http.Response, data []byte) error {
	var body server.MessageResponse
	msg := ""
	if json.Unmarshal(data, &body) == nil {
		msg = body.Message
	}
	if msg == "" {
		msg = fmt.Sprintf("Error: %s", http.StatusText(resp.StatusCode))
	}

	typ := ErrTypeAPI
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		typ = ErrTypeUnauthorized
	}
	return &ClientError{Type: typ, Status: resp.StatusCode, Message: msg}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Status
	}
	return 0
}
