// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides clients for hosted text-generation APIs.
//
// CLOUD: Secure logging, size-limited reads and status mapping
package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/generation"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

// Configuration constants shared by the hosted clients.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "chatbot/1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared transport for all hosted API requests.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// Error variables for common upstream failures. Upstream errors wrap one of
// these where the HTTP status maps onto it, so callers can use errors.Is.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelLoading indicates the hosted model is still starting up.
	ErrModelLoading = errors.New("model loading")
)

// =============================================================================
// BASE CLIENT
// =============================================================================

// baseClient holds what every hosted client shares: credentials, endpoint
// and HTTP plumbing.
type baseClient struct {
	provider   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newBaseClient(provider, apiKey, baseURL string) baseClient {
	return baseClient{
		provider: provider,
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
	}
}

// IsConfigured returns true if an API key is set.
func (c *baseClient) IsConfigured() bool {
	return c.apiKey != ""
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key.
// SECURITY: Never log key fragments; log the fingerprint instead.
func (c *baseClient) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// setHeaders sets the required headers for API requests.
func (c *baseClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// postJSON sends body to url and returns the raw response body. Non-2xx
// responses are converted with classify.
func (c *baseClient) postJSON(ctx context.Context, url, model string, body any, classify func(status int, body []byte) error) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, &generation.UpstreamError{Provider: c.provider, Model: model, Err: ErrNotConfigured}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	req.Header.Del("Authorization")

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &generation.UpstreamError{Provider: c.provider, Model: model, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	log.Printf("UPSTREAM_RESPONSE | provider=%s model=%s status=%d latency=%dms key=%s",
		c.provider, model, resp.StatusCode, time.Since(start).Milliseconds(), c.KeyFingerprint())

	data, err := readResponse(resp)
	if err != nil {
		return nil, &generation.UpstreamError{Provider: c.provider, Model: model, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(resp.StatusCode, data)
	}
	return data, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// statusSentinel maps an HTTP status onto one of the package sentinels.
func statusSentinel(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrModelLoading
	default:
		return nil
	}
}

// upstreamError builds the structured error for a non-2xx response.
func (c *baseClient) upstreamError(model string, status int, detail string, body []byte) error {
	detail = strings.TrimSpace(detail)
	upErr := &generation.UpstreamError{
		Provider: c.provider,
		Model:    model,
		Status:   status,
		Detail:   detail,
	}
	if sentinel := statusSentinel(status); sentinel != nil {
		upErr.Err = sentinel
	} else if detail == "" && len(body) > 0 {
		upErr.Err = errors.New(util.TruncateRunes(strings.TrimSpace(string(body)), 200))
	}
	return upErr
}
