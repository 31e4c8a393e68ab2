// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/generation"
)

// Cohere defaults.
const (
	DefaultCohereURL         = "https://api.cohere.ai/v1"
	DefaultCohereModel       = "command"
	DefaultCohereMaxTokens   = 500
	DefaultCohereTemperature = 0.8
)

// CohereClient calls the Cohere generate endpoint with fixed parameters.
// It implements generation.Completer.
type CohereClient struct {
	baseClient
	model       string
	maxTokens   int
	temperature float64
}

type cohereRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type cohereResponse struct {
	ID          string `json:"id"`
	Generations []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"generations"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

// NewCohereClient creates a client with the given API key and default parameters.
func NewCohereClient(apiKey string) *CohereClient {
	return &CohereClient{
		baseClient:  newBaseClient(string(generation.ProviderCohere), apiKey, DefaultCohereURL),
		model:       DefaultCohereModel,
		maxTokens:   DefaultCohereMaxTokens,
		temperature: DefaultCohereTemperature,
	}
}

// WithBaseURL sets a custom base URL for the API.
func (c *CohereClient) WithBaseURL(baseURL string) *CohereClient {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithTimeout sets the request timeout.
func (c *CohereClient) WithTimeout(timeout time.Duration) *CohereClient {
	c.httpClient.Timeout = timeout
	return c
}

// WithModel sets the model and sampling parameters. An empty model,
// non-positive maxTokens or negative temperature keeps the default.
func (c *CohereClient) WithModel(model string, maxTokens int, temperature float64) *CohereClient {
	if model != "" {
		c.model = model
	}
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
	if temperature >= 0 {
		c.temperature = temperature
	}
	return c
}

// Model returns the configured model.
func (c *CohereClient) Model() string {
	return c.model
}

// Complete sends prompt and returns the first generation's text.
func (c *CohereClient) Complete(ctx context.Context, prompt string) (string, error) {
	body := cohereRequest{
		Prompt:      prompt,
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	data, err := c.postJSON(ctx, c.baseURL+"/generate", c.model, body, func(status int, raw []byte) error {
		var apiErr cohereErrorResponse
		var detail string
		if json.Unmarshal(raw, &apiErr) == nil {
			detail = apiErr.Message
		}
		return c.upstreamError(c.model, status, detail, raw)
	})
	if err != nil {
		return "", err
	}

	var resp cohereResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &generation.UpstreamError{Provider: c.provider, Model: c.model, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(resp.Generations) == 0 {
		return "", &generation.UpstreamError{Provider: c.provider, Model: c.model, Err: errors.New("no generations returned")}
	}
	return resp.Generations[0].Text, nil
}
