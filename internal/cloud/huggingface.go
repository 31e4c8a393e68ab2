// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/generation"
)

// DefaultHuggingFaceURL is the base URL of the hosted inference API.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

// HuggingFaceClient calls the hosted inference text-generation task.
// It implements generation.CandidateClient.
type HuggingFaceClient struct {
	baseClient
}

// hfRequest is the text-generation request body.
type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxLength      int     `json:"max_length,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

// NewHuggingFaceClient creates a client with the given API key.
func NewHuggingFaceClient(apiKey string) *HuggingFaceClient {
	return &HuggingFaceClient{baseClient: newBaseClient(string(generation.ProviderHuggingFace), apiKey, DefaultHuggingFaceURL)}
}

// WithBaseURL sets a custom base URL for the API.
func (c *HuggingFaceClient) WithBaseURL(baseURL string) *HuggingFaceClient {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithTimeout sets the request timeout.
func (c *HuggingFaceClient) WithTimeout(timeout time.Duration) *HuggingFaceClient {
	c.httpClient.Timeout = timeout
	return c
}

// GenerateText sends one text-generation request for candidate.
func (c *HuggingFaceClient) GenerateText(ctx context.Context, candidate generation.ModelCandidate, prompt string) (string, error) {
	endpoint := c.baseURL + "/models/" + escapeModel(candidate.Model)

	body := hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxLength:   candidate.MaxLength,
			Temperature: candidate.Temperature,
			TopP:        candidate.TopP,
		},
	}

	data, err := c.postJSON(ctx, endpoint, candidate.Model, body, func(status int, raw []byte) error {
		return c.handleErrorResponse(candidate.Model, status, raw)
	})
	if err != nil {
		return "", err
	}

	text, err := parseHFGeneration(data)
	if err != nil {
		return "", &generation.UpstreamError{Provider: c.provider, Model: candidate.Model, Err: err}
	}
	return text, nil
}

// parseHFGeneration accepts both the list and the single-object response shapes.
func parseHFGeneration(data []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty generation list")
		}
		return list[0].GeneratedText, nil
	}

	var single hfGeneration
	if err := json.Unmarshal(data, &single); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return single.GeneratedText, nil
}

// handleErrorResponse extracts the "error" field, which is either a string
// or a list of strings.
func (c *HuggingFaceClient) handleErrorResponse(model string, status int, body []byte) error {
	var detail string
	var apiErr hfErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Error) > 0 {
		var msg string
		var msgs []string
		switch {
		case json.Unmarshal(apiErr.Error, &msg) == nil:
			detail = msg
		case json.Unmarshal(apiErr.Error, &msgs) == nil:
			detail = strings.Join(msgs, "; ")
		}
	}
	return c.upstreamError(model, status, detail, body)
}

// escapeModel escapes each path segment of an "org/name" model id.
func escapeModel(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
