// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers per model from a fixed script and records calls.
type scriptedClient struct {
	mu      sync.Mutex
	calls   []string
	prompts []string
	results map[string]result
}

type result struct {
	text string
	err  error
}

func (c *scriptedClient) GenerateText(ctx context.Context, cand ModelCandidate, prompt string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, cand.Model)
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()

	r, ok := c.results[cand.Model]
	if !ok {
		return "", errors.New("unscripted model")
	}
	return r.text, r.err
}

func candidates(models ...string) []ModelCandidate {
	out := make([]ModelCandidate, len(models))
	for i, m := range models {
		out[i] = ModelCandidate{Model: m, MaxLength: 500, Temperature: 0.7, TopP: 0.95}
	}
	return out
}

func TestFallback_FirstSuccessShortCircuits(t *testing.T) {
	client := &scriptedClient{results: map[string]result{
		"a": {err: &UpstreamError{Provider: "huggingface", Model: "a", Status: 503, Detail: "loading"}},
		"b": {text: "  hi there \n"},
		"c": {text: "never"},
	}}
	gen := NewFallbackGenerator(client, candidates("a", "b", "c"))

	reply, err := gen.Generate(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, []string{"a", "b"}, client.calls)
}

func TestFallback_AllFailWrapsLast(t *testing.T) {
	first := errors.New("first failure")
	last := &UpstreamError{Provider: "huggingface", Model: "b", Status: 429, Detail: "Rate limit reached"}
	client := &scriptedClient{results: map[string]result{
		"a": {err: first},
		"b": {err: last},
	}}
	gen := NewFallbackGenerator(client, candidates("a", "b"))

	_, err := gen.Generate(context.Background(), "hello")

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, first)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 429, upstream.Status)
}

func TestFallback_EmptyCandidates(t *testing.T) {
	client := &scriptedClient{}
	gen := NewFallbackGenerator(client, nil)

	_, err := gen.Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrAllCandidatesFailed)
	assert.Empty(t, client.calls)
}

func TestFallback_PromptTemplate(t *testing.T) {
	client := &scriptedClient{results: map[string]result{"a": {text: "ok"}}}
	gen := NewFallbackGenerator(client, candidates("a"))

	_, err := gen.Generate(context.Background(), "What is Go?")
	require.NoError(t, err)
	assert.Equal(t, "Question: What is Go?\n\nPlease provide a helpful and friendly response.", client.prompts[0])

	gen.WithPromptTemplate("Q: {message}")
	_, err = gen.Generate(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, "Q: again", client.prompts[1])
}

func TestFallback_CancelledContextStops(t *testing.T) {
	client := &scriptedClient{results: map[string]result{"a": {text: "ok"}}}
	gen := NewFallbackGenerator(client, candidates("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.calls)
}

func TestFallback_ObserverAndSetCandidates(t *testing.T) {
	client := &scriptedClient{results: map[string]result{
		"a": {err: errors.New("down")},
		"z": {text: "from z"},
	}}
	var attempts []Attempt
	gen := NewFallbackGenerator(client, candidates("a")).
		WithObserver(func(a Attempt) { attempts = append(attempts, a) })

	_, err := gen.Generate(context.Background(), "hello")
	require.Error(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "a", attempts[0].Model)
	assert.Error(t, attempts[0].Err)

	gen.SetCandidates(candidates("z"))
	reply, err := gen.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "from z", reply)
	assert.Equal(t, []ModelCandidate{{Model: "z", MaxLength: 500, Temperature: 0.7, TopP: 0.95}}, gen.Candidates())
}

type stubCompleter struct {
	calls int
	text  string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestSingleShot(t *testing.T) {
	ok := &stubCompleter{text: "  Hello!  "}
	reply, err := NewSingleShotGenerator(ok).Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)

	cause := &UpstreamError{Provider: "cohere", Status: 500}
	failing := &stubCompleter{err: cause}
	_, err = NewSingleShotGenerator(failing).Generate(context.Background(), "hi")
	assert.Same(t, cause, err)
	assert.Equal(t, 1, failing.calls)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
		ok   bool
	}{
		{"huggingface", ProviderHuggingFace, true},
		{"Cohere", ProviderCohere, true},
		{"", "", false},
		{"openai", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProvider(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestRegistry_Generate(t *testing.T) {
	called := false
	reg := NewRegistry().Register(ProviderCohere, GeneratorFunc(func(ctx context.Context, msg string) (string, error) {
		called = true
		return "echo " + msg, nil
	}))

	p, reply, err := reg.Generate(context.Background(), "cohere", "x")
	require.NoError(t, err)
	assert.Equal(t, ProviderCohere, p)
	assert.Equal(t, "echo x", reply)
	assert.True(t, called)

	_, _, err = reg.Generate(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrNoResponse)

	_, _, err = reg.Generate(context.Background(), "mystery", "x")
	assert.ErrorIs(t, err, ErrNoResponse)

	_, _, err = reg.Generate(context.Background(), "huggingface", "x")
	assert.ErrorIs(t, err, ErrNoResponse)

	assert.Equal(t, []Provider{ProviderCohere}, reg.Providers())
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{Provider: "huggingface", Model: "m", Status: 503, Detail: "Model is loading"}
	assert.Equal(t, "huggingface m (HTTP 503): Model is loading", err.Error())

	cause := errors.New("dial tcp: refused")
	err = &UpstreamError{Provider: "cohere", Err: cause}
	assert.Equal(t, "cohere: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
