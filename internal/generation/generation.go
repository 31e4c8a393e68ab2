// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generation turns a user message into AI text using hosted
// text-generation providers.
package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces a reply for a user message.
type Generator interface {
	Generate(ctx context.Context, message string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, message string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// ModelCandidate is one model of a fallback sequence together with its
// sampling parameters.
type ModelCandidate struct {
	Model       string
	MaxLength   int
	Temperature float64
	TopP        float64
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider names a hosted generation backend.
type Provider string

const (
	// ProviderHuggingFace tries a sequence of hosted models in order.
	ProviderHuggingFace Provider = "huggingface"
	// ProviderCohere makes a single request to Cohere.
	ProviderCohere Provider = "cohere"
)

// ParseProvider maps a request value onto a known provider.
// It returns false for empty or unrecognised names.
func ParseProvider(name string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderHuggingFace, ProviderCohere:
		return p, true
	default:
		return "", false
	}
}

// String returns the provider name as stored on conversation records.
func (p Provider) String() string {
	return string(p)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps providers to their generators.
type Registry struct {
	mu         sync.RWMutex
	generators map[Provider]Generator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[Provider]Generator)}
}

// Register binds gen to provider, replacing any previous binding.
func (r *Registry) Register(provider Provider, gen Generator) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[provider] = gen
	return r
}

// Lookup returns the generator bound to provider.
func (r *Registry) Lookup(provider Provider) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[provider]
	return gen, ok
}

// Providers returns the registered providers in name order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.generators))
	for p := range r.generators {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Generate runs the generator registered for the named provider. Unknown or
// empty names yield ErrNoResponse without any upstream call.
func (r *Registry) Generate(ctx context.Context, provider, message string) (Provider, string, error) {
	p, ok := ParseProvider(provider)
	if !ok {
		return "", "", ErrNoResponse
	}
	gen, ok := r.Lookup(p)
	if !ok {
		return p, "", fmt.Errorf("provider %s not configured: %w", p, ErrNoResponse)
	}
	reply, err := gen.Generate(ctx, message)
	return p, reply, err
}

// =============================================================================
// PROMPT
// =============================================================================

// DefaultPromptTemplate is applied to messages sent to fallback candidates.
const DefaultPromptTemplate = "Question: {message}\n\nPlease provide a helpful and friendly response."

// BuildPrompt substitutes message into template and trims the result.
func BuildPrompt(template, message string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.TrimSpace(strings.ReplaceAll(template, "{message}", message))
}
