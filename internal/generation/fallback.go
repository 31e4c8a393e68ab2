// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
)

// CandidateClient performs one text-generation request against a hosted model.
type CandidateClient interface {
	GenerateText(ctx context.Context, candidate ModelCandidate, prompt string) (string, error)
}

// Attempt describes the outcome of one candidate request.
type Attempt struct {
	Model   string
	Err     error
	Latency time.Duration
}

// =============================================================================
// FALLBACK GENERATOR
// =============================================================================

// FallbackGenerator tries an ordered list of candidates, one request each,
// and returns the first successful output. Candidates are never tried in
// parallel and a later candidate is only contacted after every earlier one
// failed.
type FallbackGenerator struct {
	client   CandidateClient
	template string
	observer func(Attempt)

	mu         sync.RWMutex
	candidates []ModelCandidate
}

// NewFallbackGenerator creates a generator over candidates.
func NewFallbackGenerator(client CandidateClient, candidates []ModelCandidate) *FallbackGenerator {
	g := &FallbackGenerator{
		client:   client,
		template: DefaultPromptTemplate,
	}
	g.SetCandidates(candidates)
	return g
}

// WithPromptTemplate sets the prompt template; "{message}" is replaced.
func (g *FallbackGenerator) WithPromptTemplate(template string) *FallbackGenerator {
	if template != "" {
		g.template = template
	}
	return g
}

// WithObserver registers fn to be called after every candidate attempt.
func (g *FallbackGenerator) WithObserver(fn func(Attempt)) *FallbackGenerator {
	g.observer = fn
	return g
}

// SetCandidates replaces the fallback sequence. Calls already in progress
// keep the sequence they started with.
func (g *FallbackGenerator) SetCandidates(candidates []ModelCandidate) {
	copied := make([]ModelCandidate, len(candidates))
	copy(copied, candidates)

	g.mu.Lock()
	g.candidates = copied
	g.mu.Unlock()
}

// Candidates returns a copy of the current fallback sequence.
func (g *FallbackGenerator) Candidates() []ModelCandidate {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]ModelCandidate, len(g.candidates))
	copy(out, g.candidates)
	return out
}

// Generate implements Generator.
//
// The first candidate to succeed ends the sequence and its trimmed output is
// returned. If all fail the result is an *ExhaustedError wrapping the last
// failure; an empty sequence yields ErrAllCandidatesFailed. A cancelled
// context stops the sequence and its error is returned unchanged.
func (g *FallbackGenerator) Generate(ctx context.Context, message string) (string, error) {
	candidates := g.Candidates()
	prompt := BuildPrompt(g.template, message)

	var lastErr error
	attempts := 0
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		attempts++
		start := time.Now()
		text, err := g.client.GenerateText(ctx, cand, prompt)
		latency := time.Since(start)

		if g.observer != nil {
			g.observer(Attempt{Model: cand.Model, Err: err, Latency: latency})
		}

		if err == nil {
			log.Printf("CANDIDATE_SUCCEEDED | model=%s latency=%dms", cand.Model, latency.Milliseconds())
			return strings.TrimSpace(text), nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}

		log.Printf("CANDIDATE_FAILED | model=%s latency=%dms error=%v", cand.Model, latency.Milliseconds(), err)
		lastErr = err
	}

	if lastErr == nil {
		return "", ErrAllCandidatesFailed
	}
	return "", &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// =============================================================================
// SINGLE-SHOT GENERATOR
// =============================================================================

// Completer sends a prompt to a provider with fixed parameters.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SingleShotGenerator makes exactly one request and never retries.
// The message is sent as the prompt without templating.
type SingleShotGenerator struct {
	client Completer
}

// NewSingleShotGenerator creates a generator backed by client.
func NewSingleShotGenerator(client Completer) *SingleShotGenerator {
	return &SingleShotGenerator{client: client}
}

// Generate implements Generator. Errors propagate unchanged.
func (g *SingleShotGenerator) Generate(ctx context.Context, message string) (string, error) {
	text, err := g.client.Complete(ctx, message)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
