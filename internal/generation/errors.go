// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrAllCandidatesFailed is returned when a fallback sequence ends
	// without recording any failure, which only happens when it is empty.
	ErrAllCandidatesFailed = errors.New("All models failed")

	// ErrNoResponse is returned when no generator produced text, including
	// when the requested provider is unknown.
	ErrNoResponse = errors.New("No response generated")
)

// UpstreamError is a failed call to a hosted generation API.
type UpstreamError struct {
	// Provider and Model identify the request that failed.
	Provider string
	Model    string

	// Status is the HTTP status returned upstream, 0 for transport failures.
	Status int

	// Detail is the "error" message from the upstream payload, if any.
	Detail string

	// Err is the underlying cause when there was no upstream response.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	target := e.Provider
	if e.Model != "" {
		target += " " + e.Model
	}
	switch {
	case e.Detail != "" && e.Status != 0:
		return fmt.Sprintf("%s (HTTP %d): %s", target, e.Status, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", target, e.Detail)
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s (HTTP %d): %v", target, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", target, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d", target, e.Status)
	}
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every candidate of a fallback sequence
// failed. It wraps the last failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d candidates failed, last error: %v", e.Attempts, e.Last)
}

// Unwrap returns the last candidate failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
