// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides clients for hosted text-generation APIs.
//
// # Key Types
//
//   - HuggingFaceClient: Inference API text generation, one model per call
//   - CohereClient: Cohere generate endpoint with fixed parameters
//
// Both clients make exactly one HTTP request per call. Retrying and falling
// back between models is the job of package generation.
//
// # Usage
//
//	hf := cloud.NewHuggingFaceClient(apiKey)
//	gen := generation.NewFallbackGenerator(hf, candidates)
//
// # Errors
//
// Non-2xx responses become *generation.UpstreamError carrying the HTTP
// status and the upstream "error" (or "message") payload field. Where the
// status maps onto ErrAuthFailed, ErrRateLimited, ErrModelNotFound or
// ErrModelLoading the sentinel is reachable with errors.Is.
//
// # Security
//
// API keys are never logged; a SHA-256 fingerprint is logged instead.
package cloud
