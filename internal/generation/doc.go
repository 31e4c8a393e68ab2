// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generation turns a user message into AI text using hosted
// text-generation providers.
//
// # Key Types
//
//   - Generator: Common interface of every provider strategy
//   - FallbackGenerator: Ordered model candidates, first success wins
//   - SingleShotGenerator: One request, no retry
//   - Registry: Explicit Provider to Generator mapping
//   - UpstreamError / ExhaustedError: Structured failures
//
// # Usage
//
//	reg := generation.NewRegistry().
//	    Register(generation.ProviderHuggingFace,
//	        generation.NewFallbackGenerator(hf, candidates)).
//	    Register(generation.ProviderCohere,
//	        generation.NewSingleShotGenerator(cohere))
//
//	provider, reply, err := reg.Generate(ctx, "huggingface", "hello")
package generation
