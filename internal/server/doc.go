// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat backend HTTP API.
//
// A chat request names a provider. The server looks the provider up in a
// generation.Registry, writes the reply to the client and then hands the
// exchange to a background queue for persistence. A failed write is logged
// and never changes a response that was already sent.
//
// # Endpoints
//
//   - POST /api/chat           - {message, provider, userId?} -> {message}
//   - GET  /api/conversations  - Stored records, newest first (admin)
//   - POST /api/training       - {userMessage, aiResponse} -> 201 {id} (admin)
//   - GET  /health             - Providers, store and queue status
//   - GET  /stats              - Request, fallback and persistence counters
//
// Errors use the same body as replies: {"message": "Error: ..."}.
//
// # Middleware
//
// Recovery, security headers, request logging, CORS and per-IP rate
// limiting wrap every route. Admin routes additionally require a bearer
// token, compared in constant time or against a bcrypt hash.
//
// # Usage
//
//	srv := server.New(registry, store, queue).
//		WithAddr(cfg.Addr()).
//		WithAuth(server.NewAuthConfig(cfg.Server.AdminToken, cfg.Server.AdminTokenHash, nil)).
//		WithRateLimiter(server.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
