// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across chatbot packages.
//
// # Key Functions
//
// Text:
//   - NormalizeText: NFC normalisation and trimming of user input
//   - TruncateWidth: Column-aware truncation for terminal lists
//   - TruncateRunes: UTF-8 safe truncation of upstream error excerpts
//   - SingleLine: Whitespace collapsing for previews
//
// Files:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
