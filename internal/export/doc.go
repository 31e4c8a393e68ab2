// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored conversations to files for training and review.
//
// # Key Types
//
//   - Exporter: Format interface
//   - Format: jsonl, json or markdown
//   - Options: Output directory and filters
//
// # Supported Formats
//
//   - JSONL: One prompt/completion object per line
//   - JSON: The record array as served by the backend
//   - Markdown: Human-readable listing
//
// # Usage
//
//	exporter, err := export.New(export.FormatJSONL, opts)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(records, exporter, opts)
package export
