// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(records []storage.Record) ([]byte, error) {
	var sb strings.Builder

	training := 0
	for _, rec := range records {
		if rec.IsTrainingData {
			training++
		}
	}

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("records: %d\n", len(records)))
	sb.WriteString(fmt.Sprintf("training: %d\n", training))
	sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().UTC().Format(time.RFC3339)))
	sb.WriteString("---\n\n")
	sb.WriteString("# Conversations\n\n")

	for i, rec := range records {
		sb.WriteString("## ")
		sb.WriteString(e.heading(rec))
		sb.WriteString("\n\n")

		sb.WriteString("**User:** ")
		sb.WriteString(strings.TrimSpace(rec.UserMessage))
		sb.WriteString("\n\n")
		sb.WriteString("**AI:** ")
		sb.WriteString(strings.TrimSpace(rec.AIResponse))
		sb.WriteString("\n\n")

		if i < len(records)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) heading(rec storage.Record) string {
	parts := make([]string, 0, 4)
	if e.options.IncludeTimestamps && !rec.Timestamp.IsZero() {
		parts = append(parts, rec.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	parts = append(parts, escapeMarkdown(rec.Provider))
	if rec.UserID != "" {
		parts = append(parts, "user "+escapeMarkdown(rec.UserID))
	}
	if rec.IsTrainingData {
		parts = append(parts, "training")
	}
	return strings.Join(parts, " | ")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	s = strings.ReplaceAll(s, "|", "\\|")
	return s
}
