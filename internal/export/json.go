// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the records as one indented JSON array, in the same
// shape the backend returns from /api/conversations.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export implements Exporter.
func (e *JSONExporter) Export(records []storage.Record) ([]byte, error) {
	if records == nil {
		records = []storage.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// =============================================================================
// JSONL EXPORTER
// =============================================================================

// TrainingLine is one line of a JSONL training export.
type TrainingLine struct {
	Prompt     string    `json:"prompt"`
	Completion string    `json:"completion"`
	Provider   string    `json:"provider,omitempty"`
	Training   bool      `json:"isTrainingData"`
	Timestamp  time.Time `json:"timestamp"`
}

// JSONLExporter writes one prompt/completion object per line, the layout
// most fine-tuning tools accept.
type JSONLExporter struct {
	options *Options
}

// NewJSONLExporter creates a new JSONL exporter.
func NewJSONLExporter(opts *Options) *JSONLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONLExporter{options: opts}
}

// Export implements Exporter.
func (e *JSONLExporter) Export(records []storage.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		line := TrainingLine{
			Prompt:     rec.UserMessage,
			Completion: rec.AIResponse,
			Provider:   rec.Provider,
			Training:   rec.IsTrainingData,
			Timestamp:  rec.Timestamp.UTC(),
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for JSONL.
func (e *JSONLExporter) FileExtension() string {
	return ".jsonl"
}
