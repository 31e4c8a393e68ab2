// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts conversation records to a file format.
type Exporter interface {
	// Export converts records, in the given order, to the target format.
	Export(records []storage.Record) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".jsonl".
	FileExtension() string
}

// Format names a supported export format.
type Format string

const (
	FormatJSONL    Format = "jsonl"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned by New for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrNothingToExport is returned when no record passes the filters.
var ErrNothingToExport = errors.New("no conversations to export")

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory files are written to. Default: "."
	OutputDir string

	// TrainingOnly keeps only records added as training data.
	TrainingOnly bool

	// IncludeTimestamps adds record timestamps to Markdown output.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeTimestamps: true,
	}
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatJSONL:
		return NewJSONLExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatMarkdown, "md":
		return NewMarkdownExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (use jsonl, json or markdown)", ErrUnknownFormat, format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports records with exporter into opts.OutputDir and returns
// the written path. The file is replaced atomically.
func ExportToFile(records []storage.Record, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	records = Filter(records, opts)
	if len(records) == 0 {
		return "", ErrNothingToExport
	}

	content, err := exporter.Export(records)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	name := "conversations"
	if opts.TrainingOnly {
		name = "training"
	}
	filename := fmt.Sprintf("%s_%s%s", name, time.Now().Format("20060102_150405"), exporter.FileExtension())

	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Filter returns the records opts selects, keeping their order.
func Filter(records []storage.Record, opts *Options) []storage.Record {
	if opts == nil || !opts.TrainingOnly {
		return records
	}
	out := make([]storage.Record, 0, len(records))
	for _, rec := range records {
		if rec.IsTrainingData {
			out = append(out, rec)
		}
	}
	return out
}
