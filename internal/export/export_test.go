// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
)

func sampleRecords() []storage.Record {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []storage.Record{
		{ID: "2", UserMessage: "What is 2+2?", AIResponse: "4", Provider: storage.ProviderManual, IsTrainingData: true, Timestamp: base.Add(time.Hour)},
		{ID: "1", UserMessage: "hello <b>", AIResponse: "hi there", Provider: "huggingface", UserID: "u_1", Timestamp: base},
	}
}

func TestNew(t *testing.T) {
	for format, ext := range map[Format]string{
		FormatJSONL:    ".jsonl",
		FormatJSON:     ".json",
		FormatMarkdown: ".md",
		"MD":           ".md",
	} {
		exporter, err := New(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ext, exporter.FileExtension(), format)
	}

	_, err := New("html", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestJSONLExporter(t *testing.T) {
	data, err := NewJSONLExporter(nil).Export(sampleRecords())
	require.NoError(t, err)

	var lines []TrainingLine
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var line TrainingLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)

	assert.Equal(t, "What is 2+2?", lines[0].Prompt)
	assert.Equal(t, "4", lines[0].Completion)
	assert.True(t, lines[0].Training)
	assert.Equal(t, "hello <b>", lines[1].Prompt)
	assert.Contains(t, string(data), "hello <b>", "HTML must not be escaped")
}

func TestJSONExporter(t *testing.T) {
	data, err := NewJSONExporter(nil).Export(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = NewJSONExporter(nil).Export(sampleRecords())
	require.NoError(t, err)

	var records []storage.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[0].ID)
	assert.Equal(t, "u_1", records[1].UserID)
}

func TestMarkdownExporter(t *testing.T) {
	data, err := NewMarkdownExporter(nil).Export(sampleRecords())
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "records: 2\n")
	assert.Contains(t, out, "training: 1\n")
	assert.Contains(t, out, "## 2024-05-01 13:00:00 UTC | manual | training")
	assert.Contains(t, out, "## 2024-05-01 12:00:00 UTC | huggingface | user u\\_1")
	assert.Contains(t, out, "**User:** What is 2+2?")
	assert.Contains(t, out, "**AI:** hi there")
	assert.Less(t, strings.Index(out, "What is 2+2?"), strings.Index(out, "hello"))

	data, err = NewMarkdownExporter(&Options{}).Export(sampleRecords())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "UTC |")
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	opts := &Options{OutputDir: dir, TrainingOnly: true}

	path, err := ExportToFile(sampleRecords(), NewJSONLExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "training_"))
	assert.Equal(t, ".jsonl", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), "hello")
}

func TestExportToFile_NothingToExport(t *testing.T) {
	opts := &Options{OutputDir: t.TempDir(), TrainingOnly: true}
	records := []storage.Record{{UserMessage: "a", AIResponse: "b", Provider: "cohere"}}

	_, err := ExportToFile(records, NewJSONExporter(opts), opts)
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestFilter(t *testing.T) {
	records := sampleRecords()
	assert.Len(t, Filter(records, nil), 2)
	assert.Len(t, Filter(records, &Options{}), 2)

	training := Filter(records, &Options{TrainingOnly: true})
	require.Len(t, training, 1)
	assert.Equal(t, "2", training[0].ID)
}
