// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/ui/styles"
)

type fakeBackend struct {
	records  []storage.Record
	listErr  error
	addErr   error
	added    []storage.TrainingExample
	lastUser string
}

func (f *fakeBackend) ListConversations(ctx context.Context, userID string) ([]storage.Record, error) {
	f.lastUser = userID
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]storage.Record(nil), f.records...), nil
}

func (f *fakeBackend) AddTrainingExample(ctx context.Context, ex storage.TrainingExample) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, ex)
	return "id-1", nil
}

type recordingNotifier struct {
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(m string) int { n.successes = append(n.successes, m); return 1 }
func (n *recordingNotifier) Error(m string) int   { n.errors = append(n.errors, m); return 1 }

func TestBoard_LoadSortsNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backend := &fakeBackend{records: []storage.Record{
		{ID: "old", Timestamp: base.Add(-2 * time.Hour)},
		{ID: "new", Timestamp: base},
		{ID: "mid", Timestamp: base.Add(-time.Hour)},
	}}
	board := NewBoard(backend, nil)

	records, err := board.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", backend.lastUser)

	ids := []string{records[0].ID, records[1].ID, records[2].ID}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
	assert.Equal(t, records, board.Records())
	assert.False(t, board.Busy())
}

func TestBoard_LoadFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	board := NewBoard(&fakeBackend{listErr: errors.New("Error: Unauthorized")}, notifier)

	_, err := board.Load(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, []string{"Error: Unauthorized"}, notifier.errors)
	assert.Empty(t, board.Records())
}

func TestBoard_AddTrainingExample(t *testing.T) {
	backend := &fakeBackend{}
	notifier := &recordingNotifier{}
	board := NewBoard(backend, notifier)

	_, err := board.AddTrainingExample(context.Background(), "  ", "4")
	assert.ErrorIs(t, err, ErrIncompleteExample)
	_, err = board.AddTrainingExample(context.Background(), "What is 2+2?", "")
	assert.ErrorIs(t, err, ErrIncompleteExample)
	assert.Empty(t, backend.added)

	id, err := board.AddTrainingExample(context.Background(), " What is 2+2? ", "4")
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, []storage.TrainingExample{{UserMessage: "What is 2+2?", AIResponse: "4"}}, backend.added)
	assert.Equal(t, []string{AddedMessage}, notifier.successes)
}

func TestBoard_AddTrainingExampleFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	board := NewBoard(&fakeBackend{addErr: errors.New("Error: storage not configured")}, notifier)

	_, err := board.AddTrainingExample(context.Background(), "q", "a")
	require.Error(t, err)
	assert.Equal(t, []string{AddFailedMessage, "Error: storage not configured"}, notifier.errors)
}

func TestRender(t *testing.T) {
	theme := styles.NewThemeWithProfile(termenv.Ascii)

	assert.Equal(t, "No conversations yet.", Render(theme, nil, RenderOptions{}))

	records := []storage.Record{
		{
			UserMessage: "hello\nthere",
			AIResponse:  strings.Repeat("long answer ", 20),
			Provider:    "cohere",
			UserID:      "u1",
			Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			UserMessage:    "What is 2+2?",
			AIResponse:     "4",
			Provider:       storage.ProviderManual,
			IsTrainingData: true,
			Timestamp:      time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
		},
	}
	out := Render(theme, records, RenderOptions{Width: 60, Location: time.UTC})

	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "cohere")
	assert.Contains(t, out, "training")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "...")
	assert.Less(t, strings.Index(out, "12:00:00"), strings.Index(out, "11:00:00"))

	full := Render(theme, records[:1], RenderOptions{Width: 60, Full: true, Location: time.UTC})
	assert.NotContains(t, full, "...")
}
