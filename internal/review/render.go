// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rizkirmdhn1215/chatbot/internal/storage"
	"github.com/rizkirmdhn1215/chatbot/internal/ui/styles"
	"github.com/rizkirmdhn1215/chatbot/internal/util"
)

// TimeLayout formats record timestamps in listings.
const TimeLayout = "2006-01-02 15:04:05"

// RenderOptions controls listing output.
type RenderOptions struct {
	// Width is the terminal width. Messages are cut to fit unless Full is set.
	Width int

	// Full prints whole messages instead of one truncated line each.
	Full bool

	// Location converts timestamps; nil means local time.
	Location *time.Location
}

// Render draws records as cards in the given order.
func Render(theme *styles.Theme, records []storage.Record, opts RenderOptions) string {
	if len(records) == 0 {
		return theme.Subtle.Render("No conversations yet.")
	}

	width := opts.Width
	if width <= 0 {
		width = 80
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	// Card border and padding take four columns; labels take six.
	inner := width - 4
	textWidth := inner - 6

	cards := make([]string, 0, len(records))
	for _, rec := range records {
		header := theme.Timestamp.Render(rec.Timestamp.In(loc).Format(TimeLayout)) +
			"  " + theme.ProviderBadge.Render(rec.Provider)
		if rec.IsTrainingData {
			header += " " + theme.TrainingBadge.Render("training")
		}
		if rec.UserID != "" {
			header += "  " + theme.Subtle.Render(util.TruncateWidth(rec.UserID, 24))
		}

		body := []string{
			header,
			theme.UserLabel.Render("User:") + " " + fit(rec.UserMessage, textWidth, opts.Full),
			theme.AILabel.Render("AI:  ") + " " + fit(rec.AIResponse, textWidth, opts.Full),
		}
		cards = append(cards, theme.Card.Width(inner).Render(strings.Join(body, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func fit(s string, width int, full bool) string {
	if full {
		return s
	}
	return util.TruncateWidth(util.SingleLine(s), width)
}
