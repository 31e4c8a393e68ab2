// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rizkirmdhn1215/chatbot/internal/toast"
)

// Theme holds the styles used by the chat and review views.
type Theme struct {
	// ColorProfile is the profile styles render with.
	ColorProfile termenv.Profile

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Subtle      lipgloss.Style

	UserLabel  lipgloss.Style
	UserBubble lipgloss.Style
	AILabel    lipgloss.Style
	AIBubble   lipgloss.Style

	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style

	Card          lipgloss.Style
	Timestamp     lipgloss.Style
	ProviderBadge lipgloss.Style
	TrainingBadge lipgloss.Style

	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style
	ToastInfo    lipgloss.Style
}

// NewTheme detects the terminal color profile and builds the styles.
// When noColor is set the Ascii profile is forced.
func NewTheme(noColor bool) *Theme {
	profile := termenv.ColorProfile()
	if noColor {
		profile = termenv.Ascii
	}
	return NewThemeWithProfile(profile)
}

// NewThemeWithProfile builds the styles for an explicit color profile.
func NewThemeWithProfile(profile termenv.Profile) *Theme {
	lipgloss.SetColorProfile(profile)

	t := &Theme{ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Subtle = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)

	t.AILabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.AIBubble = lipgloss.NewStyle().
		Foreground(AIBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AIBubbleBorder).
		PaddingLeft(1)

	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary)

	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.ProviderBadge = lipgloss.NewStyle().Foreground(TextInverse).Background(Purple).Padding(0, 1)
	t.TrainingBadge = lipgloss.NewStyle().Foreground(TextInverse).Background(Amber).Padding(0, 1)

	t.ToastSuccess = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.ToastError = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.ToastInfo = lipgloss.NewStyle().Foreground(Cyan)
}

// Toast renders a toast with its status marker.
func (t *Theme) Toast(tt toast.Toast) string {
	switch tt.Kind {
	case toast.KindSuccess:
		return t.ToastSuccess.Render(StatusIndicators.Success + " " + tt.Message)
	case toast.KindError:
		return t.ToastError.Render(StatusIndicators.Error + " " + tt.Message)
	default:
		return t.ToastInfo.Render(StatusIndicators.Info + " " + tt.Message)
	}
}
