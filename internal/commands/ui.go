package commands

import (
	"context"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	colorPrimary   = lipgloss.Color("#FF6B35") // Orange accent
	colorSecondary = lipgloss.Color("#7C3AED") // Purple
	colorSuccess   = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Yellow
	colorError     = lipgloss.Color("#EF4444") // Red
	colorMuted     = lipgloss.Color("#6B7280") // Gray

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSection = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary).
			MarginTop(1)

	styleVersion = lipgloss.NewStyle().
			Foreground(colorSecondary)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleAllow = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleDeny = lipgloss.NewStyle().
			Foreground(colorError)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleAdded   = lipgloss.NewStyle().Foreground(colorSuccess)
	styleRemoved = lipgloss.NewStyle().Foreground(colorError)
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
