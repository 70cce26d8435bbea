// Package theme styles terminal output of the practice command.
package theme

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/prepwise/internal/quiz"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Vivid Purple
	Success = lipgloss.Color("#22C55E") // Green
	Info    = lipgloss.Color("#3B82F6") // Blue
	Warning = lipgloss.Color("#EAB308") // Yellow
	Error   = lipgloss.Color("#F43F5E") // Rose
	TextDim = lipgloss.Color("#94A3B8") // Slate
	Border  = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Bold(true)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Failure = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

// Card frames a question body.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

var tierColors = map[string]lipgloss.Style{
	"excellent": lipgloss.NewStyle().Foreground(Success).Bold(true),
	"good":      lipgloss.NewStyle().Foreground(Info).Bold(true),
	"fair":      lipgloss.NewStyle().Foreground(Warning).Bold(true),
	"poor":      lipgloss.NewStyle().Foreground(Error).Bold(true),
}

// Score returns the style of a score's tier.
func Score(score int) lipgloss.Style {
	return tierColors[quiz.ScoreTier(score)]
}
