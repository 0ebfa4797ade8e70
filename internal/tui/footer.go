package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/parari/pkg/models"
)

// Footer renders the status line and keyboard hints.
type Footer struct {
	message string
	isError bool
	prompt  string
	width   int
	help    help.Model

	successStyle   lipgloss.Style
	errorStyle     lipgloss.Style
	promptStyle    lipgloss.Style
	hintStyle      lipgloss.Style
	separatorStyle lipgloss.Style
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{
		help: help.New(),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		hintStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		separatorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")),
	}
}

// SetMessage sets the status message. An error message is shown in red.
func (f *Footer) SetMessage(message string, isError bool) {
	f.message = message
	f.isError = isError
}

// Message returns the current status message.
func (f *Footer) Message() string { return f.message }

// SetPrompt shows a y/n question in place of the status message. An empty
// prompt clears it.
func (f *Footer) SetPrompt(prompt string) {
	f.prompt = prompt
}

// Prompt returns the pending question, if any.
func (f *Footer) Prompt() string { return f.prompt }

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
	f.help.Width = width
}

// ToggleHelp switches between short and full key help.
func (f *Footer) ToggleHelp() {
	f.help.ShowAll = !f.help.ShowAll
}

// View renders the footer: a status line above the key help.
func (f *Footer) View(counts map[models.AgentStatus]int, keys help.KeyMap) string {
	status := fmt.Sprintf("✓%d ✗%d ⊘%d ⏳%d",
		counts[models.AgentStatusSucceeded],
		counts[models.AgentStatusFailed],
		counts[models.AgentStatusCancelled],
		counts[models.AgentStatusRunning]+counts[models.AgentStatusPending])

	var left string
	switch {
	case f.prompt != "":
		left = f.promptStyle.Render(f.prompt + " [y/n]")
	case f.message != "" && f.isError:
		left = f.errorStyle.Render(f.message)
	case f.message != "":
		left = f.successStyle.Render(f.message)
	}

	line := f.hintStyle.Render(status)
	if left != "" {
		line += f.separatorStyle.Render(" │ ") + left
	}
	if f.width > 0 {
		line = ansi.Truncate(line, f.width, "…")
	}
	return line + "\n" + f.help.View(keys)
}
