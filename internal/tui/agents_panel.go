package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/parari/internal/result"
	"github.com/ShayCichocki/parari/pkg/models"
)

// AgentsPanel renders the agent list in the left pane.
type AgentsPanel struct {
	width   int
	height  int
	focused bool

	titleStyle    lipgloss.Style
	borderStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	dimStyle      lipgloss.Style
	okStyle       lipgloss.Style
	failStyle     lipgloss.Style
}

// NewAgentsPanel creates a new AgentsPanel instance.
func NewAgentsPanel() *AgentsPanel {
	return &AgentsPanel{
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		selectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		okStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}

// SetSize updates the panel's outer dimensions.
func (p *AgentsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetFocused sets whether this panel has keyboard focus.
func (p *AgentsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// statusGlyph returns the one-column marker for a status.
func (p *AgentsPanel) statusGlyph(s models.AgentStatus, spin spinner.Model) string {
	switch s {
	case models.AgentStatusRunning:
		return spin.View()
	case models.AgentStatusSucceeded:
		return p.okStyle.Render("✓")
	case models.AgentStatusFailed:
		return p.failStyle.Render("✗")
	case models.AgentStatusCancelled:
		return p.dimStyle.Render("⊘")
	default:
		return p.dimStyle.Render("·")
	}
}

// row renders one agent line: emoji, name, status glyph and change count.
func (p *AgentsPanel) row(a models.AgentSnapshot, spin spinner.Model, width int) string {
	changes := ""
	if a.Diff != nil && a.Diff.FilesChanged > 0 {
		changes = fmt.Sprintf("+%d", a.Diff.FilesChanged)
	}
	// emoji (2) + spaces (3) + glyph (1) + changes
	nameWidth := width - 6 - len(changes)
	if nameWidth < 1 {
		nameWidth = 1
	}
	name := ansi.Truncate(a.Agent, nameWidth, "…")
	pad := nameWidth - ansi.StringWidth(name)
	if pad < 0 {
		pad = 0
	}
	return fmt.Sprintf("%s %s%s %s %s", result.Emoji(a.Agent), name, strings.Repeat(" ", pad), p.statusGlyph(a.Status, spin), changes)
}

// View renders the agent list with selected highlighted.
func (p *AgentsPanel) View(agents []models.AgentSnapshot, selected int, spin spinner.Model) string {
	inner := ContentWidth(p.width)

	title := "Agents"
	if p.focused {
		title = "[Agents]"
	}

	var b strings.Builder
	b.WriteString(p.titleStyle.Render(title))
	for i, a := range agents {
		b.WriteString("\n")
		line := p.row(a, spin, inner)
		if i == selected {
			style := p.selectedStyle
			if !p.focused {
				style = style.Bold(false)
			}
			line = style.Render(line)
		}
		b.WriteString(line)
	}
	if len(agents) == 0 {
		b.WriteString("\n")
		b.WriteString(p.dimStyle.Italic(true).Render("No agents"))
	}

	border := p.borderStyle
	if p.focused {
		border = border.BorderForeground(lipgloss.Color("39"))
	}
	return border.
		Width(p.width - 2).
		Height(p.height - 2).
		Render(b.String())
}
