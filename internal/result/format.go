package result

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/parari/pkg/models"
)

const ruleWidth = 50

// NoChanges is shown in place of an empty diff.
const NoChanges = "No changes detected."

// NoOutput is shown in place of an empty log.
const NoOutput = "(no output)"

// Emoji returns the icon for an agent family.
func Emoji(agent string) string {
	switch name := strings.ToLower(agent); {
	case strings.Contains(name, "claude"):
		return "🤖"
	case strings.Contains(name, "gemini"):
		return "✨"
	case strings.Contains(name, "codex"):
		return "📦"
	default:
		return "💻"
	}
}

// StatusLabel returns the capitalised display form of a status.
func StatusLabel(s models.AgentStatus) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Clean strips ANSI escape sequences and carriage returns from agent output.
func Clean(line string) string {
	return strings.TrimRight(ansi.Strip(line), "\r")
}

// FormatLog renders an agent's log view.
func FormatLog(a models.AgentSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s - %s\n", Emoji(a.Agent), a.Agent, StatusLabel(a.Status))
	b.WriteString(strings.Repeat("=", ruleWidth))
	b.WriteString("\n\n")

	if a.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n\n", a.Error)
	}

	if a.Diff != nil {
		b.WriteString("Summary:\n")
		fmt.Fprintf(&b, "  Files changed: %d\n", a.Diff.FilesChanged)
		fmt.Fprintf(&b, "  + Added:       %d\n", a.Diff.FilesAdded)
		fmt.Fprintf(&b, "  ~ Modified:    %d\n", a.Diff.FilesModified)
		fmt.Fprintf(&b, "  - Deleted:     %d\n", a.Diff.FilesDeleted)
		b.WriteString("\n")
	}

	b.WriteString("Output:\n")
	b.WriteString(strings.Repeat("-", ruleWidth))
	b.WriteString("\n")
	if len(a.Log) == 0 {
		b.WriteString(NoOutput)
		b.WriteString("\n")
	}
	for _, l := range a.Log {
		switch l.Stream {
		case models.StreamStderr:
			b.WriteString("[stderr] ")
		case models.StreamSystem:
			b.WriteString("[parari] ")
		}
		b.WriteString(Clean(l.Text))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("-", ruleWidth))
	b.WriteString("\n")

	return b.String()
}

// FormatDiff renders an agent's diff view.
func FormatDiff(d *models.DiffSummary) string {
	if d.Empty() {
		return NoChanges
	}
	if strings.TrimSpace(d.Diff) == "" {
		// Only untracked additions, which git diff does not show.
		var b strings.Builder
		for _, f := range d.ChangedFiles {
			fmt.Fprintf(&b, "+++ %s\n", f)
		}
		return b.String()
	}
	return d.Diff
}
