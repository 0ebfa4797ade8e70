package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/parari/internal/result"
	"github.com/ShayCichocki/parari/pkg/models"
)

// ViewMode selects what the detail pane shows.
type ViewMode int

const (
	ViewLog ViewMode = iota
	ViewDiff
)

func (m ViewMode) String() string {
	if m == ViewDiff {
		return "Diff"
	}
	return "Log"
}

// LogsPanel renders the focused agent's log or diff in the right pane and
// owns its scroll position and search state.
type LogsPanel struct {
	width   int
	height  int
	focused bool

	mode   ViewMode
	scroll int
	lines  []string

	input     textinput.Model
	searching bool
	query     string
	matches   []int
	match     int

	titleStyle   lipgloss.Style
	borderStyle  lipgloss.Style
	addStyle     lipgloss.Style
	delStyle     lipgloss.Style
	hunkStyle    lipgloss.Style
	matchStyle   lipgloss.Style
	currentStyle lipgloss.Style
}

// NewLogsPanel creates a new LogsPanel instance.
func NewLogsPanel() *LogsPanel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search"
	ti.CharLimit = 200

	return &LogsPanel{
		input: ti,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),

		addStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		delStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		hunkStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),

		matchStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("58")),

		currentStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("214")).
			Foreground(lipgloss.Color("0")),
	}
}

// SetSize updates the panel's outer dimensions.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = ContentWidth(width) - 2
	p.clamp()
}

// SetFocused sets whether this panel has keyboard focus.
func (p *LogsPanel) SetFocused(focused bool) {
	p.focused = focused
}

// Mode returns the current view mode.
func (p *LogsPanel) Mode() ViewMode { return p.mode }

// Scroll returns the index of the first visible line.
func (p *LogsPanel) Scroll() int { return p.scroll }

// Query returns the committed search query.
func (p *LogsPanel) Query() string { return p.query }

// Searching reports whether the search input is open.
func (p *LogsPanel) Searching() bool { return p.searching }

// Matches returns the line indices that match the query.
func (p *LogsPanel) Matches() []int { return p.matches }

// SetMode switches the view mode, resetting scroll and search.
func (p *LogsPanel) SetMode(mode ViewMode) {
	if p.mode == mode {
		return
	}
	p.mode = mode
	p.Reset()
}

// Reset scrolls to the top and clears the search.
func (p *LogsPanel) Reset() {
	p.scroll = 0
	p.CloseSearch()
	p.query = ""
	p.matches = nil
	p.match = 0
}

// SetContent replaces the displayed lines with the agent's log or diff.
func (p *LogsPanel) SetContent(a *models.AgentSnapshot) {
	var text string
	switch {
	case a == nil:
		text = ""
	case p.mode == ViewDiff:
		text = result.FormatDiff(a.Diff)
	default:
		text = result.FormatLog(*a)
	}
	p.lines = strings.Split(strings.TrimRight(text, "\n"), "\n")
	if p.query != "" {
		p.matches = findMatches(p.lines, p.query)
		if p.match >= len(p.matches) {
			p.match = 0
		}
	}
	p.clamp()
}

// Lines returns the current content lines.
func (p *LogsPanel) Lines() []string { return p.lines }

func (p *LogsPanel) visible() int {
	h := p.height - 3 // borders and title
	if p.searching {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (p *LogsPanel) maxScroll() int {
	m := len(p.lines) - p.visible()
	if m < 0 {
		return 0
	}
	return m
}

func (p *LogsPanel) clamp() {
	if p.scroll > p.maxScroll() {
		p.scroll = p.maxScroll()
	}
	if p.scroll < 0 {
		p.scroll = 0
	}
}

// ScrollBy moves the view by n lines, clamped to the content.
func (p *LogsPanel) ScrollBy(n int) {
	p.scroll += n
	p.clamp()
}

// HalfPage returns half the visible height, at least one line.
func (p *LogsPanel) HalfPage() int {
	if h := p.visible() / 2; h > 0 {
		return h
	}
	return 1
}

// Page returns the visible height.
func (p *LogsPanel) Page() int { return p.visible() }

// ScrollTop jumps to the first line.
func (p *LogsPanel) ScrollTop() { p.scroll = 0 }

// ScrollBottom jumps so the last line is visible.
func (p *LogsPanel) ScrollBottom() { p.scroll = p.maxScroll() }

// OpenSearch focuses the search input.
func (p *LogsPanel) OpenSearch() {
	p.searching = true
	p.input.SetValue(p.query)
	p.input.CursorEnd()
	p.input.Focus()
}

// CloseSearch hides the search input without changing the committed query.
func (p *LogsPanel) CloseSearch() {
	p.searching = false
	p.input.Blur()
}

// CommitSearch applies the typed query and jumps to the first match.
func (p *LogsPanel) CommitSearch() {
	p.query = strings.TrimSpace(p.input.Value())
	p.CloseSearch()
	p.matches = nil
	p.match = 0
	if p.query == "" {
		return
	}
	p.matches = findMatches(p.lines, p.query)
	p.jump()
}

// NextMatch moves to the following match, wrapping around.
func (p *LogsPanel) NextMatch() {
	if len(p.matches) == 0 {
		return
	}
	p.match = (p.match + 1) % len(p.matches)
	p.jump()
}

// PrevMatch moves to the preceding match, wrapping around.
func (p *LogsPanel) PrevMatch() {
	if len(p.matches) == 0 {
		return
	}
	p.match = (p.match - 1 + len(p.matches)) % len(p.matches)
	p.jump()
}

func (p *LogsPanel) jump() {
	if len(p.matches) == 0 {
		return
	}
	p.scroll = p.matches[p.match]
	p.clamp()
}

func findMatches(lines []string, query string) []int {
	q := strings.ToLower(query)
	var out []int
	for i, l := range lines {
		if strings.Contains(strings.ToLower(l), q) {
			out = append(out, i)
		}
	}
	return out
}

// title returns the pane heading, e.g. "claude · Diff [2/5]".
func (p *LogsPanel) title(agent string) string {
	t := fmt.Sprintf("%s · %s", agent, p.mode)
	if p.focused {
		t = "[" + t + "]"
	}
	if p.query != "" {
		if len(p.matches) == 0 {
			t += fmt.Sprintf(" /%s [0/0]", p.query)
		} else {
			t += fmt.Sprintf(" /%s [%d/%d]", p.query, p.match+1, len(p.matches))
		}
	}
	return t
}

func (p *LogsPanel) styleLine(i int, line string) string {
	if p.query != "" && len(p.matches) > 0 {
		if p.matches[p.match] == i {
			return p.currentStyle.Render(line)
		}
		for _, m := range p.matches {
			if m == i {
				return p.matchStyle.Render(line)
			}
		}
	}
	if p.mode != ViewDiff {
		return line
	}
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return line
	case strings.HasPrefix(line, "+"):
		return p.addStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return p.delStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return p.hunkStyle.Render(line)
	}
	return line
}

// View renders the detail pane for agent.
func (p *LogsPanel) View(agent string) string {
	inner := ContentWidth(p.width)

	var b strings.Builder
	b.WriteString(p.titleStyle.Render(ansi.Truncate(p.title(agent), inner, "…")))

	end := p.scroll + p.visible()
	if end > len(p.lines) {
		end = len(p.lines)
	}
	for i := p.scroll; i < end; i++ {
		b.WriteString("\n")
		line := ansi.Truncate(strings.ReplaceAll(p.lines[i], "\t", "    "), inner, "…")
		b.WriteString(p.styleLine(i, line))
	}
	if p.searching {
		b.WriteString("\n")
		b.WriteString(p.input.View())
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
