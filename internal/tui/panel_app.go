package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/parari/internal/errors"
	"github.com/ShayCichocki/parari/pkg/models"
)

// Source is the read-only view of a run the split view renders.
// coordinator.Handle satisfies it.
type Source interface {
	Snapshot() models.RunSnapshot
	Updates() <-chan struct{}
}

// Pane identifies which half of the split view has focus.
type Pane int

const (
	PaneAgents Pane = iota
	PaneDetail
)

// Action is what the operator chose.
type Action int

const (
	ActionCancel Action = iota
	ActionApply
)

func (a Action) String() string {
	if a == ActionApply {
		return "apply"
	}
	return "cancel"
}

// Decision is the outcome of the split view loop.
type Decision struct {
	Action Action
	// Agent is set when Action is ActionApply.
	Agent string
}

type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmApply
	confirmQuit
)

// updateMsg is delivered when the source signals a change.
type updateMsg struct{}

// SplitView is the bubbletea model for the two-pane run view.
type SplitView struct {
	source Source
	snap   models.RunSnapshot

	agentsPanel *AgentsPanel
	logsPanel   *LogsPanel
	footer      *Footer
	layout      *LayoutManager
	keys        keyMap
	spinner     spinner.Model

	focus    Pane
	selected int
	confirm  confirmKind
	width    int
	height   int

	decision Decision
	quitting bool
}

// NewSplitView creates a SplitView over source.
func NewSplitView(source Source) *SplitView {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	v := &SplitView{
		source:      source,
		agentsPanel: NewAgentsPanel(),
		logsPanel:   NewLogsPanel(),
		footer:      NewFooter(),
		layout:      NewLayoutManager(defaultWidth, defaultHeight),
		keys:        newKeyMap(),
		spinner:     sp,
		focus:       PaneAgents,
		width:       defaultWidth,
		height:      defaultHeight,
	}
	v.updateSizes()
	v.updateFocus()
	v.refresh()
	return v
}

// waitForUpdate blocks on the source's update channel.
func waitForUpdate(src Source) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-src.Updates(); !ok {
			return nil
		}
		return updateMsg{}
	}
}

// Init implements tea.Model.
func (v *SplitView) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(v.source), v.spinner.Tick)
}

// Update implements tea.Model.
func (v *SplitView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		v.refresh()
		return v, waitForUpdate(v.source)

	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.updateSizes()
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	if v.logsPanel.Searching() {
		var cmd tea.Cmd
		v.logsPanel.input, cmd = v.logsPanel.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *SplitView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, v.keys.ForceQuit) {
		return v.finish(Decision{Action: ActionCancel})
	}

	if v.confirm != confirmNone {
		return v.handleConfirm(msg)
	}

	if v.logsPanel.Searching() {
		switch msg.Type {
		case tea.KeyEnter:
			v.logsPanel.CommitSearch()
			return v, nil
		case tea.KeyEsc:
			v.logsPanel.CloseSearch()
			return v, nil
		}
		var cmd tea.Cmd
		v.logsPanel.input, cmd = v.logsPanel.input.Update(msg)
		return v, cmd
	}

	k := v.keys
	switch {
	case key.Matches(msg, k.Quit):
		if msg.Type == tea.KeyEsc && v.logsPanel.Query() != "" {
			v.logsPanel.Reset()
			v.refreshContent()
			return v, nil
		}
		if !v.snap.Terminal() {
			v.confirm = confirmQuit
			v.footer.SetPrompt("Agents are still running. Cancel them and quit?")
			return v, nil
		}
		return v.finish(Decision{Action: ActionCancel})

	case key.Matches(msg, k.Help):
		v.footer.ToggleHelp()

	case key.Matches(msg, k.SwitchPane):
		if v.focus == PaneAgents {
			v.focus = PaneDetail
		} else {
			v.focus = PaneAgents
		}
		v.updateFocus()

	case key.Matches(msg, k.LogView):
		v.setMode(ViewLog)
	case key.Matches(msg, k.DiffView):
		v.setMode(ViewDiff)

	case key.Matches(msg, k.Apply):
		v.requestApply()

	case v.focus == PaneAgents:
		v.handleAgentsKey(msg)
	default:
		v.handleDetailKey(msg)
	}
	return v, nil
}

func (v *SplitView) handleAgentsKey(msg tea.KeyMsg) {
	k := v.keys
	switch {
	case key.Matches(msg, k.Right):
		v.focus = PaneDetail
		v.updateFocus()
	case key.Matches(msg, k.Up):
		v.Select(v.selected - 1)
	case key.Matches(msg, k.Down):
		v.Select(v.selected + 1)
	}
}

func (v *SplitView) handleDetailKey(msg tea.KeyMsg) {
	k := v.keys
	p := v.logsPanel
	switch {
	case msg.String() == "l":
		v.setMode(ViewLog)
	case msg.String() == "d":
		v.setMode(ViewDiff)
	case key.Matches(msg, k.Left):
		v.focus = PaneAgents
		v.updateFocus()
	case key.Matches(msg, k.Up):
		p.ScrollBy(-1)
	case key.Matches(msg, k.Down):
		p.ScrollBy(1)
	case key.Matches(msg, k.HalfDown):
		p.ScrollBy(p.HalfPage())
	case key.Matches(msg, k.HalfUp):
		p.ScrollBy(-p.HalfPage())
	case key.Matches(msg, k.PageDown):
		p.ScrollBy(p.Page())
	case key.Matches(msg, k.PageUp):
		p.ScrollBy(-p.Page())
	case key.Matches(msg, k.Top):
		p.ScrollTop()
	case key.Matches(msg, k.Bottom):
		p.ScrollBottom()
	case key.Matches(msg, k.Search):
		p.OpenSearch()
	case key.Matches(msg, k.NextMatch):
		p.NextMatch()
	case key.Matches(msg, k.PrevMatch):
		p.PrevMatch()
	}
}

func (v *SplitView) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind := v.confirm
	v.confirm = confirmNone
	v.footer.SetPrompt("")

	switch msg.String() {
	case "y", "Y", "enter":
		if kind == confirmQuit {
			return v.finish(Decision{Action: ActionCancel})
		}
		if a, ok := v.current(); ok && a.Applicable() {
			return v.finish(Decision{Action: ActionApply, Agent: a.Agent})
		}
		v.footer.SetMessage("Agent is no longer applicable", true)
	default:
		v.footer.SetMessage("", false)
	}
	return v, nil
}

func (v *SplitView) requestApply() {
	a, ok := v.current()
	if !ok {
		return
	}
	if !a.Applicable() {
		v.footer.SetMessage(fmt.Sprintf("Cannot apply %s: %s", a.Agent, a.Status), true)
		return
	}
	v.confirm = confirmApply
	v.footer.SetPrompt(fmt.Sprintf("Apply %s's changes to %s?", a.Agent, v.snap.BaseBranch))
}

func (v *SplitView) finish(d Decision) (tea.Model, tea.Cmd) {
	v.decision = d
	v.quitting = true
	return v, tea.Quit
}

// Select focuses agent i, clamped to the list. Changing the selection resets
// the detail pane.
func (v *SplitView) Select(i int) {
	if n := len(v.snap.Agents); i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	if i == v.selected {
		return
	}
	v.selected = i
	v.logsPanel.Reset()
	v.footer.SetMessage("", false)
	v.refreshContent()
}

func (v *SplitView) setMode(m ViewMode) {
	v.logsPanel.SetMode(m)
	v.refreshContent()
}

func (v *SplitView) current() (models.AgentSnapshot, bool) {
	if v.selected < 0 || v.selected >= len(v.snap.Agents) {
		return models.AgentSnapshot{}, false
	}
	return v.snap.Agents[v.selected], true
}

// refresh pulls a fresh snapshot from the source.
func (v *SplitView) refresh() {
	v.snap = v.source.Snapshot()
	if v.selected >= len(v.snap.Agents) {
		v.selected = len(v.snap.Agents) - 1
	}
	if v.selected < 0 {
		v.selected = 0
	}
	v.refreshContent()
}

func (v *SplitView) refreshContent() {
	if a, ok := v.current(); ok {
		v.logsPanel.SetContent(&a)
	} else {
		v.logsPanel.SetContent(nil)
	}
}

func (v *SplitView) updateSizes() {
	v.layout.SetSize(v.width, v.height)
	dims := v.layout.Calculate()
	v.agentsPanel.SetSize(dims.LeftWidth, dims.BodyHeight)
	v.logsPanel.SetSize(dims.RightWidth, dims.BodyHeight)
	v.footer.SetWidth(v.width)
}

func (v *SplitView) updateFocus() {
	v.agentsPanel.SetFocused(v.focus == PaneAgents)
	v.logsPanel.SetFocused(v.focus == PaneDetail)
}

// Focus returns the focused pane.
func (v *SplitView) Focus() Pane { return v.focus }

// Selected returns the index of the focused agent.
func (v *SplitView) Selected() int { return v.selected }

// Mode returns the detail pane's view mode.
func (v *SplitView) Mode() ViewMode { return v.logsPanel.Mode() }

// Scroll returns the detail pane's scroll offset.
func (v *SplitView) Scroll() int { return v.logsPanel.Scroll() }

// StatusMessage returns the footer status message.
func (v *SplitView) StatusMessage() string { return v.footer.Message() }

// Decision returns what the operator chose. It is only meaningful after the
// loop has quit.
func (v *SplitView) Decision() Decision { return v.decision }

// View implements tea.Model.
func (v *SplitView) View() string {
	if v.quitting {
		return ""
	}

	header := fmt.Sprintf("parari · %s", firstLine(v.snap.Prompt))
	header = lipgloss.NewStyle().Bold(true).Render(ansi.Truncate(header, v.width, "…"))

	agent := ""
	if a, ok := v.current(); ok {
		agent = a.Agent
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		v.agentsPanel.View(v.snap.Agents, v.selected, v.spinner),
		v.logsPanel.View(agent),
	)

	return header + "\n" + body + "\n" + v.footer.View(v.snap.Counts(), v.keys)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// Run shows the split view until the operator applies an agent or cancels.
// A terminal failure is returned as *errors.InterfaceError.
func Run(ctx context.Context, source Source) (Decision, error) {
	view := NewSplitView(source)
	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return Decision{Action: ActionCancel}, nil
		}
		return Decision{}, &errors.InterfaceError{Err: err}
	}
	if sv, ok := final.(*SplitView); ok {
		return sv.Decision(), nil
	}
	return Decision{Action: ActionCancel}, nil
}
