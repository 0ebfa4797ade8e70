package tui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/parari/pkg/models"
)

type fakeSource struct {
	snap    models.RunSnapshot
	updates chan struct{}
}

func (s *fakeSource) Snapshot() models.RunSnapshot { return s.snap }
func (s *fakeSource) Updates() <-chan struct{}     { return s.updates }

func newSource(agents ...models.AgentSnapshot) *fakeSource {
	return &fakeSource{
		snap:    models.RunSnapshot{RunID: "r1", Prompt: "fix the bug", BaseBranch: "main", Agents: agents},
		updates: make(chan struct{}, 1),
	}
}

func agent(name string, status models.AgentStatus, logLines int) models.AgentSnapshot {
	a := models.AgentSnapshot{Agent: name, Status: status}
	for i := 0; i < logLines; i++ {
		a.Log = append(a.Log, models.LogLine{Text: fmt.Sprintf("%s line %d", name, i)})
	}
	if status == models.AgentStatusSucceeded {
		a.Diff = &models.DiffSummary{FilesChanged: 1, FilesAdded: 1, ChangedFiles: []string{"a.go"},
			Diff: "diff --git a/a.go b/a.go\n+package a\n"}
	}
	return a
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, v *SplitView, msgs ...tea.Msg) tea.Cmd {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var model tea.Model
		model, cmd = v.Update(msg)
		if model != v {
			t.Fatal("Update returned a different model")
		}
	}
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewSplitView(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 1)))

	if v.Focus() != PaneAgents {
		t.Errorf("Focus() = %v, want agents", v.Focus())
	}
	if v.Selected() != 0 {
		t.Errorf("Selected() = %d, want 0", v.Selected())
	}
	if v.Mode() != ViewLog {
		t.Errorf("Mode() = %v, want log", v.Mode())
	}
	if v.Init() == nil {
		t.Error("Init() should wait for updates")
	}
}

func TestSplitView_NavigationClamped(t *testing.T) {
	v := NewSplitView(newSource(
		agent("claude", models.AgentStatusRunning, 0),
		agent("gemini", models.AgentStatusRunning, 0),
		agent("codex", models.AgentStatusRunning, 0),
	))

	press(t, v, runes("k"))
	if v.Selected() != 0 {
		t.Errorf("k at top: Selected() = %d, want 0", v.Selected())
	}

	press(t, v, runes("j"), tea.KeyMsg{Type: tea.KeyDown}, runes("j"), runes("j"))
	if v.Selected() != 2 {
		t.Errorf("past bottom: Selected() = %d, want 2", v.Selected())
	}

	press(t, v, tea.KeyMsg{Type: tea.KeyUp})
	if v.Selected() != 1 {
		t.Errorf("up: Selected() = %d, want 1", v.Selected())
	}
}

func TestSplitView_FocusSwitching(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 100), agent("gemini", models.AgentStatusRunning, 0)))

	press(t, v, tea.KeyMsg{Type: tea.KeyTab})
	if v.Focus() != PaneDetail {
		t.Fatalf("tab: Focus() = %v, want detail", v.Focus())
	}

	// j scrolls the detail pane instead of moving the selection.
	press(t, v, runes("j"))
	if v.Selected() != 0 {
		t.Errorf("j in detail pane changed selection to %d", v.Selected())
	}
	if v.Scroll() != 1 {
		t.Errorf("j in detail pane: Scroll() = %d, want 1", v.Scroll())
	}

	press(t, v, runes("h"))
	if v.Focus() != PaneAgents {
		t.Errorf("h: Focus() = %v, want agents", v.Focus())
	}
	press(t, v, tea.KeyMsg{Type: tea.KeyRight})
	if v.Focus() != PaneDetail {
		t.Errorf("right: Focus() = %v, want detail", v.Focus())
	}
	press(t, v, tea.KeyMsg{Type: tea.KeyLeft})
	if v.Focus() != PaneAgents {
		t.Errorf("left: Focus() = %v, want agents", v.Focus())
	}

	// Scrolling is ignored while the agent list has focus.
	before := v.Scroll()
	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlD})
	if v.Scroll() != before {
		t.Error("ctrl+d scrolled while the agent list was focused")
	}
}

func TestSplitView_ViewModes(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusSucceeded, 100)))

	press(t, v, runes("D"))
	if v.Mode() != ViewDiff {
		t.Fatalf("D: Mode() = %v, want diff", v.Mode())
	}
	if !strings.Contains(strings.Join(v.logsPanel.Lines(), "\n"), "+package a") {
		t.Error("diff mode does not show the diff")
	}

	press(t, v, runes("L"), tea.KeyMsg{Type: tea.KeyTab}, runes("G"))
	if v.Mode() != ViewLog {
		t.Fatalf("L: Mode() = %v, want log", v.Mode())
	}
	if v.Scroll() == 0 {
		t.Fatal("G did not scroll")
	}

	press(t, v, runes("d"))
	if v.Mode() != ViewDiff {
		t.Errorf("d in detail pane: Mode() = %v, want diff", v.Mode())
	}
	if v.Scroll() != 0 {
		t.Errorf("mode change kept Scroll() = %d, want 0", v.Scroll())
	}

	press(t, v, runes("l"))
	if v.Mode() != ViewLog {
		t.Errorf("l in detail pane: Mode() = %v, want log", v.Mode())
	}
}

func TestSplitView_ScrollBounds(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 200)))
	press(t, v, tea.KeyMsg{Type: tea.KeyTab})

	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlU}, runes("k"))
	if v.Scroll() != 0 {
		t.Errorf("scrolling above top: Scroll() = %d, want 0", v.Scroll())
	}

	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlD})
	half := v.Scroll()
	if half != v.logsPanel.HalfPage() {
		t.Errorf("ctrl+d: Scroll() = %d, want %d", half, v.logsPanel.HalfPage())
	}
	press(t, v, tea.KeyMsg{Type: tea.KeyPgDown})
	if v.Scroll() != half+v.logsPanel.Page() {
		t.Errorf("pgdown: Scroll() = %d, want %d", v.Scroll(), half+v.logsPanel.Page())
	}

	press(t, v, runes("G"))
	bottom := v.Scroll()
	press(t, v, tea.KeyMsg{Type: tea.KeyCtrlF}, runes("j"))
	if v.Scroll() != bottom {
		t.Errorf("scrolling past bottom: Scroll() = %d, want %d", v.Scroll(), bottom)
	}
	if want := len(v.logsPanel.Lines()) - v.logsPanel.Page(); bottom != want {
		t.Errorf("G: Scroll() = %d, want %d", bottom, want)
	}

	press(t, v, tea.KeyMsg{Type: tea.KeyHome})
	if v.Scroll() != 0 {
		t.Errorf("home: Scroll() = %d, want 0", v.Scroll())
	}
}

func TestSplitView_SelectionResetsScroll(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 200), agent("gemini", models.AgentStatusRunning, 200)))
	press(t, v, tea.KeyMsg{Type: tea.KeyTab}, runes("G"), tea.KeyMsg{Type: tea.KeyTab}, runes("j"))

	if v.Selected() != 1 {
		t.Fatalf("Selected() = %d, want 1", v.Selected())
	}
	if v.Scroll() != 0 {
		t.Errorf("selection change kept Scroll() = %d", v.Scroll())
	}
}

func TestSplitView_ApplyRejectedUnlessSucceeded(t *testing.T) {
	for _, status := range []models.AgentStatus{
		models.AgentStatusPending,
		models.AgentStatusRunning,
		models.AgentStatusFailed,
		models.AgentStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			v := NewSplitView(newSource(agent("claude", status, 0)))

			cmd := press(t, v, runes("a"))
			if isQuit(cmd) {
				t.Fatal("apply of a non-succeeded agent quit the view")
			}
			if v.confirm != confirmNone {
				t.Error("apply of a non-succeeded agent asked for confirmation")
			}
			if !strings.Contains(v.StatusMessage(), "Cannot apply") {
				t.Errorf("StatusMessage() = %q, want rejection", v.StatusMessage())
			}
		})
	}
}

func TestSplitView_ApplyConfirmed(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusFailed, 0), agent("gemini", models.AgentStatusSucceeded, 0)))

	press(t, v, runes("j"))
	cmd := press(t, v, tea.KeyMsg{Type: tea.KeyEnter})
	if isQuit(cmd) {
		t.Fatal("apply quit before confirmation")
	}
	if v.footer.Prompt() == "" {
		t.Fatal("apply did not prompt for confirmation")
	}

	cmd = press(t, v, runes("y"))
	if !isQuit(cmd) {
		t.Fatal("confirmed apply did not quit")
	}
	if got := v.Decision(); got.Action != ActionApply || got.Agent != "gemini" {
		t.Errorf("Decision() = %+v, want apply gemini", got)
	}
}

func TestSplitView_ApplyDeclined(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusSucceeded, 0)))

	press(t, v, runes("a"))
	cmd := press(t, v, runes("n"))
	if isQuit(cmd) {
		t.Fatal("declined apply quit the view")
	}
	if v.footer.Prompt() != "" {
		t.Error("prompt still shown after declining")
	}
}

func TestSplitView_Quit(t *testing.T) {
	t.Run("while running asks first", func(t *testing.T) {
		v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 0)))

		if cmd := press(t, v, runes("q")); isQuit(cmd) {
			t.Fatal("q quit without confirmation while agents run")
		}
		cmd := press(t, v, runes("y"))
		if !isQuit(cmd) {
			t.Fatal("confirmed quit did not quit")
		}
		if v.Decision().Action != ActionCancel {
			t.Errorf("Decision() = %+v, want cancel", v.Decision())
		}
	})

	t.Run("when finished quits at once", func(t *testing.T) {
		v := NewSplitView(newSource(agent("claude", models.AgentStatusSucceeded, 0)))
		if cmd := press(t, v, tea.KeyMsg{Type: tea.KeyEsc}); !isQuit(cmd) {
			t.Fatal("esc did not quit a finished run")
		}
		if v.Decision().Action != ActionCancel {
			t.Errorf("Decision() = %+v, want cancel", v.Decision())
		}
	})

	t.Run("ctrl+c is immediate", func(t *testing.T) {
		v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 0)))
		if cmd := press(t, v, tea.KeyMsg{Type: tea.KeyCtrlC}); !isQuit(cmd) {
			t.Fatal("ctrl+c did not quit")
		}
		if !v.quitting {
			t.Error("expected quitting=true after ctrl+c")
		}
		if v.View() != "" {
			t.Error("View() should be empty once quitting")
		}
	})
}

func TestSplitView_Search(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusRunning, 120)))
	press(t, v, tea.KeyMsg{Type: tea.KeyTab}, runes("/"))
	if !v.logsPanel.Searching() {
		t.Fatal("/ did not open search")
	}

	press(t, v, runes("line 10"), tea.KeyMsg{Type: tea.KeyEnter})
	if v.logsPanel.Searching() {
		t.Error("enter did not close the search input")
	}
	// "line 10" matches line 10 and lines 100-109.
	if got := len(v.logsPanel.Matches()); got != 11 {
		t.Fatalf("matches = %d, want 11", got)
	}
	if !strings.Contains(v.logsPanel.title("claude"), "[1/11]") {
		t.Errorf("title = %q, want match counter", v.logsPanel.title("claude"))
	}

	press(t, v, runes("n"))
	if !strings.Contains(v.logsPanel.title("claude"), "[2/11]") {
		t.Errorf("n: title = %q", v.logsPanel.title("claude"))
	}
	press(t, v, runes("N"), runes("N"))
	if !strings.Contains(v.logsPanel.title("claude"), "[11/11]") {
		t.Errorf("N wrap: title = %q", v.logsPanel.title("claude"))
	}

	// Changing the view mode clears the search.
	press(t, v, runes("L"))
	press(t, v, runes("D"))
	if v.logsPanel.Query() != "" {
		t.Errorf("mode change kept query %q", v.logsPanel.Query())
	}
}

func TestSplitView_RefreshOnUpdate(t *testing.T) {
	src := newSource(agent("claude", models.AgentStatusRunning, 0))
	v := NewSplitView(src)

	src.snap.Agents[0] = agent("claude", models.AgentStatusSucceeded, 3)
	cmd := press(t, v, updateMsg{})
	if cmd == nil {
		t.Error("update should re-arm the wait command")
	}
	if a, _ := v.current(); a.Status != models.AgentStatusSucceeded {
		t.Errorf("status after update = %s, want succeeded", a.Status)
	}

	src.updates <- struct{}{}
	if _, ok := waitForUpdate(src)().(updateMsg); !ok {
		t.Error("waitForUpdate did not deliver updateMsg")
	}
}

func TestSplitView_View(t *testing.T) {
	v := NewSplitView(newSource(agent("claude", models.AgentStatusSucceeded, 2), agent("gemini", models.AgentStatusFailed, 0)))
	press(t, v, tea.WindowSizeMsg{Width: 120, Height: 30})

	out := v.View()
	for _, want := range []string{"parari · fix the bug", "[Agents]", "claude", "gemini", "claude · Log", "claude line 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestLayoutManager_Calculate(t *testing.T) {
	tests := []struct {
		width, height int
		wantLeft      int
		wantRight     int
	}{
		{120, 40, LeftPaneWidth, 120 - LeftPaneWidth},
		{80, 24, LeftPaneWidth, 80 - LeftPaneWidth},
		{40, 10, 20, 20},
	}
	for _, tt := range tests {
		l := NewLayoutManager(tt.width, tt.height)
		d := l.Calculate()
		if d.LeftWidth != tt.wantLeft || d.RightWidth != tt.wantRight {
			t.Errorf("Calculate(%dx%d) = %d/%d, want %d/%d", tt.width, tt.height, d.LeftWidth, d.RightWidth, tt.wantLeft, tt.wantRight)
		}
		if d.BodyHeight != tt.height-3 {
			t.Errorf("BodyHeight = %d, want %d", d.BodyHeight, tt.height-3)
		}
	}
}
