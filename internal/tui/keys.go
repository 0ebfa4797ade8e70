package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the split view reacts to.
type keyMap struct {
	SwitchPane key.Binding
	Left       key.Binding
	Right      key.Binding
	Up         key.Binding
	Down       key.Binding
	LogView    key.Binding
	DiffView   key.Binding
	HalfDown   key.Binding
	HalfUp     key.Binding
	PageDown   key.Binding
	PageUp     key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Search     key.Binding
	NextMatch  key.Binding
	PrevMatch  key.Binding
	Apply      key.Binding
	Quit       key.Binding
	ForceQuit  key.Binding
	Help       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Left:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "agents")),
		Right:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "details")),
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		LogView:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log")),
		DiffView:   key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "diff")),
		HalfDown:   key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "half page down")),
		HalfUp:     key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "half page up")),
		PageDown:   key.NewBinding(key.WithKeys("ctrl+f", "pgdown"), key.WithHelp("ctrl+f", "page down")),
		PageUp:     key.NewBinding(key.WithKeys("ctrl+b", "pgup"), key.WithHelp("ctrl+b", "page up")),
		Top:        key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextMatch:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n/N", "next/prev match")),
		PrevMatch:  key.NewBinding(key.WithKeys("N")),
		Apply:      key.NewBinding(key.WithKeys("a", "enter"), key.WithHelp("a/enter", "apply")),
		Quit:       key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "cancel")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchPane, k.LogView, k.DiffView, k.Search, k.Apply, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SwitchPane, k.Left, k.Right, k.Up, k.Down},
		{k.LogView, k.DiffView, k.Search, k.NextMatch},
		{k.HalfDown, k.HalfUp, k.PageDown, k.PageUp, k.Top, k.Bottom},
		{k.Apply, k.Quit, k.Help},
	}
}
