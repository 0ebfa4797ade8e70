package tui

// LeftPaneWidth is the fixed width of the agent list, borders included.
const LeftPaneWidth = 32

// Default terminal size used until the first WindowSizeMsg arrives.
const (
	defaultWidth  = 80
	defaultHeight = 24
)

// PanelDimensions holds calculated dimensions for each pane.
type PanelDimensions struct {
	// LeftWidth is the outer width of the agent list.
	LeftWidth int
	// RightWidth is the outer width of the detail pane.
	RightWidth int
	// BodyHeight is the outer height of both panes.
	BodyHeight int
}

// LayoutManager calculates pane dimensions based on terminal size.
type LayoutManager struct {
	totalWidth   int
	totalHeight  int
	headerHeight int
	footerHeight int
}

// NewLayoutManager creates a new LayoutManager with the given terminal dimensions.
func NewLayoutManager(width, height int) *LayoutManager {
	return &LayoutManager{
		totalWidth:   width,
		totalHeight:  height,
		headerHeight: 1,
		footerHeight: 2, // status line + key help
	}
}

// SetSize updates the terminal dimensions.
func (l *LayoutManager) SetSize(width, height int) {
	l.totalWidth = width
	l.totalHeight = height
}

// Calculate returns the pane dimensions for the current terminal size.
func (l *LayoutManager) Calculate() PanelDimensions {
	left := LeftPaneWidth
	if l.totalWidth < 2*LeftPaneWidth {
		left = l.totalWidth / 2
	}
	right := l.totalWidth - left
	if right < 0 {
		right = 0
	}
	body := l.totalHeight - l.headerHeight - l.footerHeight
	if body < 3 {
		body = 3
	}
	return PanelDimensions{LeftWidth: left, RightWidth: right, BodyHeight: body}
}

// ContentHeight returns how many text lines fit inside a bordered pane with a title row.
func (d PanelDimensions) ContentHeight() int {
	h := d.BodyHeight - 3 // top border, title, bottom border
	if h < 1 {
		h = 1
	}
	return h
}

// ContentWidth returns how many columns fit inside a bordered, padded pane.
func ContentWidth(outer int) int {
	w := outer - 4 // borders and one column of padding each side
	if w < 1 {
		w = 1
	}
	return w
}
