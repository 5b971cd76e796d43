package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Enter    key.Binding
	Star     key.Binding
	Pan      key.Binding
	Filter   key.Binding
	MsgType  key.Binding
	Sort     key.Binding
	Theme    key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Esc      key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev view")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "pan west")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "pan east")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand")),
	Star:     key.NewBinding(key.WithKeys("w", "*"), key.WithHelp("w", "watch")),
	Pan:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "show on map")),
	Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	MsgType:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "message type")),
	Sort:     key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "sort column")),
	Theme:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "map theme")),
	ZoomIn:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Esc:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Star, k.Filter, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Up, k.Down, k.Enter},
		{k.Star, k.Pan, k.Filter, k.MsgType, k.Sort},
		{k.Left, k.Right, k.ZoomIn, k.ZoomOut, k.Theme},
		{k.Refresh, k.Esc, k.Help, k.Quit},
	}
}

// contextHelp returns the hint line for a view.
func contextHelp(v viewID) string {
	switch v {
	case viewNodes:
		return "j/k: select | enter: telemetry | w: watch | p: map | /: filter | 1-5: sort | ?: help | q: quit"
	case viewTraffic:
		return "j/k: select | p: map | /: node filter | m: type | 1-6: sort | ?: help | q: quit"
	case viewWatch:
		return "j/k: select | enter: expand data | w: unwatch | p: map | ?: help | q: quit"
	case viewMap:
		return "h/j/k/l: pan | +/-: zoom | t: theme | esc: close popup | ?: help | q: quit"
	default:
		return "tab: next view | r: refresh | ?: help | q: quit"
	}
}
