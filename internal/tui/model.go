// Package tui renders the dashboard in a terminal and binds its keys to
// dashboard operations.
package tui

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"meshdash/internal/dashboard"
	"meshdash/internal/labels"
	"meshdash/internal/view"
)

type viewID int

const (
	viewNodes viewID = iota
	viewTraffic
	viewWatch
	viewMap
	viewMetrics
	viewCount
)

func (v viewID) String() string {
	switch v {
	case viewNodes:
		return "Nodes"
	case viewTraffic:
		return "Traffic"
	case viewWatch:
		return "Watch List"
	case viewMap:
		return "Map"
	case viewMetrics:
		return "Metrics"
	}
	return "?"
}

// EventMsg carries a dashboard change notification into the program.
type EventMsg dashboard.Event

// opDoneMsg reports the outcome of a background operation.
type opDoneMsg struct {
	op  string
	err error
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx   context.Context
	state *dashboard.State

	help     help.Model
	showHelp bool

	active       viewID
	cursor       [viewCount]int
	nodeInput    textinput.Model
	trafficInput textinput.Model

	width  int
	height int
	status string
}

// New returns a model driving state. ctx bounds the operations started from
// key presses.
func New(ctx context.Context, state *dashboard.State) Model {
	ni := textinput.New()
	ni.Prompt = "Filter: "
	ni.Placeholder = "id, name, hardware..."
	ni.CharLimit = 64
	ni.Width = 40

	ti := textinput.New()
	ti.Prompt = "Node: "
	ti.Placeholder = "source or destination"
	ti.CharLimit = 64
	ti.Width = 30

	return Model{
		ctx:          ctx,
		state:        state,
		help:         help.New(),
		nodeInput:    ni,
		trafficInput: ti,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.nodeInput.Focused() || m.trafficInput.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.state.Map().SetSize(mapSize(msg.Width, msg.Height))

	case EventMsg:
		m.clampCursors()

	case opDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.op, msg.err)
		} else {
			m.status = ""
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := &m.nodeInput
	apply := m.state.SetNodeFilter
	if m.trafficInput.Focused() {
		input = &m.trafficInput
		apply = m.state.SetTrafficNodeFilter
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter, tea.KeyEsc:
		input.Blur()
		return m, nil
	}

	before := input.Value()
	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	if v := input.Value(); v != before {
		apply(v)
	}
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, keys.Tab):
		m.active = (m.active + 1) % viewCount

	case key.Matches(msg, keys.ShiftTab):
		m.active = (m.active + viewCount - 1) % viewCount

	case key.Matches(msg, keys.Refresh):
		return m, m.run("refresh", m.state.RefreshAll)

	case key.Matches(msg, keys.Theme):
		next := labels.NextTheme(m.state.Snapshot().Theme)
		return m, m.run("theme", func(ctx context.Context) error {
			return m.state.SetTheme(ctx, next)
		})

	case m.active == viewMap:
		return m.updateMapKey(msg)

	case key.Matches(msg, keys.Up):
		if m.cursor[m.active] > 0 {
			m.cursor[m.active]--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor[m.active] < m.itemCount()-1 {
			m.cursor[m.active]++
		}

	case key.Matches(msg, keys.Filter):
		switch m.active {
		case viewNodes:
			return m, m.nodeInput.Focus()
		case viewTraffic:
			return m, m.trafficInput.Focus()
		}

	case key.Matches(msg, keys.Sort):
		col := int(msg.String()[0] - '1')
		switch {
		case m.active == viewNodes && col < len(view.NodeColumns):
			m.state.ClickNodeSort(col)
		case m.active == viewTraffic && col < len(view.TrafficColumns):
			m.state.ClickTrafficSort(col)
		}

	case key.Matches(msg, keys.MsgType):
		if m.active == viewTraffic {
			sn := m.state.Snapshot()
			next := nextMsgType(sn.TrafficFilter.MsgType, sn.MsgTypes)
			return m, m.run("traffic", func(ctx context.Context) error {
				return m.state.SetTrafficType(ctx, next)
			})
		}

	case key.Matches(msg, keys.Star):
		if id := m.selectedNode(); id != "" {
			return m, m.run("watch", func(ctx context.Context) error {
				return m.state.ToggleWatch(ctx, id)
			})
		}

	case key.Matches(msg, keys.Enter):
		return m, m.expandSelected()

	case key.Matches(msg, keys.Pan):
		if pin := m.selectedPin(); pin != nil {
			m.state.PanTo(*pin)
			m.active = viewMap
		}
	}
	return m, nil
}

func (m Model) updateMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	mp := m.state.Map()
	switch {
	case key.Matches(msg, keys.Up):
		mp.PanBy(0, -1)
	case key.Matches(msg, keys.Down):
		mp.PanBy(0, 1)
	case key.Matches(msg, keys.Left):
		mp.PanBy(-1, 0)
	case key.Matches(msg, keys.Right):
		mp.PanBy(1, 0)
	case key.Matches(msg, keys.ZoomIn):
		mp.ZoomBy(1)
	case key.Matches(msg, keys.ZoomOut):
		mp.ZoomBy(-1)
	case key.Matches(msg, keys.Esc):
		mp.ClosePopup()
	}
	return m, nil
}

// run executes op off the event loop and reports its error.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) expandSelected() tea.Cmd {
	switch m.active {
	case viewNodes:
		id := m.selectedNode()
		if id == "" {
			return nil
		}
		if !m.state.ToggleExpanded(id) {
			return nil
		}
		return m.run("telemetry", func(ctx context.Context) error {
			_, err := m.state.GetOrLoadTelemetry(ctx, id)
			return err
		})
	case viewWatch:
		items := watchItems(m.state.Snapshot().WatchPanel())
		if i := m.cursor[viewWatch]; i < len(items) && items[i].expandable {
			m.state.ToggleWatchData(items[i].key)
		}
	}
	return nil
}

// watchItem is one selectable line of the watch panel: a card header or
// one of its activity lines.
type watchItem struct {
	nodeID     string
	key        string
	expandable bool
	pin        *view.Pin
}

func watchItems(panel view.WatchPanel) []watchItem {
	var items []watchItem
	for _, c := range panel.Cards {
		head := watchItem{nodeID: c.NodeID}
		if c.Position != nil {
			pin := c.Position.Pin
			head.pin = &pin
		}
		items = append(items, head)
		for _, t := range c.Traffic {
			items = append(items, watchItem{nodeID: c.NodeID, key: t.Key, expandable: t.Expandable, pin: t.Pin})
		}
	}
	return items
}

func (m Model) itemCount() int {
	sn := m.state.Snapshot()
	switch m.active {
	case viewNodes:
		return len(sn.NodeRows())
	case viewTraffic:
		return len(sn.Traffic)
	case viewWatch:
		return len(watchItems(sn.WatchPanel()))
	}
	return 0
}

func (m *Model) clampCursors() {
	for v := viewID(0); v < viewCount; v++ {
		saved := m.active
		m.active = v
		n := m.itemCount()
		m.active = saved
		if m.cursor[v] >= n {
			m.cursor[v] = max(n-1, 0)
		}
	}
}

func (m Model) selectedNode() string {
	sn := m.state.Snapshot()
	i := m.cursor[m.active]
	switch m.active {
	case viewNodes:
		if rows := sn.NodeRows(); i < len(rows) {
			return rows[i].NodeID
		}
	case viewWatch:
		if items := watchItems(sn.WatchPanel()); i < len(items) {
			return items[i].nodeID
		}
	}
	return ""
}

func (m Model) selectedPin() *view.Pin {
	sn := m.state.Snapshot()
	i := m.cursor[m.active]
	switch m.active {
	case viewNodes:
		if rows := sn.NodeRows(); i < len(rows) {
			return rows[i].Pin
		}
	case viewTraffic:
		if rows := sn.TrafficRows(); i < len(rows) {
			return rows[i].Pin
		}
	case viewWatch:
		if items := watchItems(sn.WatchPanel()); i < len(items) {
			return items[i].pin
		}
	}
	return nil
}

// nextMsgType cycles All -> each known type -> All.
func nextMsgType(current string, known []string) string {
	if current == "" {
		if len(known) == 0 {
			return ""
		}
		return known[0]
	}
	i := slices.Index(known, current)
	if i < 0 || i+1 >= len(known) {
		return ""
	}
	return known[i+1]
}
