package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"meshdash/internal/dashboard"
	"meshdash/internal/pipeline"
	"meshdash/internal/view"
)

const (
	// header, tabs, blank line, status and help
	chromeHeight = 6
	popupHeight  = 7

	defaultHeight = 30
)

var nodeWidths = []int{12, 22, 18, 17, 17}

var trafficWidths = []int{17, 18, 18, 22, 12, 0}

func (m Model) View() string {
	sn := m.state.Snapshot()

	var b strings.Builder
	b.WriteString(m.renderHeader(sn))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.active {
	case viewNodes:
		b.WriteString(m.renderNodes(sn))
	case viewTraffic:
		b.WriteString(m.renderTraffic(sn))
	case viewWatch:
		b.WriteString(m.renderWatch(sn))
	case viewMap:
		b.WriteString(m.renderMap(sn))
	case viewMetrics:
		b.WriteString(m.renderMetrics(sn))
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.showHelp {
		m.help.ShowAll = true
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(dimStyle.Render(contextHelp(m.active)))
	}
	return b.String()
}

func (m Model) bodyHeight() int {
	h := m.height
	if h == 0 {
		h = defaultHeight
	}
	return max(h-chromeHeight, 3)
}

func (m Model) renderHeader(sn dashboard.Snapshot) string {
	parts := []string{titleStyle.Render("meshdash")}
	if sn.Stats != nil {
		p := view.Stats(*sn.Stats)
		parts = append(parts, fmt.Sprintf("Nodes %s · Packets %s · 24h %s", p.Nodes, p.Packets, p.Packets24h))
	}
	if sn.Health.Offline {
		parts = append(parts, offlineStyle.Render(fmt.Sprintf("● offline (%d failed polls)", sn.Health.FailedCycles)))
	} else if !sn.LastUpdate.IsZero() {
		parts = append(parts, onlineStyle.Render("● live"))
	}
	if !sn.LastUpdate.IsZero() {
		parts = append(parts, dimStyle.Render("updated "+sn.LastUpdate.In(sn.Location).Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, viewCount)
	for v := viewID(0); v < viewCount; v++ {
		if v == m.active {
			tabs = append(tabs, tabActiveStyle.Render(v.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(v.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// cell pads or truncates s to exactly width display columns.
func cell(s string, width int) string {
	if width <= 0 {
		return s
	}
	s = ansi.Truncate(s, width-1, "…")
	return s + strings.Repeat(" ", max(width-ansi.StringWidth(s), 0))
}

func sortHeader(columns []string, widths []int, st *pipeline.SortState) string {
	var b strings.Builder
	for i, name := range columns {
		label := fmt.Sprintf("%d:%s", i+1, name)
		if st != nil && st.Column == i {
			if st.Ascending {
				label += " ▲"
			} else {
				label += " ▼"
			}
		}
		b.WriteString(cell(label, widths[i]))
	}
	return headerStyle.Render(b.String())
}

// window returns at most height lines keeping line focus visible.
func window(lines []string, focus, height int) []string {
	if len(lines) <= height {
		return lines
	}
	start := 0
	if focus >= height {
		start = focus - height + 1
	}
	end := min(start+height, len(lines))
	return lines[start:end]
}

func partyText(p view.Party) string {
	if p.Unresolved {
		return dimStyle.Render(p.String())
	}
	return p.String()
}

func pinMark(pin *view.Pin) string {
	if pin == nil {
		return "  "
	}
	return pinStyle.Render("📍")
}

func (m Model) renderNodes(sn dashboard.Snapshot) string {
	lines := []string{
		m.nodeInput.View(),
		"   " + sortHeader(view.NodeColumns, nodeWidths, sn.NodeSort),
	}
	rows := sn.NodeRows()
	if len(rows) == 0 {
		lines = append(lines, dimStyle.Render(view.NoDataText))
		return strings.Join(lines, "\n")
	}

	focus := 0
	var body []string
	for i, r := range rows {
		star := dimStyle.Render("☆")
		if r.Starred {
			star = starStyle.Render("★")
		}
		line := star + "  " +
			cell(r.NodeID, nodeWidths[0]) +
			cell(partyText(r.Name), nodeWidths[1]) +
			cell(r.Hardware, nodeWidths[2]) +
			cell(r.FirstSeen, nodeWidths[3]) +
			cell(r.LastSeen, nodeWidths[4]) +
			pinMark(r.Pin)
		if i == m.cursor[viewNodes] {
			focus = len(body)
			line = selectedStyle.Render(line)
		}
		body = append(body, line)
		if r.Telemetry != nil {
			body = append(body, telemetryLines(*r.Telemetry)...)
		}
	}
	lines = append(lines, window(body, focus, m.bodyHeight()-2)...)
	return strings.Join(lines, "\n")
}

func telemetryLines(d view.TelemetryDetail) []string {
	const indent = "      "
	if len(d.Sections) == 0 {
		return []string{indent + dimStyle.Render(d.Message)}
	}
	var lines []string
	for _, s := range d.Sections {
		head := indent + sectionStyle.Render(s.Title)
		if s.Time != "" {
			head += dimStyle.Render("  " + s.Time)
		}
		lines = append(lines, head)
		items := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			items = append(items, dimStyle.Render(it.Label+": ")+it.Value)
		}
		lines = append(lines, indent+"  "+strings.Join(items, "  "))
	}
	return lines
}

func (m Model) renderTraffic(sn dashboard.Snapshot) string {
	msgType := "All"
	if sn.TrafficFilter.MsgType != "" {
		msgType = sn.TrafficFilter.MsgType
	}
	lines := []string{
		"Type: " + headerStyle.Render(msgType) + dimStyle.Render(" (m)") + "   " + m.trafficInput.View(),
		"   " + sortHeader(view.TrafficColumns, trafficWidths, sn.TrafficSort),
	}
	rows := sn.TrafficRows()
	if len(rows) == 0 {
		lines = append(lines, dimStyle.Render(view.NoDataText))
		return strings.Join(lines, "\n")
	}

	body := make([]string, 0, len(rows))
	for i, r := range rows {
		enc := "  "
		if r.Encryption != nil {
			enc = r.Encryption.Icon
		}
		line := enc + " " +
			cell(r.Time, trafficWidths[0]) +
			cell(partyText(r.From), trafficWidths[1]) +
			cell(partyText(r.To), trafficWidths[2]) +
			cell(badge(r.Badge, r.MsgType), trafficWidths[3]) +
			cell(r.Channel, trafficWidths[4]) +
			r.Data + " " + pinMark(r.Pin)
		if i == m.cursor[viewTraffic] {
			line = selectedStyle.Render(line)
		}
		body = append(body, line)
	}
	lines = append(lines, window(body, m.cursor[viewTraffic], m.bodyHeight()-2)...)
	return strings.Join(lines, "\n")
}

func (m Model) renderWatch(sn dashboard.Snapshot) string {
	panel := sn.WatchPanel()
	if len(panel.Cards) == 0 {
		return dimStyle.Render(panel.Empty)
	}

	selected := m.cursor[viewWatch]
	item := 0
	focus := 0
	var lines []string
	for _, c := range panel.Cards {
		var content []string
		inCard := false
		mark := func(s string) string {
			if item == selected {
				inCard = true
				focus = len(lines) + 1 + len(content)
				return selectedStyle.Render(s)
			}
			return s
		}

		head := starStyle.Render("★") + " " + partyText(c.Name) + dimStyle.Render(" "+c.NodeID) +
			"  " + c.Hardware + dimStyle.Render("  last seen "+c.LastSeen)
		content = append(content, mark(head))
		item++

		if p := c.Position; p != nil {
			details := []string{pinStyle.Render("📍 " + p.Coords), p.Time}
			for _, d := range []string{p.Precision, p.Altitude, p.Sats} {
				if d != "" {
					details = append(details, d)
				}
			}
			content = append(content, "  "+strings.Join(details, dimStyle.Render(" · ")))
		}

		if len(c.Traffic) == 0 {
			content = append(content, dimStyle.Render("  No recent activity"))
		}
		for _, t := range c.Traffic {
			enc := "  "
			if t.Encryption != nil {
				enc = t.Encryption.Icon
			}
			toggle := ""
			if t.Expandable {
				toggle = dimStyle.Render(" [+]")
				if t.Expanded {
					toggle = dimStyle.Render(" [-]")
				}
			}
			line := "  " + enc + " " + dimStyle.Render(t.Time) + " " + badge(t.Badge, t.MsgType) + " " + t.Data + toggle + " " + pinMark(t.Pin)
			content = append(content, mark(line))
			item++
		}

		style := cardStyle
		if inCard {
			style = cardSelectedStyle
		}
		lines = append(lines, strings.Split(style.Render(strings.Join(content, "\n")), "\n")...)
	}
	return strings.Join(window(lines, focus, m.bodyHeight()), "\n")
}

func (m Model) renderMetrics(sn dashboard.Snapshot) string {
	var lines []string

	lines = append(lines, sectionStyle.Render("Message Types"))
	if sn.Stats == nil {
		lines = append(lines, dimStyle.Render(view.NoDataText))
	} else {
		p := view.Stats(*sn.Stats)
		if p.Empty != "" {
			lines = append(lines, dimStyle.Render(p.Empty))
		}
		for _, t := range p.ByType {
			lines = append(lines, "  "+cell(badge(t.Badge, t.MsgType), 30)+t.Count)
		}
	}

	if sn.Metrics == nil {
		lines = append(lines, "", dimStyle.Render(view.NoDataText))
		return strings.Join(window(lines, 0, m.bodyHeight()), "\n")
	}
	p := view.Metrics(*sn.Metrics)

	lines = append(lines, "", sectionStyle.Render("RF Packets"))
	if p.RFEmpty != "" {
		lines = append(lines, dimStyle.Render(p.RFEmpty))
	}
	for _, s := range p.RF {
		lines = append(lines, headerStyle.Render("  "+s.Label))
		lines = append(lines, rfLines(s.Rows, "    ")...)
	}
	if len(p.Extra) > 0 {
		lines = append(lines, rfLines(p.Extra, "  ")...)
	}

	lines = append(lines, "", sectionStyle.Render("Channel Utilization"))
	if p.ChannelEmpty != "" {
		lines = append(lines, dimStyle.Render(p.ChannelEmpty))
	}
	for _, c := range p.Channels {
		fill := lipgloss.NewStyle().Foreground(levelColors[c.Level])
		line := "  " + cell(c.Name, 20) + fill.Render(bar(c.Percent/100, 20)) + " " + c.Text
		if c.TX != "" {
			line += dimStyle.Render("  " + c.TX)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", sectionStyle.Render("Packets per Hour"))
	if p.HourlyEmpty != "" {
		lines = append(lines, dimStyle.Render(p.HourlyEmpty))
	}
	decrypted := lipgloss.NewStyle().Foreground(classColors[view.ClassPublic])
	for _, h := range p.Hourly {
		lines = append(lines, "  "+cell(h.Label, 8)+
			decrypted.Render(strings.Repeat("█", scaled(h.Decrypted, 30)))+
			dimStyle.Render(strings.Repeat("▒", scaled(h.Undecrypted, 30))))
	}

	return strings.Join(window(lines, 0, m.bodyHeight()), "\n")
}

func rfLines(rows []view.RFRow, indent string) []string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		value := r.Value
		if c, ok := classColors[r.Class]; ok {
			value = lipgloss.NewStyle().Foreground(c).Render(value)
		}
		lines = append(lines, indent+cell(r.Label, 24)+value)
	}
	return lines
}

// bar draws a horizontal bar filled to frac of width.
func bar(frac float64, width int) string {
	n := scaled(frac, width)
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func scaled(frac float64, width int) int {
	frac = min(max(frac, 0), 1)
	return int(frac*float64(width) + 0.5)
}
