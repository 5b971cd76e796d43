package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"meshdash/internal/dashboard"
	"meshdash/internal/mapsync"
)

const (
	gridRune   = '·'
	markerRune = '●'
	openRune   = '◉'
)

// mapGrid places marker runes on a width x height grid of background
// runes. Later markers win when two share a cell, except that the node
// with the open popup is always drawn on top.
func mapGrid(cells []mapsync.Cell, width, height int, open string) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(string(gridRune), width))
	}
	var top *mapsync.Cell
	for i, c := range cells {
		if c.Row >= height || c.Col >= width {
			continue
		}
		if c.NodeID == open {
			top = &cells[i]
			continue
		}
		grid[c.Row][c.Col] = markerRune
	}
	if top != nil {
		grid[top.Row][top.Col] = openRune
	}
	return grid
}

// mapSize is the grid size for a terminal size. The grid leaves room for
// the chrome, the title line and an open popup.
func mapSize(width, height int) (int, int) {
	if width == 0 || height == 0 {
		return 60, 20
	}
	return max(width-2, 10), max(height-chromeHeight-popupHeight-1, 5)
}

func (m Model) renderMap(sn dashboard.Snapshot) string {
	mp := m.state.Map()
	vp := mp.View()
	width, height := mapSize(m.width, m.height)

	pal := paletteFor(sn.Theme)
	bg := lipgloss.NewStyle().Background(pal.Background).Foreground(pal.Grid)
	marker := lipgloss.NewStyle().Background(pal.Background).Foreground(pal.Marker).Bold(true)
	selected := lipgloss.NewStyle().Background(pal.Background).Foreground(pal.Selected).Bold(true)

	open := mp.OpenPopup()
	grid := mapGrid(mp.Cells(), width, height, open)

	lines := []string{fmt.Sprintf("Theme: %s · zoom %d · centre %.4f, %.4f · %d markers",
		headerStyle.Render(sn.Theme), vp.Zoom, vp.Center.Lat, vp.Center.Lng, mp.Len())}
	for _, row := range grid {
		var b strings.Builder
		for _, r := range row {
			switch r {
			case markerRune:
				b.WriteString(marker.Render(string(r)))
			case openRune:
				b.WriteString(selected.Render(string(r)))
			default:
				b.WriteString(bg.Render(string(r)))
			}
		}
		lines = append(lines, b.String())
	}

	if open != "" {
		if mk, ok := mp.Marker(open); ok {
			lines = append(lines, popupStyle.Render(mk.Popup))
		}
	} else if mp.Len() == 0 {
		lines = append(lines, dimStyle.Render("No positions yet"))
	}
	return strings.Join(lines, "\n")
}
