package tui

import (
	"github.com/charmbracelet/lipgloss"

	"meshdash/internal/labels"
	"meshdash/internal/view"
)

var (
	accent    = lipgloss.Color("#7C3AED")
	mutedText = lipgloss.Color("#6C7086")
	okText    = lipgloss.Color("#A6E3A1")
	warnText  = lipgloss.Color("#FAB387")
	errText   = lipgloss.Color("#F38BA8")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(accent).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(mutedText).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#313244"))

	dimStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	starStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	pinStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94E2D5")).
			Underline(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(okText).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errText).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errText)

	sectionStyle = lipgloss.NewStyle().
			Foreground(warnText).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1)

	cardSelectedStyle = cardStyle.
				BorderForeground(accent)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

var badgeColors = map[string]lipgloss.Color{
	labels.BadgeText:      lipgloss.Color("#89B4FA"),
	labels.BadgePosition:  lipgloss.Color("#A6E3A1"),
	labels.BadgeTelemetry: lipgloss.Color("#FAB387"),
	labels.BadgeNodeInfo:  lipgloss.Color("#CBA6F7"),
	labels.BadgeRouting:   lipgloss.Color("#F9E2AF"),
	labels.BadgeOther:     lipgloss.Color("#9399B2"),
}

func badge(class, text string) string {
	c, ok := badgeColors[class]
	if !ok {
		c = badgeColors[labels.BadgeOther]
	}
	return lipgloss.NewStyle().Foreground(c).Render(text)
}

var levelColors = map[string]lipgloss.Color{
	view.LevelLow:    okText,
	view.LevelMedium: warnText,
	view.LevelHigh:   errText,
}

var classColors = map[string]lipgloss.Color{
	view.ClassPublic:      okText,
	view.ClassPrivate:     lipgloss.Color("#89B4FA"),
	view.ClassUndecrypted: mutedText,
}

// mapPalette colours the map grid for a tile theme.
type mapPalette struct {
	Background lipgloss.Color
	Grid       lipgloss.Color
	Marker     lipgloss.Color
	Selected   lipgloss.Color
}

var mapPalettes = map[string]mapPalette{
	"dark":      {Background: "#11111B", Grid: "#313244", Marker: "#F38BA8", Selected: "#F9E2AF"},
	"light":     {Background: "#EFF1F5", Grid: "#BCC0CC", Marker: "#D20F39", Selected: "#1E66F5"},
	"satellite": {Background: "#1B2B1E", Grid: "#3B5240", Marker: "#FAB387", Selected: "#F9E2AF"},
	"topo":      {Background: "#F4EBD0", Grid: "#C9B79C", Marker: "#8C2F39", Selected: "#1D4E89"},
}

func paletteFor(theme string) mapPalette {
	if p, ok := mapPalettes[theme]; ok {
		return p
	}
	return mapPalettes[labels.DefaultTheme]
}
