// Package labels maps codes reported by the capture service to display text.
package labels

import (
	"fmt"
	"math"

	"meshdash/internal/model"
)

// Placeholder is shown wherever a value is absent.
const Placeholder = "—"

// Badge classes for message types.
const (
	BadgeText      = "badge-text"
	BadgePosition  = "badge-position"
	BadgeTelemetry = "badge-telemetry"
	BadgeNodeInfo  = "badge-nodeinfo"
	BadgeRouting   = "badge-routing"
	BadgeOther     = "badge-other"
)

var badgeClasses = map[string]string{
	"TEXT_MESSAGE_APP":            BadgeText,
	"TEXT_MESSAGE_COMPRESSED_APP": BadgeText,
	model.MsgTypePosition:         BadgePosition,
	model.MsgTypeTelemetry:        BadgeTelemetry,
	model.MsgTypeNodeInfo:         BadgeNodeInfo,
	"ROUTING_APP":                 BadgeRouting,
}

// HWModel returns the hardware name for a model code.
func HWModel(code *int) string {
	if code == nil {
		return Placeholder
	}
	if name, ok := hwModels[*code]; ok {
		return name
	}
	return fmt.Sprintf("ID %d", *code)
}

// BadgeClass returns the badge class for a message type.
func BadgeClass(msgType string) string {
	if class, ok := badgeClasses[msgType]; ok {
		return class
	}
	return BadgeOther
}

// Encryption describes how a record was decrypted.
type Encryption struct {
	Icon  string
	Title string
}

// EncryptionFor returns the lock label for a key provenance value. ok is
// false when the record carries no provenance.
func EncryptionFor(keyUsed string) (Encryption, bool) {
	switch keyUsed {
	case model.KeyPublic:
		return Encryption{Icon: "🔓", Title: "Public channel (default key)"}, true
	case model.KeyPrivate:
		return Encryption{Icon: "🔒", Title: "Private channel (encrypted)"}, true
	}
	return Encryption{}, false
}

// Precision describes position precision bits as an approximate radius.
// ok is false when bits is nil.
func Precision(bits *int) (string, bool) {
	if bits == nil {
		return "", false
	}
	b := *bits
	switch {
	case b == 0:
		return "Disabled", true
	case b >= 32:
		return "Full (~1cm)", true
	case b >= 23:
		return "High (~1m)", true
	case b >= 19:
		return "Med (~75m)", true
	case b >= 16:
		return "Low (~600m)", true
	case b >= 14:
		return "City (~2.4km)", true
	case b >= 13:
		return "Region (~4.8km)", true
	case b >= 11:
		return "Area (~19km)", true
	}
	meters := math.Round(40075000 / math.Pow(2, float64(b)))
	return fmt.Sprintf("Coarse (~%.0fm)", meters), true
}

// Uptime renders a duration in seconds the way device screens do.
func Uptime(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
	return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
}

// Themes lists the selectable map themes in menu order.
var Themes = []string{"dark", "light", "satellite", "topo"}

// DefaultTheme is used when no valid theme is persisted.
const DefaultTheme = "dark"

// ValidTheme reports whether name is a known map theme.
func ValidTheme(name string) bool {
	for _, t := range Themes {
		if t == name {
			return true
		}
	}
	return false
}

// NextTheme cycles through Themes.
func NextTheme(current string) string {
	for i, t := range Themes {
		if t == current {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return DefaultTheme
}

var themeMaxZoom = map[string]int{
	"dark":      19,
	"light":     19,
	"satellite": 18,
	"topo":      17,
}

// ThemeMaxZoom is the deepest zoom the theme's tile provider serves.
func ThemeMaxZoom(theme string) int {
	if z, ok := themeMaxZoom[theme]; ok {
		return z
	}
	return themeMaxZoom[DefaultTheme]
}
