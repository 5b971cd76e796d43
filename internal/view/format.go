// Package view computes display models from cache contents. Nothing here
// touches the terminal; the tui package applies these models.
package view

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"meshdash/internal/labels"
	"meshdash/internal/model"
)

const (
	// TrafficDataMax is the traffic table payload preview length.
	TrafficDataMax = 60

	// WatchDataMax is the watch card payload preview length.
	WatchDataMax = 40

	ellipsis         = "…"
	unresolvedSuffix = "(unresolved)"
)

// FormatTime renders a server timestamp in loc, or the placeholder when
// absent. Unparsable values are shown as received.
func FormatTime(value string, loc *time.Location) string {
	if value == "" {
		return labels.Placeholder
	}
	t, ok := model.ParseTime(value)
	if !ok {
		return value
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Jan 2, 15:04:05")
}

// Truncate shortens s to limit runes and appends an ellipsis when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + ellipsis
}

// Coords renders a coordinate pair with five decimals.
func Coords(lat, lng float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lng)
}

// Number renders a JSON number without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Count renders an integer with thousands separators.
func Count(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Party is one end of a message.
type Party struct {
	Text       string
	Unresolved bool
}

// String renders the party with the unresolved marker.
func (p Party) String() string {
	if p.Unresolved {
		return p.Text + " " + unresolvedSuffix
	}
	return p.Text
}

func party(name, id string) Party {
	switch {
	case name != "":
		return Party{Text: name}
	case id != "":
		return Party{Text: id, Unresolved: true}
	}
	return Party{Text: labels.Placeholder}
}

func nodeParty(n model.Node) Party {
	name, resolved := n.DisplayName()
	return Party{Text: name, Unresolved: !resolved}
}

// Pin is a coordinate link that pans the map to a node.
type Pin struct {
	Lat    float64
	Lng    float64
	NodeID string
	Title  string
}

type positionPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// PayloadPin extracts a pin from a POSITION_APP payload. Other message
// types, malformed payloads and the 0,0 origin yield no pin.
func PayloadPin(msgType, data, nodeID string) *Pin {
	if msgType != model.MsgTypePosition || data == "" {
		return nil
	}
	var p positionPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil
	}
	var lat, lng float64
	if p.Latitude != nil {
		lat = *p.Latitude
	}
	if p.Longitude != nil {
		lng = *p.Longitude
	}
	if lat == 0 && lng == 0 {
		return nil
	}
	return &Pin{Lat: lat, Lng: lng, NodeID: nodeID, Title: "Show on map"}
}

// PositionDetails lists the optional extras of a position fix.
func PositionDetails(p model.Position) []string {
	var parts []string
	if prec, ok := labels.Precision(p.PrecisionBits); ok {
		parts = append(parts, fmt.Sprintf("Precision: %s (%d bits)", prec, *p.PrecisionBits))
	}
	if p.Altitude != nil {
		parts = append(parts, "Alt: "+Number(*p.Altitude)+"m")
	}
	if p.SatsInView != nil {
		parts = append(parts, "Sats: "+strconv.Itoa(*p.SatsInView))
	}
	if p.GroundSpeed != nil {
		parts = append(parts, "Speed: "+Number(*p.GroundSpeed)+" km/h")
	}
	return parts
}

// PositionPin builds the node-table pin for a cached position.
func PositionPin(p model.Position, nodeID string, loc *time.Location) *Pin {
	title := Coords(p.Latitude, p.Longitude)
	if details := PositionDetails(p); len(details) > 0 {
		title += " | " + strings.Join(details, " | ")
	}
	title += " (" + FormatTime(p.Timestamp, loc) + ")"
	return &Pin{Lat: p.Latitude, Lng: p.Longitude, NodeID: nodeID, Title: title}
}
