package view

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"meshdash/internal/labels"
	"meshdash/internal/mapsync"
	"meshdash/internal/model"
)

// NoDataText is shown by any list that has nothing yet.
const NoDataText = "No data yet"

// TypeCount is one message type tally.
type TypeCount struct {
	MsgType string
	Badge   string
	Count   string
}

// StatsPanel is the headline counter block.
type StatsPanel struct {
	Nodes      string
	Packets    string
	Packets24h string
	ByType     []TypeCount
	Empty      string
}

// Stats computes the stats panel. Types are listed by descending count.
func Stats(s model.Stats) StatsPanel {
	p := StatsPanel{
		Nodes:      Count(s.TotalNodes),
		Packets:    Count(s.TotalPackets),
		Packets24h: Count(s.Packets24h),
	}
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		ci, cj := s.ByType[types[i]], s.ByType[types[j]]
		if ci != cj {
			return ci > cj
		}
		return types[i] < types[j]
	})
	for _, t := range types {
		p.ByType = append(p.ByType, TypeCount{MsgType: t, Badge: labels.BadgeClass(t), Count: Count(s.ByType[t])})
	}
	if len(p.ByType) == 0 {
		p.Empty = NoDataText
	}
	return p
}

// Metric row classes.
const (
	ClassPublic      = "public"
	ClassPrivate     = "private"
	ClassUndecrypted = "undecrypted"
)

// RFRow is one labelled RF tally.
type RFRow struct {
	Label string
	Value string
	Class string
}

// RFSection groups RF tallies over one window.
type RFSection struct {
	Label string
	Rows  []RFRow
}

// Utilization levels.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// ChannelBar is one node's channel utilisation.
type ChannelBar struct {
	Name    string
	Percent float64
	Text    string
	TX      string
	Level   string
}

// HourBar is one hourly histogram column. Heights are fractions of the
// busiest hour.
type HourBar struct {
	Label       string
	Title       string
	Decrypted   float64
	Undecrypted float64
}

// MetricsPanel is the RF and airtime column.
type MetricsPanel struct {
	RF           []RFSection
	RFEmpty      string
	Channels     []ChannelBar
	ChannelEmpty string
	Hourly       []HourBar
	HourlyEmpty  string
	Extra        []RFRow
}

// Metrics computes the metrics panel.
func Metrics(m model.Metrics) MetricsPanel {
	var p MetricsPanel

	if m.RFTotals == nil || m.RFTotals.Total == 0 {
		p.RFEmpty = "No RF data yet (packets_raw table)"
	} else {
		p.RF = append(p.RF, rfSection("All Time", *m.RFTotals, "Total RF Packets", "Public Channel", "Private Channel"))
		if m.RFTotals24h != nil && m.RFTotals24h.Total > 0 {
			p.RF = append(p.RF, rfSection("Last 24 Hours", *m.RFTotals24h, "RF Packets", "Public", "Private"))
		}
	}

	if len(m.ChannelUtilization) == 0 {
		p.ChannelEmpty = "No utilization data"
	}
	for _, c := range m.ChannelUtilization {
		bar := ChannelBar{
			Name:    firstNonEmpty(c.SourceName, c.SourceID),
			Percent: math.Min(c.ChannelUtilization, 100),
			Text:    fmt.Sprintf("%.1f%%", c.ChannelUtilization),
			Level:   utilLevel(c.ChannelUtilization),
		}
		if c.AirUtilTX != nil {
			bar.TX = fmt.Sprintf("TX: %.1f%%", *c.AirUtilTX)
		}
		p.Channels = append(p.Channels, bar)
	}

	if len(m.Hourly) == 0 {
		p.HourlyEmpty = "No hourly data yet"
	}
	var busiest int64 = 1
	for _, h := range m.Hourly {
		busiest = max(busiest, h.Total)
	}
	for _, h := range m.Hourly {
		p.Hourly = append(p.Hourly, HourBar{
			Label:       hourLabel(h.Hour),
			Title:       fmt.Sprintf("%s: %d packets", h.Hour, h.Total),
			Decrypted:   float64(h.Decrypted) / float64(busiest),
			Undecrypted: float64(h.Undecrypted) / float64(busiest),
		})
	}

	p.Extra = metricsExtra(m)
	return p
}

func rfSection(label string, t model.RFTotals, totalLabel, publicLabel, privateLabel string) RFSection {
	pct := "0"
	if t.Total > 0 {
		pct = fmt.Sprintf("%.1f", float64(t.Decrypted)/float64(t.Total)*100)
	}
	return RFSection{
		Label: label,
		Rows: []RFRow{
			{Label: totalLabel, Value: Count(t.Total)},
			{Label: "Decrypted", Value: fmt.Sprintf("%s (%s%%)", Count(t.Decrypted), pct)},
			{Label: publicLabel, Value: Count(t.Public), Class: ClassPublic},
			{Label: privateLabel, Value: Count(t.Private), Class: ClassPrivate},
			{Label: "Undecrypted", Value: Count(t.Undecrypted), Class: ClassUndecrypted},
		},
	}
}

func metricsExtra(m model.Metrics) []RFRow {
	var rows []RFRow
	if m.PacketSizes != nil {
		rows = append(rows, RFRow{
			Label: "Packet Size",
			Value: fmt.Sprintf("avg %.0fB (min %d, max %d)", m.PacketSizes.Avg, m.PacketSizes.Min, m.PacketSizes.Max),
		})
	}
	if d := m.Duplicates; d != nil && d.TotalPackets > 0 {
		rows = append(rows, RFRow{
			Label: "Rebroadcasts",
			Value: fmt.Sprintf("%s ids / %s copies", Count(d.RebroadcastPacketIDs), Count(d.RebroadcastTotalCopies)),
		})
	}
	if len(m.HopDistribution) > 0 {
		parts := make([]string, 0, len(m.HopDistribution))
		for _, h := range m.HopDistribution {
			parts = append(parts, fmt.Sprintf("%d:%s", h.HopLimit, Count(h.Count)))
		}
		rows = append(rows, RFRow{Label: "Hop Limits", Value: strings.Join(parts, " ")})
	}
	if m.ViaMQTT > 0 {
		rows = append(rows, RFRow{Label: "Via MQTT", Value: Count(m.ViaMQTT)})
	}
	return rows
}

func utilLevel(pct float64) string {
	switch {
	case pct < 25:
		return LevelLow
	case pct < 50:
		return LevelMedium
	}
	return LevelHigh
}

// hourLabel extracts "HH" from "YYYY-MM-DDTHH:00:00".
func hourLabel(hour string) string {
	_, after, ok := strings.Cut(hour, "T")
	if !ok {
		return ""
	}
	return strings.Replace(after, ":00:00", "", 1)
}

// PopupFunc returns the map popup renderer for loc.
func PopupFunc(loc *time.Location) mapsync.PopupFunc {
	return func(p model.Position) string {
		return Popup(p, loc)
	}
}

// Popup renders the marker popup for a position.
func Popup(p model.Position, loc *time.Location) string {
	lines := []string{
		party(p.SourceName, p.SourceID).String(),
		p.SourceID,
		Coords(p.Latitude, p.Longitude),
	}
	if details := PositionDetails(p); len(details) > 0 {
		lines = append(lines, strings.Join(details, " · "))
	}
	lines = append(lines, "Position updated "+FormatTime(p.Timestamp, loc))
	return strings.Join(lines, "\n")
}
