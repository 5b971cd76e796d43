package view

import (
	"time"

	"meshdash/internal/labels"
	"meshdash/internal/model"
	"meshdash/internal/pipeline"
)

// Node table columns.
const (
	NodeColID = iota
	NodeColName
	NodeColHardware
	NodeColFirstSeen
	NodeColLastSeen
)

// NodeColumns are the node table headers in column order.
var NodeColumns = []string{"ID", "Name", "Hardware", "First Seen", "Last Seen"}

// NodeTable sorts and filters nodes by their visible columns.
var NodeTable = pipeline.Table[model.Node]{
	Kinds: []pipeline.ColumnKind{pipeline.Text, pipeline.Text, pipeline.Text, pipeline.Date, pipeline.Date},
	Keys: func(n model.Node) []string {
		name, _ := n.DisplayName()
		return []string{n.NodeID, name, labels.HWModel(n.HWModel), n.FirstSeen, n.LastSeen}
	},
}

// Traffic table columns.
const (
	TrafficColTime = iota
	TrafficColFrom
	TrafficColTo
	TrafficColType
	TrafficColChannel
	TrafficColData
)

// TrafficColumns are the traffic table headers in column order.
var TrafficColumns = []string{"Time", "From", "To", "Type", "Channel", "Data"}

// TrafficTable sorts traffic by its visible columns.
var TrafficTable = pipeline.Table[model.TrafficRecord]{
	Kinds: []pipeline.ColumnKind{pipeline.Date, pipeline.Text, pipeline.Text, pipeline.Text, pipeline.Text, pipeline.Text},
	Keys: func(r model.TrafficRecord) []string {
		return []string{
			r.Timestamp,
			firstNonEmpty(r.SourceName, r.SourceID),
			firstNonEmpty(r.DestName, r.DestID),
			r.MsgType,
			r.ChannelName,
			Truncate(r.Data, TrafficDataMax),
		}
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NodeRow is one rendered node directory row.
type NodeRow struct {
	NodeID    string
	Name      Party
	Hardware  string
	FirstSeen string
	LastSeen  string
	Starred   bool
	Expanded  bool
	Pin       *Pin
	Telemetry *TelemetryDetail
}

// NodeInput is everything the node directory depends on.
type NodeInput struct {
	Nodes     []model.Node
	Sort      *pipeline.SortState
	Filter    string
	Watched   map[string]bool
	Expanded  map[string]bool
	Telemetry map[string]model.TelemetryEntry
	Positions map[string]model.Position
	Location  *time.Location
}

// NodeRows computes the node directory. Expanded rows carry their
// telemetry detail.
func NodeRows(in NodeInput) []NodeRow {
	nodes := NodeTable.Apply(in.Nodes, in.Sort, in.Filter)
	rows := make([]NodeRow, 0, len(nodes))
	for _, n := range nodes {
		row := NodeRow{
			NodeID:    n.NodeID,
			Name:      nodeParty(n),
			Hardware:  labels.HWModel(n.HWModel),
			FirstSeen: FormatTime(n.FirstSeen, in.Location),
			LastSeen:  FormatTime(n.LastSeen, in.Location),
			Starred:   in.Watched[n.NodeID],
			Expanded:  in.Expanded[n.NodeID],
		}
		if p, ok := in.Positions[n.NodeID]; ok {
			row.Pin = PositionPin(p, n.NodeID, in.Location)
		}
		if row.Expanded {
			detail := Telemetry(in.Telemetry[n.NodeID], in.Location)
			row.Telemetry = &detail
		}
		rows = append(rows, row)
	}
	return rows
}

// TrafficRow is one rendered traffic row.
type TrafficRow struct {
	Time       string
	Encryption *labels.Encryption
	From       Party
	To         Party
	MsgType    string
	Badge      string
	Channel    string
	Data       string
	Pin        *Pin
}

// TrafficRows computes the traffic table.
func TrafficRows(records []model.TrafficRecord, sort *pipeline.SortState, loc *time.Location) []TrafficRow {
	sorted := TrafficTable.Apply(records, sort, "")
	rows := make([]TrafficRow, 0, len(sorted))
	for _, r := range sorted {
		row := TrafficRow{
			Time:    FormatTime(r.Timestamp, loc),
			From:    party(r.SourceName, r.SourceID),
			To:      party(r.DestName, r.DestID),
			MsgType: r.MsgType,
			Badge:   labels.BadgeClass(r.MsgType),
			Channel: firstNonEmpty(r.ChannelName, labels.Placeholder),
			Data:    Truncate(r.Data, TrafficDataMax),
			Pin:     PayloadPin(r.MsgType, r.Data, r.SourceID),
		}
		if enc, ok := labels.EncryptionFor(r.KeyUsed); ok {
			row.Encryption = &enc
		}
		rows = append(rows, row)
	}
	return rows
}
