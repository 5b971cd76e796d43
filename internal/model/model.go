package model

import (
	"strings"
	"time"
)

// Node is a mesh participant as reported by the capture service.
type Node struct {
	NodeID       string `json:"node_id"`
	LongName     string `json:"long_name,omitempty"`
	ShortName    string `json:"short_name,omitempty"`
	HWModel      *int   `json:"hw_model,omitempty"`
	Role         *int   `json:"role,omitempty"`
	FirstSeen    string `json:"first_seen,omitempty"`
	LastSeen     string `json:"last_seen,omitempty"`
	LastActivity string `json:"last_activity,omitempty"`
}

// DisplayName returns the long name, the short name, or the identifier.
// resolved is false when neither name is known.
func (n Node) DisplayName() (name string, resolved bool) {
	if n.LongName != "" {
		return n.LongName, true
	}
	if n.ShortName != "" {
		return n.ShortName, true
	}
	return n.NodeID, false
}

// TrafficRecord is one observed message.
type TrafficRecord struct {
	ID          int64  `json:"id,omitempty"`
	Timestamp   string `json:"timestamp"`
	SourceID    string `json:"source_id"`
	SourceName  string `json:"source_name,omitempty"`
	DestID      string `json:"dest_id,omitempty"`
	DestName    string `json:"dest_name,omitempty"`
	PacketID    *int64 `json:"packet_id,omitempty"`
	ChannelHash *int   `json:"channel_hash,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	PortNum     *int   `json:"port_num,omitempty"`
	MsgType     string `json:"msg_type"`
	Data        string `json:"data,omitempty"`
	KeyUsed     string `json:"key_used,omitempty"`
}

// Key provenance values reported in TrafficRecord.KeyUsed.
const (
	KeyPublic  = "public"
	KeyPrivate = "private"
)

// Message types with special handling.
const (
	MsgTypePosition  = "POSITION_APP"
	MsgTypeTelemetry = "TELEMETRY_APP"
	MsgTypeNodeInfo  = "NODEINFO_APP"
)

// Position is the latest known location of a node.
type Position struct {
	SourceID      string   `json:"source_id"`
	SourceName    string   `json:"source_name,omitempty"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Timestamp     string   `json:"timestamp"`
	PrecisionBits *int     `json:"precision_bits,omitempty"`
	Altitude      *float64 `json:"altitude,omitempty"`
	SatsInView    *int     `json:"sats_in_view,omitempty"`
	GroundSpeed   *float64 `json:"ground_speed,omitempty"`
}

// TelemetryReading is one category of a node's telemetry.
type TelemetryReading struct {
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// TelemetrySnapshot groups the latest readings by category.
type TelemetrySnapshot struct {
	Device      *TelemetryReading `json:"device,omitempty"`
	Environment *TelemetryReading `json:"environment,omitempty"`
	Power       *TelemetryReading `json:"power,omitempty"`
	AirQuality  *TelemetryReading `json:"air_quality,omitempty"`
	LocalStats  *TelemetryReading `json:"local_stats,omitempty"`
}

// Empty reports whether no category carries data.
func (s TelemetrySnapshot) Empty() bool {
	return s.Device == nil && s.Environment == nil && s.Power == nil && s.AirQuality == nil && s.LocalStats == nil
}

// TelemetryStatus is the per-node state of the lazy telemetry cache.
type TelemetryStatus int

const (
	TelemetryAbsent TelemetryStatus = iota
	TelemetryLoading
	TelemetryLoaded
)

// TelemetryEntry is one slot of the telemetry cache.
type TelemetryEntry struct {
	Status   TelemetryStatus
	Snapshot TelemetrySnapshot
}

// WatchItem is the joined view the server returns for one watched node.
type WatchItem struct {
	Node     Node            `json:"node"`
	Position *Position       `json:"position,omitempty"`
	Traffic  []TrafficRecord `json:"traffic,omitempty"`
}

// Stats is the headline counter block.
type Stats struct {
	TotalNodes   int64            `json:"total_nodes"`
	TotalPackets int64            `json:"total_packets"`
	Packets24h   int64            `json:"packets_24h"`
	ByType       map[string]int64 `json:"by_type"`
}

// RFTotals tallies raw packets by decryption outcome.
type RFTotals struct {
	Total       int64 `json:"total"`
	Decrypted   int64 `json:"decrypted"`
	Undecrypted int64 `json:"undecrypted"`
	Public      int64 `json:"public"`
	Private     int64 `json:"private"`
}

// ChannelUtilization is the latest reported airtime for one node.
type ChannelUtilization struct {
	SourceID           string   `json:"source_id"`
	SourceName         string   `json:"source_name,omitempty"`
	ChannelUtilization float64  `json:"channel_utilization"`
	AirUtilTX          *float64 `json:"air_util_tx,omitempty"`
	Timestamp          string   `json:"timestamp"`
}

// HourlyCount is one bucket of the last-24h packet histogram.
type HourlyCount struct {
	Hour        string `json:"hour"`
	Total       int64  `json:"total"`
	Decrypted   int64  `json:"decrypted"`
	Undecrypted int64  `json:"undecrypted"`
}

// HopCount is one bucket of the hop-limit distribution.
type HopCount struct {
	HopLimit int   `json:"hop_limit"`
	Count    int64 `json:"cnt"`
}

// PacketSizes summarises raw packet sizes.
type PacketSizes struct {
	Avg float64 `json:"avg"`
	Min int64   `json:"min"`
	Max int64   `json:"max"`
}

// Duplicates summarises mesh rebroadcasts.
type Duplicates struct {
	RebroadcastPacketIDs   int64 `json:"rebroadcast_packet_ids"`
	RebroadcastTotalCopies int64 `json:"rebroadcast_total_copies"`
	UniquePacketIDs        int64 `json:"unique_packet_ids"`
	TotalPackets           int64 `json:"total_packets"`
}

// Metrics is the RF and airtime panel payload.
type Metrics struct {
	RFTotals           *RFTotals            `json:"rf_totals"`
	RFTotals24h        *RFTotals            `json:"rf_totals_24h"`
	ChannelUtilization []ChannelUtilization `json:"channel_utilization"`
	Hourly             []HourlyCount        `json:"hourly"`
	HopDistribution    []HopCount           `json:"hop_distribution,omitempty"`
	PacketSizes        *PacketSizes         `json:"packet_sizes,omitempty"`
	Duplicates         *Duplicates          `json:"duplicates,omitempty"`
	ViaMQTT            int64                `json:"via_mqtt,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts the ISO-8601 variants the capture service emits.
// Naive timestamps are read as UTC.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EpochMillis returns the parsed timestamp in milliseconds, or 0 when absent
// or unparsable.
func EpochMillis(value string) int64 {
	t, ok := ParseTime(value)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}
