package view

import (
	"fmt"
	"time"

	"meshdash/internal/labels"
	"meshdash/internal/model"
)

const (
	telemetryLoadingText = "Loading telemetry..."
	telemetryNoDataText  = "No telemetry data available for this node"
)

type field struct {
	key    string
	label  string
	unit   string
	uptime bool
}

var deviceFields = []field{
	{key: "battery_level", label: "Battery", unit: "%"},
	{key: "voltage", label: "Voltage", unit: "V"},
	{key: "channel_utilization", label: "Ch Util", unit: "%"},
	{key: "air_util_tx", label: "Air TX", unit: "%"},
	{key: "uptime_seconds", label: "Uptime", uptime: true},
}

var environmentFields = []field{
	{key: "temperature", label: "Temp", unit: "°C"},
	{key: "relative_humidity", label: "Humidity", unit: "%"},
	{key: "barometric_pressure", label: "Pressure", unit: "hPa"},
	{key: "gas_resistance", label: "Gas Resist", unit: "Ω"},
	{key: "voltage", label: "Voltage", unit: "V"},
	{key: "current", label: "Current", unit: "mA"},
	{key: "iaq", label: "IAQ"},
	{key: "lux", label: "Light", unit: "lux"},
	{key: "uv_lux", label: "UV", unit: "lux"},
	{key: "wind_speed", label: "Wind", unit: "m/s"},
	{key: "wind_direction", label: "Wind Dir", unit: "°"},
	{key: "wind_gust", label: "Gust", unit: "m/s"},
	{key: "radiation", label: "Radiation"},
	{key: "rainfall_1h", label: "Rain 1h", unit: "mm"},
	{key: "rainfall_24h", label: "Rain 24h", unit: "mm"},
	{key: "soil_moisture", label: "Soil Moist", unit: "%"},
	{key: "soil_temperature", label: "Soil Temp", unit: "°C"},
}

var airQualityFields = []field{
	{key: "pm10_standard", label: "PM1.0"},
	{key: "pm25_standard", label: "PM2.5"},
	{key: "pm100_standard", label: "PM10"},
	{key: "co2", label: "CO2", unit: "ppm"},
}

var localStatsFields = []field{
	{key: "uptime_seconds", label: "Uptime", uptime: true},
	{key: "channel_utilization", label: "Ch Util", unit: "%"},
	{key: "air_util_tx", label: "Air TX", unit: "%"},
	{key: "num_packets_tx", label: "Pkts TX"},
	{key: "num_packets_rx", label: "Pkts RX"},
	{key: "num_packets_rx_bad", label: "RX Bad"},
	{key: "num_online_nodes", label: "Online Nodes"},
	{key: "num_total_nodes", label: "Total Nodes"},
	{key: "num_rx_dupe", label: "RX Dupes"},
	{key: "num_tx_relay", label: "TX Relayed"},
	{key: "num_tx_relay_canceled", label: "Relay Canceled"},
	{key: "num_tx_dropped", label: "TX Dropped"},
	{key: "noise_floor", label: "Noise Floor", unit: "dBm"},
}

// TelemetryItem is one labelled reading.
type TelemetryItem struct {
	Label string
	Value string
}

// TelemetrySection is one telemetry category.
type TelemetrySection struct {
	Title string
	Time  string
	Items []TelemetryItem
}

// TelemetryDetail is the expanded row under a node.
type TelemetryDetail struct {
	Loading  bool
	Message  string
	Sections []TelemetrySection
}

// Telemetry computes the detail row for a cache slot. An absent slot is
// shown as loading since expanding it starts the fetch.
func Telemetry(entry model.TelemetryEntry, loc *time.Location) TelemetryDetail {
	if entry.Status != model.TelemetryLoaded {
		return TelemetryDetail{Loading: true, Message: telemetryLoadingText}
	}

	snap := entry.Snapshot
	var sections []TelemetrySection
	add := func(s *TelemetrySection) {
		if s != nil {
			sections = append(sections, *s)
		}
	}
	add(section("Device Metrics", snap.Device, deviceFields, loc))
	add(section("Environment", snap.Environment, environmentFields, loc))
	add(powerSection(snap.Power, loc))
	add(section("Air Quality", snap.AirQuality, airQualityFields, loc))
	add(section("Local Stats", snap.LocalStats, localStatsFields, loc))

	if len(sections) == 0 {
		return TelemetryDetail{Message: telemetryNoDataText}
	}
	return TelemetryDetail{Sections: sections}
}

// section renders the known fields of a reading; nil when none are present.
func section(title string, r *model.TelemetryReading, fields []field, loc *time.Location) *TelemetrySection {
	if r == nil || r.Data == nil {
		return nil
	}
	var items []TelemetryItem
	for _, f := range fields {
		v, ok := r.Data[f.key]
		if !ok || v == nil {
			continue
		}
		items = append(items, TelemetryItem{Label: f.label, Value: fieldValue(f, v)})
	}
	if len(items) == 0 {
		return nil
	}
	return &TelemetrySection{Title: title, Time: sectionTime(r.Timestamp, loc), Items: items}
}

// powerSection lists per-channel voltage and current.
func powerSection(r *model.TelemetryReading, loc *time.Location) *TelemetrySection {
	if r == nil || r.Data == nil {
		return nil
	}
	s := &TelemetrySection{Title: "Power Metrics", Time: sectionTime(r.Timestamp, loc)}
	channels, _ := r.Data["channels"].([]any)
	for _, c := range channels {
		ch, ok := c.(map[string]any)
		if !ok {
			continue
		}
		s.Items = append(s.Items, TelemetryItem{
			Label: "Ch" + scalar(ch["ch"]),
			Value: scalar(ch["voltage"]) + "V / " + scalar(ch["current"]) + "A",
		})
	}
	return s
}

func sectionTime(ts string, loc *time.Location) string {
	if ts == "" {
		return ""
	}
	return FormatTime(ts, loc)
}

func fieldValue(f field, v any) string {
	if f.uptime {
		if n, ok := v.(float64); ok {
			return labels.Uptime(int64(n))
		}
	}
	s := scalar(v)
	if f.unit != "" {
		s += " " + f.unit
	}
	return s
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return Number(x)
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}
