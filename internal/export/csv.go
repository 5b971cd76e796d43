// Package export writes dashboard caches as CSV.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"meshdash/internal/labels"
	"meshdash/internal/model"
)

var trafficHeader = []string{
	"timestamp",
	"source_id",
	"source_name",
	"dest_id",
	"dest_name",
	"msg_type",
	"channel",
	"encryption",
	"data",
}

var nodeHeader = []string{
	"node_id",
	"long_name",
	"short_name",
	"hardware",
	"first_seen",
	"last_seen",
	"latitude",
	"longitude",
	"position_time",
}

// WriteTraffic writes traffic records with a fixed column order.
func WriteTraffic(w io.Writer, items []model.TrafficRecord) error {
	return writeTraffic(w, items, true)
}

func writeTraffic(w io.Writer, items []model.TrafficRecord, header bool) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if header {
		if err := writer.Write(trafficHeader); err != nil {
			return err
		}
	}
	for _, r := range items {
		record := []string{
			r.Timestamp,
			r.SourceID,
			r.SourceName,
			r.DestID,
			r.DestName,
			r.MsgType,
			r.ChannelName,
			r.KeyUsed,
			r.Data,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// AppendTraffic appends records to a CSV file, writing the header only when
// the file is new or empty.
func AppendTraffic(path string, items []model.TrafficRecord) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	return writeTraffic(file, items, info.Size() == 0)
}

// WriteNodes writes the node directory joined with the latest known
// position of each node. Nodes without a position get empty coordinates.
func WriteNodes(w io.Writer, nodes []model.Node, positions map[string]model.Position) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(nodeHeader); err != nil {
		return err
	}
	for _, n := range nodes {
		lat, lng, ts := "", "", ""
		if p, ok := positions[n.NodeID]; ok {
			lat = strconv.FormatFloat(p.Latitude, 'f', 6, 64)
			lng = strconv.FormatFloat(p.Longitude, 'f', 6, 64)
			ts = p.Timestamp
		}
		hw := ""
		if n.HWModel != nil {
			hw = labels.HWModel(n.HWModel)
		}
		record := []string{
			n.NodeID,
			n.LongName,
			n.ShortName,
			hw,
			n.FirstSeen,
			n.LastSeen,
			lat,
			lng,
			ts,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
