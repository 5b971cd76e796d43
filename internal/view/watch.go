package view

import (
	"fmt"
	"strconv"
	"time"

	"meshdash/internal/labels"
	"meshdash/internal/model"
)

// Empty-state texts of the watch panel.
const (
	WatchEmptyText  = "Click the star icon on any node to add it here"
	WatchNoDataText = "No data for watched nodes"
)

// WatchPanel is the watch list column.
type WatchPanel struct {
	Cards []WatchCard
	Empty string
}

// WatchCard summarises one watched node.
type WatchCard struct {
	NodeID   string
	Name     Party
	Hardware string
	LastSeen string
	Position *CardPosition
	Traffic  []CardTraffic
}

// CardPosition is the card's last known location.
type CardPosition struct {
	Pin       Pin
	Coords    string
	Time      string
	Precision string
	Altitude  string
	Sats      string
}

// CardTraffic is one recent activity line.
type CardTraffic struct {
	Key        string
	Encryption *labels.Encryption
	Time       string
	MsgType    string
	Badge      string
	Data       string
	Expandable bool
	Expanded   bool
	Pin        *Pin
}

// WatchInput is everything the watch panel depends on.
type WatchInput struct {
	WatchList []string
	Items     []model.WatchItem
	Positions map[string]model.Position
	Expanded  map[string]bool
	Location  *time.Location
}

// WatchDataKey identifies one activity line for expand/collapse.
func WatchDataKey(nodeID string, i int) string {
	return nodeID + "#" + strconv.Itoa(i)
}

// Watch computes the watch panel. Position extras come from the watch
// item's own fix; the positions cache only fills fields the fix lacks.
func Watch(in WatchInput) WatchPanel {
	if len(in.WatchList) == 0 {
		return WatchPanel{Empty: WatchEmptyText}
	}
	if len(in.Items) == 0 {
		return WatchPanel{Empty: WatchNoDataText}
	}

	cards := make([]WatchCard, 0, len(in.Items))
	for _, item := range in.Items {
		node := item.Node
		card := WatchCard{
			NodeID:   node.NodeID,
			Name:     nodeParty(node),
			Hardware: labels.HWModel(node.HWModel),
			LastSeen: FormatTime(node.LastSeen, in.Location),
		}

		if item.Position != nil {
			extras := *item.Position
			if cached, ok := in.Positions[node.NodeID]; ok {
				extras = fillExtras(extras, cached)
			}
			card.Position = cardPosition(node.NodeID, *item.Position, extras, in.Location)
		}

		for i, t := range item.Traffic {
			key := WatchDataKey(node.NodeID, i)
			entry := CardTraffic{
				Key:        key,
				Time:       FormatTime(t.Timestamp, in.Location),
				MsgType:    t.MsgType,
				Badge:      labels.BadgeClass(t.MsgType),
				Expandable: len([]rune(t.Data)) > WatchDataMax,
				Expanded:   in.Expanded[key],
				Pin:        PayloadPin(t.MsgType, t.Data, firstNonEmpty(t.SourceID, node.NodeID)),
			}
			if entry.Expandable && !entry.Expanded {
				entry.Data = Truncate(t.Data, WatchDataMax)
			} else {
				entry.Data = t.Data
			}
			if enc, ok := labels.EncryptionFor(t.KeyUsed); ok {
				entry.Encryption = &enc
			}
			card.Traffic = append(card.Traffic, entry)
		}
		cards = append(cards, card)
	}
	return WatchPanel{Cards: cards}
}

func fillExtras(p, fallback model.Position) model.Position {
	if p.PrecisionBits == nil {
		p.PrecisionBits = fallback.PrecisionBits
	}
	if p.Altitude == nil {
		p.Altitude = fallback.Altitude
	}
	if p.SatsInView == nil {
		p.SatsInView = fallback.SatsInView
	}
	return p
}

func cardPosition(nodeID string, fix, extras model.Position, loc *time.Location) *CardPosition {
	p := &CardPosition{
		Pin:    Pin{Lat: fix.Latitude, Lng: fix.Longitude, NodeID: nodeID},
		Coords: Coords(fix.Latitude, fix.Longitude),
		Time:   FormatTime(fix.Timestamp, loc),
	}
	if prec, ok := labels.Precision(extras.PrecisionBits); ok {
		p.Precision = prec
	}
	if extras.Altitude != nil {
		p.Altitude = fmt.Sprintf("Alt: %sm", Number(*extras.Altitude))
	}
	if extras.SatsInView != nil {
		p.Sats = fmt.Sprintf("Sats: %d", *extras.SatsInView)
	}
	return p
}
