// Package mapsync keeps one marker per known node position and owns the map
// viewport.
package mapsync

import (
	"math"
	"sort"
	"sync"

	"meshdash/internal/model"
)

const (
	tileSize = 256.0

	// Terminal cells are treated as 8x16 pixel blocks so zoom levels match
	// what a browser map would pick for the same bounds.
	CellWidthPx  = 8
	CellHeightPx = 16

	DefaultFitPadding = 30
	DefaultFitMaxZoom = 14
	PanZoom           = 15
	minZoom           = 1
	maxLatitude       = 85.0511287798
)

// DefaultCenter is the initial view before any position arrives.
var DefaultCenter = LatLng{Lat: 39.8, Lng: -98.5}

// DefaultZoom is the initial zoom before any position arrives.
const DefaultZoom = 4

// LatLng is a coordinate in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// Marker is the map presence of one node.
type Marker struct {
	NodeID   string
	Position LatLng
	Popup    string
	Updates  int
}

// Viewport is the visible map region.
type Viewport struct {
	Center LatLng
	Zoom   int
}

// PopupFunc renders the popup content for a position.
type PopupFunc func(model.Position) string

// Options configures a Map.
type Options struct {
	Width      int // cells
	Height     int // cells
	MaxZoom    int
	FitPadding int // pixels
	FitMaxZoom int
	Popup      PopupFunc
}

// Map holds the marker dictionary, the viewport and the fit-once latch.
type Map struct {
	mu        sync.Mutex
	markers   map[string]*Marker
	order     []string
	view      Viewport
	fitted    bool
	openPopup string
	opts      Options
}

// New returns an empty map centred on DefaultCenter.
func New(opts Options) *Map {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 19
	}
	if opts.FitPadding <= 0 {
		opts.FitPadding = DefaultFitPadding
	}
	if opts.FitMaxZoom <= 0 {
		opts.FitMaxZoom = DefaultFitMaxZoom
	}
	if opts.Width <= 0 {
		opts.Width = 60
	}
	if opts.Height <= 0 {
		opts.Height = 20
	}
	return &Map{
		markers: make(map[string]*Marker),
		view:    Viewport{Center: DefaultCenter, Zoom: DefaultZoom},
		opts:    opts,
	}
}

// Sync reconciles markers against positions. Existing markers are updated in
// place, new ones are registered, and none are removed. The first sync that
// yields any marker fits the viewport to all of them.
func (m *Map) Sync(positions map[string]model.Position) (created, updated int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		pos := positions[id]
		ll := LatLng{Lat: pos.Latitude, Lng: pos.Longitude}
		popup := ""
		if m.opts.Popup != nil {
			popup = m.opts.Popup(pos)
		}
		if mk, ok := m.markers[id]; ok {
			mk.Position = ll
			mk.Popup = popup
			mk.Updates++
			updated++
			continue
		}
		m.markers[id] = &Marker{NodeID: id, Position: ll, Popup: popup}
		m.order = append(m.order, id)
		created++
	}

	if !m.fitted && len(m.markers) > 0 {
		m.fitLocked()
		m.fitted = true
	}
	return created, updated
}

// Marker returns the marker registered for nodeID.
func (m *Map) Marker(nodeID string) (Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markers[nodeID]
	if !ok {
		return Marker{}, false
	}
	return *mk, true
}

// Markers returns copies of all markers in registration order.
func (m *Map) Markers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Marker, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.markers[id])
	}
	return out
}

// Len returns the number of markers.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

// Fitted reports whether the one-time fit has happened.
func (m *Map) Fitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fitted
}

// View returns the current viewport.
func (m *Map) View() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// OpenPopup returns the node whose popup is open, if any.
func (m *Map) OpenPopup() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openPopup
}

// ClosePopup closes the open popup.
func (m *Map) ClosePopup() {
	m.mu.Lock()
	m.openPopup = ""
	m.mu.Unlock()
}

// SetSize changes the grid size in cells.
func (m *Map) SetSize(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if width > 0 {
		m.opts.Width = width
	}
	if height > 0 {
		m.opts.Height = height
	}
}

// SetMaxZoom applies a tile provider's zoom ceiling.
func (m *Map) SetMaxZoom(z int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z <= 0 {
		return
	}
	m.opts.MaxZoom = z
	if m.view.Zoom > z {
		m.view.Zoom = z
	}
}

// PanTo centres the map on a coordinate at PanZoom and opens the node's
// popup when it has a marker.
func (m *Map) PanTo(lat, lng float64, nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = Viewport{Center: LatLng{Lat: lat, Lng: lng}, Zoom: clampZoom(PanZoom, m.opts.MaxZoom)}
	if _, ok := m.markers[nodeID]; ok {
		m.openPopup = nodeID
	}
}

// ZoomBy changes the zoom level by delta within the allowed range.
func (m *Map) ZoomBy(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.Zoom = clampZoom(m.view.Zoom+delta, m.opts.MaxZoom)
}

// PanBy shifts the centre by a number of cells.
func (m *Map) PanBy(dx, dy int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, y := project(m.view.Center, m.view.Zoom)
	x += float64(dx * CellWidthPx)
	y += float64(dy * CellHeightPx)
	m.view.Center = unproject(x, y, m.view.Zoom)
}

// Cell is a marker placed on the character grid.
type Cell struct {
	Col    int
	Row    int
	NodeID string
}

// Cells projects all markers onto the grid and drops those outside it.
func (m *Map) Cells() []Cell {
	m.mu.Lock()
	defer m.mu.Unlock()

	cx, cy := project(m.view.Center, m.view.Zoom)
	halfW := float64(m.opts.Width*CellWidthPx) / 2
	halfH := float64(m.opts.Height*CellHeightPx) / 2

	out := make([]Cell, 0, len(m.order))
	for _, id := range m.order {
		x, y := project(m.markers[id].Position, m.view.Zoom)
		col := int(math.Floor((x - cx + halfW) / CellWidthPx))
		row := int(math.Floor((y - cy + halfH) / CellHeightPx))
		if col < 0 || row < 0 || col >= m.opts.Width || row >= m.opts.Height {
			continue
		}
		out = append(out, Cell{Col: col, Row: row, NodeID: id})
	}
	return out
}

func (m *Map) fitLocked() {
	minLat, minLng := math.Inf(1), math.Inf(1)
	maxLat, maxLng := math.Inf(-1), math.Inf(-1)
	for _, mk := range m.markers {
		minLat = math.Min(minLat, mk.Position.Lat)
		maxLat = math.Max(maxLat, mk.Position.Lat)
		minLng = math.Min(minLng, mk.Position.Lng)
		maxLng = math.Max(maxLng, mk.Position.Lng)
	}
	m.view = FitBounds(
		LatLng{Lat: minLat, Lng: minLng},
		LatLng{Lat: maxLat, Lng: maxLng},
		m.opts.Width*CellWidthPx,
		m.opts.Height*CellHeightPx,
		m.opts.FitPadding,
		min(m.opts.FitMaxZoom, m.opts.MaxZoom),
	)
}

// FitBounds returns the deepest viewport (capped at maxZoom) that shows the
// box between sw and ne inside a width x height pixel area with padding on
// every side.
func FitBounds(sw, ne LatLng, width, height, padding, maxZoom int) Viewport {
	availW := math.Max(float64(width-2*padding), 1)
	availH := math.Max(float64(height-2*padding), 1)

	x0, y1 := project(sw, 0)
	x1, y0 := project(ne, 0)
	spanX := x1 - x0
	spanY := y1 - y0

	zoom := maxZoom
	if spanX > 0 || spanY > 0 {
		scale := math.Inf(1)
		if spanX > 0 {
			scale = math.Min(scale, availW/spanX)
		}
		if spanY > 0 {
			scale = math.Min(scale, availH/spanY)
		}
		zoom = clampZoom(int(math.Floor(math.Log2(scale))), maxZoom)
	}

	center := unproject((x0+x1)/2, (y0+y1)/2, 0)
	return Viewport{Center: center, Zoom: zoom}
}

func clampZoom(z, maxZoom int) int {
	if z < minZoom {
		return minZoom
	}
	if z > maxZoom {
		return maxZoom
	}
	return z
}

// project converts a coordinate to Web Mercator pixels at zoom z.
func project(ll LatLng, z int) (float64, float64) {
	size := tileSize * math.Exp2(float64(z))
	lat := math.Max(math.Min(ll.Lat, maxLatitude), -maxLatitude)
	sin := math.Sin(lat * math.Pi / 180)
	x := (ll.Lng + 180) / 360 * size
	y := (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * size
	return x, y
}

func unproject(x, y float64, z int) LatLng {
	size := tileSize * math.Exp2(float64(z))
	lng := x/size*360 - 180
	n := math.Pi - 2*math.Pi*y/size
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return LatLng{Lat: lat, Lng: lng}
}
