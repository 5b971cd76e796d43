// Package dashboard owns the client-side caches and the operations that
// change them. Every operation mutates under one lock and then emits a
// single change event.
package dashboard

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"meshdash/internal/api"
	"meshdash/internal/debounce"
	"meshdash/internal/labels"
	"meshdash/internal/mapsync"
	"meshdash/internal/model"
	"meshdash/internal/pipeline"
	"meshdash/internal/store"
	"meshdash/internal/view"
)

// ErrUnknownTheme is returned by SetTheme for names outside labels.Themes.
var ErrUnknownTheme = errors.New("unknown map theme")

// ErrEmptyWatchList reports that there is nothing to fetch detail for.
var ErrEmptyWatchList = errors.New("watch list is empty")

// Source is the capture service API.
type Source interface {
	Stats(ctx context.Context) (model.Stats, error)
	Nodes(ctx context.Context) ([]model.Node, error)
	Traffic(ctx context.Context, q api.TrafficQuery) ([]model.TrafficRecord, error)
	Positions(ctx context.Context) ([]model.Position, error)
	WatchList(ctx context.Context, nodeIDs []string) ([]model.WatchItem, error)
	Metrics(ctx context.Context) (model.Metrics, error)
	NodeTelemetry(ctx context.Context, nodeID string) (model.TelemetrySnapshot, error)
}

// Change is a bit set naming what an event touched.
type Change uint16

const (
	ChangeNodes Change = 1 << iota
	ChangeTraffic
	ChangePositions
	ChangeWatch
	ChangeTelemetry
	ChangeStats
	ChangeMetrics
	ChangeTheme
	ChangeStatus
	ChangeMap
)

// Has reports whether c includes any bit of other.
func (c Change) Has(other Change) bool {
	return c&other != 0
}

// Event is one change notification. NodeID is set for telemetry events.
type Event struct {
	Change Change
	NodeID string
}

// TrafficFilter is the server-side traffic filter.
type TrafficFilter struct {
	MsgType string
	Node    string
}

type cacheKind int

const (
	cacheNodes cacheKind = iota
	cacheTraffic
	cacheWatch
	cacheStats
	cacheMetrics
	numCaches
)

// Options configures a State.
type Options struct {
	Source             Source
	Backend            store.Backend
	Logger             *zap.Logger
	Notify             func(Event)
	TrafficLimit       int
	NodeFilterDelay    time.Duration
	TrafficFilterDelay time.Duration
	Theme              string
	Location           *time.Location
	MapWidth           int
	MapHeight          int
	OfflineAfter       int
}

// State holds every cache and all table-local UI state.
type State struct {
	mu      sync.Mutex
	src     Source
	backend store.Backend
	log     *zap.Logger
	notify  func(Event)
	opts    Options
	ctx     context.Context

	nodes         []model.Node
	traffic       []model.TrafficRecord
	positions     map[string]model.Position
	telemetry     map[string]model.TelemetryEntry
	watchList     []string
	watchDetail   []model.WatchItem
	stats         *model.Stats
	metrics       *model.Metrics
	msgTypes      []string
	nodeSort      *pipeline.SortState
	trafficSort   *pipeline.SortState
	nodeFilter    string
	trafficFilter TrafficFilter
	expanded      map[string]bool
	watchExpanded map[string]bool
	theme         string
	lastUpdate    time.Time

	issued  [numCaches]uint64
	applied [numCaches]uint64

	health          *Health
	mapView         *mapsync.Map
	nodeDebounce    *debounce.Debouncer[string]
	trafficDebounce *debounce.Debouncer[string]
}

// New returns an empty State. Call Init to load persisted client state.
func New(opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notify == nil {
		opts.Notify = func(Event) {}
	}
	if opts.NodeFilterDelay <= 0 {
		opts.NodeFilterDelay = 200 * time.Millisecond
	}
	if opts.TrafficFilterDelay <= 0 {
		opts.TrafficFilterDelay = 300 * time.Millisecond
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	s := &State{
		src:     opts.Source,
		backend: opts.Backend,
		log:     opts.Logger,
		notify:  opts.Notify,
		opts:    opts,
		ctx:     context.Background(),
		health:  NewHealth(opts.OfflineAfter),
	}
	s.nodeDebounce = debounce.New(opts.NodeFilterDelay, s.applyNodeFilter)
	s.trafficDebounce = debounce.New(opts.TrafficFilterDelay, s.applyTrafficNode)
	s.resetLocked()
	return s
}

func (s *State) resetLocked() {
	s.nodes = nil
	s.traffic = nil
	s.positions = make(map[string]model.Position)
	s.telemetry = make(map[string]model.TelemetryEntry)
	s.watchList = nil
	s.watchDetail = nil
	s.stats = nil
	s.metrics = nil
	s.msgTypes = nil
	s.nodeSort = nil
	s.trafficSort = nil
	s.nodeFilter = ""
	s.trafficFilter = TrafficFilter{}
	s.expanded = make(map[string]bool)
	s.watchExpanded = make(map[string]bool)
	s.theme = labels.DefaultTheme
	s.lastUpdate = time.Time{}
	s.issued = [numCaches]uint64{}
	s.applied = [numCaches]uint64{}
	s.health.Reset()
	s.mapView = mapsync.New(mapsync.Options{
		Width:   s.opts.MapWidth,
		Height:  s.opts.MapHeight,
		MaxZoom: labels.ThemeMaxZoom(s.theme),
		Popup:   view.PopupFunc(s.opts.Location),
	})
}

// Init seeds the watch list and theme from the persistence backend. ctx is
// also used by debounced refetches for the lifetime of the State.
func (s *State) Init(ctx context.Context) error {
	st := store.Normalize(store.State{})
	if s.backend != nil {
		loaded, err := s.backend.Load(ctx)
		if err != nil {
			s.log.Warn("state load failed, using defaults", zap.Error(err))
		} else {
			st = loaded
		}
	}
	if s.opts.Theme != "" && labels.ValidTheme(s.opts.Theme) {
		st.MapTheme = s.opts.Theme
	}

	s.mu.Lock()
	s.ctx = ctx
	s.watchList = slices.Clone(st.WatchList)
	s.theme = st.MapTheme
	s.mapView.SetMaxZoom(labels.ThemeMaxZoom(s.theme))
	s.mu.Unlock()

	s.notify(Event{Change: ChangeWatch | ChangeNodes | ChangeTheme})
	return nil
}

// Reset drops every cache and UI setting. Persisted state is untouched.
func (s *State) Reset() {
	s.nodeDebounce.Cancel()
	s.trafficDebounce.Cancel()
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Close cancels pending debounced work.
func (s *State) Close() {
	s.nodeDebounce.Cancel()
	s.trafficDebounce.Cancel()
}

// Map returns the map synchronizer.
func (s *State) Map() *mapsync.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapView
}

// Health returns the poll health tracker.
func (s *State) Health() *Health {
	return s.health
}

func (s *State) begin(k cacheKind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[k]++
	return s.issued[k]
}

// acceptLocked reports whether a response of generation gen is newer than
// the last one applied to cache k, and records it if so.
func (s *State) acceptLocked(k cacheKind, gen uint64) bool {
	if gen <= s.applied[k] {
		return false
	}
	s.applied[k] = gen
	return true
}

// SetNodes replaces the node cache.
func (s *State) SetNodes(rows []model.Node) {
	s.applyNodes(s.begin(cacheNodes), rows)
}

func (s *State) applyNodes(gen uint64, rows []model.Node) {
	kept := make([]model.Node, 0, len(rows))
	for _, n := range rows {
		if n.NodeID != "" {
			kept = append(kept, n)
		}
	}

	s.mu.Lock()
	if !s.acceptLocked(cacheNodes, gen) {
		s.mu.Unlock()
		s.log.Debug("stale nodes response discarded", zap.Uint64("generation", gen))
		return
	}
	s.nodes = kept
	s.mu.Unlock()
	s.notify(Event{Change: ChangeNodes})
}

// SetTraffic replaces the traffic cache.
func (s *State) SetTraffic(rows []model.TrafficRecord) {
	s.applyTraffic(s.begin(cacheTraffic), rows)
}

func (s *State) applyTraffic(gen uint64, rows []model.TrafficRecord) {
	s.mu.Lock()
	if !s.acceptLocked(cacheTraffic, gen) {
		s.mu.Unlock()
		s.log.Debug("stale traffic response discarded", zap.Uint64("generation", gen))
		return
	}
	s.traffic = rows
	for _, r := range rows {
		s.learnMsgTypeLocked(r.MsgType)
	}
	s.mu.Unlock()
	s.notify(Event{Change: ChangeTraffic})
}

// MergePositions inserts or overwrites positions by node id and re-syncs
// the map. Keys are never removed, and a row older than the cached one for
// the same node is skipped, so responses may be applied in any order.
func (s *State) MergePositions(rows []model.Position) {
	s.mu.Lock()
	skipped := 0
	for _, p := range rows {
		if p.SourceID == "" {
			continue
		}
		if cur, ok := s.positions[p.SourceID]; ok && model.EpochMillis(cur.Timestamp) > model.EpochMillis(p.Timestamp) {
			skipped++
			continue
		}
		s.positions[p.SourceID] = p
	}
	created, updated := s.mapView.Sync(s.positions)
	s.mu.Unlock()

	s.log.Debug("markers synced",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("older_skipped", skipped),
	)
	s.notify(Event{Change: ChangePositions | ChangeNodes | ChangeMap})
}

// SetWatchDetail replaces the watch-list detail cache.
func (s *State) SetWatchDetail(rows []model.WatchItem) {
	s.applyWatchDetail(s.begin(cacheWatch), rows)
}

func (s *State) applyWatchDetail(gen uint64, rows []model.WatchItem) {
	s.mu.Lock()
	if !s.acceptLocked(cacheWatch, gen) {
		s.mu.Unlock()
		s.log.Debug("stale watch list response discarded", zap.Uint64("generation", gen))
		return
	}
	s.watchDetail = rows
	s.mu.Unlock()
	s.notify(Event{Change: ChangeWatch})
}

// SetStats replaces the stats panel and learns new message types.
func (s *State) SetStats(st model.Stats) {
	s.applyStats(s.begin(cacheStats), st)
}

func (s *State) applyStats(gen uint64, st model.Stats) {
	s.mu.Lock()
	if !s.acceptLocked(cacheStats, gen) {
		s.mu.Unlock()
		return
	}
	s.stats = &st
	types := make([]string, 0, len(st.ByType))
	for t := range st.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if st.ByType[types[i]] != st.ByType[types[j]] {
			return st.ByType[types[i]] > st.ByType[types[j]]
		}
		return types[i] < types[j]
	})
	for _, t := range types {
		s.learnMsgTypeLocked(t)
	}
	s.mu.Unlock()
	s.notify(Event{Change: ChangeStats})
}

// SetMetrics replaces the metrics panel.
func (s *State) SetMetrics(m model.Metrics) {
	s.applyMetrics(s.begin(cacheMetrics), m)
}

func (s *State) applyMetrics(gen uint64, m model.Metrics) {
	s.mu.Lock()
	if !s.acceptLocked(cacheMetrics, gen) {
		s.mu.Unlock()
		return
	}
	s.metrics = &m
	s.mu.Unlock()
	s.notify(Event{Change: ChangeMetrics})
}

func (s *State) learnMsgTypeLocked(t string) {
	if t == "" || slices.Contains(s.msgTypes, t) {
		return
	}
	s.msgTypes = append(s.msgTypes, t)
}

// GetOrLoadTelemetry returns the cached telemetry for nodeID, fetching it
// when absent. While a fetch is outstanding further calls return the
// loading entry without issuing another request. A failed fetch clears the
// slot so the next call retries.
func (s *State) GetOrLoadTelemetry(ctx context.Context, nodeID string) (model.TelemetryEntry, error) {
	s.mu.Lock()
	entry := s.telemetry[nodeID]
	if entry.Status != model.TelemetryAbsent {
		s.mu.Unlock()
		return entry, nil
	}
	s.telemetry[nodeID] = model.TelemetryEntry{Status: model.TelemetryLoading}
	s.mu.Unlock()
	s.notify(Event{Change: ChangeTelemetry, NodeID: nodeID})

	snap, err := s.src.NodeTelemetry(ctx, nodeID)

	s.mu.Lock()
	if err != nil {
		delete(s.telemetry, nodeID)
		s.mu.Unlock()
		s.log.Warn("telemetry fetch failed", zap.String("endpoint", "/api/node_telemetry"), zap.String("node", nodeID), zap.Error(err))
		s.notify(Event{Change: ChangeTelemetry, NodeID: nodeID})
		return model.TelemetryEntry{}, err
	}
	entry = model.TelemetryEntry{Status: model.TelemetryLoaded, Snapshot: snap}
	s.telemetry[nodeID] = entry
	s.mu.Unlock()
	s.notify(Event{Change: ChangeTelemetry, NodeID: nodeID})
	return entry, nil
}

// TelemetryFor returns the telemetry slot for nodeID.
func (s *State) TelemetryFor(nodeID string) model.TelemetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.telemetry[nodeID]
}

// ToggleExpanded flips the telemetry detail row of nodeID and reports
// whether it is now expanded.
func (s *State) ToggleExpanded(nodeID string) bool {
	s.mu.Lock()
	open := !s.expanded[nodeID]
	if open {
		s.expanded[nodeID] = true
	} else {
		delete(s.expanded, nodeID)
	}
	s.mu.Unlock()
	s.notify(Event{Change: ChangeNodes | ChangeTelemetry, NodeID: nodeID})
	return open
}

// ToggleWatchData flips a watch card activity line between preview and
// full payload.
func (s *State) ToggleWatchData(key string) {
	s.mu.Lock()
	if s.watchExpanded[key] {
		delete(s.watchExpanded, key)
	} else {
		s.watchExpanded[key] = true
	}
	s.mu.Unlock()
	s.notify(Event{Change: ChangeWatch})
}

// ToggleWatch adds nodeID to the end of the watch list or removes it,
// persists the list and refetches watch detail.
func (s *State) ToggleWatch(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return nil
	}
	s.mu.Lock()
	if i := slices.Index(s.watchList, nodeID); i >= 0 {
		s.watchList = slices.Delete(slices.Clone(s.watchList), i, i+1)
	} else {
		s.watchList = append(slices.Clone(s.watchList), nodeID)
	}
	persisted := store.State{WatchList: slices.Clone(s.watchList), MapTheme: s.theme}
	s.mu.Unlock()

	s.persist(ctx, persisted)
	s.notify(Event{Change: ChangeWatch | ChangeNodes})
	return s.RefreshWatchList(ctx)
}

// WatchList returns a copy of the watch list.
func (s *State) WatchList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.watchList)
}

// ClickNodeSort applies a header click to the node table.
func (s *State) ClickNodeSort(col int) {
	s.mu.Lock()
	s.nodeSort = pipeline.Toggle(s.nodeSort, col)
	s.mu.Unlock()
	s.notify(Event{Change: ChangeNodes})
}

// ClickTrafficSort applies a header click to the traffic table.
func (s *State) ClickTrafficSort(col int) {
	s.mu.Lock()
	s.trafficSort = pipeline.Toggle(s.trafficSort, col)
	s.mu.Unlock()
	s.notify(Event{Change: ChangeTraffic})
}

// SetNodeFilter schedules the node directory filter. Only the last value
// typed within the debounce window is applied.
func (s *State) SetNodeFilter(text string) {
	s.nodeDebounce.Call(text)
}

func (s *State) applyNodeFilter(text string) {
	s.mu.Lock()
	s.nodeFilter = text
	s.mu.Unlock()
	s.notify(Event{Change: ChangeNodes})
}

// SetTrafficNodeFilter schedules a traffic refetch with a node filter.
func (s *State) SetTrafficNodeFilter(text string) {
	s.trafficDebounce.Call(text)
}

func (s *State) applyTrafficNode(text string) {
	s.mu.Lock()
	s.trafficFilter.Node = text
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.RefreshTraffic(ctx)
}

// SetTrafficType changes the message type filter and refetches at once.
func (s *State) SetTrafficType(ctx context.Context, msgType string) error {
	s.mu.Lock()
	s.trafficFilter.MsgType = msgType
	s.mu.Unlock()
	return s.RefreshTraffic(ctx)
}

// SetTheme selects and persists a map theme.
func (s *State) SetTheme(ctx context.Context, theme string) error {
	if !labels.ValidTheme(theme) {
		return ErrUnknownTheme
	}
	s.mu.Lock()
	s.theme = theme
	s.mapView.SetMaxZoom(labels.ThemeMaxZoom(theme))
	persisted := store.State{WatchList: slices.Clone(s.watchList), MapTheme: theme}
	s.mu.Unlock()

	s.persist(ctx, persisted)
	s.notify(Event{Change: ChangeTheme | ChangeMap})
	return nil
}

// PanTo centres the map on a coordinate link.
func (s *State) PanTo(pin view.Pin) {
	s.Map().PanTo(pin.Lat, pin.Lng, pin.NodeID)
	s.notify(Event{Change: ChangeMap})
}

func (s *State) persist(ctx context.Context, st store.State) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Save(ctx, st); err != nil {
		s.log.Warn("state save failed", zap.Error(err))
	}
}

// Snapshot is a consistent copy of the state for rendering.
type Snapshot struct {
	Nodes         []model.Node
	Traffic       []model.TrafficRecord
	Positions     map[string]model.Position
	Telemetry     map[string]model.TelemetryEntry
	WatchList     []string
	WatchDetail   []model.WatchItem
	Expanded      map[string]bool
	WatchExpanded map[string]bool
	Stats         *model.Stats
	Metrics       *model.Metrics
	MsgTypes      []string
	NodeSort      *pipeline.SortState
	TrafficSort   *pipeline.SortState
	NodeFilter    string
	TrafficFilter TrafficFilter
	Theme         string
	LastUpdate    time.Time
	Health        HealthStatus
	Location      *time.Location
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Nodes:         s.nodes,
		Traffic:       s.traffic,
		Positions:     maps.Clone(s.positions),
		Telemetry:     maps.Clone(s.telemetry),
		WatchList:     slices.Clone(s.watchList),
		WatchDetail:   s.watchDetail,
		Expanded:      maps.Clone(s.expanded),
		WatchExpanded: maps.Clone(s.watchExpanded),
		Stats:         s.stats,
		Metrics:       s.metrics,
		MsgTypes:      slices.Clone(s.msgTypes),
		NodeSort:      s.nodeSort,
		TrafficSort:   s.trafficSort,
		NodeFilter:    s.nodeFilter,
		TrafficFilter: s.trafficFilter,
		Theme:         s.theme,
		LastUpdate:    s.lastUpdate,
		Health:        s.health.Status(),
		Location:      s.opts.Location,
	}
}

// Watched returns the watch list as a set.
func (sn Snapshot) Watched() map[string]bool {
	set := make(map[string]bool, len(sn.WatchList))
	for _, id := range sn.WatchList {
		set[id] = true
	}
	return set
}

// NodeRows computes the node directory view.
func (sn Snapshot) NodeRows() []view.NodeRow {
	return view.NodeRows(view.NodeInput{
		Nodes:     sn.Nodes,
		Sort:      sn.NodeSort,
		Filter:    sn.NodeFilter,
		Watched:   sn.Watched(),
		Expanded:  sn.Expanded,
		Telemetry: sn.Telemetry,
		Positions: sn.Positions,
		Location:  sn.Location,
	})
}

// TrafficRows computes the traffic table view.
func (sn Snapshot) TrafficRows() []view.TrafficRow {
	return view.TrafficRows(sn.Traffic, sn.TrafficSort, sn.Location)
}

// WatchPanel computes the watch list view.
func (sn Snapshot) WatchPanel() view.WatchPanel {
	return view.Watch(view.WatchInput{
		WatchList: sn.WatchList,
		Items:     sn.WatchDetail,
		Positions: sn.Positions,
		Expanded:  sn.WatchExpanded,
		Location:  sn.Location,
	})
}
