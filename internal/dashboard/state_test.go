package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"meshdash/internal/api"
	"meshdash/internal/model"
	"meshdash/internal/store"
	"meshdash/internal/view"
)

const (
	nodesJSON     = `[{"node_id":"!ab12","long_name":"Base","last_seen":"2024-01-01T10:00:00"},{"node_id":"!cd34","last_seen":"2024-01-02T10:00:00"},{"node_id":""}]`
	trafficJSON   = `[{"timestamp":"2024-01-01T10:00:00","source_id":"!ab12","msg_type":"TEXT_MESSAGE_APP","data":"hi"}]`
	positionsJSON = `[{"source_id":"!ab12","latitude":40.0,"longitude":-105.0,"timestamp":"2024-01-01T10:00:00"}]`
	statsJSON     = `{"total_nodes":2,"total_packets":10,"packets_24h":4,"by_type":{"TEXT_MESSAGE_APP":6,"POSITION_APP":4}}`
	metricsJSON   = `{"rf_totals":null,"rf_totals_24h":null,"channel_utilization":[],"hourly":[]}`
	watchJSON     = `[{"node":{"node_id":"!ab12","long_name":"Base"},"position":null,"traffic":[]}]`
	telemetryJSON = `{"device":{"data":{"battery_level":90},"timestamp":"2024-01-01T10:00:00"}}`
)

// fakeService serves canned responses and records every request.
type fakeService struct {
	mu       sync.Mutex
	bodies   map[string][]string
	status   map[string]int
	hits     map[string]int
	queries  map[string][]url.Values
	handlers map[string]http.HandlerFunc
}

func newFakeService() *fakeService {
	return &fakeService{
		bodies: map[string][]string{
			"/api/nodes":          {nodesJSON},
			"/api/traffic":        {trafficJSON},
			"/api/positions":      {positionsJSON},
			"/api/stats":          {statsJSON},
			"/api/metrics":        {metricsJSON},
			"/api/watchlist":      {watchJSON},
			"/api/node_telemetry": {telemetryJSON},
		},
		status:   map[string]int{},
		hits:     map[string]int{},
		queries:  map[string][]url.Values{},
		handlers: map[string]http.HandlerFunc{},
	}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	path := r.URL.Path
	f.hits[path]++
	f.queries[path] = append(f.queries[path], r.URL.Query())
	n := f.hits[path]
	code := f.status[path]
	handler := f.handlers[path]
	bodies := f.bodies[path]
	f.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	if code != 0 {
		http.Error(w, "boom", code)
		return
	}
	if len(bodies) == 0 {
		http.NotFound(w, r)
		return
	}
	// successive calls walk the list and then repeat the last body
	body := bodies[min(n, len(bodies))-1]
	_, _ = w.Write([]byte(body))
}

func (f *fakeService) setStatus(path string, code int) {
	f.mu.Lock()
	f.status[path] = code
	f.mu.Unlock()
}

func (f *fakeService) setBodies(path string, bodies ...string) {
	f.mu.Lock()
	f.bodies[path] = bodies
	f.mu.Unlock()
}

func (f *fakeService) setHandler(path string, h http.HandlerFunc) {
	f.mu.Lock()
	f.handlers[path] = h
	f.mu.Unlock()
}

func (f *fakeService) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeService) lastQuery(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queries[path]
	if len(q) == 0 {
		return nil
	}
	return q[len(q)-1]
}

type harness struct {
	svc     *fakeService
	server  *httptest.Server
	state   *State
	backend *store.File

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{svc: newFakeService()}
	h.server = httptest.NewServer(h.svc)
	t.Cleanup(h.server.Close)
	h.backend = store.NewFile(filepath.Join(t.TempDir(), "state.yaml"), nil)

	opts := Options{
		Source:             api.NewClient(h.server.URL, 2*time.Second),
		Backend:            h.backend,
		NodeFilterDelay:    30 * time.Millisecond,
		TrafficFilterDelay: 30 * time.Millisecond,
		Location:           time.UTC,
		Notify: func(e Event) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.state = New(opts)
	t.Cleanup(h.state.Close)
	if err := h.state.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return h
}

func (h *harness) eventCount(c Change) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Change.Has(c) {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func nodeIDs(rows []view.NodeRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.NodeID
	}
	return out
}

func TestRefreshAll_PopulatesEveryCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if err := h.state.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	sn := h.state.Snapshot()
	if len(sn.Nodes) != 2 {
		t.Fatalf("nodes=%d (empty identifiers must be dropped)", len(sn.Nodes))
	}
	if len(sn.Traffic) != 1 || len(sn.Positions) != 1 || sn.Stats == nil || sn.Metrics == nil {
		t.Fatalf("snapshot=%+v", sn)
	}
	if !reflect.DeepEqual(sn.MsgTypes, []string{"TEXT_MESSAGE_APP", "POSITION_APP"}) {
		t.Fatalf("msg types=%v", sn.MsgTypes)
	}
	if sn.LastUpdate.IsZero() || sn.Health.Offline {
		t.Fatalf("status=%+v last=%s", sn.Health, sn.LastUpdate)
	}
	if h.svc.count("/api/watchlist") != 0 {
		t.Fatalf("watch list fetched with empty list")
	}
	if !h.state.Map().Fitted() {
		t.Fatalf("map not fitted after first positions")
	}
}

func TestRefreshAll_FailureIsolation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.state.SetNodes([]model.Node{{NodeID: "!old1"}})
	h.svc.setStatus("/api/nodes", http.StatusInternalServerError)
	h.svc.setBodies("/api/traffic", "this is not json")

	_ = h.state.RefreshAll(context.Background())

	sn := h.state.Snapshot()
	if len(sn.Nodes) != 1 || sn.Nodes[0].NodeID != "!old1" {
		t.Fatalf("nodes cache changed on failure: %+v", sn.Nodes)
	}
	if sn.Traffic != nil {
		t.Fatalf("traffic cache changed on decode failure: %+v", sn.Traffic)
	}
	if len(sn.Positions) != 1 || sn.Stats == nil || sn.Metrics == nil {
		t.Fatalf("healthy fetches were not applied: %+v", sn)
	}
	if sn.Health.FailedCycles != 0 {
		t.Fatalf("partial failure counted as failed cycle")
	}
}

func TestRefreshNodes_ReturnsError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.svc.setStatus("/api/nodes", http.StatusBadGateway)
	if err := h.state.RefreshNodes(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMergePositions_MarkersAccumulate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.svc.setBodies("/api/positions",
		`[{"source_id":"!ab12","latitude":40.0,"longitude":-105.0,"timestamp":"2024-01-01T10:00:00"}]`,
		`[{"source_id":"!cd34","latitude":40.5,"longitude":-105.5,"timestamp":"2024-01-02T10:00:00"}]`,
	)
	ctx := context.Background()
	if err := h.state.RefreshPositions(ctx); err != nil {
		t.Fatalf("RefreshPositions: %v", err)
	}
	fitted := h.state.Map().View()
	if err := h.state.RefreshPositions(ctx); err != nil {
		t.Fatalf("RefreshPositions: %v", err)
	}

	sn := h.state.Snapshot()
	if len(sn.Positions) != 2 {
		t.Fatalf("positions=%v", sn.Positions)
	}
	m := h.state.Map()
	for _, id := range []string{"!ab12", "!cd34"} {
		if _, ok := m.Marker(id); !ok {
			t.Fatalf("missing marker %s", id)
		}
	}
	if m.View() != fitted {
		t.Fatalf("viewport refitted on second sync")
	}
}

func TestMergePositions_NeverRemovesKeys(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.state.MergePositions([]model.Position{{SourceID: "!a", Latitude: 1, Longitude: 1}, {SourceID: "!b", Latitude: 2, Longitude: 2}})
	h.state.MergePositions([]model.Position{{SourceID: "!b", Latitude: 3, Longitude: 3}})
	h.state.MergePositions(nil)

	sn := h.state.Snapshot()
	if len(sn.Positions) != 2 {
		t.Fatalf("positions=%v", sn.Positions)
	}
	if sn.Positions["!b"].Latitude != 3 {
		t.Fatalf("last write did not win: %+v", sn.Positions["!b"])
	}
}

func TestMergePositions_OutOfOrderResponses(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	// the later poll lands first and carries a newer fix for !ab12
	h.state.MergePositions([]model.Position{
		{SourceID: "!cd34", Latitude: 40.5, Longitude: -105.5, Timestamp: "2024-01-02T10:00:00"},
		{SourceID: "!ab12", Latitude: 41, Longitude: -106, Timestamp: "2024-01-02T11:00:00"},
	})
	h.state.MergePositions([]model.Position{
		{SourceID: "!ab12", Latitude: 40, Longitude: -105, Timestamp: "2024-01-01T10:00:00"},
		{SourceID: "!ef56", Latitude: 39, Longitude: -104, Timestamp: "2024-01-01T10:00:00"},
	})

	for _, id := range []string{"!ab12", "!cd34", "!ef56"} {
		if _, ok := h.state.Map().Marker(id); !ok {
			t.Fatalf("missing marker %s", id)
		}
	}
	if got := h.state.Snapshot().Positions["!ab12"].Latitude; got != 41 {
		t.Fatalf("older fix overwrote newer: lat=%v", got)
	}
}

func TestToggleWatch_RoundTripAndEmptyState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.state.ToggleWatch(ctx, "!ab12"); err != nil {
		t.Fatalf("ToggleWatch: %v", err)
	}
	if got := h.state.WatchList(); !reflect.DeepEqual(got, []string{"!ab12"}) {
		t.Fatalf("watch=%v", got)
	}
	if h.svc.count("/api/watchlist") != 1 || h.svc.lastQuery("/api/watchlist").Get("nodes") != "!ab12" {
		t.Fatalf("watch detail not fetched for new entry")
	}
	st, err := h.backend.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(st.WatchList, []string{"!ab12"}) {
		t.Fatalf("persisted=%v", st.WatchList)
	}
	if cards := h.state.Snapshot().WatchPanel().Cards; len(cards) != 1 {
		t.Fatalf("cards=%d", len(cards))
	}

	if err := h.state.ToggleWatch(ctx, "!ab12"); err != nil {
		t.Fatalf("ToggleWatch: %v", err)
	}
	if got := h.state.WatchList(); len(got) != 0 {
		t.Fatalf("watch=%v", got)
	}
	if h.svc.count("/api/watchlist") != 1 {
		t.Fatalf("watch detail fetched for empty list")
	}
	panel := h.state.Snapshot().WatchPanel()
	if panel.Empty != view.WatchEmptyText || len(panel.Cards) != 0 {
		t.Fatalf("panel=%+v", panel)
	}
	st, _ = h.backend.Load(ctx)
	if len(st.WatchList) != 0 {
		t.Fatalf("persisted=%v", st.WatchList)
	}
}

func TestToggleWatch_PreservesOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	for _, id := range []string{"!a", "!b", "!c"} {
		_ = h.state.ToggleWatch(ctx, id)
	}
	_ = h.state.ToggleWatch(ctx, "!b")
	if got := h.state.WatchList(); !reflect.DeepEqual(got, []string{"!a", "!c"}) {
		t.Fatalf("watch=%v", got)
	}
	rows := h.state.Snapshot().Watched()
	if !rows["!a"] || rows["!b"] {
		t.Fatalf("watched=%v", rows)
	}
}

func TestInit_LoadsPersistedState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.yaml")
	backend := store.NewFile(path, nil)
	if err := backend.Save(context.Background(), store.State{WatchList: []string{"!cd34"}, MapTheme: "topo"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s := New(Options{Backend: backend})
	defer s.Close()
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	sn := s.Snapshot()
	if !reflect.DeepEqual(sn.WatchList, []string{"!cd34"}) || sn.Theme != "topo" {
		t.Fatalf("snapshot watch=%v theme=%q", sn.WatchList, sn.Theme)
	}
}

func TestGetOrLoadTelemetry_SingleFlight(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	h.svc.setHandler("/api/node_telemetry", func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		_, _ = w.Write([]byte(telemetryJSON))
	})

	ctx := context.Background()
	done := make(chan model.TelemetryEntry, 1)
	go func() {
		entry, err := h.state.GetOrLoadTelemetry(ctx, "!ab12")
		if err != nil {
			t.Errorf("GetOrLoadTelemetry: %v", err)
		}
		done <- entry
	}()
	<-arrived

	for i := 0; i < 5; i++ {
		entry, err := h.state.GetOrLoadTelemetry(ctx, "!ab12")
		if err != nil {
			t.Fatalf("GetOrLoadTelemetry: %v", err)
		}
		if entry.Status != model.TelemetryLoading {
			t.Fatalf("status=%v", entry.Status)
		}
	}
	close(release)

	entry := <-done
	if entry.Status != model.TelemetryLoaded || entry.Snapshot.Device == nil {
		t.Fatalf("entry=%+v", entry)
	}
	if n := h.svc.count("/api/node_telemetry"); n != 1 {
		t.Fatalf("requests=%d", n)
	}

	// loaded entries are served from cache
	if _, err := h.state.GetOrLoadTelemetry(ctx, "!ab12"); err != nil {
		t.Fatalf("GetOrLoadTelemetry: %v", err)
	}
	if n := h.svc.count("/api/node_telemetry"); n != 1 {
		t.Fatalf("requests=%d", n)
	}
}

func TestGetOrLoadTelemetry_FailureClearsSlot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.svc.setStatus("/api/node_telemetry", http.StatusInternalServerError)
	ctx := context.Background()

	if _, err := h.state.GetOrLoadTelemetry(ctx, "!ab12"); err == nil {
		t.Fatalf("expected error")
	}
	if st := h.state.TelemetryFor("!ab12").Status; st != model.TelemetryAbsent {
		t.Fatalf("status=%v", st)
	}

	h.svc.setStatus("/api/node_telemetry", 0)
	entry, err := h.state.GetOrLoadTelemetry(ctx, "!ab12")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if entry.Status != model.TelemetryLoaded {
		t.Fatalf("status=%v", entry.Status)
	}
	if n := h.svc.count("/api/node_telemetry"); n != 2 {
		t.Fatalf("requests=%d", n)
	}
}

func TestToggleExpanded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.state.SetNodes([]model.Node{{NodeID: "!ab12"}})
	if !h.state.ToggleExpanded("!ab12") {
		t.Fatalf("expected expanded")
	}
	rows := h.state.Snapshot().NodeRows()
	if !rows[0].Expanded || rows[0].Telemetry == nil || !rows[0].Telemetry.Loading {
		t.Fatalf("row=%+v", rows[0])
	}
	if h.state.ToggleExpanded("!ab12") {
		t.Fatalf("expected collapsed")
	}
	if rows := h.state.Snapshot().NodeRows(); rows[0].Expanded || rows[0].Telemetry != nil {
		t.Fatalf("row=%+v", rows[0])
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	older := h.state.begin(cacheNodes)
	newer := h.state.begin(cacheNodes)

	h.state.applyNodes(newer, []model.Node{{NodeID: "!new"}})
	h.state.applyNodes(older, []model.Node{{NodeID: "!old"}})

	sn := h.state.Snapshot()
	if len(sn.Nodes) != 1 || sn.Nodes[0].NodeID != "!new" {
		t.Fatalf("nodes=%+v", sn.Nodes)
	}
}

func TestSortScenario(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if err := h.state.RefreshNodes(context.Background()); err != nil {
		t.Fatalf("RefreshNodes: %v", err)
	}
	h.state.ClickNodeSort(view.NodeColLastSeen)
	if got := nodeIDs(h.state.Snapshot().NodeRows()); !reflect.DeepEqual(got, []string{"!ab12", "!cd34"}) {
		t.Fatalf("ascending=%v", got)
	}
	h.state.ClickNodeSort(view.NodeColLastSeen)
	if got := nodeIDs(h.state.Snapshot().NodeRows()); !reflect.DeepEqual(got, []string{"!cd34", "!ab12"}) {
		t.Fatalf("descending=%v", got)
	}
}

func TestSetNodeFilter_Debounced(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	_ = h.state.RefreshNodes(context.Background())
	before := h.eventCount(ChangeNodes)

	for _, s := range []string{"b", "ba", "bas", "base"} {
		h.state.SetNodeFilter(s)
	}
	if got := h.state.Snapshot().NodeFilter; got != "" {
		t.Fatalf("filter applied before debounce: %q", got)
	}
	waitFor(t, "node filter", func() bool { return h.state.Snapshot().NodeFilter == "base" })

	if got := nodeIDs(h.state.Snapshot().NodeRows()); !reflect.DeepEqual(got, []string{"!ab12"}) {
		t.Fatalf("rows=%v", got)
	}
	if n := h.eventCount(ChangeNodes) - before; n != 1 {
		t.Fatalf("node events=%d", n)
	}
	if h.svc.count("/api/nodes") != 1 {
		t.Fatalf("node filter triggered a fetch")
	}
}

func TestTrafficFilters_Refetch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.state.SetTrafficType(ctx, "POSITION_APP"); err != nil {
		t.Fatalf("SetTrafficType: %v", err)
	}
	if q := h.svc.lastQuery("/api/traffic"); q.Get("msg_type") != "POSITION_APP" {
		t.Fatalf("query=%v", q)
	}

	for _, s := range []string{"!", "!a", "!ab", "!ab12"} {
		h.state.SetTrafficNodeFilter(s)
	}
	waitFor(t, "traffic refetch", func() bool { return h.svc.count("/api/traffic") >= 2 })
	time.Sleep(60 * time.Millisecond)

	if n := h.svc.count("/api/traffic"); n != 2 {
		t.Fatalf("traffic requests=%d", n)
	}
	q := h.svc.lastQuery("/api/traffic")
	if q.Get("node") != "!ab12" || q.Get("msg_type") != "POSITION_APP" {
		t.Fatalf("query=%v", q)
	}
}

func TestSetTheme(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.state.SetTheme(ctx, "neon"); !errors.Is(err, ErrUnknownTheme) {
		t.Fatalf("err=%v", err)
	}
	if err := h.state.SetTheme(ctx, "topo"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if h.state.Snapshot().Theme != "topo" {
		t.Fatalf("theme not applied")
	}
	h.state.Map().ZoomBy(30)
	if z := h.state.Map().View().Zoom; z != 17 {
		t.Fatalf("zoom=%d", z)
	}
	st, _ := h.backend.Load(ctx)
	if st.MapTheme != "topo" {
		t.Fatalf("persisted theme=%q", st.MapTheme)
	}
}

func TestHealth_OfflineAfterFailedCycles(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(o *Options) { o.OfflineAfter = 2 })
	for _, p := range []string{"/api/nodes", "/api/traffic", "/api/positions", "/api/watchlist", "/api/stats", "/api/metrics"} {
		h.svc.setStatus(p, http.StatusServiceUnavailable)
	}

	ctx := context.Background()
	_ = h.state.RefreshAll(ctx)
	if h.state.Snapshot().Health.Offline {
		t.Fatalf("offline after one cycle")
	}
	_ = h.state.RefreshAll(ctx)
	if !h.state.Snapshot().Health.Offline {
		t.Fatalf("expected offline")
	}

	h.svc.setStatus("/api/stats", 0)
	_ = h.state.RefreshAll(ctx)
	if st := h.state.Snapshot().Health; st.Offline || st.FailedCycles != 0 || st.LastOK.IsZero() {
		t.Fatalf("status=%+v", st)
	}
}

func TestHealth_WatchDetailSuccessKeepsOnline(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(o *Options) { o.OfflineAfter = 1 })
	ctx := context.Background()
	if err := h.state.ToggleWatch(ctx, "!ab12"); err != nil {
		t.Fatalf("ToggleWatch: %v", err)
	}
	for _, p := range []string{"/api/nodes", "/api/traffic", "/api/positions", "/api/stats", "/api/metrics"} {
		h.svc.setStatus(p, http.StatusServiceUnavailable)
	}

	_ = h.state.RefreshAll(ctx)
	if st := h.state.Snapshot().Health; st.Offline || st.FailedCycles != 0 {
		t.Fatalf("status=%+v", st)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	_ = h.state.RefreshAll(context.Background())
	h.state.Reset()
	sn := h.state.Snapshot()
	if sn.Nodes != nil || len(sn.Positions) != 0 || sn.Stats != nil || h.state.Map().Len() != 0 {
		t.Fatalf("snapshot=%+v", sn)
	}
}
