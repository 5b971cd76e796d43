package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_ErrorIncludesBody(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL, time.Second)
	_, err := c.Nodes(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	got := err.Error()
	if got == "" || got[len(got)-1] == '\n' {
		t.Fatalf("unexpected error string: %q", got)
	}
	if want := "400"; !strings.Contains(got, want) {
		t.Fatalf("error missing status: %q", got)
	}
	if want := `"error":"nope"`; !strings.Contains(got, want) {
		t.Fatalf("error missing body: %q", got)
	}
}

func TestClient_NonJSONBody(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer s.Close()

	_, err := NewClient(s.URL, time.Second).Stats(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "gateway") || !strings.Contains(err.Error(), "200") {
		t.Fatalf("error=%q", err)
	}
}

func TestClient_TrafficQuery(t *testing.T) {
	t.Parallel()

	var gotPath, gotType, gotNode, gotLimit string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.URL.Query().Get("msg_type")
		gotNode = r.URL.Query().Get("node")
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[{"timestamp":"2024-01-01T10:00:00","source_id":"!ab12","msg_type":"TEXT_MESSAGE_APP","data":"hi","key_used":"public"}]`))
	}))
	defer s.Close()

	rows, err := NewClient(s.URL+"/", time.Second).Traffic(context.Background(), TrafficQuery{MsgType: "TEXT_MESSAGE_APP", Node: "!ab12", Limit: 50})
	if err != nil {
		t.Fatalf("Traffic: %v", err)
	}
	if gotPath != "/api/traffic" || gotType != "TEXT_MESSAGE_APP" || gotNode != "!ab12" || gotLimit != "50" {
		t.Fatalf("path=%q type=%q node=%q limit=%q", gotPath, gotType, gotNode, gotLimit)
	}
	if len(rows) != 1 || rows[0].SourceID != "!ab12" || rows[0].KeyUsed != "public" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestClient_TrafficQueryOmitsEmpty(t *testing.T) {
	t.Parallel()

	var rawQuery string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer s.Close()

	if _, err := NewClient(s.URL, time.Second).Traffic(context.Background(), TrafficQuery{}); err != nil {
		t.Fatalf("Traffic: %v", err)
	}
	if rawQuery != "" {
		t.Fatalf("query=%q", rawQuery)
	}
}

func TestClient_WatchListJoinsIDs(t *testing.T) {
	t.Parallel()

	var nodes string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodes = r.URL.Query().Get("nodes")
		_, _ = w.Write([]byte(`[{"node":{"node_id":"!ab12","long_name":"Base"},"position":{"latitude":40.1,"longitude":-105.2,"timestamp":"2024-01-01T10:00:00"},"traffic":[]}]`))
	}))
	defer s.Close()

	items, err := NewClient(s.URL, time.Second).WatchList(context.Background(), []string{"!ab12", "!cd34"})
	if err != nil {
		t.Fatalf("WatchList: %v", err)
	}
	if nodes != "!ab12,!cd34" {
		t.Fatalf("nodes=%q", nodes)
	}
	if len(items) != 1 || items[0].Node.LongName != "Base" || items[0].Position == nil || items[0].Position.Latitude != 40.1 {
		t.Fatalf("items=%+v", items)
	}
}

func TestClient_NodeTelemetryNullCategories(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("node") != "!ab12" {
			http.Error(w, "missing node", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"device":{"data":{"battery_level":87,"voltage":4.1},"timestamp":"2024-01-01T10:00:00"},"environment":null,"power":null,"air_quality":null,"local_stats":null}`))
	}))
	defer s.Close()

	snap, err := NewClient(s.URL, time.Second).NodeTelemetry(context.Background(), "!ab12")
	if err != nil {
		t.Fatalf("NodeTelemetry: %v", err)
	}
	if snap.Device == nil || snap.Environment != nil || snap.Empty() {
		t.Fatalf("snapshot=%+v", snap)
	}
	if v, ok := snap.Device.Data["battery_level"].(float64); !ok || v != 87 {
		t.Fatalf("battery=%v", snap.Device.Data["battery_level"])
	}
}

func TestClient_Metrics(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rf_totals":{"total":10,"decrypted":7,"undecrypted":3,"public":5,"private":2},"rf_totals_24h":null,"channel_utilization":[{"source_id":"!ab12","channel_utilization":12.5,"timestamp":"2024-01-01T10:00:00"}],"hourly":[],"hop_distribution":[{"hop_limit":3,"cnt":4}]}`))
	}))
	defer s.Close()

	m, err := NewClient(s.URL, time.Second).Metrics(context.Background())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.RFTotals == nil || m.RFTotals.Decrypted != 7 || m.RFTotals24h != nil {
		t.Fatalf("rf=%+v", m)
	}
	if len(m.HopDistribution) != 1 || m.HopDistribution[0].Count != 4 {
		t.Fatalf("hops=%+v", m.HopDistribution)
	}
}
