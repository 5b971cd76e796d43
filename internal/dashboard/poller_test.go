package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoller_RunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	p := NewPoller(h.state, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitFor(t, "first cycle", func() bool { return !h.state.Snapshot().LastUpdate.IsZero() })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not stop")
	}
	if h.svc.count("/api/stats") != 1 {
		t.Fatalf("stats requests=%d", h.svc.count("/api/stats"))
	}
}

func TestPoller_Ticks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	p := NewPoller(h.state, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	waitFor(t, "three cycles", func() bool { return h.svc.count("/api/nodes") >= 3 })
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	t.Parallel()

	if p := NewPoller(nil, 0, nil); p.interval != DefaultPollInterval {
		t.Fatalf("interval=%s", p.interval)
	}
}
