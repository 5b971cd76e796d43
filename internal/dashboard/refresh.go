package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meshdash/internal/api"
	"meshdash/internal/model"
)

// RefreshNodes fetches and replaces the node cache. On failure the cache
// is left as it was.
func (s *State) RefreshNodes(ctx context.Context) error {
	gen := s.begin(cacheNodes)
	rows, err := s.src.Nodes(ctx)
	if err != nil {
		return s.fetchFailed("/api/nodes", err)
	}
	s.applyNodes(gen, rows)
	return nil
}

// RefreshTraffic fetches traffic with the active filters.
func (s *State) RefreshTraffic(ctx context.Context) error {
	s.mu.Lock()
	s.issued[cacheTraffic]++
	gen := s.issued[cacheTraffic]
	q := api.TrafficQuery{
		MsgType: s.trafficFilter.MsgType,
		Node:    s.trafficFilter.Node,
		Limit:   s.opts.TrafficLimit,
	}
	s.mu.Unlock()

	rows, err := s.src.Traffic(ctx, q)
	if err != nil {
		return s.fetchFailed("/api/traffic", err)
	}
	s.applyTraffic(gen, rows)
	return nil
}

// RefreshPositions fetches positions and merges them into the cache.
func (s *State) RefreshPositions(ctx context.Context) error {
	rows, err := s.src.Positions(ctx)
	if err != nil {
		return s.fetchFailed("/api/positions", err)
	}
	s.MergePositions(rows)
	return nil
}

// RefreshWatchList fetches detail for the watched nodes. An empty watch
// list is applied as an empty result without a request.
func (s *State) RefreshWatchList(ctx context.Context) error {
	if err := s.refreshWatchList(ctx); !errors.Is(err, ErrEmptyWatchList) {
		return err
	}
	return nil
}

// refreshWatchList is RefreshWatchList but returns ErrEmptyWatchList when
// no request was made.
func (s *State) refreshWatchList(ctx context.Context) error {
	s.mu.Lock()
	s.issued[cacheWatch]++
	gen := s.issued[cacheWatch]
	ids := slices.Clone(s.watchList)
	s.mu.Unlock()

	items, err := s.fetchWatchDetail(ctx, ids)
	switch {
	case errors.Is(err, ErrEmptyWatchList):
		s.applyWatchDetail(gen, nil)
		return err
	case err != nil:
		return s.fetchFailed("/api/watchlist", err)
	}
	s.applyWatchDetail(gen, items)
	return nil
}

func (s *State) fetchWatchDetail(ctx context.Context, ids []string) ([]model.WatchItem, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyWatchList
	}
	return s.src.WatchList(ctx, ids)
}

// RefreshStats fetches the headline counters.
func (s *State) RefreshStats(ctx context.Context) error {
	gen := s.begin(cacheStats)
	st, err := s.src.Stats(ctx)
	if err != nil {
		return s.fetchFailed("/api/stats", err)
	}
	s.applyStats(gen, st)
	return nil
}

// RefreshMetrics fetches the RF and airtime panel.
func (s *State) RefreshMetrics(ctx context.Context) error {
	gen := s.begin(cacheMetrics)
	m, err := s.src.Metrics(ctx)
	if err != nil {
		return s.fetchFailed("/api/metrics", err)
	}
	s.applyMetrics(gen, m)
	return nil
}

func (s *State) fetchFailed(endpoint string, err error) error {
	s.log.Warn("fetch failed", zap.String("endpoint", endpoint), zap.Error(err))
	return fmt.Errorf("fetch %s: %w", endpoint, err)
}

// RefreshAll runs every cache refresh concurrently and returns once all of
// them have settled. A failing fetch never stops the others. A cycle counts
// as failed for the health tracker when every request it issued failed;
// the watch list fetch is not issued while the list is empty.
func (s *State) RefreshAll(ctx context.Context) error {
	tasks := []func(context.Context) error{
		s.RefreshStats,
		s.RefreshNodes,
		s.RefreshTraffic,
		s.RefreshPositions,
		s.refreshWatchList,
		s.RefreshMetrics,
	}

	var failed, skipped atomic.Int32
	var g errgroup.Group
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			switch err := task(ctx); {
			case errors.Is(err, ErrEmptyWatchList):
				skipped.Add(1)
			case err != nil:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	n := int(failed.Load())
	issued := len(tasks) - int(skipped.Load())
	s.mu.Lock()
	s.lastUpdate = time.Now()
	s.mu.Unlock()
	if s.health.Record(issued > 0 && n == issued) {
		st := s.health.Status()
		if st.Offline {
			s.log.Warn("capture service unreachable", zap.Int("failed_cycles", st.FailedCycles))
		} else {
			s.log.Info("capture service reachable again")
		}
	}
	s.log.Debug("poll cycle done", zap.Int("failed", n), zap.Int("fetches", issued))
	s.notify(Event{Change: ChangeStatus})
	return nil
}
