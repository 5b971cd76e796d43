package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is the time between refresh cycles.
const DefaultPollInterval = 10 * time.Second

// Poller drives RefreshAll on start and then on every tick.
type Poller struct {
	state    *State
	interval time.Duration
	log      *zap.Logger
}

// NewPoller returns a poller for state.
func NewPoller(state *State, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{state: state, interval: interval, log: log}
}

// Run starts a cycle immediately and one per interval until ctx is done.
// Cycles are not serialised; a slow cycle may overlap the next one. Run
// waits for in-flight cycles before returning ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	cycle := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.state.RefreshAll(ctx)
		}()
	}

	p.log.Info("poller started", zap.Duration("interval", p.interval))
	cycle()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			cycle()
		}
	}
}
