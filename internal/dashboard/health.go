package dashboard

import (
	"sync"
	"time"
)

// DefaultOfflineAfter is the number of consecutive fully failed poll
// cycles after which the service is reported offline.
const DefaultOfflineAfter = 3

// HealthStatus is a point-in-time copy of the tracker.
type HealthStatus struct {
	Offline      bool
	FailedCycles int
	LastOK       time.Time
}

// Health counts consecutive poll cycles in which every fetch failed. It
// only reports; polling continues regardless.
type Health struct {
	mu        sync.Mutex
	threshold int
	failures  int
	lastOK    time.Time
}

// NewHealth returns a tracker that goes offline after threshold failed
// cycles. Zero or negative uses DefaultOfflineAfter.
func NewHealth(threshold int) *Health {
	if threshold <= 0 {
		threshold = DefaultOfflineAfter
	}
	return &Health{threshold: threshold}
}

// Record adds one cycle outcome and reports whether the offline state
// changed.
func (h *Health) Record(allFailed bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	was := h.failures >= h.threshold
	if allFailed {
		h.failures++
	} else {
		h.failures = 0
		h.lastOK = time.Now()
	}
	return was != (h.failures >= h.threshold)
}

// Status returns the current health.
func (h *Health) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthStatus{
		Offline:      h.failures >= h.threshold,
		FailedCycles: h.failures,
		LastOK:       h.lastOK,
	}
}

// Reset clears the counters.
func (h *Health) Reset() {
	h.mu.Lock()
	h.failures = 0
	h.lastOK = time.Time{}
	h.mu.Unlock()
}
