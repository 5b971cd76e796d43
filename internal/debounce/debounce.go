// Package debounce coalesces bursts of calls into one delayed call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn with the most recent argument once calls have stopped
// for the configured delay. Each Call cancels the pending run.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	pending bool
	seq     uint64
	last    T
}

// New returns a debouncer that invokes fn delay after the last Call.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Call schedules fn(v), replacing any run that has not fired yet.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.last = v
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Cancel drops the pending run, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
}

// Pending reports whether a run is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// fire ignores timers that were superseded after they had already expired.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	v := d.last
	d.mu.Unlock()

	d.fn(v)
}
